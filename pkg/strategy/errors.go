package strategy

import (
	"fmt"

	"github.com/aretw0/tendril/pkg/domain"
)

// PredicateError reports a goal predicate the model produced but that cannot
// be used. It matches domain.ErrInvalidGoalPredicate with errors.Is.
type PredicateError struct {
	Goal   string
	Schema map[string]any // Nil when the model output was not an object
	Err    error
}

func (e *PredicateError) Error() string {
	return fmt.Sprintf("invalid goal predicate for %q: %v", e.Goal, e.Err)
}

func (e *PredicateError) Unwrap() []error {
	return []error{domain.ErrInvalidGoalPredicate, e.Err}
}

package domain

import "errors"

// ErrNoToolsAvailable is returned when no candidate transition maps to a registered event.
var ErrNoToolsAvailable = errors.New("no tools available")

// ErrUnknownEventKind is reported when a memory event carries an unrecognised kind.
var ErrUnknownEventKind = errors.New("unknown memory event kind")

// ErrFeedbackCorrelation is returned when feedback references neither or both of
// an observation and a decision.
var ErrFeedbackCorrelation = errors.New("feedback must reference exactly one of observation or decision")

// ErrEpisodeNotFound is returned when a store holds no records for an episode.
var ErrEpisodeNotFound = errors.New("episode not found")

// ErrInvalidGoalPredicate is returned when a synthesized goal predicate cannot be compiled.
var ErrInvalidGoalPredicate = errors.New("invalid goal predicate")

// ErrUnknownState is returned when a state value names a state the model does not define.
var ErrUnknownState = errors.New("unknown state")

// ErrGoalRequired is returned when a decision is requested without a goal.
var ErrGoalRequired = errors.New("goal is required")

// ErrDuplicateEventType is returned when a registry declares the same event type twice.
var ErrDuplicateEventType = errors.New("duplicate event type")

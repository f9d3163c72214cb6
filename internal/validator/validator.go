// Package validator checks a compiled machine and its event catalog for
// problems that compile cannot see: states no run can enter, and events the
// agent can never be offered a tool for.
package validator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/machine"
)

// Severity grades an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding.
type Issue struct {
	Severity Severity `json:"severity"`
	State    string   `json:"state,omitempty"`
	Event    string   `json:"event,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Severity, i.Message)
}

// Report holds the findings of one validation run.
type Report struct {
	Issues []Issue `json:"issues"`
}

// Err returns an error listing the error-level issues, or nil.
func (r Report) Err() error {
	var errs []string
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			errs = append(errs, i.Message)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("found %d errors:\n- %s", len(errs), strings.Join(errs, "\n- "))
}

// Validate crawls the machine from the root and reports unreachable states.
// When events is not empty it also reports transitions whose event has no
// schema, since no tool can be synthesized for them, and schemas no
// transition handles.
func Validate(states []machine.StateInfo, events domain.EventRegistry) Report {
	var report Report

	byPath := make(map[string]machine.StateInfo, len(states))
	children := make(map[string][]string)
	for _, s := range states {
		byPath[s.Path] = s
		if s.Path != "" {
			children[s.Parent] = append(children[s.Parent], s.Path)
		}
	}

	visited := make(map[string]bool)
	var queue []string
	var mark func(path string)
	mark = func(path string) {
		if visited[path] {
			return
		}
		if _, ok := byPath[path]; !ok {
			return
		}
		visited[path] = true
		queue = append(queue, path)
		// Entering a state enters its ancestors.
		if path != "" {
			mark(byPath[path].Parent)
		}
	}

	mark("")
	for len(queue) > 0 {
		current := byPath[queue[0]]
		queue = queue[1:]

		for _, c := range children[current.Path] {
			if byPath[c].Initial {
				mark(c)
			}
		}
		for _, t := range slices.Concat(current.On, current.Always) {
			if t.Target != "" {
				mark(t.Target)
			}
		}
	}

	for _, s := range states {
		if !visited[s.Path] {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityError,
				State:    s.Path,
				Message:  fmt.Sprintf("state %q is unreachable", s.Path),
			})
		}
	}

	if events.Len() == 0 {
		return report
	}

	handled := make(map[string]bool)
	for _, s := range states {
		for _, t := range s.On {
			if handled[t.Event] {
				continue
			}
			handled[t.Event] = true
			if !events.Has(t.Event) {
				report.Issues = append(report.Issues, Issue{
					Severity: SeverityError,
					State:    s.Path,
					Event:    t.Event,
					Message:  fmt.Sprintf("event %q has no schema; no tool can be offered for it", t.Event),
				})
			}
		}
	}
	for _, typ := range events.Types() {
		if !handled[typ] {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityWarning,
				Event:    typ,
				Message:  fmt.Sprintf("event %q is declared but no transition handles it", typ),
			})
		}
	}
	return report
}

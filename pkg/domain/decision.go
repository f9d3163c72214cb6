package domain

import "time"

// Step is one move along a planned path: the event taken and the state it leads to.
type Step struct {
	Event Event          `json:"event"`
	State *ObservedState `json:"state,omitempty"`
}

// Path is a planned trajectory toward a goal.
type Path struct {
	State  *ObservedState `json:"state,omitempty"` // Terminal state, when known
	Steps  []Step         `json:"steps"`
	Weight *float64       `json:"weight,omitempty"` // Nil when the planner did not assign a cost
}

// Decision is the outcome of one successful strategy run.
type Decision struct {
	ID        string         `json:"id"`
	Strategy  string         `json:"strategy"`
	Goal      string         `json:"goal"`
	GoalState *ObservedState `json:"goalState,omitempty"`
	NextEvent *Event         `json:"nextEvent,omitempty"` // Nil means "no actionable decision"
	Paths     []Path         `json:"paths"`
	EpisodeID string         `json:"episodeId"`
	Timestamp time.Time      `json:"timestamp"`
}

// Actionable reports whether the decision selects an event.
func (d *Decision) Actionable() bool { return d != nil && d.NextEvent != nil }

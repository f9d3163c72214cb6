package domain

// Guard names the condition protecting a transition.
type Guard struct {
	Type string `json:"type"`
}

// Transition is a candidate move out of the current configuration, as exposed
// by an environment model.
type Transition struct {
	EventType   string   `json:"eventType"`
	Source      string   `json:"source,omitempty"`      // Dotted path of the owning state
	Target      []string `json:"target,omitempty"`      // Dotted paths; empty for targetless transitions
	Guard       *Guard   `json:"guard,omitempty"`       // Nil when unguarded
	Description string   `json:"description,omitempty"` // Defaults to the event schema description
}

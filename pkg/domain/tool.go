package domain

import "strings"

// ToolName converts an event type into a tool name ("a.b" becomes "a_b").
func ToolName(eventType string) string {
	return strings.ReplaceAll(eventType, ".", "_")
}

// Tool is a callable offered to a language model. Executing it materialises
// an event of EventType carrying the call arguments as parameters.
type Tool struct {
	Name        string         `json:"name"`
	EventType   string         `json:"eventType"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema of the arguments

	execute func(args map[string]any) (Event, error)
}

// NewTool builds a tool whose Execute delegates to fn.
func NewTool(eventType, description string, parameters map[string]any, fn func(map[string]any) (Event, error)) Tool {
	return Tool{
		Name:        ToolName(eventType),
		EventType:   eventType,
		Description: description,
		Parameters:  parameters,
		execute:     fn,
	}
}

// Execute validates the arguments and returns the event the call stands for.
func (t Tool) Execute(args map[string]any) (Event, error) {
	if t.execute == nil {
		return NewEvent(t.EventType, args), nil
	}
	return t.execute(args)
}

// ToolSet is an ordered collection of tools. Entries with the same name are
// kept; Lookup resolves to the first.
type ToolSet []Tool

// Lookup finds a tool by name.
func (s ToolSet) Lookup(name string) (Tool, bool) {
	for _, t := range s {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// Names returns the tool names in order.
func (s ToolSet) Names() []string {
	names := make([]string, len(s))
	for i, t := range s {
		names[i] = t.Name
	}
	return names
}

// ToolCall is a model's request to invoke a tool.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

package llm

import "errors"

var (
	// ErrScriptExhausted is returned by a Scripted model that has no responses left.
	ErrScriptExhausted = errors.New("scripted model: no responses left")

	// ErrUnknownTool is reported in a tool result when the model calls a tool
	// that was not offered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidObject is returned when structured output cannot be decoded or
	// does not satisfy the requested schema.
	ErrInvalidObject = errors.New("invalid structured output")
)

package ports

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
)

// ToolChoice constrains whether the model must, may or must not call a tool.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceRequired ToolChoice = "required"
)

// Mode selects free-form text generation or structured object generation.
type Mode string

const (
	ModeText   Mode = "text"
	ModeObject Mode = "object"
)

// ToolSpec is the model-facing description of a callable tool.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// GenerateRequest is a single call to a language model.
type GenerateRequest struct {
	System     string           `json:"system,omitempty"`
	Messages   []domain.Message `json:"messages"`
	Tools      []ToolSpec       `json:"tools,omitempty"`
	ToolChoice ToolChoice       `json:"toolChoice,omitempty"`
	Mode       Mode             `json:"mode,omitempty"`
	Schema     map[string]any   `json:"schema,omitempty"` // Output schema in ModeObject
	SchemaName string           `json:"schemaName,omitempty"`
}

// Usage reports token accounting when the provider supplies it.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// GenerateResponse is the model output for one request.
// Message holds the assistant turn: text parts and tool-call parts.
type GenerateResponse struct {
	ID           string         `json:"id,omitempty"`
	Message      domain.Message `json:"message"`
	FinishReason string         `json:"finishReason,omitempty"`
	Usage        Usage          `json:"usage"`
}

// LanguageModel is the collaborator that turns prompts into text, tool calls
// or structured objects. Timeouts and cancellation travel in ctx.
type LanguageModel interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

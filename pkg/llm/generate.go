package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/schema"
)

// ToolResult is the outcome of executing one tool call.
type ToolResult struct {
	ToolCallID string
	ToolName   string
	Args       map[string]any
	Event      domain.Event
	Err        error
}

// OK reports whether the tool executed successfully.
func (r ToolResult) OK() bool { return r.Err == nil }

// TextResult is the outcome of GenerateText.
type TextResult struct {
	Response *ports.GenerateResponse
	// Messages produced by the run, in order: the assistant message, then one
	// tool message holding every tool result.
	Messages []domain.Message
	Results  []ToolResult
}

// Text returns the assistant text.
func (r *TextResult) Text() string { return r.Response.Message.Text() }

// Successful returns the tool results that executed without error, in call order.
func (r *TextResult) Successful() []ToolResult {
	var out []ToolResult
	for _, tr := range r.Results {
		if tr.OK() {
			out = append(out, tr)
		}
	}
	return out
}

// Specs converts tools into the model-facing tool descriptions.
func Specs(tools domain.ToolSet) []ports.ToolSpec {
	specs := make([]ports.ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, ports.ToolSpec{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	return specs
}

// GenerateText runs one model round. When tools are given they are offered to
// the model and every tool call in the response is executed locally; failures
// are reported in the tool message and in the result, never as an error.
// Only collaborator failures are returned as errors.
func GenerateText(ctx context.Context, model ports.LanguageModel, req ports.GenerateRequest, tools domain.ToolSet) (*TextResult, error) {
	if len(tools) > 0 && len(req.Tools) == 0 {
		req.Tools = Specs(tools)
	}
	if req.Mode == "" {
		req.Mode = ports.ModeText
	}

	resp, err := model.Generate(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("generate text: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("generate text: model returned no response")
	}

	assistant := resp.Message
	if assistant.Role == "" {
		assistant.Role = domain.RoleAssistant
	}
	result := &TextResult{Response: resp, Messages: []domain.Message{assistant}}

	calls := assistant.ToolCalls()
	if len(calls) == 0 {
		return result, nil
	}

	parts := make([]domain.Part, 0, len(calls))
	for _, call := range calls {
		tr := execute(tools, call)
		result.Results = append(result.Results, tr)
		if tr.Err != nil {
			parts = append(parts, domain.ToolResultPart(call.ID, call.Name, tr.Err.Error(), true))
			continue
		}
		parts = append(parts, domain.ToolResultPart(call.ID, call.Name, tr.Event.AsMap(), false))
	}
	result.Messages = append(result.Messages, domain.NewMessage(domain.RoleTool, parts...))
	return result, nil
}

func execute(tools domain.ToolSet, call domain.ToolCall) ToolResult {
	tr := ToolResult{ToolCallID: call.ID, ToolName: call.Name, Args: call.Args}
	t, ok := tools.Lookup(call.Name)
	if !ok {
		tr.Err = fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
		return tr
	}
	ev, err := t.Execute(call.Args)
	if err != nil {
		tr.Err = fmt.Errorf("tool %s: %w", call.Name, err)
		return tr
	}
	tr.Event = ev
	return tr
}

// ObjectResult is the outcome of GenerateObject.
type ObjectResult struct {
	Response *ports.GenerateResponse
	Object   map[string]any
}

// GenerateObject asks the model for a JSON object satisfying doc, decodes the
// assistant text and validates it. Markdown code fences around the JSON are
// tolerated.
func GenerateObject(ctx context.Context, model ports.LanguageModel, req ports.GenerateRequest, doc map[string]any) (*ObjectResult, error) {
	validator, err := schema.CompilePredicate(doc)
	if err != nil {
		return nil, fmt.Errorf("generate object: response schema: %w", err)
	}
	req.Mode = ports.ModeObject
	req.Schema = doc
	req.Tools = nil
	req.ToolChoice = ports.ToolChoiceNone

	resp, err := model.Generate(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("generate object: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("generate object: model returned no response")
	}

	text := stripFences(resp.Message.Text())
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidObject, err)
	}
	if err := validator.Validate(obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidObject, err)
	}
	return &ObjectResult{Response: resp, Object: obj}, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

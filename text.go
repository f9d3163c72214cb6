package tendril

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/llm"
	"github.com/aretw0/tendril/pkg/ports"
)

// Wrap returns model decorated so that every prompt message it is sent is
// recorded in the agent's memory before the call is made.
func (a *Agent) Wrap(model ports.LanguageModel) ports.LanguageModel {
	return llm.Wrap(model, a.recordPrompt)
}

func (a *Agent) recordPrompt(next ports.LanguageModel) ports.LanguageModel {
	return llm.Func(func(ctx context.Context, req *ports.GenerateRequest) (*ports.GenerateResponse, error) {
		for _, msg := range req.Messages {
			msg.ID, msg.Timestamp = "", time.Time{}
			a.AddMessage(msg)
		}
		return next.Generate(ctx, req)
	})
}

// TemplateData is what a text template renders.
type TemplateData struct {
	Goal       string
	StateValue *domain.StateValue
	Context    map[string]any
}

// DefaultTextTemplate renders the state value and context as JSON in tags,
// followed by the goal.
func DefaultTextTemplate(data TemplateData) string {
	var preamble []string
	if data.StateValue != nil && !data.StateValue.IsZero() {
		if raw, err := json.Marshal(data.StateValue); err == nil {
			preamble = append(preamble, "<stateValue>"+string(raw)+"</stateValue>")
		}
	}
	if data.Context != nil {
		if raw, err := json.Marshal(data.Context); err == nil {
			preamble = append(preamble, "<context>"+string(raw)+"</context>")
		}
	}
	return strings.TrimSpace(strings.Join(preamble, "\n") + "\n\n" + data.Goal)
}

// TextOptions is the input of GenerateText.
type TextOptions struct {
	Prompt     string
	StateValue *domain.StateValue
	Context    map[string]any
	Template   func(TemplateData) string // Default: DefaultTextTemplate
	Messages   []domain.Message          // History placed before the prompt
	Model      ports.LanguageModel       // Default: the agent model; prompts are recorded either way
	System     string                    // Default: the agent description
	Tools      domain.ToolSet
	ToolChoice ports.ToolChoice
}

// GenerateText runs a free-form model call with the agent's prompt template
// and records the response messages.
func (a *Agent) GenerateText(ctx context.Context, opts TextOptions) (*llm.TextResult, error) {
	template := opts.Template
	if template == nil {
		template = DefaultTextTemplate
	}
	prompt := template(TemplateData{Goal: opts.Prompt, StateValue: opts.StateValue, Context: opts.Context})

	model := a.model
	if opts.Model != nil {
		model = opts.Model
	}
	model = a.Wrap(model)
	system := opts.System
	if system == "" {
		system = a.description
	}

	messages := append(append([]domain.Message(nil), opts.Messages...), domain.UserMessage(prompt))
	res, err := llm.GenerateText(ctx, model, ports.GenerateRequest{
		System:     system,
		Messages:   messages,
		ToolChoice: opts.ToolChoice,
	}, opts.Tools)
	if err != nil {
		return nil, fmt.Errorf("generate text: %w", err)
	}
	for i, msg := range res.Messages {
		msg.ResponseID = res.Response.ID
		res.Messages[i] = a.AddMessage(msg)
	}
	return res, nil
}

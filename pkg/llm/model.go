package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Func adapts a function to ports.LanguageModel.
type Func func(ctx context.Context, req *ports.GenerateRequest) (*ports.GenerateResponse, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req *ports.GenerateRequest) (*ports.GenerateResponse, error) {
	return f(ctx, req)
}

// Middleware decorates a model.
type Middleware func(next ports.LanguageModel) ports.LanguageModel

// Wrap applies middlewares to model. The first middleware is the outermost.
func Wrap(model ports.LanguageModel, mws ...Middleware) ports.LanguageModel {
	for i := len(mws) - 1; i >= 0; i-- {
		model = mws[i](model)
	}
	return model
}

type scripted struct {
	resp *ports.GenerateResponse
	err  error
}

// Scripted replays queued responses in order and records every request it
// receives. It is safe for concurrent use.
type Scripted struct {
	mu       sync.Mutex
	queue    []scripted
	requests []*ports.GenerateRequest
}

// NewScripted creates a model that answers with responses, one per call.
func NewScripted(responses ...*ports.GenerateResponse) *Scripted {
	s := &Scripted{}
	for _, r := range responses {
		s.Push(r)
	}
	return s
}

// Push queues a response.
func (s *Scripted) Push(resp *ports.GenerateResponse) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, scripted{resp: resp})
	return s
}

// PushError queues a failing call.
func (s *Scripted) PushError(err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, scripted{err: err})
	return s
}

// Generate pops the next queued response.
func (s *Scripted) Generate(ctx context.Context, req *ports.GenerateRequest) (*ports.GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.queue) == 0 {
		return nil, ErrScriptExhausted
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	if next.err != nil {
		return nil, next.err
	}
	return next.resp, nil
}

// Requests returns the requests received so far.
func (s *Scripted) Requests() []*ports.GenerateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ports.GenerateRequest(nil), s.requests...)
}

// Calls returns the number of Generate calls.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Static returns a model that answers object requests with the JSON encoding
// of object and text requests with the same JSON as text.
func Static(object any) (Func, error) {
	raw, err := json.Marshal(object)
	if err != nil {
		return nil, fmt.Errorf("static model: %w", err)
	}
	text := string(raw)
	return func(ctx context.Context, _ *ports.GenerateRequest) (*ports.GenerateResponse, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return TextResponse(text), nil
	}, nil
}

// TextResponse builds an assistant response made of one text part.
func TextResponse(text string) *ports.GenerateResponse {
	return &ports.GenerateResponse{
		ID:           domain.NewID(),
		Message:      domain.NewMessage(domain.RoleAssistant, domain.TextPart(text)),
		FinishReason: "stop",
	}
}

// ToolCallResponse builds an assistant response calling the given tools.
// Missing call ids are generated.
func ToolCallResponse(calls ...domain.ToolCall) *ports.GenerateResponse {
	parts := make([]domain.Part, 0, len(calls))
	for _, c := range calls {
		if c.ID == "" {
			c.ID = domain.NewID()
		}
		parts = append(parts, domain.ToolCallPart(c))
	}
	return &ports.GenerateResponse{
		ID:           domain.NewID(),
		Message:      domain.NewMessage(domain.RoleAssistant, parts...),
		FinishReason: "tool-calls",
	}
}

// Call is a shorthand for a tool call without an id.
func Call(name string, args map[string]any) domain.ToolCall {
	return domain.ToolCall{Name: name, Args: args}
}

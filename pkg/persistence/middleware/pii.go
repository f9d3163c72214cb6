package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Mask replaces the value of every redacted key.
const Mask = "***"

type piiMiddleware struct {
	next     ports.MemoryStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks, before they are stored,
// the values of map keys matching any of the patterns. It covers state
// contexts, event parameters, feedback attributes and tool-call arguments at
// any depth. Records held in memory by the caller are left untouched.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.MemoryStore) ports.MemoryStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Append(ctx context.Context, ev domain.MemoryEvent) error {
	return m.next.Append(ctx, m.redact(ev))
}

func (m *piiMiddleware) Load(ctx context.Context, episodeID string) ([]domain.MemoryEvent, error) {
	return m.next.Load(ctx, episodeID)
}

func (m *piiMiddleware) Episodes(ctx context.Context) ([]string, error) {
	return m.next.Episodes(ctx)
}

func (m *piiMiddleware) Delete(ctx context.Context, episodeID string) error {
	return m.next.Delete(ctx, episodeID)
}

func (m *piiMiddleware) redact(ev domain.MemoryEvent) domain.MemoryEvent {
	switch p := ev.Payload.(type) {
	case domain.Observation:
		p.State = m.state(p.State)
		if p.PrevState != nil {
			prev := m.state(*p.PrevState)
			p.PrevState = &prev
		}
		p.Event = m.event(p.Event)
		ev.Payload = p
	case domain.Feedback:
		p.Attributes = m.maskMap(p.Attributes)
		ev.Payload = p
	case domain.Message:
		parts := make([]domain.Part, len(p.Content))
		for i, part := range p.Content {
			part.Args = m.maskMap(part.Args)
			part.Result = m.maskValue(part.Result)
			parts[i] = part
		}
		p.Content = parts
		ev.Payload = p
	case domain.Decision:
		if p.GoalState != nil {
			goal := m.state(*p.GoalState)
			p.GoalState = &goal
		}
		p.NextEvent = m.event(p.NextEvent)
		paths := make([]domain.Path, len(p.Paths))
		for i, path := range p.Paths {
			if path.State != nil {
				s := m.state(*path.State)
				path.State = &s
			}
			steps := make([]domain.Step, len(path.Steps))
			for j, step := range path.Steps {
				step.Event.Params = m.maskMap(step.Event.Params)
				if step.State != nil {
					s := m.state(*step.State)
					step.State = &s
				}
				steps[j] = step
			}
			path.Steps = steps
			paths[i] = path
		}
		p.Paths = paths
		ev.Payload = p
	}
	return ev
}

func (m *piiMiddleware) state(s domain.ObservedState) domain.ObservedState {
	s.Context = m.maskMap(s.Context)
	return s
}

func (m *piiMiddleware) event(e *domain.Event) *domain.Event {
	if e == nil {
		return nil
	}
	out := *e
	out.Params = m.maskMap(e.Params)
	return &out
}

func (m *piiMiddleware) sensitive(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

// maskMap returns a masked deep copy of in. Nil stays nil.
func (m *piiMiddleware) maskMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if m.sensitive(k) {
			out[k] = Mask
			continue
		}
		out[k] = m.maskValue(v)
	}
	return out
}

func (m *piiMiddleware) maskValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return m.maskMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = m.maskValue(item)
		}
		return out
	default:
		return v
	}
}

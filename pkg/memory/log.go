// Package memory implements the agent's short-term memory: four append-only
// sequences fed by memory events, with per-kind subscribers and optional
// write-through to a long-term store.
package memory

import (
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/tendril/internal/mailbox"
	"github.com/aretw0/tendril/pkg/domain"
)

// Log holds observations, feedback, messages and decisions in append order.
// Appends are serialised; subscribers of a kind are notified in append order,
// one record at a time. Applying from inside a subscriber queues the
// notification instead of recursing.
type Log struct {
	mu           sync.RWMutex
	observations []domain.Observation
	feedback     []domain.Feedback
	messages     []domain.Message
	decisions    []domain.Decision

	subsMu sync.RWMutex
	subs   map[domain.RecordKind]map[int]func(domain.MemoryEvent)
	nextID int

	outbox *mailbox.Mailbox[domain.MemoryEvent]
	logger *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the logger used to report dropped events.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		l.logger = logger
	}
}

// NewLog creates an empty log.
func NewLog(opts ...Option) *Log {
	l := &Log{
		subs:   make(map[domain.RecordKind]map[int]func(domain.MemoryEvent)),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.outbox = mailbox.New(l.dispatch)
	return l
}

// Apply appends the event payload to its sequence and notifies the
// subscribers of that kind. Events with an unknown kind or a payload that
// does not match the kind are logged and dropped.
func (l *Log) Apply(ev domain.MemoryEvent) {
	if err := ev.Check(); err != nil {
		l.logger.Warn("dropping memory event", "kind", string(ev.Kind), "err", err)
		return
	}

	l.mu.Lock()
	switch p := ev.Payload.(type) {
	case domain.Observation:
		l.observations = append(l.observations, p)
	case domain.Feedback:
		l.feedback = append(l.feedback, p)
	case domain.Message:
		l.messages = append(l.messages, p)
	case domain.Decision:
		l.decisions = append(l.decisions, p)
	}
	l.outbox.Enqueue(ev)
	l.mu.Unlock()

	l.outbox.Flush()
}

// Observations returns the recorded observations.
func (l *Log) Observations() []domain.Observation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.observations)
}

// Feedback returns the recorded feedback.
func (l *Log) Feedback() []domain.Feedback {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.feedback)
}

// Messages returns the recorded messages.
func (l *Log) Messages() []domain.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.messages)
}

// Decisions returns the recorded decisions.
func (l *Log) Decisions() []domain.Decision {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.decisions)
}

// Subscribe registers fn for every future record of kind. The returned
// function cancels the subscription immediately, even for records already
// queued; calling it again does nothing.
func (l *Log) Subscribe(kind domain.RecordKind, fn func(domain.MemoryEvent)) func() {
	l.subsMu.Lock()
	id := l.nextID
	l.nextID++
	if l.subs[kind] == nil {
		l.subs[kind] = make(map[int]func(domain.MemoryEvent))
	}
	l.subs[kind][id] = fn
	l.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.subsMu.Lock()
			delete(l.subs[kind], id)
			l.subsMu.Unlock()
		})
	}
}

// SubscribeAll registers fn for every kind. The returned function cancels all
// of them.
func (l *Log) SubscribeAll(fn func(domain.MemoryEvent)) func() {
	cancels := make([]func(), 0, len(domain.Kinds))
	for _, k := range domain.Kinds {
		cancels = append(cancels, l.Subscribe(k, fn))
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

// OnObservation subscribes to observations.
func (l *Log) OnObservation(fn func(domain.Observation)) func() {
	return l.Subscribe(domain.KindObservation, func(ev domain.MemoryEvent) { fn(ev.Payload.(domain.Observation)) })
}

// OnFeedback subscribes to feedback.
func (l *Log) OnFeedback(fn func(domain.Feedback)) func() {
	return l.Subscribe(domain.KindFeedback, func(ev domain.MemoryEvent) { fn(ev.Payload.(domain.Feedback)) })
}

// OnMessage subscribes to messages.
func (l *Log) OnMessage(fn func(domain.Message)) func() {
	return l.Subscribe(domain.KindMessage, func(ev domain.MemoryEvent) { fn(ev.Payload.(domain.Message)) })
}

// OnDecision subscribes to decisions.
func (l *Log) OnDecision(fn func(domain.Decision)) func() {
	return l.Subscribe(domain.KindDecision, func(ev domain.MemoryEvent) { fn(ev.Payload.(domain.Decision)) })
}

func (l *Log) dispatch(ev domain.MemoryEvent) {
	l.subsMu.RLock()
	ids := make([]int, 0, len(l.subs[ev.Kind]))
	for id := range l.subs[ev.Kind] {
		ids = append(ids, id)
	}
	l.subsMu.RUnlock()
	slices.Sort(ids)

	for _, id := range ids {
		l.subsMu.RLock()
		fn, ok := l.subs[ev.Kind][id]
		l.subsMu.RUnlock()
		if ok {
			l.deliver(fn, ev)
		}
	}
}

// deliver runs one subscriber. A panic is logged so the remaining
// subscribers still see the event.
func (l *Log) deliver(fn func(domain.MemoryEvent), ev domain.MemoryEvent) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("memory subscriber panicked", "kind", string(ev.Kind), "panic", r)
		}
	}()
	fn(ev)
}

package tendril

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/memory"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/schema"
	"github.com/aretw0/tendril/pkg/strategy"
)

// ErrModelRequired is returned by New when no language model is given.
var ErrModelRequired = errors.New("language model is required")

// Agent pursues goals inside a state-machine environment by asking a
// language model to pick the next event. It owns the episode's short-term
// memory and, optionally, writes it through to a long-term store.
type Agent struct {
	name          string
	episodeID     string
	description   string
	model         ports.LanguageModel
	events        domain.EventRegistry
	contextSchema *schema.Object
	strategy      strategy.Strategy
	hooks         domain.DecisionHooks
	defaults      DecideOptions
	logger        *slog.Logger

	memory      *memory.Log
	store       ports.MemoryStore
	stopPersist func()
}

var _ strategy.Agent = (*Agent)(nil)

// Option defines a functional option for configuring the Agent.
type Option func(*Agent)

// WithName sets the agent name. Agents sharing a name share long-term memory.
func WithName(name string) Option {
	return func(a *Agent) {
		a.name = name
	}
}

// WithEpisodeID sets the episode id instead of generating one.
func WithEpisodeID(id string) Option {
	return func(a *Agent) {
		a.episodeID = id
	}
}

// WithDescription sets the role description used as the system prompt.
func WithDescription(description string) Option {
	return func(a *Agent) {
		a.description = description
	}
}

// WithEvents sets the events the agent may cause.
func WithEvents(events domain.EventRegistry) Option {
	return func(a *Agent) {
		a.events = events
	}
}

// WithContextSchema describes the environment context to planners.
func WithContextSchema(s *schema.Object) Option {
	return func(a *Agent) {
		a.contextSchema = s
	}
}

// WithStrategy sets the default decision strategy (default: strategy.Simple).
func WithStrategy(s strategy.Strategy) Option {
	return func(a *Agent) {
		a.strategy = s
	}
}

// WithLogger sets a custom structured logger for the agent and its memory.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithHooks registers decision observability hooks.
func WithHooks(hooks domain.DecisionHooks) Option {
	return func(a *Agent) {
		a.hooks = hooks
	}
}

// WithDefaultDecideOptions sets the options every Decide call starts from.
func WithDefaultDecideOptions(opts DecideOptions) Option {
	return func(a *Agent) {
		a.defaults = opts
	}
}

// WithMemory attaches a long-term store. The episode's stored records are
// replayed on construction and every new record is written through.
func WithMemory(store ports.MemoryStore) Option {
	return func(a *Agent) {
		a.store = store
	}
}

// New creates an agent driven by model.
func New(model ports.LanguageModel, opts ...Option) (*Agent, error) {
	if model == nil {
		return nil, ErrModelRequired
	}
	a := &Agent{model: model}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.NewNop()
	}
	if a.episodeID == "" {
		a.episodeID = domain.NewID()
	}
	if a.strategy == nil {
		a.strategy = strategy.Simple{}
	}
	a.memory = memory.NewLog(memory.WithLogger(a.logger))

	if a.store != nil {
		n, err := memory.Restore(context.Background(), a.memory, a.store, a.episodeID)
		if err != nil && !errors.Is(err, domain.ErrEpisodeNotFound) {
			return nil, fmt.Errorf("failed to restore memory: %w", err)
		}
		if n > 0 {
			a.logger.Info("restored episode", "episode_id", a.episodeID, "records", n)
		}
		a.stopPersist = memory.Persist(context.Background(), a.memory, a.store)
	}
	return a, nil
}

// Close stops writing records to the long-term store.
func (a *Agent) Close() {
	if a.stopPersist != nil {
		a.stopPersist()
	}
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// EpisodeID returns the id grouping this run's records.
func (a *Agent) EpisodeID() string { return a.episodeID }

// Description returns the role description.
func (a *Agent) Description() string { return a.description }

// Model returns the default language model.
func (a *Agent) Model() ports.LanguageModel { return a.model }

// Events returns the events the agent may cause.
func (a *Agent) Events() domain.EventRegistry { return a.events }

// ContextSchema returns the context schema given at construction, or nil.
func (a *Agent) ContextSchema() *schema.Object { return a.contextSchema }

// Strategy returns the default strategy.
func (a *Agent) Strategy() strategy.Strategy { return a.strategy }

// Logger returns the agent logger.
func (a *Agent) Logger() *slog.Logger { return a.logger }

// Memory returns the short-term memory log.
func (a *Agent) Memory() *memory.Log { return a.memory }

// AddMessage records msg, filling in its id, timestamp and episode.
func (a *Agent) AddMessage(msg domain.Message) domain.Message {
	if msg.ID == "" {
		msg.ID = domain.NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.EpisodeID == "" {
		msg.EpisodeID = a.episodeID
	}
	a.memory.Apply(domain.MessageEvent(msg))
	return msg
}

// AddObservation records a witnessed transition.
func (a *Agent) AddObservation(in domain.ObservationInput) domain.Observation {
	obs := domain.Observation{
		ID:          in.ID,
		EpisodeID:   in.EpisodeID,
		DecisionID:  in.DecisionID,
		Goal:        in.Goal,
		PrevState:   in.PrevState,
		Event:       in.Event,
		State:       in.State.Minimal(),
		MachineHash: in.MachineHash,
		Timestamp:   in.Timestamp,
	}
	if obs.ID == "" {
		obs.ID = domain.NewID()
	}
	if obs.EpisodeID == "" {
		obs.EpisodeID = a.episodeID
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now()
	}
	a.memory.Apply(domain.ObservationEvent(obs))
	return obs
}

// AddFeedback records feedback on an observation or a decision. Exactly one
// of the two ids must be set.
func (a *Agent) AddFeedback(in domain.FeedbackInput) (domain.Feedback, error) {
	if err := in.Validate(); err != nil {
		return domain.Feedback{}, err
	}
	fb := domain.Feedback{
		ObservationID: in.ObservationID,
		DecisionID:    in.DecisionID,
		Score:         in.Score,
		Comment:       in.Comment,
		Attributes:    map[string]any{},
		EpisodeID:     in.EpisodeID,
		Timestamp:     in.Timestamp,
	}
	for k, v := range in.Attributes {
		fb.Attributes[k] = v
	}
	if fb.EpisodeID == "" {
		fb.EpisodeID = a.episodeID
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now()
	}
	a.memory.Apply(domain.FeedbackEvent(fb))
	return fb, nil
}

// AddDecision records a decision.
func (a *Agent) AddDecision(d domain.Decision) {
	if d.EpisodeID == "" {
		d.EpisodeID = a.episodeID
	}
	a.memory.Apply(domain.DecisionEvent(d))
}

// Messages returns the recorded messages.
func (a *Agent) Messages() []domain.Message { return a.memory.Messages() }

// Observations returns the recorded observations.
func (a *Agent) Observations() []domain.Observation { return a.memory.Observations() }

// Feedback returns the recorded feedback.
func (a *Agent) Feedback() []domain.Feedback { return a.memory.Feedback() }

// Decisions returns the recorded decisions.
func (a *Agent) Decisions() []domain.Decision { return a.memory.Decisions() }

// OnMessage calls fn for every message recorded from now on.
func (a *Agent) OnMessage(fn func(domain.Message)) (cancel func()) { return a.memory.OnMessage(fn) }

// OnFeedback calls fn for every feedback recorded from now on.
func (a *Agent) OnFeedback(fn func(domain.Feedback)) (cancel func()) { return a.memory.OnFeedback(fn) }

// OnObservation calls fn for every observation recorded from now on.
func (a *Agent) OnObservation(fn func(domain.Observation)) (cancel func()) {
	return a.memory.OnObservation(fn)
}

// OnDecision calls fn for every decision recorded from now on.
func (a *Agent) OnDecision(fn func(domain.Decision)) (cancel func()) { return a.memory.OnDecision(fn) }

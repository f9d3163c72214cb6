// Package http exposes agent memory and the environment model over a chi router.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/presentation/graph"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/machine"
	"github.com/aretw0/tendril/pkg/memory"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/toolkit"
	"github.com/go-chi/chi/v5"
)

// Server serves episode memory from a store and, when configured, the
// transitions and step previews of a machine.
type Server struct {
	Store   ports.MemoryStore
	Machine *machine.Machine
	Events  domain.EventRegistry
	Streams *StreamManager

	log        *memory.Log
	logEpisode string
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Server)

// WithMachine enables the /machine, /transitions and /step routes.
func WithMachine(m *machine.Machine, events domain.EventRegistry) Option {
	return func(s *Server) {
		s.Machine = m
		s.Events = events
	}
}

// WithLog routes feedback posted for episodeID through log instead of
// appending it to the store directly. Feedback for other episodes still goes
// to the store. The server streams every record applied to log; persisting
// them is left to memory.Persist.
func WithLog(log *memory.Log, episodeID string) Option {
	return func(s *Server) {
		s.log = log
		s.logEpisode = episodeID
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server over store.
func NewServer(store ports.MemoryStore, opts ...Option) *Server {
	s := &Server{
		Store:   store,
		Streams: NewStreamManager(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log != nil {
		s.Watch(s.log)
	}
	return s
}

// NewHandler creates a new HTTP handler for the store.
func NewHandler(store ports.MemoryStore, opts ...Option) http.Handler {
	return NewServer(store, opts...).Handler()
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)

	r.Route("/episodes", func(r chi.Router) {
		r.Get("/", s.ListEpisodes)
		r.Get("/{id}", s.GetEpisode)
		r.Get("/{id}/stream", s.StreamEpisode)
		r.Post("/{id}/feedback", s.PostFeedback)
		r.Get("/{id}/{kind}", s.GetEpisode)
	})

	r.Get("/machine", s.GetMachine)
	r.Post("/transitions", s.PostTransitions)
	r.Post("/step", s.PostStep)

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Watch broadcasts every record applied to log to the subscribers of its episode.
func (s *Server) Watch(log *memory.Log) func() {
	return log.SubscribeAll(func(ev domain.MemoryEvent) {
		s.publish(ev)
	})
}

func (s *Server) publish(ev domain.MemoryEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("failed to encode memory event for stream", "kind", ev.Kind, "err", err)
		return
	}
	s.Streams.Broadcast(ev.EpisodeID(), string(data))
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"app":     "tendril-http",
		"version": tendril.Version,
	}
	if s.Machine != nil {
		resp["machine"] = s.Machine.ID()
		resp["machine_hash"] = s.Machine.Hash()
	}
	writeJSON(w, http.StatusOK, resp, s.logger)
}

// ListEpisodes handles GET /episodes.
func (s *Server) ListEpisodes(w http.ResponseWriter, r *http.Request) {
	episodes, err := s.Store.Episodes(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "list episodes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"episodes": episodes}, s.logger)
}

var kindAliases = map[string]domain.RecordKind{
	"observe":      domain.KindObservation,
	"observations": domain.KindObservation,
	"feedback":     domain.KindFeedback,
	"message":      domain.KindMessage,
	"messages":     domain.KindMessage,
	"decision":     domain.KindDecision,
	"decisions":    domain.KindDecision,
}

// GetEpisode handles GET /episodes/{id} and GET /episodes/{id}/{kind}.
func (s *Server) GetEpisode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var kind domain.RecordKind
	if raw := chi.URLParam(r, "kind"); raw != "" {
		k, ok := kindAliases[raw]
		if !ok {
			http.Error(w, fmt.Sprintf("unknown record kind %q", raw), http.StatusBadRequest)
			return
		}
		kind = k
	}

	records, err := s.Store.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrEpisodeNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.fail(w, http.StatusInternalServerError, "load episode", err)
		return
	}

	if kind == "" {
		writeJSON(w, http.StatusOK, map[string]any{"episodeId": id, "records": records}, s.logger)
		return
	}
	payloads := []any{}
	for _, rec := range records {
		if rec.Kind == kind {
			payloads = append(payloads, rec.Payload)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"episodeId": id, "kind": kind, "items": payloads}, s.logger)
}

// PostFeedback handles POST /episodes/{id}/feedback.
func (s *Server) PostFeedback(w http.ResponseWriter, r *http.Request) {
	var in domain.FeedbackInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PostFeedback: invalid request body", "err", err)
		return
	}
	if err := in.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fb := domain.Feedback{
		ObservationID: in.ObservationID,
		DecisionID:    in.DecisionID,
		Score:         in.Score,
		Comment:       in.Comment,
		Attributes:    in.Attributes,
		EpisodeID:     chi.URLParam(r, "id"),
		Timestamp:     in.Timestamp,
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = s.now().UTC()
	}
	ev := domain.FeedbackEvent(fb)
	if s.log != nil && fb.EpisodeID == s.logEpisode {
		s.log.Apply(ev)
	} else {
		if err := s.Store.Append(r.Context(), ev); err != nil {
			s.fail(w, http.StatusInternalServerError, "append feedback", err)
			return
		}
		s.publish(ev)
	}
	writeJSON(w, http.StatusCreated, fb, s.logger)
}

// StreamEpisode handles GET /episodes/{id}/stream (SSE of new records).
func (s *Server) StreamEpisode(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	id := chi.URLParam(r, "id")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE: subscribed to episode", "episode_id", id)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected", "episode_id", id)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// GetMachine handles GET /machine with a Mermaid flowchart of the machine.
func (s *Server) GetMachine(w http.ResponseWriter, r *http.Request) {
	if !s.requireMachine(w) {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, graph.GenerateMermaid(s.Machine.States(), nil))
}

// TransitionsRequest is the body of POST /transitions.
type TransitionsRequest struct {
	State         domain.ObservedState `json:"state"`
	AllowedEvents []string             `json:"allowedEvents,omitempty"`
}

// PostTransitions handles POST /transitions, returning the tools available
// from a state.
func (s *Server) PostTransitions(w http.ResponseWriter, r *http.Request) {
	if !s.requireMachine(w) {
		return
	}
	var body TransitionsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	events := s.Events
	if body.AllowedEvents != nil {
		events = events.Filter(body.AllowedEvents)
	}
	tools, err := toolkit.Tools(body.State, s.Machine, events)
	if err != nil && !errors.Is(err, domain.ErrNoToolsAvailable) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if tools == nil {
		tools = domain.ToolSet{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools}, s.logger)
}

// StepRequest is the body of POST /step.
type StepRequest struct {
	State domain.ObservedState `json:"state"`
	Event domain.Event         `json:"event"`
}

// StepResponse previews the outcome of sending an event.
type StepResponse struct {
	Snapshot domain.Snapshot   `json:"snapshot"`
	Diff     *domain.StateDiff `json:"diff,omitempty"`
}

// PostStep handles POST /step. The machine is a pure model, so nothing is
// executed.
func (s *Server) PostStep(w http.ResponseWriter, r *http.Request) {
	if !s.requireMachine(w) {
		return
	}
	var body StepRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Event.Type == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	resp, err := Preview(s.Machine, body.State, body.Event)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, resp, s.logger)
}

// Preview resolves state and steps it with ev.
func Preview(env ports.Environment, state domain.ObservedState, ev domain.Event) (StepResponse, error) {
	snap, err := env.Resolve(state)
	if err != nil {
		return StepResponse{}, fmt.Errorf("resolve state: %w", err)
	}
	next, err := env.Step(snap, ev)
	if err != nil {
		return StepResponse{}, fmt.Errorf("step %s: %w", ev.Type, err)
	}
	return StepResponse{Snapshot: next, Diff: domain.Diff(&snap, next)}, nil
}

func (s *Server) requireMachine(w http.ResponseWriter) bool {
	if s.Machine == nil {
		http.Error(w, "no machine configured", http.StatusNotFound)
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, code int, op string, err error) {
	http.Error(w, fmt.Sprintf("%s: %v", op, err), code)
	s.logger.Error(op+" failed", "err", err)
}

func writeJSON(w http.ResponseWriter, code int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "err", err)
	}
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // EpisodeID -> Set of Channels
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

func (sm *StreamManager) Subscribe(episodeID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[episodeID]; !ok {
		sm.subscribers[episodeID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[episodeID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[episodeID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, episodeID)
			}
		}
	}
}

// Broadcast sends msg to every subscriber of the episode. Slow clients drop messages.
func (sm *StreamManager) Broadcast(episodeID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[episodeID] {
		select {
		case ch <- msg:
		default:
			slog.Warn("SSE: client buffer full, dropping message", "episode_id", episodeID)
		}
	}
}

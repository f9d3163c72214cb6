// Package mcp exposes the environment model and agent memory as a Model
// Context Protocol server.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/presentation/graph"
	tendrilhttp "github.com/aretw0/tendril/pkg/adapters/http"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/machine"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/toolkit"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	machineURI = "tendril://machine"
	mermaidURI = "tendril://machine/mermaid"
)

// StateArgs carries an observed state. Context is a JSON object.
type StateArgs struct {
	StateValue string `json:"state_value"`
	Context    string `json:"context,omitempty"`
}

// ListToolsArgs are the arguments of list_tools.
type ListToolsArgs struct {
	StateArgs
	AllowedEvents []string `json:"allowed_events,omitempty"`
}

// ListToolsResponse lists the tools available from a state.
type ListToolsResponse struct {
	Tools []domain.Tool `json:"tools" jsonschema_description:"Tools a model may call, one per available event"`
}

// PreviewStepArgs are the arguments of preview_step. Event is a JSON object
// with a "type" key and the event parameters.
type PreviewStepArgs struct {
	StateArgs
	Event string `json:"event"`
}

// GetMemoryArgs are the arguments of get_memory.
type GetMemoryArgs struct {
	EpisodeID string `json:"episode_id"`
	Kind      string `json:"kind,omitempty"`
}

// MemoryResponse holds the records of an episode.
type MemoryResponse struct {
	EpisodeID string               `json:"episodeId"`
	Records   []domain.MemoryEvent `json:"records" jsonschema_description:"Memory records in append order"`
}

// MachineDocument is the content of the tendril://machine resource.
type MachineDocument struct {
	ID     string              `json:"id"`
	Hash   string              `json:"hash"`
	States []machine.StateInfo `json:"states"`
}

// Server wraps a machine, its event registry and an optional memory store.
type Server struct {
	machine   *machine.Machine
	events    domain.EventRegistry
	store     ports.MemoryStore
	mcpServer *server.MCPServer
}

type Option func(*Server)

// WithStore enables get_memory.
func WithStore(store ports.MemoryStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(m *machine.Machine, events domain.EventRegistry, opts ...Option) *Server {
	s := &Server{
		machine:   m,
		events:    events,
		mcpServer: server.NewMCPServer("tendril-mcp", tendril.Version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves on addr using SSE until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	listTool := mcp.NewTool("list_tools",
		mcp.WithDescription("List the tools (events) an agent may call from a state of the environment."),
		mcp.WithString("state_value", mcp.Required(), mcp.Description("Dotted state path, or a JSON state value for parallel states")),
		mcp.WithString("context", mcp.Description("JSON object representing the current context (optional)")),
		mcp.WithArray("allowed_events", mcp.Description("Restrict the tools to these event types (optional)"), mcp.WithStringItems()),
		mcp.WithOutputSchema[ListToolsResponse](),
	)
	s.mcpServer.AddTool(listTool, mcp.NewStructuredToolHandler(s.ListTools))

	previewTool := mcp.NewTool("preview_step",
		mcp.WithDescription("Preview the snapshot reached by sending an event. Nothing is executed."),
		mcp.WithString("state_value", mcp.Required(), mcp.Description("Dotted state path, or a JSON state value for parallel states")),
		mcp.WithString("context", mcp.Description("JSON object representing the current context (optional)")),
		mcp.WithString("event", mcp.Required(), mcp.Description(`JSON object such as {"type":"fill3"}`)),
		mcp.WithOutputSchema[tendrilhttp.StepResponse](),
	)
	s.mcpServer.AddTool(previewTool, mcp.NewStructuredToolHandler(s.PreviewStep))

	memoryTool := mcp.NewTool("get_memory",
		mcp.WithDescription("Read the memory records of an episode."),
		mcp.WithString("episode_id", mcp.Required(), mcp.Description("Episode ID")),
		mcp.WithString("kind", mcp.Description("Only return records of this kind: observe, feedback, message or decision"),
			mcp.Enum(kindNames()...)),
		mcp.WithOutputSchema[MemoryResponse](),
	)
	s.mcpServer.AddTool(memoryTool, mcp.NewStructuredToolHandler(s.GetMemory))
}

func kindNames() []string {
	names := make([]string, len(domain.Kinds))
	for i, k := range domain.Kinds {
		names[i] = string(k)
	}
	return names
}

func (a StateArgs) observed() (domain.ObservedState, error) {
	var state domain.ObservedState
	if a.StateValue == "" {
		return state, fmt.Errorf("state_value is required")
	}
	if a.StateValue[0] == '{' || a.StateValue[0] == '"' {
		if err := json.Unmarshal([]byte(a.StateValue), &state.Value); err != nil {
			return state, fmt.Errorf("invalid state_value: %w", err)
		}
	} else {
		state.Value = domain.ParseStateValue(a.StateValue)
	}
	if a.Context != "" {
		if err := json.Unmarshal([]byte(a.Context), &state.Context); err != nil {
			return state, fmt.Errorf("invalid context: %w", err)
		}
	}
	return state, nil
}

// ListTools handles list_tools.
func (s *Server) ListTools(ctx context.Context, request mcp.CallToolRequest, args ListToolsArgs) (ListToolsResponse, error) {
	state, err := args.observed()
	if err != nil {
		return ListToolsResponse{}, err
	}
	events := s.events
	if args.AllowedEvents != nil {
		events = events.Filter(args.AllowedEvents)
	}
	tools, err := toolkit.Tools(state, s.machine, events)
	if err != nil && !errors.Is(err, domain.ErrNoToolsAvailable) {
		return ListToolsResponse{}, err
	}
	if tools == nil {
		tools = domain.ToolSet{}
	}
	return ListToolsResponse{Tools: tools}, nil
}

// PreviewStep handles preview_step.
func (s *Server) PreviewStep(ctx context.Context, request mcp.CallToolRequest, args PreviewStepArgs) (tendrilhttp.StepResponse, error) {
	state, err := args.observed()
	if err != nil {
		return tendrilhttp.StepResponse{}, err
	}
	var ev domain.Event
	if err := json.Unmarshal([]byte(args.Event), &ev); err != nil || ev.Type == "" {
		return tendrilhttp.StepResponse{}, fmt.Errorf("invalid event %q", args.Event)
	}
	return tendrilhttp.Preview(s.machine, state, ev)
}

// GetMemory handles get_memory.
func (s *Server) GetMemory(ctx context.Context, request mcp.CallToolRequest, args GetMemoryArgs) (MemoryResponse, error) {
	if s.store == nil {
		return MemoryResponse{}, fmt.Errorf("no memory store configured")
	}
	records, err := s.store.Load(ctx, args.EpisodeID)
	if err != nil {
		return MemoryResponse{}, err
	}
	if args.Kind != "" {
		kept := records[:0:0]
		for _, rec := range records {
			if string(rec.Kind) == args.Kind {
				kept = append(kept, rec)
			}
		}
		records = kept
	}
	return MemoryResponse{EpisodeID: args.EpisodeID, Records: records}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(machineURI, "Environment Machine",
		mcp.WithResourceDescription("States and transitions of the environment model"),
		mcp.WithMIMEType("application/json"),
	), s.ReadMachine)

	s.mcpServer.AddResource(mcp.NewResource(mermaidURI, "Environment Machine (Mermaid)",
		mcp.WithMIMEType("text/vnd.mermaid"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      mermaidURI,
				MIMEType: "text/vnd.mermaid",
				Text:     graph.GenerateMermaid(s.machine.States(), nil),
			},
		}, nil
	})
}

// ReadMachine serves the tendril://machine resource.
func (s *Server) ReadMachine(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	doc := MachineDocument{ID: s.machine.ID(), Hash: s.machine.Hash(), States: s.machine.States()}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode machine: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      machineURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

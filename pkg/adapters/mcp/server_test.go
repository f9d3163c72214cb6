package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	tendrilmcp "github.com/aretw0/tendril/pkg/adapters/mcp"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/dsl"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, opts ...tendrilmcp.Option) *tendrilmcp.Server {
	t.Helper()
	b := dsl.New("door").Context("opened", 0)
	b.State("closed").On("open").To("opened").Assign("opened", func(ctx map[string]any, _ domain.Event) any {
		switch n := ctx["opened"].(type) {
		case int:
			return n + 1
		case float64:
			return int(n) + 1
		}
		return 1
	})
	b.State("opened").Go("close", "closed")
	m, err := b.Build()
	require.NoError(t, err)

	events := domain.MustEventRegistry(
		domain.EventSchema{Type: "open", Description: "Open the door"},
		domain.EventSchema{Type: "close", Description: "Close the door"},
	)
	return tendrilmcp.NewServer(m, events, opts...)
}

func TestNewServer(t *testing.T) {
	s := newServer(t)
	assert.NotNil(t, s.MCPServer())
}

func TestListTools(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	resp, err := s.ListTools(ctx, mcp.CallToolRequest{}, tendrilmcp.ListToolsArgs{
		StateArgs: tendrilmcp.StateArgs{StateValue: "closed"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Tools, 1)
	assert.Equal(t, "open", resp.Tools[0].EventType)
	assert.Equal(t, "Open the door", resp.Tools[0].Description)

	resp, err = s.ListTools(ctx, mcp.CallToolRequest{}, tendrilmcp.ListToolsArgs{
		StateArgs:     tendrilmcp.StateArgs{StateValue: "closed"},
		AllowedEvents: []string{"close"},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Tools)

	_, err = s.ListTools(ctx, mcp.CallToolRequest{}, tendrilmcp.ListToolsArgs{})
	assert.Error(t, err, "state_value is required")

	_, err = s.ListTools(ctx, mcp.CallToolRequest{}, tendrilmcp.ListToolsArgs{
		StateArgs: tendrilmcp.StateArgs{StateValue: "closed", Context: "{"},
	})
	assert.Error(t, err)
}

func TestPreviewStep(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	resp, err := s.PreviewStep(ctx, mcp.CallToolRequest{}, tendrilmcp.PreviewStepArgs{
		StateArgs: tendrilmcp.StateArgs{StateValue: `"closed"`, Context: `{"opened":4}`},
		Event:     `{"type":"open"}`,
	})
	require.NoError(t, err)
	assert.True(t, resp.Snapshot.Matches("opened"))
	assert.Equal(t, 5, resp.Snapshot.Context["opened"])
	require.NotNil(t, resp.Diff)
	require.NotNil(t, resp.Diff.Value)
	assert.Equal(t, `"opened"`, resp.Diff.Value.String())

	_, err = s.PreviewStep(ctx, mcp.CallToolRequest{}, tendrilmcp.PreviewStepArgs{
		StateArgs: tendrilmcp.StateArgs{StateValue: "closed"},
		Event:     `{}`,
	})
	assert.Error(t, err)
}

func TestGetMemory(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Append(ctx, domain.MessageEvent(domain.Message{ID: "m1", EpisodeID: "ep"})))
	require.NoError(t, store.Append(ctx, domain.DecisionEvent(domain.Decision{ID: "d1", EpisodeID: "ep"})))

	s := newServer(t, tendrilmcp.WithStore(store))

	resp, err := s.GetMemory(ctx, mcp.CallToolRequest{}, tendrilmcp.GetMemoryArgs{EpisodeID: "ep"})
	require.NoError(t, err)
	assert.Len(t, resp.Records, 2)

	resp, err = s.GetMemory(ctx, mcp.CallToolRequest{}, tendrilmcp.GetMemoryArgs{EpisodeID: "ep", Kind: "decision"})
	require.NoError(t, err)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, domain.KindDecision, resp.Records[0].Kind)

	_, err = s.GetMemory(ctx, mcp.CallToolRequest{}, tendrilmcp.GetMemoryArgs{EpisodeID: "missing"})
	assert.ErrorIs(t, err, domain.ErrEpisodeNotFound)

	_, err = newServer(t).GetMemory(ctx, mcp.CallToolRequest{}, tendrilmcp.GetMemoryArgs{EpisodeID: "ep"})
	assert.Error(t, err, "no store configured")
}

func TestReadMachine(t *testing.T) {
	s := newServer(t)
	contents, err := s.ReadMachine(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "tendril://machine", text.URI)

	var doc tendrilmcp.MachineDocument
	require.NoError(t, json.Unmarshal([]byte(text.Text), &doc))
	assert.Equal(t, "door", doc.ID)
	assert.Len(t, doc.Hash, 64)
	require.Len(t, doc.States, 3)
	assert.Equal(t, "closed", doc.States[1].Path)
}

package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tendrilhttp "github.com/aretw0/tendril/pkg/adapters/http"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/dsl"
	"github.com/aretw0/tendril/pkg/machine"
	tendrilmemory "github.com/aretw0/tendril/pkg/memory"
	"github.com/aretw0/tendril/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(t *testing.T) (*machine.Machine, domain.EventRegistry) {
	t.Helper()
	b := dsl.New("counter").
		Context("count", 0).
		ContextSchema(schema.NewObject(schema.Prop("count", schema.Int(), "")))
	b.State("idle").On("inc").Assign("count", func(ctx map[string]any, _ domain.Event) any {
		switch n := ctx["count"].(type) {
		case int:
			return n + 1
		case float64:
			return int(n) + 1
		}
		return 1
	})
	b.State("idle").Go("stop", "done")
	b.State("done").Final()
	m, err := b.Build()
	require.NoError(t, err)

	events := domain.MustEventRegistry(
		domain.EventSchema{Type: "inc", Description: "Increment"},
		domain.EventSchema{Type: "stop", Description: "Stop counting"},
	)
	return m, events
}

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, domain.MessageEvent(domain.Message{ID: "m1", Role: domain.RoleUser, EpisodeID: "ep-1"})))
	require.NoError(t, store.Append(ctx, domain.DecisionEvent(domain.Decision{ID: "d1", Goal: "count", EpisodeID: "ep-1"})))
	return store
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestEpisodes(t *testing.T) {
	h := tendrilhttp.NewHandler(seeded(t))

	w := do(t, h, "GET", "/episodes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"episodes":["ep-1"]}`, w.Body.String())

	w = do(t, h, "GET", "/episodes/ep-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all struct {
		Records []domain.MemoryEvent `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all.Records, 2)

	w = do(t, h, "GET", "/episodes/ep-1/decisions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var decisions struct {
		Kind  string            `json:"kind"`
		Items []domain.Decision `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decisions))
	assert.Equal(t, "decision", decisions.Kind)
	require.Len(t, decisions.Items, 1)
	assert.Equal(t, "d1", decisions.Items[0].ID)

	assert.Equal(t, http.StatusBadRequest, do(t, h, "GET", "/episodes/ep-1/gossip", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "GET", "/episodes/missing", nil).Code)
}

func TestPostFeedback(t *testing.T) {
	store := seeded(t)
	h := tendrilhttp.NewHandler(store)

	w := do(t, h, "POST", "/episodes/ep-1/feedback", map[string]any{"decisionId": "d1", "score": 1, "comment": "good"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var fb domain.Feedback
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fb))
	assert.Equal(t, "ep-1", fb.EpisodeID)
	assert.False(t, fb.Timestamp.IsZero())

	records, err := store.Load(context.Background(), "ep-1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, domain.KindFeedback, records[2].Kind)

	w = do(t, h, "POST", "/episodes/ep-1/feedback", map[string]any{"score": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code, "feedback must reference a decision or an observation")

	req := httptest.NewRequest("POST", "/episodes/ep-1/feedback", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMachineRoutes(t *testing.T) {
	m, events := counter(t)
	h := tendrilhttp.NewHandler(memory.NewStore(), tendrilhttp.WithMachine(m, events))

	t.Run("machine", func(t *testing.T) {
		w := do(t, h, "GET", "/machine", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `idle -- "stop" --> done`)
	})

	t.Run("transitions", func(t *testing.T) {
		w := do(t, h, "POST", "/transitions", map[string]any{"state": map[string]any{"value": "idle"}})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp struct {
			Tools []domain.Tool `json:"tools"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Tools, 2)
		assert.Equal(t, "inc", resp.Tools[0].EventType)
		assert.Equal(t, "Increment", resp.Tools[0].Description)
	})

	t.Run("transitions filtered", func(t *testing.T) {
		w := do(t, h, "POST", "/transitions", map[string]any{
			"state":         map[string]any{"value": "idle"},
			"allowedEvents": []string{"stop"},
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"eventType":"stop"`)
		assert.NotContains(t, w.Body.String(), `"eventType":"inc"`)
	})

	t.Run("transitions from a final state", func(t *testing.T) {
		w := do(t, h, "POST", "/transitions", map[string]any{"state": map[string]any{"value": "done"}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"tools":[]}`, w.Body.String())
	})

	t.Run("transitions from an unknown state", func(t *testing.T) {
		w := do(t, h, "POST", "/transitions", map[string]any{"state": map[string]any{"value": "flying"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("step", func(t *testing.T) {
		w := do(t, h, "POST", "/step", map[string]any{
			"state": map[string]any{"value": "idle", "context": map[string]any{"count": 2}},
			"event": map[string]any{"type": "inc"},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp tendrilhttp.StepResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.EqualValues(t, 3, resp.Snapshot.Context["count"])
		require.NotNil(t, resp.Diff)
		assert.Nil(t, resp.Diff.Value, "the configuration did not change")
		assert.EqualValues(t, 3, resp.Diff.Context["count"])
	})

	t.Run("step without event", func(t *testing.T) {
		w := do(t, h, "POST", "/step", map[string]any{"state": map[string]any{"value": "idle"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMachineRoutes_Unconfigured(t *testing.T) {
	h := tendrilhttp.NewHandler(memory.NewStore())
	assert.Equal(t, http.StatusNotFound, do(t, h, "GET", "/machine", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "POST", "/transitions", map[string]any{}).Code)
}

func TestInfoAndHealth(t *testing.T) {
	m, events := counter(t)
	h := tendrilhttp.NewHandler(memory.NewStore(), tendrilhttp.WithMachine(m, events))

	w := do(t, h, "GET", "/health", nil)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, "GET", "/info", nil)
	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "counter", info["machine"])
	assert.Equal(t, m.Hash(), info["machine_hash"])
	assert.NotEmpty(t, info["version"])
}

func TestStreamEpisode(t *testing.T) {
	srv := tendrilhttp.NewServer(memory.NewStore())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/episodes/ep-1/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line, "the ping is written after subscribing")

	body, _ := json.Marshal(map[string]any{"observationId": "o1", "score": 0.5})
	post, err := http.Post(ts.URL+"/episodes/ep-1/feedback", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusCreated, post.StatusCode)

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			break
		}
	}
	assert.Contains(t, line, `"kind":"feedback"`)
	assert.Contains(t, line, `"observationId":"o1"`)
}

func TestPostFeedback_ThroughLog(t *testing.T) {
	store := memory.NewStore()
	log := tendrilmemory.NewLog()
	stop := tendrilmemory.Persist(context.Background(), log, store)
	defer stop()

	h := tendrilhttp.NewHandler(store, tendrilhttp.WithLog(log, "ep-9"))
	w := do(t, h, "POST", "/episodes/ep-9/feedback", map[string]any{"decisionId": "d1", "score": -1})
	require.Equal(t, http.StatusCreated, w.Code)

	require.Len(t, log.Feedback(), 1)
	assert.Equal(t, "ep-9", log.Feedback()[0].EpisodeID)
	records, err := store.Load(context.Background(), "ep-9")
	require.NoError(t, err)
	assert.Len(t, records, 1, "persisted once through the log")
}

func TestPostFeedback_OtherEpisodeBypassesLog(t *testing.T) {
	store := memory.NewStore()
	log := tendrilmemory.NewLog()
	stop := tendrilmemory.Persist(context.Background(), log, store)
	defer stop()

	h := tendrilhttp.NewHandler(store, tendrilhttp.WithLog(log, "ep-9"))
	w := do(t, h, "POST", "/episodes/ep-other/feedback", map[string]any{"observationId": "o1", "score": 1})
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Empty(t, log.Feedback(), "only the bound episode is applied to the log")
	records, err := store.Load(context.Background(), "ep-other")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ep-other", records[0].Payload.(domain.Feedback).EpisodeID)
}

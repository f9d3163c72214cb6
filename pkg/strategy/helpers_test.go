package strategy_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/dsl"
	"github.com/aretw0/tendril/pkg/machine"
	"github.com/aretw0/tendril/pkg/memory"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/schema"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	model       ports.LanguageModel
	description string
	schema      *schema.Object
	log         *memory.Log
	wrapped     int
}

func newAgent(model ports.LanguageModel) *fakeAgent {
	return &fakeAgent{model: model, description: "You are a puzzle solver.", log: memory.NewLog()}
}

func (a *fakeAgent) EpisodeID() string             { return "ep-1" }
func (a *fakeAgent) Description() string           { return a.description }
func (a *fakeAgent) Model() ports.LanguageModel    { return a.model }
func (a *fakeAgent) ContextSchema() *schema.Object { return a.schema }
func (a *fakeAgent) Decisions() []domain.Decision  { return a.log.Decisions() }
func (a *fakeAgent) Logger() *slog.Logger          { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func (a *fakeAgent) Wrap(model ports.LanguageModel) ports.LanguageModel {
	a.wrapped++
	return model
}

func (a *fakeAgent) AddMessage(msg domain.Message) domain.Message {
	msg.EpisodeID = a.EpisodeID()
	a.log.Apply(domain.MessageEvent(msg))
	return msg
}

func num(ctx map[string]any, key string) int {
	switch v := ctx[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func jugMachine(t *testing.T) *machine.Machine {
	t.Helper()
	b := dsl.New("jugs").
		Context("jug3", 0).
		Context("jug5", 0).
		ContextSchema(schema.NewObject(
			schema.Prop("jug3", schema.Int(), ""),
			schema.Prop("jug5", schema.Int(), ""),
		))
	s := b.State("solving")
	s.On("fill3").Assign("jug3", func(map[string]any, domain.Event) any { return 3 })
	s.On("fill5").Assign("jug5", func(map[string]any, domain.Event) any { return 5 })
	s.On("empty3").Assign("jug3", func(map[string]any, domain.Event) any { return 0 })
	s.On("empty5").Assign("jug5", func(map[string]any, domain.Event) any { return 0 })
	s.On("pour3to5").Do(func(ctx map[string]any, _ domain.Event) map[string]any {
		total := num(ctx, "jug3") + num(ctx, "jug5")
		return map[string]any{"jug5": min(5, total), "jug3": total - min(5, total)}
	})
	s.On("pour5to3").Do(func(ctx map[string]any, _ domain.Event) map[string]any {
		total := num(ctx, "jug3") + num(ctx, "jug5")
		return map[string]any{"jug3": min(3, total), "jug5": total - min(3, total)}
	})
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func jugEvents() domain.EventRegistry {
	var schemas []domain.EventSchema
	for _, e := range []string{"fill3", "fill5", "empty3", "empty5", "pour3to5", "pour5to3"} {
		schemas = append(schemas, domain.EventSchema{Type: e})
	}
	return domain.MustEventRegistry(schemas...)
}

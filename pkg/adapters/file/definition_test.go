package file_test

import (
	"path/filepath"
	"testing"

	"github.com/aretw0/tendril/pkg/adapters/file"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadJugs(t *testing.T) *file.Definition {
	t.Helper()
	def, err := file.LoadDefinition(filepath.Join("..", "..", "..", "examples", "jugs", "jugs.yaml"))
	require.NoError(t, err)
	return def
}

func TestLoadDefinition_SolvesTheJugPuzzle(t *testing.T) {
	def := loadJugs(t)
	assert.Equal(t, "jugs", def.ID)
	require.NotNil(t, def.Agent)
	assert.Equal(t, "shortest", def.Agent.Strategy)

	m, err := def.Machine()
	require.NoError(t, err)

	s, err := m.Initial()
	require.NoError(t, err)
	for _, e := range []string{"fill5", "pour5to3", "empty3", "pour5to3", "fill5", "pour5to3"} {
		s, err = m.Step(s, domain.NewEvent(e, nil))
		require.NoError(t, err)
	}
	assert.True(t, s.Done)
	assert.True(t, s.Matches("success"))
	assert.Equal(t, 4, s.Context["jug5"])
	assert.Equal(t, 3, s.Context["jug3"])
}

func TestDefinition_GuardNameAndSchema(t *testing.T) {
	def := loadJugs(t)
	m, err := def.Machine()
	require.NoError(t, err)

	states := m.States()
	require.Len(t, states, 3)
	require.Len(t, states[1].Always, 1)
	assert.Equal(t, "jug5IsFour", states[1].Always[0].Guard)

	obj, err := def.ContextObject()
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, []string{"jug3", "jug5"}, obj.Keys())

	events, err := def.EventRegistry()
	require.NoError(t, err)
	assert.Equal(t, 6, events.Len())
	fill3, ok := events.Lookup("fill3")
	require.True(t, ok)
	assert.Equal(t, "Fill the 3-gallon jug", fill3.Description)
}

func TestParseDefinition_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"missing id", "states: [{key: a}]"},
		{"no states", "id: x"},
		{"unknown key", "id: x\nstates: [{key: a}]\nbogus: 1"},
		{"not yaml", "id: [x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := file.ParseDefinition([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestDefinition_InvalidExpression(t *testing.T) {
	def, err := file.ParseDefinition([]byte(`
id: broken
states:
  - key: a
    on:
      - event: go
        guard: "context.n >"
`))
	require.NoError(t, err)
	_, err = def.Machine()
	assert.Error(t, err)
}

func TestDefinition_EventParameters(t *testing.T) {
	def, err := file.ParseDefinition([]byte(`
id: chat
states: [{key: idle}]
events:
  - type: say
    parameters:
      text: {type: string, description: What to say}
`))
	require.NoError(t, err)
	events, err := def.EventRegistry()
	require.NoError(t, err)
	say, _ := events.Lookup("say")
	assert.NoError(t, say.Validate(map[string]any{"text": "hi"}))
	assert.Error(t, say.Validate(map[string]any{}))
}

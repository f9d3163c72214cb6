package file

import (
	"fmt"
	"os"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/machine"
	"github.com/aretw0/tendril/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Definition is the document form of an environment machine plus the agent
// that acts on it. YAML and JSON share the same layout:
//
//	id: jugs
//	context: {jug3: 0, jug5: 0}
//	contextSchema:
//	  jug3: int
//	  jug5: {type: int, description: Gallons in the 5-gallon jug}
//	states:
//	  - key: solving
//	    on:
//	      - event: fill3
//	        assign: {jug3: "3"}
//	    always:
//	      - target: success
//	        guard: context.jug5 == 4
//	  - key: success
//	    type: final
//	events:
//	  - type: fill3
//	    description: Fill the 3-gallon jug
type Definition struct {
	ID            string           `mapstructure:"id"`
	Description   string           `mapstructure:"description"`
	Type          string           `mapstructure:"type"`
	Initial       string           `mapstructure:"initial"`
	Context       map[string]any   `mapstructure:"context"`
	ContextSchema map[string]any   `mapstructure:"contextSchema"`
	On            []TransitionSpec `mapstructure:"on"`
	Always        []TransitionSpec `mapstructure:"always"`
	States        []StateSpec      `mapstructure:"states"`
	Events        []EventSpec      `mapstructure:"events"`
	Agent         *AgentSpec       `mapstructure:"agent"`
}

// StateSpec declares one state node and its children.
type StateSpec struct {
	Key         string           `mapstructure:"key"`
	Type        string           `mapstructure:"type"`
	Initial     string           `mapstructure:"initial"`
	Description string           `mapstructure:"description"`
	On          []TransitionSpec `mapstructure:"on"`
	Always      []TransitionSpec `mapstructure:"always"`
	States      []StateSpec      `mapstructure:"states"`
}

// TransitionSpec declares a transition. Guard and Assign values are CEL
// expressions over "context" and "event".
type TransitionSpec struct {
	Event       string            `mapstructure:"event"`
	Target      string            `mapstructure:"target"`
	Description string            `mapstructure:"description"`
	Guard       string            `mapstructure:"guard"`
	GuardName   string            `mapstructure:"guardName"`
	Assign      map[string]string `mapstructure:"assign"`
}

// EventSpec declares an event the agent may emit. Parameters use the same
// field map as contextSchema.
type EventSpec struct {
	Type        string         `mapstructure:"type"`
	Description string         `mapstructure:"description"`
	Parameters  map[string]any `mapstructure:"parameters"`
}

// AgentSpec configures the agent run against the machine.
type AgentSpec struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Strategy    string `mapstructure:"strategy"`
	Goal        string `mapstructure:"goal"`
}

// ParseDefinition decodes a YAML or JSON document.
func ParseDefinition(data []byte) (*Definition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("definition is empty")
	}

	var def Definition
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &def,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}
	if def.ID == "" {
		return nil, fmt.Errorf("definition missing id")
	}
	if len(def.States) == 0 {
		return nil, fmt.Errorf("definition %s has no states", def.ID)
	}
	return &def, nil
}

// LoadDefinition reads and parses a definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	return ParseDefinition(data)
}

// ContextObject returns the context schema, or nil when none is declared.
func (d *Definition) ContextObject() (*schema.Object, error) {
	if len(d.ContextSchema) == 0 {
		return nil, nil
	}
	obj, err := schema.ParseFieldMap(d.ContextSchema)
	if err != nil {
		return nil, fmt.Errorf("contextSchema: %w", err)
	}
	return &obj, nil
}

// EventRegistry builds the registry of declared events.
func (d *Definition) EventRegistry() (domain.EventRegistry, error) {
	schemas := make([]domain.EventSchema, 0, len(d.Events))
	for _, e := range d.Events {
		params, err := schema.ParseFieldMap(e.Parameters)
		if err != nil {
			return domain.EventRegistry{}, fmt.Errorf("event %s: %w", e.Type, err)
		}
		schemas = append(schemas, domain.EventSchema{
			Type:        e.Type,
			Description: e.Description,
			Parameters:  params,
		})
	}
	return domain.NewEventRegistry(schemas...)
}

// Machine compiles the definition, including every CEL expression.
func (d *Definition) Machine(opts ...machine.Option) (*machine.Machine, error) {
	x, err := machine.NewExpressions()
	if err != nil {
		return nil, err
	}
	ctxSchema, err := d.ContextObject()
	if err != nil {
		return nil, err
	}

	root, err := compileState(x, StateSpec{
		Type:        d.Type,
		Initial:     d.Initial,
		Description: d.Description,
		On:          d.On,
		Always:      d.Always,
		States:      d.States,
	}, "root")
	if err != nil {
		return nil, err
	}

	return machine.New(machine.Config{
		ID:            d.ID,
		Context:       d.Context,
		ContextSchema: ctxSchema,
		StateConfig:   root,
	}, opts...)
}

func compileState(x *machine.Expressions, s StateSpec, where string) (machine.StateConfig, error) {
	cfg := machine.StateConfig{
		Key:         s.Key,
		Type:        machine.NodeType(s.Type),
		Initial:     s.Initial,
		Description: s.Description,
	}
	var err error
	if cfg.On, err = compileTransitions(x, s.On, where); err != nil {
		return cfg, err
	}
	if cfg.Always, err = compileTransitions(x, s.Always, where); err != nil {
		return cfg, err
	}
	for i, child := range s.States {
		if child.Key == "" {
			return cfg, fmt.Errorf("%s: state %d missing key", where, i)
		}
		c, err := compileState(x, child, child.Key)
		if err != nil {
			return cfg, err
		}
		cfg.States = append(cfg.States, c)
	}
	return cfg, nil
}

func compileTransitions(x *machine.Expressions, specs []TransitionSpec, where string) ([]machine.TransitionConfig, error) {
	var out []machine.TransitionConfig
	for _, t := range specs {
		tc := machine.TransitionConfig{
			Event:       t.Event,
			Target:      t.Target,
			Description: t.Description,
		}
		if t.Guard != "" {
			g, err := x.Guard(t.Guard)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", where, err)
			}
			if t.GuardName != "" {
				g.Type = t.GuardName
			}
			tc.Guard = g
		}
		if len(t.Assign) > 0 {
			action, err := x.Assign(t.Assign)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", where, err)
			}
			tc.Actions = append(tc.Actions, action)
		}
		out = append(out, tc)
	}
	return out, nil
}

package machine

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/schema"
)

const (
	defaultMaxStates     = 10000
	defaultMaxMicrosteps = 100
)

// Machine is a compiled hierarchical state machine. It is immutable and safe
// for concurrent use.
type Machine struct {
	id            string
	description   string
	root          *node
	nodes         []*node // Document order
	byPath        map[string]*node
	context       map[string]any
	contextSchema *schema.Object

	maxStates     int
	maxMicrosteps int
	searchEvents  func(domain.Snapshot) []domain.Event
	logger        *slog.Logger

	hashOnce sync.Once
	hash     string
}

var _ ports.Environment = (*Machine)(nil)

// Option configures a Machine.
type Option func(*Machine)

// WithMaxStates bounds the number of distinct snapshots explored by ShortestPaths.
func WithMaxStates(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.maxStates = n
		}
	}
}

// WithMaxMicrosteps bounds the eventless transitions settled after one event.
func WithMaxMicrosteps(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.maxMicrosteps = n
		}
	}
}

// WithSearchEvents overrides the events ShortestPaths tries from each snapshot.
// By default it tries every distinct event type of the active transitions,
// without parameters.
func WithSearchEvents(fn func(domain.Snapshot) []domain.Event) Option {
	return func(m *Machine) {
		m.searchEvents = fn
	}
}

// WithLogger sets the logger used for search diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

type node struct {
	key         string
	path        string
	typ         NodeType
	description string
	parent      *node
	children    []*node
	initial     *node
	on          []*transition
	always      []*transition
	order       int
	depth       int
}

type transition struct {
	source      *node
	event       string
	target      *node // Nil for targetless transitions
	guard       Guard
	actions     []Action
	description string
}

func (n *node) child(key string) *node {
	for _, c := range n.children {
		if c.key == key {
			return c
		}
	}
	return nil
}

func (n *node) isLeaf() bool { return n.typ == NodeAtomic || n.typ == NodeFinal }

// isDescendant reports whether n is a proper descendant of of.
func (n *node) isDescendant(of *node) bool {
	for p := n.parent; p != nil; p = p.parent {
		if p == of {
			return true
		}
	}
	return false
}

// New compiles a machine configuration.
func New(cfg Config, opts ...Option) (*Machine, error) {
	m := &Machine{
		id:            cfg.ID,
		description:   cfg.Description,
		byPath:        make(map[string]*node),
		context:       maps.Clone(cfg.Context),
		contextSchema: cfg.ContextSchema,
		maxStates:     defaultMaxStates,
		maxMicrosteps: defaultMaxMicrosteps,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.context == nil {
		m.context = map[string]any{}
	}

	rootCfg := cfg.StateConfig
	if rootCfg.Type == "" {
		rootCfg.Type = NodeCompound
	}
	root, err := m.build(rootCfg, nil)
	if err != nil {
		return nil, err
	}
	m.root = root
	if root.typ != NodeCompound && root.typ != NodeParallel {
		return nil, fmt.Errorf("machine %s: root must be compound or parallel, got %s", m.id, root.typ)
	}

	// Targets may reference states declared later, so resolve them in a second pass.
	flat := flatten(rootCfg)
	for i, n := range m.nodes {
		sc := flat[i]
		for _, tc := range sc.On {
			if tc.Event == "" {
				return nil, fmt.Errorf("state %q: transition without event", n.path)
			}
			t, err := m.compileTransition(n, tc)
			if err != nil {
				return nil, err
			}
			n.on = append(n.on, t)
		}
		for _, tc := range sc.Always {
			t, err := m.compileTransition(n, tc)
			if err != nil {
				return nil, err
			}
			n.always = append(n.always, t)
		}
	}

	return m, nil
}

// MustNew is New that panics on error.
func MustNew(cfg Config, opts ...Option) *Machine {
	m, err := New(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

func flatten(sc StateConfig) []StateConfig {
	out := []StateConfig{sc}
	for _, c := range sc.States {
		out = append(out, flatten(c)...)
	}
	return out
}

func (m *Machine) build(sc StateConfig, parent *node) (*node, error) {
	n := &node{
		key:         sc.Key,
		typ:         sc.Type,
		description: sc.Description,
		parent:      parent,
		order:       len(m.nodes),
	}
	if parent != nil {
		if sc.Key == "" || strings.ContainsAny(sc.Key, ".#") {
			return nil, fmt.Errorf("state under %q: invalid key %q", parent.path, sc.Key)
		}
		n.depth = parent.depth + 1
		if parent.path == "" {
			n.path = sc.Key
		} else {
			n.path = parent.path + "." + sc.Key
		}
	}
	if n.typ == "" {
		if len(sc.States) > 0 {
			n.typ = NodeCompound
		} else {
			n.typ = NodeAtomic
		}
	}
	switch n.typ {
	case NodeAtomic, NodeFinal:
		if len(sc.States) > 0 {
			return nil, fmt.Errorf("state %q: %s states cannot have children", n.path, n.typ)
		}
	case NodeCompound, NodeParallel:
		if len(sc.States) == 0 {
			return nil, fmt.Errorf("state %q: %s state needs children", n.path, n.typ)
		}
	default:
		return nil, fmt.Errorf("state %q: unknown type %q", n.path, n.typ)
	}
	if n.typ == NodeFinal && (len(sc.On) > 0 || len(sc.Always) > 0) {
		return nil, fmt.Errorf("state %q: final states cannot have transitions", n.path)
	}

	m.nodes = append(m.nodes, n)
	m.byPath[n.path] = n

	for _, csc := range sc.States {
		if n.child(csc.Key) != nil {
			return nil, fmt.Errorf("state %q: duplicate child %q", n.path, csc.Key)
		}
		c, err := m.build(csc, n)
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, c)
	}

	if n.typ == NodeCompound {
		if sc.Initial == "" {
			n.initial = n.children[0]
		} else if n.initial = n.child(sc.Initial); n.initial == nil {
			return nil, fmt.Errorf("state %q: initial state %q not found", n.path, sc.Initial)
		}
	}
	return n, nil
}

func (m *Machine) compileTransition(source *node, tc TransitionConfig) (*transition, error) {
	if tc.Guard.Check == nil && tc.Guard.Type != "" {
		return nil, fmt.Errorf("state %q: guard %q has no implementation", source.path, tc.Guard.Type)
	}
	t := &transition{
		source:      source,
		event:       tc.Event,
		guard:       tc.Guard,
		actions:     tc.Actions,
		description: tc.Description,
	}
	if tc.Target != "" {
		target, err := m.resolveTarget(source, tc.Target)
		if err != nil {
			return nil, err
		}
		t.target = target
	}
	return t, nil
}

func (m *Machine) resolveTarget(source *node, target string) (*node, error) {
	var base *node
	var rel string
	switch {
	case strings.HasPrefix(target, "#"):
		base, rel = m.root, strings.TrimPrefix(target, "#")
	case strings.HasPrefix(target, "."):
		base, rel = source, strings.TrimPrefix(target, ".")
	default:
		base, rel = source.parent, target
		if base == nil {
			base = m.root
		}
	}
	n := base
	for _, seg := range strings.Split(rel, ".") {
		if n = n.child(seg); n == nil {
			return nil, fmt.Errorf("state %q: target %q not found", source.path, target)
		}
	}
	return n, nil
}

// ID returns the machine id.
func (m *Machine) ID() string { return m.id }

// Description returns the machine description.
func (m *Machine) Description() string { return m.description }

// ContextSchema returns the declared context schema, or nil.
func (m *Machine) ContextSchema() *schema.Object { return m.contextSchema }

// DefaultContext returns a copy of the initial context.
func (m *Machine) DefaultContext() map[string]any { return maps.Clone(m.context) }

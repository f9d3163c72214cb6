package machine

import (
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/tendril/pkg/domain"
)

// configuration is the set of active nodes.
type configuration map[*node]bool

func (c configuration) clone() configuration { return maps.Clone(c) }

// sorted returns the active nodes in document order.
func (c configuration) sorted() []*node {
	out := make([]*node, 0, len(c))
	for n := range c {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *node) int { return a.order - b.order })
	return out
}

// leaves returns the active atomic and final nodes in document order.
func (c configuration) leaves() []*node {
	var out []*node
	for _, n := range c.sorted() {
		if n.isLeaf() {
			out = append(out, n)
		}
	}
	return out
}

// complete activates n and its default descendants.
func (c configuration) complete(n *node) {
	c[n] = true
	switch n.typ {
	case NodeCompound:
		c.complete(n.initial)
	case NodeParallel:
		for _, child := range n.children {
			c.complete(child)
		}
	}
}

// Resolve turns an observed state into a snapshot. Partial compound values are
// completed with initial children; missing context keys come from the
// machine's initial context. The result is validated against the context
// schema when one is declared.
func (m *Machine) Resolve(state domain.ObservedState) (domain.Snapshot, error) {
	cfg, err := m.configFor(state.Value)
	if err != nil {
		return domain.Snapshot{}, err
	}

	ctx := m.DefaultContext()
	maps.Copy(ctx, state.Context)
	if m.contextSchema != nil {
		if err := m.contextSchema.Validate(ctx); err != nil {
			return domain.Snapshot{}, &ContextValidationError{MachineID: m.id, Err: err}
		}
	}
	return m.snapshot(cfg, ctx), nil
}

// Initial returns the snapshot of a freshly started machine, with eventless
// transitions already settled.
func (m *Machine) Initial() (domain.Snapshot, error) {
	cfg := configuration{}
	cfg.complete(m.root)
	ctx := m.DefaultContext()
	cfg, ctx, err := m.settle(cfg, ctx, domain.NewEvent(domain.InitEventType, nil))
	if err != nil {
		return domain.Snapshot{}, err
	}
	return m.snapshot(cfg, ctx), nil
}

func (m *Machine) configFor(v domain.StateValue) (configuration, error) {
	cfg := configuration{}
	if err := m.resolveValue(cfg, m.root, v); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (m *Machine) resolveValue(cfg configuration, n *node, v domain.StateValue) error {
	cfg[n] = true
	if v.IsZero() || (!v.IsAtomic() && len(v.Keys()) == 0) {
		cfg.complete(n)
		return nil
	}

	switch n.typ {
	case NodeAtomic, NodeFinal:
		return fmt.Errorf("%w: %q has no child states (got %s)", domain.ErrUnknownState, n.path, v)

	case NodeCompound:
		if v.IsAtomic() {
			child := n.child(v.Name())
			if child == nil {
				return m.unknown(n, v.Name())
			}
			cfg.complete(child)
			return nil
		}
		keys := v.Keys()
		if len(keys) != 1 {
			return fmt.Errorf("%w: compound state %q needs exactly one active child, got %v", domain.ErrUnknownState, n.path, keys)
		}
		child := n.child(keys[0])
		if child == nil {
			return m.unknown(n, keys[0])
		}
		sub, _ := v.Child(keys[0])
		return m.resolveValue(cfg, child, sub)

	case NodeParallel:
		if v.IsAtomic() {
			return fmt.Errorf("%w: parallel state %q needs a value per region, got %q", domain.ErrUnknownState, n.path, v.Name())
		}
		for _, k := range v.Keys() {
			if n.child(k) == nil {
				return m.unknown(n, k)
			}
		}
		for _, region := range n.children {
			sub, _ := v.Child(region.key)
			if err := m.resolveValue(cfg, region, sub); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("state %q: unknown type %q", n.path, n.typ)
}

func (m *Machine) unknown(parent *node, key string) error {
	if parent.path == "" {
		return fmt.Errorf("%w: %q", domain.ErrUnknownState, key)
	}
	return fmt.Errorf("%w: %q", domain.ErrUnknownState, parent.path+"."+key)
}

// valueOf renders the configuration below n as a state value.
func (m *Machine) valueOf(cfg configuration, n *node) domain.StateValue {
	switch n.typ {
	case NodeCompound:
		for _, c := range n.children {
			if !cfg[c] {
				continue
			}
			if c.isLeaf() {
				return domain.Atomic(c.key)
			}
			return domain.Compound(map[string]domain.StateValue{c.key: m.valueOf(cfg, c)})
		}
	case NodeParallel:
		children := make(map[string]domain.StateValue, len(n.children))
		for _, c := range n.children {
			children[c.key] = m.valueOf(cfg, c)
		}
		return domain.Compound(children)
	}
	return domain.Compound(nil)
}

func (m *Machine) snapshot(cfg configuration, ctx map[string]any) domain.Snapshot {
	return domain.Snapshot{
		Value:   m.valueOf(cfg, m.root),
		Context: ctx,
		Done:    m.done(cfg),
	}
}

// done reports whether the root reached a final state: a final child of a
// compound root, or a final state in every region of a parallel root.
func (m *Machine) done(cfg configuration) bool {
	switch m.root.typ {
	case NodeCompound:
		for _, c := range m.root.children {
			if cfg[c] && c.typ == NodeFinal {
				return true
			}
		}
	case NodeParallel:
		for _, region := range m.root.children {
			if !regionDone(cfg, region) {
				return false
			}
		}
		return true
	}
	return false
}

func regionDone(cfg configuration, n *node) bool {
	if n.typ == NodeFinal {
		return true
	}
	if n.typ != NodeCompound {
		return false
	}
	for _, c := range n.children {
		if cfg[c] && c.typ == NodeFinal {
			return true
		}
	}
	return false
}

package machine

import (
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/tendril/pkg/domain"
)

const anonymousGuard = "inline"

// ActiveTransitions returns the event transitions of every active node, root
// first in document order. Transitions from parallel regions are flattened into
// one list; entries for the same event type are all kept. Eventless
// transitions are not included.
func (m *Machine) ActiveTransitions(snap domain.Snapshot) []domain.Transition {
	cfg, err := m.configFor(snap.Value)
	if err != nil {
		m.logger.Debug("cannot enumerate transitions", "machine", m.id, "value", snap.Value.String(), "err", err)
		return nil
	}
	var out []domain.Transition
	for _, n := range cfg.sorted() {
		for _, t := range n.on {
			out = append(out, t.describe())
		}
	}
	return out
}

func (t *transition) describe() domain.Transition {
	d := domain.Transition{
		EventType:   t.event,
		Source:      t.source.path,
		Description: t.description,
	}
	if t.target != nil {
		d.Target = []string{t.target.path}
	}
	if !t.guard.IsZero() {
		name := t.guard.Type
		if name == "" {
			name = anonymousGuard
		}
		d.Guard = &domain.Guard{Type: name}
	}
	return d
}

// Step computes the snapshot reached by sending ev to snap. It runs one
// macrostep: the enabled transitions for ev, then every eventless transition
// until none is enabled. Events nothing handles leave the snapshot unchanged,
// as does any event sent to a finished machine.
func (m *Machine) Step(snap domain.Snapshot, ev domain.Event) (domain.Snapshot, error) {
	if snap.Done {
		return snap, nil
	}
	cfg, err := m.configFor(snap.Value)
	if err != nil {
		return snap, err
	}

	enabled := m.selectTransitions(cfg, snap.Context, ev, false)
	if len(enabled) == 0 {
		return snap, nil
	}

	ctx := maps.Clone(snap.Context)
	if ctx == nil {
		ctx = map[string]any{}
	}
	ctx = m.microstep(cfg, ctx, ev, enabled)
	cfg, ctx, err = m.settle(cfg, ctx, ev)
	if err != nil {
		return snap, err
	}
	return m.snapshot(cfg, ctx), nil
}

// selectTransitions picks, for every active leaf, the first enabled transition
// found walking from the leaf up to the root. Transitions whose exit sets
// overlap an earlier selection are dropped.
func (m *Machine) selectTransitions(cfg configuration, ctx map[string]any, ev domain.Event, eventless bool) []*transition {
	var selected []*transition
	for _, leaf := range cfg.leaves() {
		t := firstEnabled(leaf, ctx, ev, eventless)
		if t == nil || slices.Contains(selected, t) {
			continue
		}
		selected = append(selected, t)
	}
	return removeConflicts(cfg, selected)
}

func firstEnabled(leaf *node, ctx map[string]any, ev domain.Event, eventless bool) *transition {
	for n := leaf; n != nil; n = n.parent {
		candidates := n.on
		if eventless {
			candidates = n.always
		}
		for _, t := range candidates {
			if !eventless && t.event != ev.Type {
				continue
			}
			if t.guard.Check == nil || t.guard.Check(ctx, ev) {
				return t
			}
		}
	}
	return nil
}

func removeConflicts(cfg configuration, selected []*transition) []*transition {
	if len(selected) < 2 {
		return selected
	}
	var kept []*transition
	exited := configuration{}
	for _, t := range selected {
		exits := exitSet(cfg, t)
		conflict := false
		for n := range exits {
			if exited[n] {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		maps.Copy(exited, exits)
		kept = append(kept, t)
	}
	return kept
}

// domain returns the node whose descendants are exited and re-entered by t,
// or nil for targetless transitions.
func (t *transition) domain() *node {
	if t.target == nil {
		return nil
	}
	if t.target.isDescendant(t.source) {
		return t.source
	}
	for a := t.source.parent; a != nil; a = a.parent {
		if (a.typ == NodeCompound || a.parent == nil) && t.target.isDescendant(a) {
			return a
		}
	}
	root := t.source
	for root.parent != nil {
		root = root.parent
	}
	return root
}

func exitSet(cfg configuration, t *transition) configuration {
	out := configuration{}
	d := t.domain()
	if d == nil {
		return out
	}
	for n := range cfg {
		if n.isDescendant(d) {
			out[n] = true
		}
	}
	return out
}

// microstep applies the selected transitions in order: exit, actions, enter.
// cfg is changed in place; the updated context is returned.
func (m *Machine) microstep(cfg configuration, ctx map[string]any, ev domain.Event, enabled []*transition) map[string]any {
	for _, t := range enabled {
		d := t.domain()
		if d != nil {
			for n := range cfg {
				if n.isDescendant(d) {
					delete(cfg, n)
				}
			}
		}
		for _, action := range t.actions {
			if update := action(ctx, ev); update != nil {
				maps.Copy(ctx, update)
			}
		}
		if d != nil {
			enter(cfg, d, t.target)
		}
	}
	return ctx
}

// enter activates target and the states between it and d, plus the default
// regions of every parallel state on the way.
func enter(cfg configuration, d, target *node) {
	var path []*node
	for n := target; n != nil && n != d; n = n.parent {
		path = append(path, n)
	}
	slices.Reverse(path)

	if d.typ == NodeParallel {
		for _, c := range d.children {
			if len(path) > 0 && c == path[0] {
				continue
			}
			cfg.complete(c)
		}
	}
	for i, n := range path {
		cfg[n] = true
		if n.typ != NodeParallel {
			continue
		}
		for _, c := range n.children {
			if i+1 < len(path) && c == path[i+1] {
				continue
			}
			cfg.complete(c)
		}
	}
	cfg.complete(target)
}

// settle runs eventless transitions until none is enabled or the machine is done.
func (m *Machine) settle(cfg configuration, ctx map[string]any, ev domain.Event) (configuration, map[string]any, error) {
	for i := 0; i < m.maxMicrosteps; i++ {
		if m.done(cfg) {
			return cfg, ctx, nil
		}
		enabled := m.selectTransitions(cfg, ctx, ev, true)
		if len(enabled) == 0 {
			return cfg, ctx, nil
		}
		ctx = m.microstep(cfg, ctx, ev, enabled)
	}
	return cfg, ctx, fmt.Errorf("machine %s: eventless transitions did not settle after %d microsteps", m.id, m.maxMicrosteps)
}

package machine

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/gowebpki/jcs"
)

// StateKey returns the canonical identity of a snapshot: the JCS (RFC 8785)
// encoding of its value and context.
func StateKey(s domain.Snapshot) (string, error) {
	raw, err := json.Marshal(struct {
		Value   domain.StateValue `json:"value"`
		Context map[string]any    `json:"context"`
	}{s.Value, s.Context})
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize state: %w", err)
	}
	return string(canonical), nil
}

type visit struct {
	snap   domain.Snapshot
	parent string
	event  domain.Event
	depth  int
}

// ShortestPaths runs a breadth-first search from `from` with unit transition
// weights and returns one shortest path to every distinct reachable snapshot
// satisfying goal, nearest first. Each path starts with a synthetic
// domain.InitEventType step holding the origin, so the planner can locate the
// current state inside it. Finished snapshots are not expanded. The search
// stops growing once the configured number of distinct states was reached.
func (m *Machine) ShortestPaths(from domain.Snapshot, goal func(domain.Snapshot) bool) ([]domain.Path, error) {
	origin, err := StateKey(from)
	if err != nil {
		return nil, err
	}

	visited := map[string]*visit{origin: {snap: from}}
	order := []string{origin}
	queue := []string{origin}
	truncated := false

	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		cur := visited[key]
		if cur.snap.Done {
			continue
		}

		for _, ev := range m.eventsFor(cur.snap) {
			next, err := m.Step(cur.snap, ev)
			if err != nil {
				return nil, fmt.Errorf("search from %s on %s: %w", cur.snap.Value, ev.Type, err)
			}
			nextKey, err := StateKey(next)
			if err != nil {
				return nil, err
			}
			if _, seen := visited[nextKey]; seen {
				continue
			}
			if len(visited) >= m.maxStates {
				truncated = true
				continue
			}
			visited[nextKey] = &visit{snap: next, parent: key, event: ev, depth: cur.depth + 1}
			order = append(order, nextKey)
			queue = append(queue, nextKey)
		}
	}
	if truncated {
		m.logger.Warn("state search truncated", "machine", m.id, "max_states", m.maxStates)
	}

	var paths []domain.Path
	for _, key := range order {
		v := visited[key]
		if !goal(v.snap) {
			continue
		}
		paths = append(paths, buildPath(visited, key, from))
	}
	return paths, nil
}

func buildPath(visited map[string]*visit, key string, from domain.Snapshot) domain.Path {
	end := visited[key]
	steps := make([]domain.Step, end.depth+1)
	for k, i := key, end.depth; i > 0; i-- {
		v := visited[k]
		state := v.snap.Observed()
		steps[i] = domain.Step{Event: v.event, State: &state}
		k = v.parent
	}
	origin := from.Observed()
	steps[0] = domain.Step{Event: domain.NewEvent(domain.InitEventType, nil), State: &origin}

	terminal := end.snap.Observed()
	weight := float64(end.depth)
	return domain.Path{State: &terminal, Steps: steps, Weight: &weight}
}

func (m *Machine) eventsFor(s domain.Snapshot) []domain.Event {
	if m.searchEvents != nil {
		return m.searchEvents(s)
	}
	var events []domain.Event
	seen := make(map[string]bool)
	for _, t := range m.ActiveTransitions(s) {
		if seen[t.EventType] {
			continue
		}
		seen[t.EventType] = true
		events = append(events, domain.NewEvent(t.EventType, nil))
	}
	return events
}

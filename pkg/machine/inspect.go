package machine

// StateInfo describes one state node of a compiled machine.
type StateInfo struct {
	Path        string // Dotted path; empty for the root
	Key         string
	Type        NodeType
	Parent      string
	Initial     bool // Entered by default when the parent is entered
	Description string
	On          []TransitionInfo
	Always      []TransitionInfo
}

// TransitionInfo describes one declared transition.
type TransitionInfo struct {
	Event       string // Empty for eventless transitions
	Target      string // Empty for targetless transitions
	Guard       string
	Description string
}

// States returns every node in document order, root first.
func (m *Machine) States() []StateInfo {
	out := make([]StateInfo, 0, len(m.nodes))
	for _, n := range m.nodes {
		info := StateInfo{
			Path:        n.path,
			Key:         n.key,
			Type:        n.typ,
			Description: n.description,
		}
		if n.parent != nil {
			info.Parent = n.parent.path
			info.Initial = n.parent.typ == NodeParallel || n.parent.initial == n
		}
		for _, t := range n.on {
			info.On = append(info.On, t.info())
		}
		for _, t := range n.always {
			info.Always = append(info.Always, t.info())
		}
		out = append(out, info)
	}
	return out
}

func (t *transition) info() TransitionInfo {
	ti := TransitionInfo{Event: t.event, Description: t.description}
	if t.target != nil {
		ti.Target = t.target.path
	}
	if !t.guard.IsZero() {
		ti.Guard = t.guard.Type
		if ti.Guard == "" {
			ti.Guard = anonymousGuard
		}
	}
	return ti
}

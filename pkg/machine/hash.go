package machine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/gowebpki/jcs"
)

type nodeShape struct {
	Path    string            `json:"path"`
	Type    NodeType          `json:"type"`
	Initial string            `json:"initial,omitempty"`
	On      []transitionShape `json:"on,omitempty"`
	Always  []transitionShape `json:"always,omitempty"`
}

type transitionShape struct {
	Event  string `json:"event,omitempty"`
	Target string `json:"target,omitempty"`
	Guard  string `json:"guard,omitempty"`
}

// Hash returns a stable identifier of the machine's transition structure:
// the sha256 of the canonical JSON of every node and transition. Guard and
// action implementations are not part of the hash; guard names are.
func (m *Machine) Hash() string {
	m.hashOnce.Do(func() {
		shapes := make([]nodeShape, 0, len(m.nodes))
		for _, n := range m.nodes {
			s := nodeShape{Path: n.path, Type: n.typ}
			if n.initial != nil {
				s.Initial = n.initial.key
			}
			for _, t := range n.on {
				s.On = append(s.On, t.shape())
			}
			for _, t := range n.always {
				s.Always = append(s.Always, t.shape())
			}
			shapes = append(shapes, s)
		}

		raw, err := json.Marshal(struct {
			ID    string      `json:"id"`
			Nodes []nodeShape `json:"nodes"`
		}{m.id, shapes})
		if err == nil {
			if canonical, cerr := jcs.Transform(raw); cerr == nil {
				raw = canonical
			}
		}
		sum := sha256.Sum256(raw)
		m.hash = hex.EncodeToString(sum[:])
	})
	return m.hash
}

func (t *transition) shape() transitionShape {
	s := transitionShape{Event: t.event, Guard: t.guard.Type}
	if t.target != nil {
		s.Target = t.target.path
	}
	return s
}

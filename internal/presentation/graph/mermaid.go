package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/tendril/pkg/machine"
)

const rootID = "root"

// Overlay contains snapshot data to highlight on the graph.
type Overlay struct {
	Visited []string // State paths entered earlier in the episode
	Active  []string // State paths of the current configuration
}

// GenerateMermaid produces a Mermaid flowchart from the states of a machine.
// It applies semantic styling:
// - Initial: ((Circle))
// - Final: (((Double circle)))
// - Parallel: [[Subroutine]]
// - Default: [Rectangle]
// Event transitions are solid arrows labelled with the event; eventless
// transitions are dotted. Targetless transitions loop back to their source.
func GenerateMermaid(states []machine.StateInfo, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, st := range states {
		id := sanitizeMermaidID(st.Path)
		if st.Path == "" {
			// The root only shows up when it declares transitions of its own.
			if len(st.On) == 0 && len(st.Always) == 0 {
				continue
			}
		} else {
			opener, closer := "[", "]"
			switch {
			case st.Type == machine.NodeFinal:
				opener, closer = "(((", ")))"
			case st.Type == machine.NodeParallel:
				opener, closer = "[[", "]]"
			case st.Initial && st.Parent == "":
				opener, closer = "((", "))"
			}
			fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, st.Path, closer)
		}

		for _, t := range st.On {
			label := t.Event
			if t.Guard != "" {
				label += " [" + t.Guard + "]"
			}
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", id, escape(label), target(st.Path, t.Target))
		}
		for _, t := range st.Always {
			if t.Guard == "" {
				fmt.Fprintf(&sb, "    %s -.-> %s\n", id, target(st.Path, t.Target))
				continue
			}
			fmt.Fprintf(&sb, "    %s -. \"[%s]\" .-> %s\n", id, escape(t.Guard), target(st.Path, t.Target))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef active fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, p := range overlay.Visited {
			id := sanitizeMermaidID(p)
			if p != "" && !seen[id] {
				seen[id] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", id)
			}
		}
		for _, p := range overlay.Active {
			if p != "" {
				fmt.Fprintf(&sb, "    class %s active;\n", sanitizeMermaidID(p))
			}
		}
	}

	return sb.String()
}

func target(source, to string) string {
	if to == "" {
		to = source
	}
	return sanitizeMermaidID(to)
}

func escape(label string) string {
	return strings.ReplaceAll(label, "\"", "'")
}

func sanitizeMermaidID(path string) string {
	if path == "" {
		return rootID
	}
	s := strings.ReplaceAll(path, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}

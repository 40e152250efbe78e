package graph

import (
	"fmt"
	"strings"
)

// Mermaid renders the compiled topology as a Mermaid flowchart. labels maps
// node names to display labels; nodes without a label use their name.
// Conditional routes are drawn dotted when they loop back and solid otherwise.
func (g *Graph[S, U]) Mermaid(labels map[string]string) string {
	var sb strings.Builder
	sb.WriteString("graph TB\n")
	for _, name := range g.order {
		label := name
		if l, ok := labels[name]; ok && l != "" {
			label = l
		}
		fmt.Fprintf(&sb, "    %s[%q]\n", name, label)
	}
	sb.WriteString("    end_node((End))\n")

	for _, e := range g.topology {
		to := e.To
		if to == End {
			to = "end_node"
		}
		switch {
		case e.Outcome == 0:
			fmt.Fprintf(&sb, "    %s --> %s\n", e.From, to)
		case e.Back:
			fmt.Fprintf(&sb, "    %s -. %q .-> %s\n", e.From, e.Outcome.String(), to)
		default:
			fmt.Fprintf(&sb, "    %s -- %q --> %s\n", e.From, e.Outcome.String(), to)
		}
	}
	return sb.String()
}

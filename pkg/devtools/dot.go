package devtools

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/weft-dev/weft/pkg/weft"
)

// DOT renders a graph dump as Graphviz DOT. Scopes become clusters,
// dependency edges point from source to subscriber. Output is stable
// for a given dump, so it diffs and goldens cleanly.
func DOT(d weft.GraphDump) []byte {
	var b bytes.Buffer
	b.WriteString("digraph weft {\n")
	b.WriteString("\trankdir=LR;\n")
	b.WriteString("\tnode [fontname=\"Helvetica\" fontsize=10];\n")

	seen := make(map[string]bool, len(d.Nodes))
	for _, sc := range d.Scopes {
		fmt.Fprintf(&b, "\n\tsubgraph \"cluster_%s\" {\n", escapeDOT(sc.ID))
		fmt.Fprintf(&b, "\t\tlabel=\"scope %s\";\n", escapeDOT(sc.ID))
		b.WriteString("\t\tstyle=rounded;\n")
		for _, n := range d.Nodes {
			if n.Scope != sc.ID {
				continue
			}
			seen[n.ID] = true
			writeDOTNode(&b, "\t\t", n)
		}
		b.WriteString("\t}\n")
	}
	for _, n := range d.Nodes {
		if !seen[n.ID] {
			writeDOTNode(&b, "\t", n)
		}
	}

	var edges []string
	for _, n := range d.Nodes {
		for _, sub := range n.Subs {
			edges = append(edges, fmt.Sprintf("\t\"%s\" -> \"%s\";\n", escapeDOT(n.ID), escapeDOT(sub)))
		}
	}
	if len(edges) > 0 {
		b.WriteString("\n")
		for _, e := range edges {
			b.WriteString(e)
		}
	}
	b.WriteString("}\n")
	return b.Bytes()
}

func writeDOTNode(b *bytes.Buffer, indent string, n weft.NodeDump) {
	title := n.Name
	if title == "" {
		title = n.ID
	}
	desc := n.Kind
	if n.Kind != "effect" {
		desc += fmt.Sprintf(" v%d", n.Version)
	}
	if n.Eager {
		desc += " eager"
	}
	if n.State != "clean" {
		desc += " (" + n.State + ")"
	}

	attrs := fmt.Sprintf("label=\"%s\\n%s\" shape=%s", escapeDOT(title), escapeDOT(desc), dotShape(n.Kind))
	if n.Value != "" {
		attrs += fmt.Sprintf(" tooltip=\"%s\"", escapeDOT(n.Value))
	}
	if n.State != "clean" {
		attrs += " style=filled fillcolor=\"#fde2e2\""
	}
	fmt.Fprintf(b, "%s\"%s\" [%s];\n", indent, escapeDOT(n.ID), attrs)
}

func dotShape(kind string) string {
	switch kind {
	case "signal":
		return "box"
	case "memo":
		return "ellipse"
	case "effect":
		return "hexagon"
	case "stored":
		return "note"
	default:
		return "plaintext"
	}
}

func escapeDOT(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

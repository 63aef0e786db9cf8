package depgraph

import (
	"fmt"
	"sort"
	"strings"
)

// communityPalette colours communities in drawings, cycling when there are
// more communities than colours.
var communityPalette = []string{
	"#1f6feb", "#238636", "#8957e5", "#d29922", "#f85149",
	"#3fb950", "#db61a2", "#58a6ff", "#a371f7", "#e3b341",
}

const uncolored = "#30363d"

// ExportDOT generates an undirected Graphviz DOT drawing of the graph. Nodes
// carrying a community label are filled with that community's colour.
func ExportDOT(g *Graph) string {
	var b strings.Builder
	b.WriteString("graph dependencies {\n")
	b.WriteString("  layout=neato;\n")
	b.WriteString("  overlap=false;\n")
	b.WriteString("  node [fontname=\"Helvetica\" shape=box style=filled fontcolor=white];\n")
	b.WriteString("  edge [color=\"#8b949e\"];\n\n")

	for _, n := range g.nodes {
		color := uncolored
		if c, ok := n.Community(); ok {
			color = communityColor(c)
		}
		b.WriteString(fmt.Sprintf("  %s [label=%s fillcolor=\"%s\"];\n",
			quoteDOT(n.ID), quoteDOT(n.ID), color))
	}
	if len(g.edges) > 0 {
		b.WriteString("\n")
	}
	for _, e := range g.edges {
		b.WriteString(fmt.Sprintf("  %s -- %s;\n", quoteDOT(e.Source), quoteDOT(e.Target)))
	}

	b.WriteString("}\n")
	return b.String()
}

// ExportMermaid generates a Mermaid flowchart with one subgraph per community.
// Nodes without a community label are drawn at the top level.
func ExportMermaid(g *Graph) string {
	var b strings.Builder
	b.WriteString("graph LR\n")

	groups := make(map[int][]*Node)
	var loose []*Node
	for _, n := range g.nodes {
		if c, ok := n.Community(); ok {
			groups[c] = append(groups[c], n)
		} else {
			loose = append(loose, n)
		}
	}

	labels := make([]int, 0, len(groups))
	for c := range groups {
		labels = append(labels, c)
	}
	sort.Ints(labels)

	ids := mermaidIDs(g)
	for _, c := range labels {
		b.WriteString(fmt.Sprintf("  subgraph community_%d\n", c))
		for _, n := range groups[c] {
			b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", ids[n.ID], escapeMermaid(n.ID)))
		}
		b.WriteString("  end\n")
	}
	for _, n := range loose {
		b.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", ids[n.ID], escapeMermaid(n.ID)))
	}

	for _, e := range g.edges {
		b.WriteString(fmt.Sprintf("  %s --- %s\n", ids[e.Source], ids[e.Target]))
	}
	for _, c := range labels {
		b.WriteString(fmt.Sprintf("  style community_%d fill:%s22,stroke:%s\n", c, communityColor(c), communityColor(c)))
	}

	return b.String()
}

// FormatStats returns a human-readable summary of graph statistics.
func FormatStats(s GraphStats) string {
	var b strings.Builder
	b.WriteString("Dependency Graph Statistics\n")
	b.WriteString("==========================\n\n")
	b.WriteString(fmt.Sprintf("Nodes:       %d total\n", s.TotalNodes))
	b.WriteString(fmt.Sprintf("  Files:     %d\n", s.FileCount))
	b.WriteString(fmt.Sprintf("  Symbols:   %d\n", s.SymbolCount))
	if s.StubCount > 0 {
		b.WriteString(fmt.Sprintf("  Stubs:     %d\n", s.StubCount))
	}
	b.WriteString(fmt.Sprintf("  Isolated:  %d\n", s.IsolatedNodes))
	b.WriteString(fmt.Sprintf("Edges:       %d total\n", s.TotalEdges))
	if s.SelfLoops > 0 {
		b.WriteString(fmt.Sprintf("  Self loops: %d\n", s.SelfLoops))
	}
	b.WriteString(fmt.Sprintf("Max Degree:  %d (%s)\n", s.MaxDegree, s.HotspotNode))
	b.WriteString(fmt.Sprintf("Components:  %d\n", s.ConnectedComponents))
	if s.Communities > 0 {
		b.WriteString(fmt.Sprintf("Communities: %d\n", s.Communities))
	}
	return b.String()
}

func communityColor(c int) string {
	if c < 0 {
		return uncolored
	}
	return communityPalette[c%len(communityPalette)]
}

func quoteDOT(s string) string {
	return "\"" + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + "\""
}

// mermaidIDs assigns positional identifiers; raw ids contain characters
// Mermaid cannot parse.
func mermaidIDs(g *Graph) map[string]string {
	ids := make(map[string]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[n.ID] = fmt.Sprintf("n%d_%s", i, sanitizeMermaidID(n.ID))
	}
	return ids
}

func sanitizeMermaidID(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, s)
}

func escapeMermaid(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}

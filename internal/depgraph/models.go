package depgraph

import (
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/efebarandurmaz/graphrank/internal/graphio"
)

// Reserved record fields.
const (
	FieldID        = "id"
	FieldSource    = "source"
	FieldTarget    = "target"
	FieldCommunity = "community"
)

// Node is a file or symbol of the analysed codebase. Attrs holds the full
// source record, id included.
type Node struct {
	ID    string
	Attrs *graphio.Record

	index int64
	stub  bool
}

// Stub reports whether the node was materialised from a dangling edge
// endpoint rather than declared in the node list.
func (n *Node) Stub() bool { return n.stub }

// Community returns the community label stored on the node, if any.
func (n *Node) Community() (int, bool) {
	v, ok := n.Attrs.Get(FieldCommunity)
	if !ok {
		return 0, false
	}
	return toInt(v)
}

// Edge is an undirected relationship between two nodes.
type Edge struct {
	Source string
	Target string
	Attrs  *graphio.Record
}

// SelfLoop reports whether both endpoints are the same node.
func (e *Edge) SelfLoop() bool { return e.Source == e.Target }

// DanglingPolicy decides what happens to edges whose endpoints are not in the
// node list.
type DanglingPolicy string

const (
	// DanglingReject fails the build with a DanglingReferenceError.
	DanglingReject DanglingPolicy = "reject"
	// DanglingCreate adds a node carrying only its id.
	DanglingCreate DanglingPolicy = "create"
)

// BuildOptions configures Build.
type BuildOptions struct {
	Dangling DanglingPolicy
}

// Graph is the undirected, simple dependency graph of one run.
type Graph struct {
	nodes []*Node
	byID  map[string]*Node
	edges []*Edge
	pairs map[[2]string]*Edge

	topo *simple.UndirectedGraph
}

// Nodes returns the nodes in input order; stub nodes come last.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Edges returns the deduplicated edges in first-seen order.
func (g *Graph) Edges() []*Edge { return g.edges }

// Node looks a node up by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// IDs returns node ids in graph order.
func (g *Graph) IDs() []string {
	ids := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.ID
	}
	return ids
}

// NodeRecords returns the attribute record of every node in graph order.
func (g *Graph) NodeRecords() []*graphio.Record {
	out := make([]*graphio.Record, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.Attrs
	}
	return out
}

// EdgeRecords returns the attribute record of every edge in graph order.
func (g *Graph) EdgeRecords() []*graphio.Record {
	out := make([]*graphio.Record, len(g.edges))
	for i, e := range g.edges {
		out[i] = e.Attrs
	}
	return out
}

// Created returns the ids of stub nodes added under DanglingCreate.
func (g *Graph) Created() []string {
	var ids []string
	for _, n := range g.nodes {
		if n.stub {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Undirected exposes the topology to gonum algorithms. Gonum node ids are the
// node positions in Nodes().
func (g *Graph) Undirected() graph.Undirected { return g.topo }

// IDOf maps a gonum node id back to the node id.
func (g *Graph) IDOf(gid int64) string { return g.nodes[gid].ID }

// GonumID maps a node id to its gonum id.
func (g *Graph) GonumID(id string) (int64, bool) {
	n, ok := g.byID[id]
	if !ok {
		return 0, false
	}
	return n.index, true
}

// Degree returns the number of distinct neighbours of a node, self loops
// excluded.
func (g *Graph) Degree(id string) int {
	n, ok := g.byID[id]
	if !ok {
		return 0
	}
	return g.topo.From(n.index).Len()
}

// Neighbors returns the gonum ids adjacent to gid in ascending order. The
// topology iterates in map order, so algorithms that must be reproducible
// walk neighbours through here.
func (g *Graph) Neighbors(gid int64) []int64 {
	from := g.topo.From(gid)
	out := make([]int64, 0, from.Len())
	for from.Next() {
		out = append(out, from.Node().ID())
	}
	slices.Sort(out)
	return out
}

// TopologyEdgeCount returns the number of edges the algorithms see.
func (g *Graph) TopologyEdgeCount() int {
	return g.topo.Edges().Len()
}

// GraphStats holds computed metrics about the graph.
type GraphStats struct {
	TotalNodes          int    `json:"total_nodes"`
	TotalEdges          int    `json:"total_edges"`
	FileCount           int    `json:"file_count"`
	SymbolCount         int    `json:"symbol_count"`
	StubCount           int    `json:"stub_count"`
	SelfLoops           int    `json:"self_loops"`
	MaxDegree           int    `json:"max_degree"`
	HotspotNode         string `json:"hotspot_node"` // node with most neighbours
	IsolatedNodes       int    `json:"isolated_nodes"`
	ConnectedComponents int    `json:"connected_components"`
	Communities         int    `json:"communities,omitempty"`
}

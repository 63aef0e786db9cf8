package depgraph

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/efebarandurmaz/graphrank/internal/graphio"
)

// ParseDanglingPolicy validates a policy name from configuration.
func ParseDanglingPolicy(s string) (DanglingPolicy, error) {
	switch DanglingPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DanglingReject:
		return DanglingReject, nil
	case DanglingCreate:
		return DanglingCreate, nil
	default:
		return "", fmt.Errorf("unknown dangling reference policy %q (want %q or %q)", s, DanglingReject, DanglingCreate)
	}
}

// Build constructs the graph from node and edge records. Records are copied;
// the inputs are never modified.
func Build(nodes, edges []*graphio.Record, opts BuildOptions) (*Graph, error) {
	policy, err := ParseDanglingPolicy(string(opts.Dangling))
	if err != nil {
		return nil, err
	}

	g := &Graph{
		byID:  make(map[string]*Node, len(nodes)),
		pairs: make(map[[2]string]*Edge, len(edges)),
		topo:  simple.NewUndirectedGraph(),
	}

	// 1. Declared nodes
	for i, rec := range nodes {
		id, err := requireString(rec, FieldID, "node", i)
		if err != nil {
			return nil, err
		}
		if _, dup := g.byID[id]; dup {
			return nil, &DuplicateNodeError{ID: id, Index: i}
		}
		g.addNode(id, rec.Clone(), false)
	}

	// 2. Edges, resolving endpoints under the dangling policy
	for i, rec := range edges {
		src, err := requireString(rec, FieldSource, "edge", i)
		if err != nil {
			return nil, err
		}
		dst, err := requireString(rec, FieldTarget, "edge", i)
		if err != nil {
			return nil, err
		}

		for _, end := range []string{src, dst} {
			if _, ok := g.byID[end]; ok {
				continue
			}
			if policy != DanglingCreate {
				return nil, &DanglingReferenceError{Index: i, Source: src, Target: dst, Missing: end}
			}
			stub := graphio.NewRecord()
			stub.Set(FieldID, end)
			g.addNode(end, stub, true)
		}

		g.addEdge(src, dst, rec)
	}

	return g, nil
}

func (g *Graph) addNode(id string, attrs *graphio.Record, stub bool) {
	n := &Node{ID: id, Attrs: attrs, index: int64(len(g.nodes)), stub: stub}
	g.nodes = append(g.nodes, n)
	g.byID[id] = n
	g.topo.AddNode(simple.Node(n.index))
}

// addEdge merges duplicates (either orientation) into the first occurrence.
// Later attribute values win, except the endpoints which keep the first
// orientation.
func (g *Graph) addEdge(src, dst string, rec *graphio.Record) {
	key := pairKey(src, dst)
	if e, ok := g.pairs[key]; ok {
		for _, k := range rec.Keys() {
			if k == FieldSource || k == FieldTarget {
				continue
			}
			v, _ := rec.Get(k)
			e.Attrs.Set(k, v)
		}
		return
	}

	e := &Edge{Source: src, Target: dst, Attrs: rec.Clone()}
	g.edges = append(g.edges, e)
	g.pairs[key] = e

	if src == dst {
		return
	}
	u, v := g.byID[src].index, g.byID[dst].index
	g.topo.SetEdge(g.topo.NewEdge(simple.Node(u), simple.Node(v)))
}

func pairKey(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

func requireString(rec *graphio.Record, field, kind string, index int) (string, error) {
	v, ok := rec.Get(field)
	if !ok {
		return "", &SchemaError{Kind: kind, Index: index, Field: field}
	}
	s, ok := v.(string)
	if !ok || s == "" {
		got := v
		if got == nil {
			got = "null"
		}
		return "", &SchemaError{Kind: kind, Index: index, Field: field, Got: got}
	}
	return s, nil
}

// IsSymbol reports whether id names a symbol inside a file ("file:symbol")
// rather than a file.
func IsSymbol(id, sep string) bool {
	return sep != "" && strings.Contains(id, sep)
}

// ComputeStats summarises the graph. sep is the file/symbol separator.
func ComputeStats(g *Graph, sep string) GraphStats {
	var s GraphStats
	s.TotalNodes = len(g.nodes)
	s.TotalEdges = len(g.edges)

	communities := make(map[int]bool)
	for _, n := range g.nodes {
		if IsSymbol(n.ID, sep) {
			s.SymbolCount++
		} else {
			s.FileCount++
		}
		if n.stub {
			s.StubCount++
		}
		if c, ok := n.Community(); ok {
			communities[c] = true
		}

		deg := g.Degree(n.ID)
		if deg == 0 {
			s.IsolatedNodes++
		}
		if deg > s.MaxDegree {
			s.MaxDegree = deg
			s.HotspotNode = n.ID
		}
	}
	s.Communities = len(communities)

	for _, e := range g.edges {
		if e.SelfLoop() {
			s.SelfLoops++
		}
	}

	s.ConnectedComponents = len(topo.ConnectedComponents(g.topo))
	return s
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x == math.Trunc(x) {
			return int(x), true
		}
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

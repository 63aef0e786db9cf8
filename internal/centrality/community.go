package centrality

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"

	"github.com/efebarandurmaz/graphrank/internal/depgraph"
)

// Community is the categorical column holding Louvain labels.
const Community = depgraph.FieldCommunity

// Labels maps node id to community label.
type Labels map[string]int

// Count returns the number of distinct labels.
func (l Labels) Count() int {
	seen := make(map[int]bool)
	for _, c := range l {
		seen[c] = true
	}
	return len(seen)
}

// Partitioner assigns every node a non-negative community label.
type Partitioner interface {
	Name() string
	Partition(ctx context.Context, g *depgraph.Graph) (Labels, error)
}

// Louvain runs gonum's modularity optimisation. The same Seed on the same
// graph yields the same labels.
type Louvain struct {
	Resolution float64
	Seed       uint64
}

func (Louvain) Name() string { return Community }

// Partition labels communities 0..k-1 in order of each community's earliest
// node in the graph.
func (l Louvain) Partition(ctx context.Context, g *depgraph.Graph) (Labels, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	labels := make(Labels, len(g.Nodes()))
	if len(g.Nodes()) == 0 {
		return labels, nil
	}

	var groups [][]graph.Node
	if g.TopologyEdgeCount() > 0 {
		res := l.Resolution
		if res <= 0 {
			res = 1
		}
		reduced := community.Modularize(g.Undirected(), res, rand.NewPCG(l.Seed, l.Seed))
		groups = reduced.Communities()
	}

	type group struct {
		first   int64
		members []graph.Node
	}
	ordered := make([]group, 0, len(groups))
	for _, members := range groups {
		if len(members) == 0 {
			continue
		}
		first := members[0].ID()
		for _, m := range members[1:] {
			if m.ID() < first {
				first = m.ID()
			}
		}
		ordered = append(ordered, group{first: first, members: members})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].first < ordered[j].first })

	for label, grp := range ordered {
		for _, m := range grp.members {
			labels[g.IDOf(m.ID())] = label
		}
	}

	// Nodes the optimiser did not place (no edges at all) get singleton
	// communities.
	next := len(ordered)
	for _, n := range g.Nodes() {
		if _, ok := labels[n.ID]; !ok {
			labels[n.ID] = next
			next++
		}
	}
	return labels, nil
}

// AssignCommunities writes each node's label into its attributes. This is the
// only metric stored on the source records.
func AssignCommunities(g *depgraph.Graph, labels Labels) error {
	for _, n := range g.Nodes() {
		c, ok := labels[n.ID]
		if !ok {
			return &MetricError{Metric: Community, Node: n.ID, Reason: "no community label"}
		}
		if c < 0 {
			return &MetricError{Metric: Community, Node: n.ID, Reason: fmt.Sprintf("negative label %d", c)}
		}
		n.Attrs.Set(depgraph.FieldCommunity, c)
	}
	return nil
}

package centrality

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/graphrank/internal/depgraph"
	"github.com/efebarandurmaz/graphrank/internal/graphio"
)

func buildGraph(t *testing.T, ids []string, pairs [][2]string) *depgraph.Graph {
	t.Helper()
	nodes := make([]*graphio.Record, 0, len(ids))
	for _, id := range ids {
		r := graphio.NewRecord()
		r.Set("id", id)
		nodes = append(nodes, r)
	}
	links := make([]*graphio.Record, 0, len(pairs))
	for _, p := range pairs {
		r := graphio.NewRecord()
		r.Set("source", p[0])
		r.Set("target", p[1])
		links = append(links, r)
	}
	g, err := depgraph.Build(nodes, links, depgraph.BuildOptions{})
	require.NoError(t, err)
	return g
}

// paw: triangle a-b-c with pendant d on a.
func paw(t *testing.T) *depgraph.Graph {
	return buildGraph(t, []string{"a", "b", "c", "d"}, [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}, {"a", "d"}})
}

func compute(t *testing.T, name string, g *depgraph.Graph) Scores {
	t.Helper()
	p, err := New(name, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, name, p.Name())
	s, err := p.Compute(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, s, len(g.Nodes()))
	return s
}

func TestDegree(t *testing.T) {
	s := compute(t, Degree, paw(t))
	assert.InDelta(t, 1.0, s["a"], 1e-12)
	assert.InDelta(t, 2.0/3, s["b"], 1e-12)
	assert.InDelta(t, 1.0/3, s["d"], 1e-12)

	single := buildGraph(t, []string{"only"}, nil)
	assert.Equal(t, 1.0, compute(t, Degree, single)["only"])
}

func TestBetweenness(t *testing.T) {
	s := compute(t, Betweenness, paw(t))
	assert.Greater(t, s["a"], 0.0)
	assert.Equal(t, 0.0, s["b"])
	assert.Equal(t, 0.0, s["c"])
	assert.Equal(t, 0.0, s["d"])

	small := buildGraph(t, []string{"x", "y"}, [][2]string{{"x", "y"}})
	assert.Equal(t, Scores{"x": 0, "y": 0}, compute(t, Betweenness, small))
}

func TestCloseness(t *testing.T) {
	s := compute(t, Closeness, paw(t))
	assert.InDelta(t, 1.0, s["a"], 1e-12)
	assert.InDelta(t, 0.6, s["d"], 1e-12)
	assert.InDelta(t, 0.75, s["b"], 1e-12)
}

func TestCloseness_Disconnected(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c", "lonely"}, [][2]string{{"a", "b"}, {"b", "c"}})
	s := compute(t, Closeness, g)
	assert.Equal(t, 0.0, s["lonely"])
	// b reaches 2 of 3 other nodes at distance 1: (2/2) * (2/3).
	assert.InDelta(t, 2.0/3, s["b"], 1e-12)
}

func TestPageRank(t *testing.T) {
	s := compute(t, PageRank, paw(t))
	assert.Greater(t, s["a"], s["b"])
	assert.Greater(t, s["b"], s["d"])
	assert.InDelta(t, s["b"], s["c"], 1e-6)
}

func TestHITS(t *testing.T) {
	g := paw(t)
	hubs := compute(t, Hubs, g)
	auth := compute(t, Authorities, g)
	assert.Greater(t, hubs["a"], hubs["b"])
	assert.Greater(t, hubs["b"], hubs["d"])
	for id := range hubs {
		assert.InDelta(t, hubs[id], auth[id], 1e-4, "paw has an odd cycle: hub and authority coincide for %s", id)
	}
}

func TestHITS_StarSeparatesHubsFromAuthorities(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"a", "c"}})
	hubs := compute(t, Hubs, g)
	auth := compute(t, Authorities, g)
	for _, id := range []string{"a", "b", "c"} {
		assert.InDelta(t, 1/math.Sqrt(3), hubs[id], 1e-9, id)
	}
	assert.InDelta(t, 2/math.Sqrt(6), auth["a"], 1e-9)
	assert.InDelta(t, 1/math.Sqrt(6), auth["b"], 1e-9)
	assert.Equal(t, auth["b"], auth["c"])
}

func TestPageRank_SumsToOne(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c", "d", "lonely"}, [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}, {"a", "d"}})
	var sum float64
	for _, v := range compute(t, PageRank, g) {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-8)
}

func TestEigenvector(t *testing.T) {
	s := compute(t, Eigenvector, paw(t))
	var sq float64
	for _, v := range s {
		assert.GreaterOrEqual(t, v, 0.0)
		sq += v * v
	}
	assert.InDelta(t, 1.0, sq, 1e-9)
	assert.Greater(t, s["a"], s["b"])
	assert.InDelta(t, s["b"], s["c"], 1e-9)
	assert.Greater(t, s["b"], s["d"])
}

func TestEigenvector_EquivalentComponentsShareMass(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c", "d"}, [][2]string{{"a", "b"}, {"c", "d"}})
	s := compute(t, Eigenvector, g)
	for _, id := range []string{"a", "b", "c", "d"} {
		assert.InDelta(t, 0.5, s[id], 1e-9, id)
	}
}

func TestEigenvector_SmallerComponentScoresZero(t *testing.T) {
	g := buildGraph(t, []string{"x", "y", "a", "b", "c", "lonely"}, [][2]string{{"x", "y"}, {"a", "b"}, {"b", "c"}, {"c", "a"}})
	s := compute(t, Eigenvector, g)
	for _, id := range []string{"a", "b", "c"} {
		assert.InDelta(t, 1/math.Sqrt(3), s[id], 1e-9, id)
	}
	assert.Equal(t, 0.0, s["x"])
	assert.Equal(t, 0.0, s["y"])
	assert.Equal(t, 0.0, s["lonely"])
}

// fan builds a graph large enough for map iteration order to vary between
// runs: a hub joined to a 39-node path, with irregular chords.
func fan(t *testing.T) *depgraph.Graph {
	ids := []string{"hub"}
	var pairs [][2]string
	for i := 1; i < 40; i++ {
		id := fmt.Sprintf("n%02d", i)
		ids = append(ids, id)
		pairs = append(pairs, [2]string{"hub", id})
		if i > 1 {
			pairs = append(pairs, [2]string{fmt.Sprintf("n%02d", i-1), id})
		}
		if i%4 == 0 {
			pairs = append(pairs, [2]string{id, fmt.Sprintf("n%02d", (3*i+1)%39+1)})
		}
	}
	return buildGraph(t, ids, pairs)
}

func TestProviders_Reproducible(t *testing.T) {
	for _, g := range []*depgraph.Graph{fan(t), twoCliques(t), paw(t)} {
		for _, name := range Names() {
			first := compute(t, name, g)
			for i := 0; i < 10; i++ {
				require.Equal(t, first, compute(t, name, g), "%s run %d", name, i)
			}
		}
	}
}

func TestProviders_SymmetricNodesScoreAlike(t *testing.T) {
	g := twoCliques(t)
	for _, name := range Names() {
		s := compute(t, name, g)
		assert.InDelta(t, s["a1"], s["b1"], 1e-9, "%s bridge ends", name)
		for _, id := range []string{"a3", "a4", "b2", "b3", "b4"} {
			assert.InDelta(t, s["a2"], s[id], 1e-9, "%s %s", name, id)
		}
	}
}

func TestProviders_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, name := range []string{Betweenness, PageRank, Hubs, Eigenvector} {
		p, err := New(name, DefaultParams())
		require.NoError(t, err)
		_, err = p.Compute(ctx, twoCliques(t))
		require.ErrorIs(t, err, context.Canceled, name)
	}
}

func TestProviders_NoEdges(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c", "d"}, nil)
	for _, name := range Names() {
		s := compute(t, name, g)
		for id, v := range s {
			assert.False(t, math.IsNaN(v), "%s(%s) is NaN", name, id)
		}
	}
	assert.InDelta(t, 0.5, compute(t, Hubs, g)["a"], 1e-12)
	assert.InDelta(t, 0.5, compute(t, Eigenvector, g)["c"], 1e-12)
}

func TestProviders_EmptyGraph(t *testing.T) {
	g := buildGraph(t, nil, nil)
	for _, name := range Names() {
		p, err := New(name, DefaultParams())
		require.NoError(t, err)
		s, err := p.Compute(context.Background(), g)
		require.NoError(t, err)
		assert.Empty(t, s, name)
	}
}

func TestNew_Unknown(t *testing.T) {
	_, err := New("katz", DefaultParams())
	require.Error(t, err)

	_, err = NewSet([]string{Degree, "katz"}, DefaultParams())
	require.Error(t, err)
}

func TestAttach(t *testing.T) {
	g := paw(t)
	providers, err := NewSet(Names(), DefaultParams())
	require.NoError(t, err)

	table, err := Attach(context.Background(), g, providers...)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, table.IDs())
	require.Len(t, table.Columns(), 7)
	for i, name := range Names() {
		assert.Equal(t, name, table.Columns()[i].Name)
		assert.False(t, table.Columns()[i].Categorical)
	}

	v, ok := table.Value(Degree, "a")
	require.True(t, ok)
	assert.InDelta(t, 1.0, v, 1e-12)

	row, ok := table.Row("d")
	require.True(t, ok)
	assert.Len(t, row, 7)
}

func TestAttach_Precomputed(t *testing.T) {
	g := paw(t)
	table, err := Attach(context.Background(), g, Precomputed("loc", Scores{"a": 10, "b": 20, "c": 30, "d": 40}))
	require.NoError(t, err)
	v, _ := table.Value("loc", "c")
	assert.Equal(t, 30.0, v)
}

func TestAttach_Errors(t *testing.T) {
	g := paw(t)
	tests := []struct {
		name   string
		scores Scores
		node   string
		reason string
	}{
		{"missing", Scores{"a": 1, "b": 1, "c": 1}, "d", "missing"},
		{"unknown", Scores{"a": 1, "b": 1, "c": 1, "d": 1, "zz": 1}, "zz", "unknown"},
		{"nan", Scores{"a": 1, "b": math.NaN(), "c": 1, "d": 1}, "b", "non-finite"},
		{"inf", Scores{"a": math.Inf(1), "b": 1, "c": 1, "d": 1}, "a", "non-finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Attach(context.Background(), g, Precomputed("loc", tt.scores))
			var me *MetricError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, "loc", me.Metric)
			assert.Equal(t, tt.node, me.Node)
			assert.True(t, strings.Contains(me.Reason, tt.reason), me.Reason)
		})
	}

	_, err := Attach(context.Background(), g, Precomputed("x", Scores{"a": 1, "b": 1, "c": 1, "d": 1}), Precomputed("x", Scores{"a": 1, "b": 1, "c": 1, "d": 1}))
	require.Error(t, err)
}

func TestAttach_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Attach(ctx, paw(t), Precomputed("x", nil))
	require.ErrorIs(t, err, context.Canceled)
}

func twoCliques(t *testing.T) *depgraph.Graph {
	ids := []string{"a1", "a2", "a3", "a4", "b1", "b2", "b3", "b4"}
	var pairs [][2]string
	for _, grp := range [][]string{ids[:4], ids[4:]} {
		for i := range grp {
			for j := i + 1; j < len(grp); j++ {
				pairs = append(pairs, [2]string{grp[i], grp[j]})
			}
		}
	}
	pairs = append(pairs, [2]string{"a1", "b1"})
	return buildGraph(t, ids, pairs)
}

func TestLouvain_TwoCliques(t *testing.T) {
	g := twoCliques(t)
	labels, err := Louvain{Resolution: 1, Seed: 7}.Partition(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, labels, 8)

	assert.Equal(t, 2, labels.Count())
	for _, id := range []string{"a1", "a2", "a3", "a4"} {
		assert.Equal(t, 0, labels[id], id)
	}
	for _, id := range []string{"b1", "b2", "b3", "b4"} {
		assert.Equal(t, 1, labels[id], id)
	}
}

func TestLouvain_Reproducible(t *testing.T) {
	g := twoCliques(t)
	first, err := Louvain{Seed: 42}.Partition(context.Background(), g)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Louvain{Seed: 42}.Partition(context.Background(), g)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestLouvain_NoEdges(t *testing.T) {
	g := buildGraph(t, []string{"x", "y", "z"}, nil)
	labels, err := Louvain{Seed: 1}.Partition(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, Labels{"x": 0, "y": 1, "z": 2}, labels)
}

func TestAssignCommunities(t *testing.T) {
	g := paw(t)
	labels := Labels{"a": 0, "b": 0, "c": 0, "d": 1}
	require.NoError(t, AssignCommunities(g, labels))

	n, _ := g.Node("d")
	c, ok := n.Community()
	require.True(t, ok)
	assert.Equal(t, 1, c)
	assert.Equal(t, []string{"id", "community"}, n.Attrs.Keys())

	require.Error(t, AssignCommunities(g, Labels{"a": 0}))
	require.Error(t, AssignCommunities(g, Labels{"a": 0, "b": 0, "c": 0, "d": -1}))
}

func TestTable_AddLabels(t *testing.T) {
	table := NewTable([]string{"a", "b"})
	require.NoError(t, table.Add(Degree, Scores{"a": 1, "b": 0.5}))
	require.NoError(t, table.AddLabels(Community, Labels{"a": 0, "b": 3}))

	cols := table.Columns()
	require.Len(t, cols, 2)
	assert.True(t, cols[1].Categorical)
	v, _ := table.Value(Community, "b")
	assert.Equal(t, 3.0, v)

	require.Error(t, table.AddLabels("other", Labels{"a": 0}))
	require.Error(t, table.AddLabels("other2", Labels{"a": 0, "b": 0, "c": 1}))
}

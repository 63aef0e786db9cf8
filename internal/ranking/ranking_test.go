package ranking

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/graphrank/internal/centrality"
	"github.com/efebarandurmaz/graphrank/internal/depgraph"
	"github.com/efebarandurmaz/graphrank/internal/graphio"
)

func table(t *testing.T, ids []string, cols map[string]centrality.Scores, order ...string) *centrality.Table {
	t.Helper()
	tb := centrality.NewTable(ids)
	for _, name := range order {
		require.NoError(t, tb.Add(name, cols[name]))
	}
	return tb
}

func TestSplit_ExhaustiveAndDisjoint(t *testing.T) {
	ids := []string{"a.py", "a.py:foo", "b.py", "pkg/c.go:Type.Method", "Makefile"}
	files, symbols := Split(ids, ":")

	assert.Equal(t, []string{"a.py", "b.py", "Makefile"}, files)
	assert.Equal(t, []string{"a.py:foo", "pkg/c.go:Type.Method"}, symbols)
	assert.Len(t, append(files, symbols...), len(ids))

	files, symbols = Split(ids, "#")
	assert.Len(t, files, len(ids))
	assert.Empty(t, symbols)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Files, Classify("a.py", ":"))
	assert.Equal(t, Symbols, Classify("a.py:foo", ":"))
	assert.Equal(t, "symbols", Symbols.String())
	assert.Equal(t, "files", Files.String())
}

func TestRank_NormalizesPerPartition(t *testing.T) {
	ids := []string{"a.py", "b.py", "c.py", "a.py:f", "a.py:g"}
	tb := table(t, ids, map[string]centrality.Scores{
		"degree":   {"a.py": 10, "b.py": 20, "c.py": 30, "a.py:f": 1, "a.py:g": 3},
		"pagerank": {"a.py": 0.5, "b.py": 0.1, "c.py": 0.3, "a.py:f": 7, "a.py:g": 5},
	}, "degree", "pagerank")

	files, symbols, err := Normalizer{Separator: ":"}.Rank(tb)
	require.NoError(t, err)

	for _, r := range []*Ranked{files, symbols} {
		for ci := range r.Columns {
			lo, hi := math.Inf(1), math.Inf(-1)
			for _, row := range r.Rows {
				lo = math.Min(lo, row.Values[ci])
				hi = math.Max(hi, row.Values[ci])
			}
			assert.Equal(t, 0.0, lo, "%s %s min", r.Partition, r.Columns[ci].Name)
			assert.Equal(t, 1.0, hi, "%s %s max", r.Partition, r.Columns[ci].Name)
		}
		assert.Empty(t, r.Degenerate)
	}

	// files: degree a=0 b=.5 c=1; pagerank a=1 b=0 c=.5
	require.Equal(t, []string{"c.py", "a.py", "b.py"}, files.IDs())
	assert.InDelta(t, 1.5, files.Rows[0].Combined, 1e-12)
	assert.InDelta(t, 1.0, files.Rows[1].Combined, 1e-12)
	assert.InDelta(t, 0.5, files.Rows[2].Combined, 1e-12)

	// symbols: f = 0 + 1, g = 1 + 0 -> tie broken by id
	require.Equal(t, []string{"a.py:f", "a.py:g"}, symbols.IDs())
	assert.Equal(t, 1.0, symbols.Rows[0].Combined)
	assert.Equal(t, 1.0, symbols.Rows[1].Combined)
}

func TestRank_CombinedIsSumOfNormalized(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	tb := table(t, ids, map[string]centrality.Scores{
		"x": {"a": 3, "b": 1, "c": 4, "d": 1.5},
		"y": {"a": 9, "b": 2, "c": 6, "d": 5},
		"z": {"a": 0.1, "b": 0.7, "c": 0.2, "d": 0.3},
	}, "x", "y", "z")

	files, _, err := Normalizer{Separator: ":"}.Rank(tb)
	require.NoError(t, err)
	for i, row := range files.Rows {
		var sum float64
		for _, v := range row.Values {
			sum += v
		}
		assert.Equal(t, sum, row.Combined)
		if i > 0 {
			assert.LessOrEqual(t, row.Combined, files.Rows[i-1].Combined, "ranking must be non-increasing")
		}
	}
}

func TestRank_DegenerateColumn(t *testing.T) {
	ids := []string{"a.py", "b.py", "c.py"}
	tb := table(t, ids, map[string]centrality.Scores{
		"flat":  {"a.py": 0.25, "b.py": 0.25, "c.py": 0.25},
		"steep": {"a.py": 1, "b.py": 2, "c.py": 3},
	}, "flat", "steep")

	files, symbols, err := Normalizer{Separator: ":"}.Rank(tb)
	require.NoError(t, err)

	assert.Equal(t, []string{"flat"}, files.Degenerate)
	for _, row := range files.Rows {
		assert.Equal(t, 0.0, row.Values[0])
		assert.False(t, math.IsNaN(row.Combined))
		assert.Equal(t, row.Values[1], row.Combined)
	}
	assert.Equal(t, []string{"c.py", "b.py", "a.py"}, files.IDs())

	assert.Empty(t, symbols.Rows)
	assert.Equal(t, []string{"flat", "steep"}, symbols.Degenerate)
}

func TestRank_RoundingNoiseIsDegenerate(t *testing.T) {
	ids := []string{"a.py", "b.py", "c.py"}
	tb := table(t, ids, map[string]centrality.Scores{
		"eigenvector": {"a.py": 0.5773502691896257, "b.py": 0.5773502691896257, "c.py": 0.5773502691896258},
		"loc":         {"a.py": 1e12, "b.py": 1e12 + 1, "c.py": 1e12},
		"tiny":        {"a.py": 0, "b.py": 2e-9, "c.py": 0},
	}, "eigenvector", "loc", "tiny")

	files, _, err := Normalizer{Separator: ":"}.Rank(tb)
	require.NoError(t, err)

	assert.Equal(t, []string{"eigenvector", "loc"}, files.Degenerate)
	require.Equal(t, []string{"b.py", "a.py", "c.py"}, files.IDs())
	assert.Equal(t, 1.0, files.Rows[0].Combined)
	assert.Equal(t, 0.0, files.Rows[1].Combined)
	assert.Equal(t, 0.0, files.Rows[2].Combined)
}

// Vertex-transitive graphs give every node the same score under every
// metric, so every column is flat and every combined score is zero.
func TestRank_SymmetricGraphsAreFullyDegenerate(t *testing.T) {
	ring := func(n int) [][2]string {
		var pairs [][2]string
		for i := range n {
			pairs = append(pairs, [2]string{fileID(i), fileID((i + 1) % n)})
		}
		return pairs
	}
	complete := func(n int) [][2]string {
		var pairs [][2]string
		for i := range n {
			for j := i + 1; j < n; j++ {
				pairs = append(pairs, [2]string{fileID(i), fileID(j)})
			}
		}
		return pairs
	}

	tests := []struct {
		name  string
		n     int
		pairs [][2]string
	}{
		{"triangle", 3, ring(3)},
		{"cycle5", 5, ring(5)},
		{"cycle7", 7, ring(7)},
		{"k5", 5, complete(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := make([]string, tt.n)
			for i := range ids {
				ids[i] = fileID(i)
			}
			files := rankGraph(t, ids, tt.pairs)

			assert.Equal(t, centrality.Names(), files.Degenerate)
			assert.Equal(t, ids, files.IDs(), "ties ordered by id")
			for _, row := range files.Rows {
				assert.Equal(t, 0.0, row.Combined, row.ID)
			}
		})
	}
}

func fileID(i int) string { return string(rune('a'+i)) + ".py" }

func rankGraph(t *testing.T, ids []string, pairs [][2]string) *Ranked {
	t.Helper()
	nodes := make([]*graphio.Record, len(ids))
	for i, id := range ids {
		nodes[i] = graphio.NewRecord()
		nodes[i].Set("id", id)
	}
	links := make([]*graphio.Record, len(pairs))
	for i, p := range pairs {
		links[i] = graphio.NewRecord()
		links[i].Set("source", p[0])
		links[i].Set("target", p[1])
	}
	g, err := depgraph.Build(nodes, links, depgraph.BuildOptions{})
	require.NoError(t, err)

	providers, err := centrality.NewSet(centrality.Names(), centrality.DefaultParams())
	require.NoError(t, err)
	tb, err := centrality.Attach(context.Background(), g, providers...)
	require.NoError(t, err)

	files, _, err := Normalizer{Separator: DefaultSeparator}.Rank(tb)
	require.NoError(t, err)
	return files
}

func TestRank_SingleRowPartition(t *testing.T) {
	tb := table(t, []string{"a.py", "a.py:only"}, map[string]centrality.Scores{
		"degree": {"a.py": 1, "a.py:only": 1},
	}, "degree")

	_, symbols, err := Normalizer{Separator: ":"}.Rank(tb)
	require.NoError(t, err)
	require.Len(t, symbols.Rows, 1)
	assert.Equal(t, 0.0, symbols.Rows[0].Combined)
	assert.Equal(t, []string{"degree"}, symbols.Degenerate)
}

func TestRank_CategoricalExcluded(t *testing.T) {
	ids := []string{"a", "b"}
	tb := centrality.NewTable(ids)
	require.NoError(t, tb.Add("degree", centrality.Scores{"a": 1, "b": 2}))
	require.NoError(t, tb.AddLabels(centrality.Community, centrality.Labels{"a": 5, "b": 0}))

	files, _, err := Normalizer{Separator: ":"}.Rank(tb)
	require.NoError(t, err)

	require.Equal(t, []string{"b", "a"}, files.IDs())
	assert.Equal(t, 1.0, files.Rows[0].Combined)
	assert.Equal(t, 0.0, files.Rows[0].Values[1], "label copied verbatim")
	assert.Equal(t, 5.0, files.Rows[1].Values[1])
	assert.Equal(t, 0.0, files.Rows[1].Combined)
	assert.Empty(t, files.Degenerate)
}

func TestRank_EmptySeparator(t *testing.T) {
	_, _, err := Normalizer{}.Rank(centrality.NewTable(nil))
	require.Error(t, err)
}

func TestRank_FilesAndSymbols(t *testing.T) {
	nodes, err := graphio.DecodeRecords("nodes", []byte(`[{"id":"a.py"},{"id":"a.py:foo"},{"id":"b.py"}]`))
	require.NoError(t, err)
	links, err := graphio.DecodeRecords("links", []byte(`[{"source":"a.py","target":"a.py:foo"},{"source":"a.py","target":"b.py"}]`))
	require.NoError(t, err)
	g, err := depgraph.Build(nodes, links, depgraph.BuildOptions{})
	require.NoError(t, err)

	providers, err := centrality.NewSet(centrality.Names(), centrality.DefaultParams())
	require.NoError(t, err)
	tb, err := centrality.Attach(context.Background(), g, providers...)
	require.NoError(t, err)

	files, symbols, err := Normalizer{Separator: DefaultSeparator}.Rank(tb)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a.py", "b.py"}, files.IDs())
	assert.Equal(t, []string{"a.py:foo"}, symbols.IDs())
	assert.Equal(t, "a.py", files.Rows[0].ID)
	for _, r := range append(files.Rows, symbols.Rows...) {
		assert.False(t, math.IsNaN(r.Combined))
	}
}

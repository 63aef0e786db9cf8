package centrality

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
	"gonum.org/v1/gonum/mat"

	"github.com/efebarandurmaz/graphrank/internal/depgraph"
)

// maxIterations bounds the power iterations of PageRank and HITS.
const maxIterations = 10000

func zeroScores(g *depgraph.Graph) Scores {
	out := make(Scores, len(g.Nodes()))
	for _, n := range g.Nodes() {
		out[n.ID] = 0
	}
	return out
}

func uniformScores(g *depgraph.Graph, v float64) Scores {
	out := make(Scores, len(g.Nodes()))
	for _, n := range g.Nodes() {
		out[n.ID] = v
	}
	return out
}

// adjacency lists the sorted neighbours of every node, indexed by gonum id.
func adjacency(g *depgraph.Graph) [][]int64 {
	adj := make([][]int64, len(g.Nodes()))
	for i := range adj {
		adj[i] = g.Neighbors(int64(i))
	}
	return adj
}

// quantize drops digits below the iterative solvers' tolerance so that
// mathematically equal scores compare equal.
func quantize(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

func scoresOf(g *depgraph.Graph, values []float64) Scores {
	out := make(Scores, len(values))
	for gid, v := range values {
		out[g.IDOf(int64(gid))] = quantize(v)
	}
	return out
}

// degree: neighbours / (n-1).
type degreeProvider struct{}

func (degreeProvider) Name() string { return Degree }

func (degreeProvider) Compute(_ context.Context, g *depgraph.Graph) (Scores, error) {
	n := len(g.Nodes())
	if n <= 1 {
		return uniformScores(g, 1), nil
	}
	out := make(Scores, n)
	for _, node := range g.Nodes() {
		out[node.ID] = float64(g.Degree(node.ID)) / float64(n-1)
	}
	return out, nil
}

// betweenness: Brandes' algorithm, sources and neighbours visited in id
// order, scaled by 1/((n-1)(n-2)).
type betweennessProvider struct{}

func (betweennessProvider) Name() string { return Betweenness }

func (betweennessProvider) Compute(ctx context.Context, g *depgraph.Graph) (Scores, error) {
	n := len(g.Nodes())
	if n < 3 {
		return zeroScores(g), nil
	}

	var (
		adj   = adjacency(g)
		cb    = make([]float64, n)
		sigma = make([]float64, n)
		delta = make([]float64, n)
		dist  = make([]int, n)
		pred  = make([][]int64, n)
		queue = make([]int64, 0, n)
	)
	for s := range int64(n) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range n {
			sigma[i], delta[i], dist[i] = 0, 0, -1
			pred[i] = pred[i][:0]
		}
		sigma[s], dist[s] = 1, 0

		// queue doubles as the visit stack: reversed, it yields nodes in
		// non-increasing distance from s.
		queue = append(queue[:0], s)
		for head := 0; head < len(queue); head++ {
			v := queue[head]
			for _, w := range adj[v] {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					pred[w] = append(pred[w], v)
				}
			}
		}
		for i := len(queue) - 1; i >= 0; i-- {
			w := queue[i]
			for _, v := range pred[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != s {
				cb[w] += delta[w]
			}
		}
	}

	scale := 1 / float64((n-1)*(n-2))
	for i := range cb {
		cb[i] *= scale
	}
	return scoresOf(g, cb), nil
}

// closeness: inverse mean BFS distance to reachable nodes, scaled by the
// reachable fraction so nodes in small components are not over-rated.
type closenessProvider struct{}

func (closenessProvider) Name() string { return Closeness }

func (closenessProvider) Compute(ctx context.Context, g *depgraph.Graph) (Scores, error) {
	out := zeroScores(g)
	n := len(g.Nodes())
	if n <= 1 {
		return out, nil
	}

	und := g.Undirected()
	for _, node := range g.Nodes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gid, _ := g.GonumID(node.ID)

		var total float64
		reached := 0
		var bf traverse.BreadthFirst
		bf.Walk(und, und.Node(gid), func(_ graph.Node, depth int) bool {
			total += float64(depth)
			reached++
			return false
		})

		if total > 0 {
			r := float64(reached - 1)
			out[node.ID] = (r / total) * (r / float64(n-1))
		}
	}
	return out, nil
}

// pagerank: power iteration from the uniform vector. Every edge is followed
// in both directions; isolated nodes spread their rank uniformly.
type pageRankProvider struct {
	damping float64
	tol     float64
}

func (pageRankProvider) Name() string { return PageRank }

func (p pageRankProvider) Compute(ctx context.Context, g *depgraph.Graph) (Scores, error) {
	n := len(g.Nodes())
	if n == 0 {
		return Scores{}, nil
	}

	adj := adjacency(g)
	rank := make([]float64, n)
	next := make([]float64, n)
	for i := range rank {
		rank[i] = 1 / float64(n)
	}

	for range maxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var dangling float64
		for v, nb := range adj {
			if len(nb) == 0 {
				dangling += rank[v]
			}
		}
		base := (1-p.damping)/float64(n) + p.damping*dangling/float64(n)
		for i := range next {
			next[i] = base
		}
		for v, nb := range adj {
			if len(nb) == 0 {
				continue
			}
			share := p.damping * rank[v] / float64(len(nb))
			for _, w := range nb {
				next[w] += share
			}
		}

		var diff float64
		for i := range rank {
			diff += math.Abs(next[i] - rank[i])
		}
		rank, next = next, rank
		if diff < p.tol*float64(n) {
			return scoresOf(g, rank), nil
		}
	}
	return nil, fmt.Errorf("pagerank did not converge in %d iterations", maxIterations)
}

// hubs / authorities: HITS from the all-ones vector. Authorities sum the hub
// scores of their neighbours and hubs sum the new authority scores, each
// normalised to unit Euclidean norm. With every edge followed both ways the
// two vectors agree on graphs with an odd cycle; on bipartite graphs such as
// a star they settle on different vectors.
type hitsProvider struct {
	name string
	tol  float64
}

func (p hitsProvider) Name() string { return p.name }

func (p hitsProvider) Compute(ctx context.Context, g *depgraph.Graph) (Scores, error) {
	n := len(g.Nodes())
	if n == 0 {
		return Scores{}, nil
	}
	// Both vectors are normalised by their norm, which is zero without edges.
	if g.TopologyEdgeCount() == 0 {
		return uniformScores(g, 1/math.Sqrt(float64(n))), nil
	}

	adj := adjacency(g)
	auth := make([]float64, n)
	hub := make([]float64, n)
	for i := range hub {
		auth[i], hub[i] = 1, 1
	}
	deltaAuth := make([]float64, n)
	deltaHub := make([]float64, n)

	step := func(dst, src, delta []float64) {
		for v, nb := range adj {
			var s float64
			for _, u := range nb {
				s += src[u]
			}
			delta[v] = dst[v]
			dst[v] = s
		}
		norm := floats.Norm(dst, 2)
		for i := range dst {
			dst[i] /= norm
			delta[i] -= dst[i]
		}
	}

	for range maxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step(auth, hub, deltaAuth)
		step(hub, auth, deltaHub)
		if floats.Norm(deltaAuth, 2) < p.tol && floats.Norm(deltaHub, 2) < p.tol {
			if p.name == Authorities {
				return scoresOf(g, auth), nil
			}
			return scoresOf(g, hub), nil
		}
	}
	return nil, fmt.Errorf("%s did not converge in %d iterations", p.name, maxIterations)
}

// eigenvector: leading eigenvector of the adjacency matrix, absolute values,
// unit Euclidean norm. Each connected component is factorised on its own.
// When several components share the largest eigenvalue their vectors are
// combined as the projection of the all-ones vector onto that eigenspace, so
// equivalent components score alike; components with a smaller eigenvalue
// score zero.
type eigenvectorProvider struct{}

func (eigenvectorProvider) Name() string { return Eigenvector }

type componentVector struct {
	members []int64
	value   float64
	vector  []float64
}

func (eigenvectorProvider) Compute(ctx context.Context, g *depgraph.Graph) (Scores, error) {
	n := len(g.Nodes())
	if n == 0 {
		return Scores{}, nil
	}
	if g.TopologyEdgeCount() == 0 {
		return uniformScores(g, 1/math.Sqrt(float64(n))), nil
	}

	var (
		comps []componentVector
		lead  float64
	)
	for _, members := range components(g) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cv, err := leadingVector(g, members)
		if err != nil {
			return nil, err
		}
		lead = max(lead, cv.value)
		comps = append(comps, cv)
	}

	out := make([]float64, n)
	for _, cv := range comps {
		if cv.value < lead-1e-9*lead {
			continue
		}
		weight := floats.Sum(cv.vector)
		for i, gid := range cv.members {
			out[gid] = weight * cv.vector[i]
		}
	}
	norm := floats.Norm(out, 2)
	if norm == 0 {
		return nil, errors.New("leading eigenvector is zero")
	}
	floats.Scale(1/norm, out)
	return scoresOf(g, out), nil
}

// components returns the connected components with members in ascending id
// order, ordered by their smallest member.
func components(g *depgraph.Graph) [][]int64 {
	var out [][]int64
	for _, c := range topo.ConnectedComponents(g.Undirected()) {
		ids := make([]int64, len(c))
		for i, node := range c {
			ids[i] = node.ID()
		}
		slices.Sort(ids)
		out = append(out, ids)
	}
	slices.SortFunc(out, func(a, b []int64) int { return cmp.Compare(a[0], b[0]) })
	return out
}

func leadingVector(g *depgraph.Graph, members []int64) (componentVector, error) {
	local := make(map[int64]int, len(members))
	for i, gid := range members {
		local[gid] = i
	}

	adj := mat.NewSymDense(len(members), nil)
	for i, gid := range members {
		for _, nb := range g.Neighbors(gid) {
			adj.SetSym(i, local[nb], 1)
		}
	}

	var es mat.EigenSym
	if ok := es.Factorize(adj, true); !ok {
		return componentVector{}, errors.New("eigen decomposition did not converge")
	}
	values := es.Values(nil)
	lead := floats.MaxIdx(values)

	var vectors mat.Dense
	es.VectorsTo(&vectors)
	col := mat.Col(nil, lead, &vectors)
	for i := range col {
		col[i] = math.Abs(col[i])
	}
	return componentVector{members: members, value: values[lead], vector: col}, nil
}

// Package centrality attaches per-node structural scores to a dependency
// graph. Every score comes from a Provider; the built-in providers work on
// the gonum topology of the graph and are reproducible for a fixed input.
package centrality

import (
	"context"
	"fmt"

	"github.com/efebarandurmaz/graphrank/internal/depgraph"
)

// Metric names, in the column order of the centrality table.
const (
	Degree      = "degree"
	Betweenness = "betweenness"
	Closeness   = "closeness"
	PageRank    = "pagerank"
	Hubs        = "hubs"
	Authorities = "authorities"
	Eigenvector = "eigenvector"
)

// Scores maps node id to score.
type Scores map[string]float64

// Provider computes one named score per node.
type Provider interface {
	Name() string
	Compute(ctx context.Context, g *depgraph.Graph) (Scores, error)
}

// Params tunes the iterative providers.
type Params struct {
	// Damping is the PageRank damping factor.
	Damping float64
	// Tolerance is the convergence tolerance of PageRank and HITS.
	Tolerance float64
}

// DefaultParams uses the usual damping factor and a tolerance tight enough
// for iterative scores to be stable to nine decimal places.
func DefaultParams() Params {
	return Params{Damping: 0.85, Tolerance: 1e-10}
}

// Names returns every built-in metric in default column order.
func Names() []string {
	return []string{Degree, Betweenness, Closeness, PageRank, Hubs, Authorities, Eigenvector}
}

// New returns the built-in provider for name.
func New(name string, p Params) (Provider, error) {
	switch name {
	case Degree:
		return degreeProvider{}, nil
	case Betweenness:
		return betweennessProvider{}, nil
	case Closeness:
		return closenessProvider{}, nil
	case PageRank:
		return pageRankProvider{damping: p.Damping, tol: p.Tolerance}, nil
	case Hubs:
		return hitsProvider{name: Hubs, tol: p.Tolerance}, nil
	case Authorities:
		return hitsProvider{name: Authorities, tol: p.Tolerance}, nil
	case Eigenvector:
		return eigenvectorProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown metric %q", name)
	}
}

// NewSet resolves several metric names at once.
func NewSet(names []string, p Params) ([]Provider, error) {
	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		pr, err := New(name, p)
		if err != nil {
			return nil, err
		}
		providers = append(providers, pr)
	}
	return providers, nil
}

type precomputed struct {
	name   string
	scores Scores
}

// Precomputed wraps scores computed elsewhere so they can be attached like
// any other metric.
func Precomputed(name string, scores Scores) Provider {
	return precomputed{name: name, scores: scores}
}

func (p precomputed) Name() string { return p.name }

func (p precomputed) Compute(context.Context, *depgraph.Graph) (Scores, error) {
	out := make(Scores, len(p.scores))
	for k, v := range p.scores {
		out[k] = v
	}
	return out, nil
}

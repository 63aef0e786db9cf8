// Package pipeline wires loading, graph construction, scoring, ranking and
// export into the four graphrank runs.
package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/efebarandurmaz/graphrank/internal/centrality"
	"github.com/efebarandurmaz/graphrank/internal/chart"
	"github.com/efebarandurmaz/graphrank/internal/config"
	"github.com/efebarandurmaz/graphrank/internal/depgraph"
	"github.com/efebarandurmaz/graphrank/internal/export"
	"github.com/efebarandurmaz/graphrank/internal/graphio"
	"github.com/efebarandurmaz/graphrank/internal/metrics"
	"github.com/efebarandurmaz/graphrank/internal/observability"
	"github.com/efebarandurmaz/graphrank/internal/ranking"
)

// Runner executes pipeline runs against one configuration. It holds no state
// between runs besides the files it writes.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a runner. A nil logger falls back to slog.Default().
func New(cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Output file names.
func CentralityFile(name string) string     { return name + "-centrality.csv" }
func ImportantNodesFile(name string) string { return name + "-important-nodes.csv" }
func ImportantFilesFile(name string) string { return name + "-important-files.csv" }
func TopNodesChart(name string) string      { return name + "-top-nodes.png" }
func TopFilesChart(name string) string      { return name + "-top-files.png" }
func NodesCSVFile(name string) string       { return "nodes_" + name + ".csv" }
func EdgesCSVFile(name string) string       { return "edges_" + name + ".csv" }
func DOTFile(name string) string            { return name + "-communities.dot" }
func MermaidFile(name string) string        { return name + "-communities.mmd" }

// Centrality scores every node, writes the full metric table, ranks files and
// symbols separately and writes both rankings plus their bar charts.
func (r *Runner) Centrality(ctx context.Context, name string) (rep *metrics.RunMetrics, err error) {
	name = r.name(name)
	rep = metrics.New("centrality", name)
	ctx, span := observability.StartRunSpan(ctx, "centrality", name)
	defer func() {
		observability.RecordError(span, err)
		span.End()
		rep.Finish(err)
	}()

	g, err := r.loadGraph(ctx, rep, r.cfg.NodesPath())
	if err != nil {
		return rep, err
	}
	observability.RecordGraphShape(span, len(g.Nodes()), len(g.Edges()), rep.Graph.Communities)

	providers, err := centrality.NewSet(r.cfg.Centrality.Metrics, r.cfg.Params())
	if err != nil {
		return rep, err
	}
	for i, p := range providers {
		providers[i] = tracedProvider{Provider: p, logger: r.logger}
	}

	var table *centrality.Table
	err = r.stage(ctx, rep, "attach metrics", func(ctx context.Context) (int, error) {
		t, err := centrality.Attach(ctx, g, providers...)
		if err != nil {
			return 0, err
		}
		if labels, ok := storedLabels(g); ok {
			if err := t.AddLabels(centrality.Community, labels); err != nil {
				return 0, err
			}
		}
		table = t
		return t.Len(), nil
	})
	if err != nil {
		return rep, err
	}

	err = r.stage(ctx, rep, "write centrality", func(context.Context) (int, error) {
		return 1, r.write(rep, CentralityFile(name), func(path string) error {
			return export.TableCSV(path, table)
		})
	})
	if err != nil {
		return rep, err
	}

	var files, symbols *ranking.Ranked
	err = r.stage(ctx, rep, "rank", func(context.Context) (int, error) {
		var err error
		files, symbols, err = ranking.Normalizer{Separator: r.cfg.Graph.Separator}.Rank(table)
		if err != nil {
			return 0, err
		}
		for _, rk := range []*ranking.Ranked{files, symbols} {
			for _, col := range rk.Degenerate {
				r.logger.Warn("degenerate column normalised to zero", "partition", rk.Partition.String(), "column", col)
				rep.Warn("%s: column %s has no spread; normalised to 0", rk.Partition, col)
			}
		}
		return len(files.Rows) + len(symbols.Rows), nil
	})
	if err != nil {
		return rep, err
	}

	err = r.stage(ctx, rep, "write rankings", func(context.Context) (int, error) {
		if err := r.write(rep, ImportantNodesFile(name), func(path string) error {
			return export.RankedCSV(path, symbols)
		}); err != nil {
			return 0, err
		}
		return 2, r.write(rep, ImportantFilesFile(name), func(path string) error {
			return export.RankedCSV(path, files)
		})
	})
	if err != nil {
		return rep, err
	}

	err = r.stage(ctx, rep, "draw charts", func(context.Context) (int, error) {
		return r.drawCharts(rep, name, table, files, symbols)
	})
	return rep, err
}

// Communities partitions the graph with Louvain, persists the labelled node
// list and exports it as CSV and graph drawings.
func (r *Runner) Communities(ctx context.Context, name string) (rep *metrics.RunMetrics, err error) {
	name = r.name(name)
	rep = metrics.New("communities", name)
	ctx, span := observability.StartRunSpan(ctx, "communities", name)
	defer func() {
		observability.RecordError(span, err)
		span.End()
		rep.Finish(err)
	}()

	g, err := r.loadGraph(ctx, rep, r.cfg.NodesPath())
	if err != nil {
		return rep, err
	}

	err = r.stage(ctx, rep, "detect communities", func(ctx context.Context) (int, error) {
		louvain := centrality.Louvain{Resolution: r.cfg.Community.Resolution, Seed: r.cfg.Community.Seed}
		labels, err := louvain.Partition(ctx, g)
		if err != nil {
			return 0, err
		}
		if err := centrality.AssignCommunities(g, labels); err != nil {
			return 0, err
		}
		rep.Graph.Communities = labels.Count()
		r.logger.Info("communities detected", "communities", rep.Graph.Communities, "seed", louvain.Seed)
		return rep.Graph.Communities, nil
	})
	if err != nil {
		return rep, err
	}
	observability.RecordGraphShape(span, len(g.Nodes()), len(g.Edges()), rep.Graph.Communities)

	err = r.stage(ctx, rep, "write communities", func(context.Context) (int, error) {
		path := r.cfg.CommunitiesPath()
		if err := graphio.WriteRecords(path, g.NodeRecords()); err != nil {
			return 0, err
		}
		rep.AddOutput(path)
		return len(g.Nodes()), nil
	})
	if err != nil {
		return rep, err
	}

	err = r.stage(ctx, rep, "export csv", func(context.Context) (int, error) {
		nodes, err := graphio.ReadRecords(r.cfg.CommunitiesPath())
		if err != nil {
			return 0, err
		}
		return r.exportCSV(rep, name, nodes, g.EdgeRecords())
	})
	if err != nil {
		return rep, err
	}

	err = r.stage(ctx, rep, "draw graph", func(context.Context) (int, error) {
		written := 0
		for _, d := range r.cfg.Output.Drawings {
			var file, text string
			switch d {
			case "dot":
				file, text = DOTFile(name), depgraph.ExportDOT(g)
			case "mermaid":
				file, text = MermaidFile(name), depgraph.ExportMermaid(g)
			default:
				return written, fmt.Errorf("unknown drawing %q", d)
			}
			if err := r.write(rep, file, func(path string) error {
				return graphio.WriteFileAtomic(path, func(w io.Writer) error {
					_, err := io.WriteString(w, text)
					return err
				})
			}); err != nil {
				return written, err
			}
			written++
		}
		return written, nil
	})
	return rep, err
}

// Export dumps the graph's node and edge records to nodes_<name>.csv and
// edges_<name>.csv. With fromCommunities the node list is the one written by
// a previous Communities run.
func (r *Runner) Export(ctx context.Context, name string, fromCommunities bool) (rep *metrics.RunMetrics, err error) {
	name = r.name(name)
	rep = metrics.New("export", name)
	ctx, span := observability.StartRunSpan(ctx, "export", name)
	defer func() {
		observability.RecordError(span, err)
		span.End()
		rep.Finish(err)
	}()

	nodesPath := r.cfg.NodesPath()
	if fromCommunities {
		nodesPath = r.cfg.CommunitiesPath()
	}
	g, err := r.loadGraph(ctx, rep, nodesPath)
	if err != nil {
		return rep, err
	}
	observability.RecordGraphShape(span, len(g.Nodes()), len(g.Edges()), rep.Graph.Communities)

	err = r.stage(ctx, rep, "export csv", func(context.Context) (int, error) {
		return r.exportCSV(rep, name, g.NodeRecords(), g.EdgeRecords())
	})
	return rep, err
}

// Stats loads and builds the graph and summarises it.
func (r *Runner) Stats(ctx context.Context) (stats depgraph.GraphStats, rep *metrics.RunMetrics, err error) {
	rep = metrics.New("stats", r.cfg.Project)
	ctx, span := observability.StartRunSpan(ctx, "stats", r.cfg.Project)
	defer func() {
		observability.RecordError(span, err)
		span.End()
		rep.Finish(err)
	}()

	g, err := r.loadGraph(ctx, rep, r.cfg.NodesPath())
	if err != nil {
		return stats, rep, err
	}
	stats = depgraph.ComputeStats(g, r.cfg.Graph.Separator)
	observability.RecordGraphShape(span, stats.TotalNodes, stats.TotalEdges, stats.Communities)
	return stats, rep, nil
}

func (r *Runner) name(name string) string {
	if strings.TrimSpace(name) == "" {
		return r.cfg.Project
	}
	return name
}

// stage runs fn inside a span, records it in the report and prefixes any
// error with the stage name.
func (r *Runner) stage(ctx context.Context, rep *metrics.RunMetrics, name string, fn func(context.Context) (int, error)) error {
	ctx, span := observability.StartStageSpan(ctx, name)
	defer span.End()

	r.logger.Debug("stage started", "stage", name)
	start := time.Now()
	items, err := fn(ctx)
	elapsed := time.Since(start)

	rep.AddStage(name, elapsed, items, err)
	observability.RecordStageResult(span, items, err)
	if err != nil {
		r.logger.Error("stage failed", "stage", name, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	r.logger.Info("stage finished", "stage", name, "items", items, "duration", elapsed.Round(time.Millisecond))
	return nil
}

func (r *Runner) loadGraph(ctx context.Context, rep *metrics.RunMetrics, nodesPath string) (*depgraph.Graph, error) {
	var nodes, links []*graphio.Record
	err := r.stage(ctx, rep, "load nodes", func(context.Context) (int, error) {
		var err error
		nodes, err = graphio.ReadRecords(nodesPath)
		return len(nodes), err
	})
	if err != nil {
		return nil, err
	}
	err = r.stage(ctx, rep, "load links", func(context.Context) (int, error) {
		var err error
		links, err = graphio.ReadRecords(r.cfg.LinksPath())
		return len(links), err
	})
	if err != nil {
		return nil, err
	}

	var g *depgraph.Graph
	err = r.stage(ctx, rep, "build graph", func(context.Context) (int, error) {
		var err error
		g, err = depgraph.Build(nodes, links, depgraph.BuildOptions{Dangling: r.cfg.DanglingPolicy()})
		if err != nil {
			return 0, err
		}
		for _, id := range g.Created() {
			r.logger.Warn("created stub node for dangling reference", "id", id)
		}
		return len(g.Nodes()), nil
	})
	if err != nil {
		return nil, err
	}

	s := depgraph.ComputeStats(g, r.cfg.Graph.Separator)
	rep.Graph = metrics.GraphMetrics{
		Nodes:       s.TotalNodes,
		Edges:       s.TotalEdges,
		Files:       s.FileCount,
		Symbols:     s.SymbolCount,
		Stubs:       s.StubCount,
		Communities: s.Communities,
	}
	if s.StubCount > 0 {
		rep.Warn("%d stub nodes created for dangling references", s.StubCount)
	}
	return g, nil
}

func (r *Runner) exportCSV(rep *metrics.RunMetrics, name string, nodes, edges []*graphio.Record) (int, error) {
	if err := r.write(rep, NodesCSVFile(name), func(path string) error {
		return export.NodesCSV(path, nodes)
	}); err != nil {
		return 0, err
	}
	if err := r.write(rep, EdgesCSVFile(name), func(path string) error {
		return export.EdgesCSV(path, edges)
	}); err != nil {
		return 1, err
	}
	return 2, nil
}

// write resolves file in the output directory, writes it and records it.
func (r *Runner) write(rep *metrics.RunMetrics, file string, fn func(path string) error) error {
	path := r.cfg.OutputPath(file)
	if err := fn(path); err != nil {
		return err
	}
	rep.AddOutput(path)
	r.logger.Debug("wrote output", "path", path)
	return nil
}

func (r *Runner) drawCharts(rep *metrics.RunMetrics, name string, t *centrality.Table, files, symbols *ranking.Ranked) (int, error) {
	cc := r.cfg.Chart
	switch {
	case !cc.Enabled:
		r.logger.Info("charts disabled")
		return 0, nil
	case cc.Top == 0:
		r.logger.Info("charts skipped", "reason", "chart.top is 0")
		return 0, nil
	case !slices.Contains(r.cfg.Centrality.Metrics, cc.Metric):
		r.logger.Warn("charts skipped", "reason", "metric not computed", "metric", cc.Metric)
		return 0, nil
	}

	label := metricLabel(cc.Metric)
	drawn := 0
	for _, c := range []struct {
		ranked *ranking.Ranked
		file   string
		noun   string
		fill   color.Color
	}{
		{symbols, TopNodesChart(name), "Nodes", chart.SkyBlue},
		{files, TopFilesChart(name), "Files", chart.LightGreen},
	} {
		bars := topBars(t, c.ranked.IDs(), cc.Metric, cc.Top)
		if len(bars) == 0 {
			r.logger.Info("chart skipped", "reason", "empty partition", "partition", c.ranked.Partition.String())
			continue
		}
		title := fmt.Sprintf("Top %d %s by %s", len(bars), c.noun, label)
		if err := r.write(rep, c.file, func(path string) error {
			return chart.TopBars(path, title, label, bars, c.fill)
		}); err != nil {
			return drawn, err
		}
		drawn++
	}
	return drawn, nil
}

// topBars picks the n highest raw scores of metric among ids.
func topBars(t *centrality.Table, ids []string, metric string, n int) []chart.Bar {
	bars := make([]chart.Bar, 0, len(ids))
	for _, id := range ids {
		v, ok := t.Value(metric, id)
		if !ok {
			continue
		}
		bars = append(bars, chart.Bar{Label: id, Value: v})
	}
	slices.SortFunc(bars, func(a, b chart.Bar) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	if len(bars) > n {
		bars = bars[:n]
	}
	return bars
}

func metricLabel(metric string) string {
	switch metric {
	case centrality.PageRank:
		return "PageRank"
	case centrality.Hubs:
		return "Hub Score"
	case centrality.Authorities:
		return "Authority Score"
	}
	return strings.ToUpper(metric[:1]) + metric[1:] + " Centrality"
}

// storedLabels returns the community labels carried by the node records when
// every node has one.
func storedLabels(g *depgraph.Graph) (centrality.Labels, bool) {
	if len(g.Nodes()) == 0 {
		return nil, false
	}
	labels := make(centrality.Labels, len(g.Nodes()))
	for _, n := range g.Nodes() {
		c, ok := n.Community()
		if !ok || c < 0 {
			return nil, false
		}
		labels[n.ID] = c
	}
	return labels, true
}

// tracedProvider wraps a provider in a metric span.
type tracedProvider struct {
	centrality.Provider
	logger *slog.Logger
}

func (p tracedProvider) Compute(ctx context.Context, g *depgraph.Graph) (centrality.Scores, error) {
	ctx, span := observability.StartMetricSpan(ctx, p.Name(), len(g.Nodes()))
	defer span.End()

	start := time.Now()
	scores, err := p.Provider.Compute(ctx, g)
	observability.RecordError(span, err)
	p.logger.Debug("metric computed", "metric", p.Name(), "duration", time.Since(start).Round(time.Microsecond))
	return scores, err
}

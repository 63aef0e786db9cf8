package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/graphrank/internal/config"
	"github.com/efebarandurmaz/graphrank/internal/depgraph"
	"github.com/efebarandurmaz/graphrank/internal/metrics"
	"github.com/efebarandurmaz/graphrank/internal/observability"
	"github.com/efebarandurmaz/graphrank/internal/pipeline"
)

var version = "0.1.0"

// options holds the persistent flags shared by every subcommand.
type options struct {
	configPath string
	inputDir   string
	outputDir  string
	dangling   string
	jsonReport bool
}

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:           "graphrank",
		Short:         "Rank the files and symbols of a code-dependency graph by centrality",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&opts.inputDir, "input", "", "Directory holding nodes.json and links.json")
	rootCmd.PersistentFlags().StringVar(&opts.outputDir, "output", "", "Output directory")
	rootCmd.PersistentFlags().StringVar(&opts.dangling, "dangling", "", "Dangling edge policy: reject or create")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonReport, "json", false, "Print the run report as JSON")

	centralityCmd := &cobra.Command{
		Use:   "centrality [name]",
		Short: "Compute centrality metrics and write the ranked files and symbols",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, func(ctx context.Context, r *pipeline.Runner) (*metrics.RunMetrics, error) {
				return r.Centrality(ctx, nameArg(args))
			})
		},
	}

	communitiesCmd := &cobra.Command{
		Use:   "communities [name]",
		Short: "Detect Louvain communities and write the labelled node list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, func(ctx context.Context, r *pipeline.Runner) (*metrics.RunMetrics, error) {
				return r.Communities(ctx, nameArg(args))
			})
		},
	}

	var fromCommunities bool
	exportCmd := &cobra.Command{
		Use:   "export [name]",
		Short: "Dump nodes and edges to nodes_<name>.csv and edges_<name>.csv",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, func(ctx context.Context, r *pipeline.Runner) (*metrics.RunMetrics, error) {
				return r.Export(ctx, nameArg(args), fromCommunities)
			})
		},
	}
	exportCmd.Flags().BoolVar(&fromCommunities, "from-communities", false, "Read nodes from the communities output instead of nodes.json")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print graph statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, func(ctx context.Context, r *pipeline.Runner) (*metrics.RunMetrics, error) {
				stats, rep, err := r.Stats(ctx)
				if err != nil {
					return rep, err
				}
				if opts.jsonReport {
					return rep, printJSON(os.Stdout, stats)
				}
				fmt.Print(depgraph.FormatStats(stats))
				return rep, nil
			})
		},
	}

	rootCmd.AddCommand(centralityCmd, communitiesCmd, exportCmd, statsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "graphrank: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func nameArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.inputDir != "" {
		cfg.Input.Dir = opts.inputDir
	}
	if opts.outputDir != "" {
		cfg.Output.Dir = opts.outputDir
	}
	if opts.dangling != "" {
		cfg.Graph.Dangling = opts.dangling
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, opts options, fn func(context.Context, *pipeline.Runner) (*metrics.RunMetrics, error)) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings() {
		logger.Warn("config", "warning", w)
	}

	tracing, err := observability.InitTracing(ctx, cfg.Tracing, version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	rep, runErr := fn(ctx, pipeline.New(cfg, logger))
	if rep != nil {
		if opts.jsonReport {
			if err := printJSON(os.Stderr, rep); err != nil {
				return err
			}
		} else {
			rep.PrintSummary(os.Stderr)
		}
	}
	return runErr
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

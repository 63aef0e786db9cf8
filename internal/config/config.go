package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/efebarandurmaz/graphrank/internal/centrality"
	"github.com/efebarandurmaz/graphrank/internal/depgraph"
)

// EnvPrefix prefixes environment overrides, e.g. GRAPHRANK_INPUT_DIR.
const EnvPrefix = "GRAPHRANK"

// Config holds all application configuration.
type Config struct {
	Project    string           `mapstructure:"project"`
	Input      InputConfig      `mapstructure:"input"`
	Output     OutputConfig     `mapstructure:"output"`
	Graph      GraphConfig      `mapstructure:"graph"`
	Centrality CentralityConfig `mapstructure:"centrality"`
	Community  CommunityConfig  `mapstructure:"community"`
	Chart      ChartConfig      `mapstructure:"chart"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

type InputConfig struct {
	Dir   string `mapstructure:"dir"`
	Nodes string `mapstructure:"nodes"`
	Links string `mapstructure:"links"`
}

type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	Communities string `mapstructure:"communities"`
	// Drawings lists the graph drawings written by the communities run:
	// "dot", "mermaid".
	Drawings []string `mapstructure:"drawings"`
}

type GraphConfig struct {
	// Dangling is the policy for edges naming unknown nodes: reject | create.
	Dangling  string `mapstructure:"dangling"`
	Separator string `mapstructure:"separator"`
}

type CentralityConfig struct {
	Metrics   []string `mapstructure:"metrics"`
	Damping   float64  `mapstructure:"damping"`
	Tolerance float64  `mapstructure:"tolerance"`
}

type CommunityConfig struct {
	Resolution float64 `mapstructure:"resolution"`
	Seed       uint64  `mapstructure:"seed"`
}

type ChartConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Metric  string `mapstructure:"metric"`
	Top     int    `mapstructure:"top"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

func setDefaults(v *viper.Viper) {
	params := centrality.DefaultParams()
	v.SetDefault("project", "codebase")
	v.SetDefault("input.dir", ".")
	v.SetDefault("input.nodes", "nodes.json")
	v.SetDefault("input.links", "links.json")
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.communities", "nodesCommunities.json")
	v.SetDefault("output.drawings", []string{"dot", "mermaid"})
	v.SetDefault("graph.dangling", string(depgraph.DanglingReject))
	v.SetDefault("graph.separator", ":")
	v.SetDefault("centrality.metrics", centrality.Names())
	v.SetDefault("centrality.damping", params.Damping)
	v.SetDefault("centrality.tolerance", params.Tolerance)
	v.SetDefault("community.resolution", 1.0)
	v.SetDefault("community.seed", 1)
	v.SetDefault("chart.enabled", true)
	v.SetDefault("chart.metric", centrality.Eigenvector)
	v.SetDefault("chart.top", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("tracing.sample_rate", 1.0)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load reads configuration from file and environment. An empty path uses
// defaults and environment only.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// Validate checks settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Project) == "" {
		errs = append(errs, errors.New("project must not be empty"))
	}
	if c.Graph.Separator == "" {
		errs = append(errs, errors.New("graph.separator must not be empty"))
	}
	if _, err := depgraph.ParseDanglingPolicy(c.Graph.Dangling); err != nil {
		errs = append(errs, fmt.Errorf("graph.dangling: %w", err))
	}
	if len(c.Centrality.Metrics) == 0 {
		errs = append(errs, errors.New("centrality.metrics must list at least one metric"))
	}
	seen := make(map[string]bool)
	for _, m := range c.Centrality.Metrics {
		if !slices.Contains(centrality.Names(), m) {
			errs = append(errs, fmt.Errorf("centrality.metrics: unknown metric %q", m))
		}
		if seen[m] {
			errs = append(errs, fmt.Errorf("centrality.metrics: %q listed twice", m))
		}
		seen[m] = true
	}
	if c.Centrality.Damping <= 0 || c.Centrality.Damping >= 1 {
		errs = append(errs, fmt.Errorf("centrality.damping %.2f must be in (0, 1)", c.Centrality.Damping))
	}
	if c.Centrality.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("centrality.tolerance %g must be positive", c.Centrality.Tolerance))
	}
	if c.Community.Resolution <= 0 {
		errs = append(errs, fmt.Errorf("community.resolution %g must be positive", c.Community.Resolution))
	}
	for _, d := range c.Output.Drawings {
		if d != "dot" && d != "mermaid" {
			errs = append(errs, fmt.Errorf("output.drawings: unknown drawing %q", d))
		}
	}
	if f := strings.ToLower(c.Log.Format); f != "" && f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Chart.Top < 0 {
		errs = append(errs, fmt.Errorf("chart.top %d is negative", c.Chart.Top))
	}

	return errors.Join(errs...)
}

// Warnings returns settings that are valid but probably unintended.
func (c *Config) Warnings() []string {
	var warnings []string

	if c.Chart.Enabled && !slices.Contains(c.Centrality.Metrics, c.Chart.Metric) {
		warnings = append(warnings, fmt.Sprintf("chart.metric %q is not computed; charts will be skipped", c.Chart.Metric))
	}
	if c.Chart.Enabled && c.Chart.Top == 0 {
		warnings = append(warnings, "chart.top is 0; charts will be skipped")
	}
	if c.Graph.Dangling == string(depgraph.DanglingCreate) {
		warnings = append(warnings, "graph.dangling=create adds attribute-less nodes for unknown edge endpoints")
	}

	return warnings
}

// Params returns the provider parameters.
func (c *Config) Params() centrality.Params {
	return centrality.Params{Damping: c.Centrality.Damping, Tolerance: c.Centrality.Tolerance}
}

// DanglingPolicy returns the parsed dangling reference policy.
func (c *Config) DanglingPolicy() depgraph.DanglingPolicy {
	p, _ := depgraph.ParseDanglingPolicy(c.Graph.Dangling)
	return p
}

// NodesPath is the node list location.
func (c *Config) NodesPath() string { return filepath.Join(c.Input.Dir, c.Input.Nodes) }

// LinksPath is the edge list location.
func (c *Config) LinksPath() string { return filepath.Join(c.Input.Dir, c.Input.Links) }

// CommunitiesPath is where the communities run stores its enriched node list.
func (c *Config) CommunitiesPath() string {
	return filepath.Join(c.Output.Dir, c.Output.Communities)
}

// OutputPath places a generated file in the output directory.
func (c *Config) OutputPath(name string) string { return filepath.Join(c.Output.Dir, name) }

// Package metrics collects the run report printed after each command.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// RunMetrics collects statistics for one command run.
type RunMetrics struct {
	Command    string         `json:"command"`
	Project    string         `json:"project"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
	Duration   time.Duration  `json:"duration_ms,omitempty"`
	Graph      GraphMetrics   `json:"graph"`
	Stages     []StageMetrics `json:"stages"`
	Outputs    []OutputFile   `json:"outputs"`
	Warnings   []string       `json:"warnings,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
}

type GraphMetrics struct {
	Nodes       int `json:"nodes"`
	Edges       int `json:"edges"`
	Files       int `json:"files"`
	Symbols     int `json:"symbols"`
	Stubs       int `json:"stubs"`
	Communities int `json:"communities"`
}

type StageMetrics struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ms"`
	Items    int           `json:"items"`
	Error    string        `json:"error,omitempty"`
}

type OutputFile struct {
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

// New starts tracking a run.
func New(command, project string) *RunMetrics {
	return &RunMetrics{Command: command, Project: project, StartedAt: time.Now()}
}

// AddStage records a single stage's timing and outcome.
func (m *RunMetrics) AddStage(name string, d time.Duration, items int, err error) {
	s := StageMetrics{Name: name, Duration: d, Items: items}
	if err != nil {
		s.Error = err.Error()
	}
	m.Stages = append(m.Stages, s)
}

// AddOutput records a written file; its size is read from disk.
func (m *RunMetrics) AddOutput(path string) {
	var size int64
	if fi, err := os.Stat(path); err == nil {
		size = fi.Size()
	}
	m.Outputs = append(m.Outputs, OutputFile{Path: path, Bytes: size})
}

// Warn records a recoverable condition.
func (m *RunMetrics) Warn(format string, args ...any) {
	m.Warnings = append(m.Warnings, fmt.Sprintf(format, args...))
}

// Finish marks the run as complete.
func (m *RunMetrics) Finish(err error) {
	m.FinishedAt = time.Now()
	m.Duration = m.FinishedAt.Sub(m.StartedAt)
	if err != nil {
		m.Errors = append(m.Errors, err.Error())
	}
}

// Failed reports whether any error was recorded.
func (m *RunMetrics) Failed() bool { return len(m.Errors) > 0 }

// PrintSummary writes a human-readable summary.
func (m *RunMetrics) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║         GRAPHRANK RUN REPORT         ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Command:     %-23s║\n", m.Command)
	fmt.Fprintf(w, "║ Project:     %-23s║\n", m.Project)
	fmt.Fprintf(w, "║ Duration:    %-23s║\n", m.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ GRAPH\n")
	fmt.Fprintf(w, "║   Nodes:       %d (%d files, %d symbols)\n", m.Graph.Nodes, m.Graph.Files, m.Graph.Symbols)
	fmt.Fprintf(w, "║   Edges:       %d\n", m.Graph.Edges)
	if m.Graph.Stubs > 0 {
		fmt.Fprintf(w, "║   Stubs:       %d\n", m.Graph.Stubs)
	}
	if m.Graph.Communities > 0 {
		fmt.Fprintf(w, "║   Communities: %d\n", m.Graph.Communities)
	}
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ STAGES\n")
	for _, s := range m.Stages {
		status := "OK"
		if s.Error != "" {
			status = "FAILED"
		}
		fmt.Fprintf(w, "║   %-14s %8s  %6d  %s\n", s.Name, s.Duration.Round(time.Millisecond), s.Items, status)
	}
	if len(m.Outputs) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ OUTPUTS\n")
		for _, o := range m.Outputs {
			fmt.Fprintf(w, "║   %s (%s)\n", o.Path, formatBytes(o.Bytes))
		}
	}
	if len(m.Warnings) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ WARNINGS\n")
		for _, e := range m.Warnings {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	if len(m.Errors) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ ERRORS\n")
		for _, e := range m.Errors {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the report as formatted JSON.
func (m *RunMetrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

package centrality

import (
	"context"
	"fmt"
	"math"

	"github.com/efebarandurmaz/graphrank/internal/depgraph"
)

// MetricError reports a provider result that cannot be attached.
type MetricError struct {
	Metric string
	Node   string
	Reason string
}

func (e *MetricError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("metric %s: %s", e.Metric, e.Reason)
	}
	return fmt.Sprintf("metric %s: node %q: %s", e.Metric, e.Node, e.Reason)
}

// Column describes one table column. Categorical columns hold labels rather
// than magnitudes and are never normalised or summed.
type Column struct {
	Name        string
	Categorical bool
}

// Table holds one row per node and one column per metric.
type Table struct {
	ids   []string
	index map[string]int
	cols  []Column
	data  [][]float64
}

// NewTable creates an empty table over ids, in that row order.
func NewTable(ids []string) *Table {
	t := &Table{
		ids:   append([]string(nil), ids...),
		index: make(map[string]int, len(ids)),
	}
	for i, id := range ids {
		t.index[id] = i
	}
	return t
}

// IDs returns the row ids.
func (t *Table) IDs() []string { return t.ids }

// Columns returns the column descriptors in insertion order.
func (t *Table) Columns() []Column { return t.cols }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.ids) }

// Value returns the cell for column name and row id.
func (t *Table) Value(name, id string) (float64, bool) {
	ci := t.columnIndex(name)
	ri, ok := t.index[id]
	if ci < 0 || !ok {
		return 0, false
	}
	return t.data[ci][ri], true
}

// Row returns the values of row id aligned with Columns().
func (t *Table) Row(id string) ([]float64, bool) {
	ri, ok := t.index[id]
	if !ok {
		return nil, false
	}
	row := make([]float64, len(t.cols))
	for ci := range t.cols {
		row[ci] = t.data[ci][ri]
	}
	return row, true
}

// Add appends a magnitude column. Every row must be scored with a finite
// value and no unknown ids may appear.
func (t *Table) Add(name string, scores Scores) error {
	if t.columnIndex(name) >= 0 {
		return &MetricError{Metric: name, Reason: "column already attached"}
	}
	for id := range scores {
		if _, ok := t.index[id]; !ok {
			return &MetricError{Metric: name, Node: id, Reason: "score for unknown node"}
		}
	}
	col := make([]float64, len(t.ids))
	for i, id := range t.ids {
		v, ok := scores[id]
		if !ok {
			return &MetricError{Metric: name, Node: id, Reason: "missing score"}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &MetricError{Metric: name, Node: id, Reason: fmt.Sprintf("non-finite score %v", v)}
		}
		col[i] = v
	}
	t.cols = append(t.cols, Column{Name: name})
	t.data = append(t.data, col)
	return nil
}

// AddLabels appends a categorical column.
func (t *Table) AddLabels(name string, labels Labels) error {
	if t.columnIndex(name) >= 0 {
		return &MetricError{Metric: name, Reason: "column already attached"}
	}
	col := make([]float64, len(t.ids))
	for i, id := range t.ids {
		c, ok := labels[id]
		if !ok {
			return &MetricError{Metric: name, Node: id, Reason: "missing label"}
		}
		col[i] = float64(c)
	}
	for id := range labels {
		if _, ok := t.index[id]; !ok {
			return &MetricError{Metric: name, Node: id, Reason: "label for unknown node"}
		}
	}
	t.cols = append(t.cols, Column{Name: name, Categorical: true})
	t.data = append(t.data, col)
	return nil
}

func (t *Table) columnIndex(name string) int {
	for i, c := range t.cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Attach runs every provider over g and collects the results into a table
// whose rows follow the graph's node order.
func Attach(ctx context.Context, g *depgraph.Graph, providers ...Provider) (*Table, error) {
	t := NewTable(g.IDs())
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scores, err := p.Compute(ctx, g)
		if err != nil {
			return nil, fmt.Errorf("compute %s: %w", p.Name(), err)
		}
		if err := t.Add(p.Name(), scores); err != nil {
			return nil, err
		}
	}
	return t, nil
}

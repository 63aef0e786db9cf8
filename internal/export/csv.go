// Package export writes graphs, centrality tables and rankings as
// comma-separated files. Each file is replaced atomically; a failure on one
// file leaves files written earlier in place.
package export

import (
	"encoding/csv"
	"io"
	"slices"
	"strconv"

	"github.com/efebarandurmaz/graphrank/internal/centrality"
	"github.com/efebarandurmaz/graphrank/internal/depgraph"
	"github.com/efebarandurmaz/graphrank/internal/graphio"
	"github.com/efebarandurmaz/graphrank/internal/ranking"
)

// Column names added by the exporter.
const (
	FullNameColumn = "full_name"
	IndexColumn    = "Node"
)

// NodesCSV writes node records with a full_name column equal to id.
func NodesCSV(path string, records []*graphio.Record) error {
	return writeRecords(path, records, true)
}

// EdgesCSV writes edge records.
func EdgesCSV(path string, records []*graphio.Record) error {
	return writeRecords(path, records, false)
}

// TableCSV writes a centrality table indexed by node id.
func TableCSV(path string, t *centrality.Table) error {
	return graphio.WriteFileAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		header := []string{IndexColumn}
		for _, c := range t.Columns() {
			header = append(header, c.Name)
		}
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, id := range t.IDs() {
			row, _ := t.Row(id)
			if err := cw.Write(append([]string{id}, formatRow(t.Columns(), row)...)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// RankedCSV writes one ranked partition indexed by node id, in rank order.
func RankedCSV(path string, r *ranking.Ranked) error {
	return graphio.WriteFileAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		header := []string{IndexColumn}
		for _, c := range r.Columns {
			header = append(header, c.Name)
		}
		header = append(header, ranking.CombinedScore)
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, row := range r.Rows {
			rec := append([]string{row.ID}, formatRow(r.Columns, row.Values)...)
			rec = append(rec, formatFloat(row.Combined))
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// Columns returns the union of record keys in first-appearance order.
func Columns(records []*graphio.Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range records {
		for _, k := range r.Keys() {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

func writeRecords(path string, records []*graphio.Record, fullName bool) error {
	cols := Columns(records)
	header := cols
	// An existing full_name column keeps its position and is overwritten.
	if fullName && !slices.Contains(cols, FullNameColumn) {
		header = append(slices.Clone(cols), FullNameColumn)
	}
	return graphio.WriteFileAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, r := range records {
			row := make([]string, 0, len(header))
			for _, k := range header {
				if fullName && k == FullNameColumn {
					k = depgraph.FieldID
				}
				v, _ := r.Get(k)
				row = append(row, graphio.FormatValue(v))
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func formatRow(cols []centrality.Column, values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if cols[i].Categorical {
			out[i] = strconv.Itoa(int(v))
		} else {
			out[i] = formatFloat(v)
		}
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

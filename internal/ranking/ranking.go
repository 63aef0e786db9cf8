// Package ranking turns a centrality table into per-partition rankings: file
// nodes and symbol nodes are normalised and ordered independently.
package ranking

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/efebarandurmaz/graphrank/internal/centrality"
	"github.com/efebarandurmaz/graphrank/internal/depgraph"
)

// DefaultSeparator splits "file:symbol" identifiers.
const DefaultSeparator = ":"

// CombinedScore is the name of the derived ranking column.
const CombinedScore = "combined_score"

// Partition is the normalisation scope of a node.
type Partition int

const (
	Files Partition = iota
	Symbols
)

func (p Partition) String() string {
	if p == Symbols {
		return "symbols"
	}
	return "files"
}

// Classify places id in Symbols iff it contains sep.
func Classify(id, sep string) Partition {
	if depgraph.IsSymbol(id, sep) {
		return Symbols
	}
	return Files
}

// Split partitions ids preserving their order. Every id lands in exactly one
// of the two slices.
func Split(ids []string, sep string) (files, symbols []string) {
	for _, id := range ids {
		if Classify(id, sep) == Symbols {
			symbols = append(symbols, id)
		} else {
			files = append(files, id)
		}
	}
	return files, symbols
}

// Row is one ranked node. Values are aligned with Ranked.Columns.
type Row struct {
	ID       string
	Values   []float64
	Combined float64
}

// Ranked is the normalised, sorted table of one partition.
type Ranked struct {
	Partition Partition
	Columns   []centrality.Column
	Rows      []Row
	// Degenerate lists magnitude columns with no spread in this partition;
	// their normalised values are all zero.
	Degenerate []string
}

// IDs returns row ids in rank order.
func (r *Ranked) IDs() []string {
	ids := make([]string, len(r.Rows))
	for i, row := range r.Rows {
		ids[i] = row.ID
	}
	return ids
}

// Normalizer ranks a centrality table.
type Normalizer struct {
	Separator string
}

// Rank splits the table by partition, min-max normalises each magnitude
// column within each partition, sums the normalised values into the combined
// score and sorts by score descending, then id ascending.
func (n Normalizer) Rank(t *centrality.Table) (files, symbols *Ranked, err error) {
	sep := n.Separator
	if sep == "" {
		return nil, nil, fmt.Errorf("ranking: empty partition separator")
	}
	fileIDs, symbolIDs := Split(t.IDs(), sep)
	if files, err = rankPartition(t, Files, fileIDs); err != nil {
		return nil, nil, err
	}
	if symbols, err = rankPartition(t, Symbols, symbolIDs); err != nil {
		return nil, nil, err
	}
	return files, symbols, nil
}

func rankPartition(t *centrality.Table, p Partition, ids []string) (*Ranked, error) {
	cols := t.Columns()
	r := &Ranked{
		Partition: p,
		Columns:   cols,
		Rows:      make([]Row, len(ids)),
	}
	for i, id := range ids {
		values, ok := t.Row(id)
		if !ok {
			return nil, fmt.Errorf("ranking: node %q missing from table", id)
		}
		r.Rows[i] = Row{ID: id, Values: values}
	}

	for ci, col := range cols {
		if col.Categorical {
			continue
		}
		if !normalizeColumn(r.Rows, ci) {
			r.Degenerate = append(r.Degenerate, col.Name)
		}
	}

	for i := range r.Rows {
		var sum float64
		for ci, col := range cols {
			if !col.Categorical {
				sum += r.Rows[i].Values[ci]
			}
		}
		r.Rows[i].Combined = sum
	}

	slices.SortFunc(r.Rows, func(a, b Row) int {
		if c := cmp.Compare(b.Combined, a.Combined); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return r, nil
}

// flatTolerance is the relative spread below which a column counts as
// constant. Iterative scores carry rounding noise well under it.
const flatTolerance = 1e-9

// normalizeColumn rescales column ci to [0,1] in place. It returns false and
// zeroes the column when max and min agree within flatTolerance.
func normalizeColumn(rows []Row, ci int) bool {
	if len(rows) == 0 {
		return false
	}
	lo, hi := rows[0].Values[ci], rows[0].Values[ci]
	for _, row := range rows[1:] {
		lo = min(lo, row.Values[ci])
		hi = max(hi, row.Values[ci])
	}

	span := hi - lo
	if span <= flatTolerance*max(1, math.Abs(lo), math.Abs(hi)) {
		for i := range rows {
			rows[i].Values[ci] = 0
		}
		return false
	}
	for i := range rows {
		rows[i].Values[ci] = (rows[i].Values[ci] - lo) / span
	}
	return true
}

// Package matrix assembles dense adjacency matrices from connectivity maps.
package matrix

import (
	"errors"

	"github.com/GrantMcConachie/FlyWireInitialScrape/internal/connectivity"
)

// ErrEmptyMatrix indicates an all-zero matrix, which cannot be normalized.
var ErrEmptyMatrix = errors.New("matrix has no nonzero cells")

// Matrix is a dense 2D weight grid between two ordered neuron sets.
// Rows follow the upstream map's key order, columns the downstream
// map's. Data[i][j] is the synapse count of the connection from
// RowIDs[i] to ColIDs[j], or zero if none is representable.
type Matrix struct {
	RowIDs []string
	ColIDs []string
	Data   [][]float64
}

// Options control matrix assembly.
type Options struct {
	// SumDuplicates aggregates parallel connections between the same
	// (row, col) pair by summing their weights. When false, the last
	// recorded connection wins, matching the historical behavior of
	// dense assignment.
	SumDuplicates bool
}

// Build assembles the adjacency matrix between two connectivity maps.
// Passing the same map twice yields the within-area matrix. Connections
// whose target is not a key of the downstream map are skipped.
func Build(up, down *connectivity.Map, opts Options) *Matrix {
	rowIDs := up.Keys()
	colIDs := down.Keys()

	colIndex := make(map[string]int, len(colIDs))
	for j, id := range colIDs {
		colIndex[id] = j
	}

	data := make([][]float64, len(rowIDs))
	for i := range data {
		data[i] = make([]float64, len(colIDs))
	}

	for i, rowID := range rowIDs {
		entry, ok := up.Entry(rowID)
		if !ok {
			continue
		}
		for k, target := range entry.Downstream {
			j, ok := colIndex[connectivity.CanonicalID(target)]
			if !ok {
				continue
			}
			w := float64(entry.Strength[k])
			if opts.SumDuplicates {
				data[i][j] += w
			} else {
				data[i][j] = w
			}
		}
	}

	return &Matrix{RowIDs: rowIDs, ColIDs: colIDs, Data: data}
}

// Rows returns the row count.
func (m *Matrix) Rows() int { return len(m.RowIDs) }

// Cols returns the column count.
func (m *Matrix) Cols() int { return len(m.ColIDs) }

// Max returns the largest cell value, or zero for an empty matrix.
func (m *Matrix) Max() float64 {
	max := 0.0
	for _, row := range m.Data {
		for _, v := range row {
			if v > max {
				max = v
			}
		}
	}
	return max
}

// Normalize scales every cell so the global maximum becomes exactly 1.
// An all-zero (or zero-sized) matrix returns ErrEmptyMatrix instead of
// producing NaNs.
func (m *Matrix) Normalize() error {
	max := m.Max()
	if max == 0 {
		return ErrEmptyMatrix
	}
	for _, row := range m.Data {
		for j := range row {
			row[j] /= max
		}
	}
	return nil
}

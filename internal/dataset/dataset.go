// Package dataset loads the connectome's tabular input files.
//
// Two tables are expected, matching the FlyWire Codex export format:
// a classification table (root_id, class) and a connections table
// (pre_root_id, post_root_id, syn_count, nt_type). Both are whole-file
// reads; the dumps ship compressed, so .zst and .gz inputs are
// decompressed transparently.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// ErrMissingColumn indicates a required column is absent from a table header.
var ErrMissingColumn = errors.New("missing column")

// ClassRow is one row of the classification table.
type ClassRow struct {
	RootID uint64
	Class  string
}

// Classification holds the node/classification table in row order.
type Classification struct {
	Rows []ClassRow
}

// ConnRow is one row of the connections table.
type ConnRow struct {
	Pre      uint64
	Post     uint64
	SynCount int64
	NTType   string
}

// Connections holds the edge/connections table in row order.
type Connections struct {
	Rows []ConnRow
}

// LoadClassification reads the classification table from path.
// Required columns: root_id, class.
func LoadClassification(path string) (*Classification, error) {
	records, header, err := readTable(path)
	if err != nil {
		return nil, err
	}

	rootCol, err := findColumn(header, "root_id")
	if err != nil {
		return nil, err
	}
	classCol, err := findColumn(header, "class")
	if err != nil {
		return nil, err
	}

	table := &Classification{Rows: make([]ClassRow, 0, len(records))}
	for i, rec := range records {
		id, err := strconv.ParseUint(rec[rootCol], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing root_id %q: %w", i+2, rec[rootCol], err)
		}
		table.Rows = append(table.Rows, ClassRow{RootID: id, Class: rec[classCol]})
	}

	return table, nil
}

// LoadConnections reads the connections table from path.
// Required columns: pre_root_id, post_root_id, syn_count, nt_type.
func LoadConnections(path string) (*Connections, error) {
	records, header, err := readTable(path)
	if err != nil {
		return nil, err
	}

	preCol, err := findColumn(header, "pre_root_id")
	if err != nil {
		return nil, err
	}
	postCol, err := findColumn(header, "post_root_id")
	if err != nil {
		return nil, err
	}
	synCol, err := findColumn(header, "syn_count")
	if err != nil {
		return nil, err
	}
	ntCol, err := findColumn(header, "nt_type")
	if err != nil {
		return nil, err
	}

	table := &Connections{Rows: make([]ConnRow, 0, len(records))}
	for i, rec := range records {
		pre, err := strconv.ParseUint(rec[preCol], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing pre_root_id %q: %w", i+2, rec[preCol], err)
		}
		post, err := strconv.ParseUint(rec[postCol], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing post_root_id %q: %w", i+2, rec[postCol], err)
		}
		syn, err := strconv.ParseInt(rec[synCol], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing syn_count %q: %w", i+2, rec[synCol], err)
		}
		table.Rows = append(table.Rows, ConnRow{
			Pre:      pre,
			Post:     post,
			SynCount: syn,
			NTType:   rec[ntCol],
		})
	}

	return table, nil
}

// readTable opens path (decompressing if needed), parses it as CSV, and
// returns the data records plus the header row.
func readTable(path string) ([][]string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening table: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	switch {
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer dec.Close()
		r = dec
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	cr := csv.NewReader(r)
	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing csv %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("parsing csv %s: empty file", path)
	}

	return all[1:], all[0], nil
}

// findColumn returns the index of name in the header row.
func findColumn(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrMissingColumn, name)
}

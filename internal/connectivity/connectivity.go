// Package connectivity builds and persists per-neuron connectivity maps.
//
// A connectivity map records, for every neuron in a selected set, the
// downstream targets of its outgoing connections together with their
// synapse counts and neurotransmitter types. Maps are persisted as JSON
// objects keyed by the neuron's root id in canonical decimal form; the
// key order of the file is the map's iteration order, so a reloaded map
// walks its neurons in the same order it was built.
package connectivity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/GrantMcConachie/FlyWireInitialScrape/internal/dataset"
)

// ErrUnknownNeuron indicates a neuron id that is absent from the
// classification table.
var ErrUnknownNeuron = errors.New("unknown neuron")

// Entry holds the outgoing connections of one neuron as three parallel
// slices. Position i across all three refers to the same connection.
type Entry struct {
	Downstream []uint64 `json:"downstream"`
	Strength   []int64  `json:"strength"`
	Types      []string `json:"connection_type"`
}

// Map is an ordered mapping from canonical neuron id to its Entry.
// Iteration order is the insertion order of the keys, carried
// explicitly rather than left to map semantics.
type Map struct {
	order   []string
	entries map[string]*Entry
}

// CanonicalID converts a root id to its canonical string form.
// All map keys and all cross-file id comparisons use this form.
func CanonicalID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// New creates a map covering exactly the given ids, each with an empty
// entry. Duplicate ids collapse to a single entry at first position.
func New(ids []uint64) *Map {
	m := &Map{entries: make(map[string]*Entry, len(ids))}
	for _, id := range ids {
		key := CanonicalID(id)
		if _, ok := m.entries[key]; ok {
			continue
		}
		m.entries[key] = &Entry{
			Downstream: []uint64{},
			Strength:   []int64{},
			Types:      []string{},
		}
		m.order = append(m.order, key)
	}
	return m
}

// Keys returns the canonical ids in iteration order. The caller must
// not modify the returned slice.
func (m *Map) Keys() []string {
	return m.order
}

// Entry returns the entry for a canonical id key.
func (m *Map) Entry(key string) (*Entry, bool) {
	e, ok := m.entries[key]
	return e, ok
}

// Len returns the number of neurons in the map.
func (m *Map) Len() int {
	return len(m.order)
}

// TotalConnections returns the number of recorded connections across
// all entries.
func (m *Map) TotalConnections() int {
	n := 0
	for _, key := range m.order {
		n += len(m.entries[key].Downstream)
	}
	return n
}

// SelectByClass scans the classification table and returns the root ids
// of every row whose class exactly equals class, in table row order.
// No match yields an empty slice, not an error.
func SelectByClass(table *dataset.Classification, class string) []uint64 {
	var ids []uint64
	for _, row := range table.Rows {
		if row.Class == class {
			ids = append(ids, row.RootID)
		}
	}
	return ids
}

// Build walks the connections table once and records every connection
// whose source is in ids. Targets are recorded as-is whether or not
// they belong to the selected set. Every id gets an entry even with no
// outgoing connections. progress, if non-nil, is called periodically
// with (rows scanned, total rows); it has no effect on the result.
func Build(conns *dataset.Connections, ids []uint64, progress func(done, total int)) *Map {
	m := New(ids)
	total := len(conns.Rows)

	for i, row := range conns.Rows {
		if e, ok := m.entries[CanonicalID(row.Pre)]; ok {
			e.Downstream = append(e.Downstream, row.Post)
			e.Strength = append(e.Strength, row.SynCount)
			e.Types = append(e.Types, row.NTType)
		}
		if progress != nil && (i%100000 == 0 || i == total-1) {
			progress(i+1, total)
		}
	}

	return m
}

// DownstreamClasses returns the distinct classes of every downstream id
// referenced anywhere in the map, in first-seen order. A downstream id
// absent from the classification table is an ErrUnknownNeuron.
func DownstreamClasses(m *Map, table *dataset.Classification) ([]string, error) {
	// First occurrence wins, matching the table's row order.
	classByID := make(map[uint64]string, len(table.Rows))
	for _, row := range table.Rows {
		if _, ok := classByID[row.RootID]; !ok {
			classByID[row.RootID] = row.Class
		}
	}

	var classes []string
	seen := make(map[string]bool)
	for _, key := range m.order {
		for _, down := range m.entries[key].Downstream {
			class, ok := classByID[down]
			if !ok {
				return nil, fmt.Errorf("%w: downstream id %d not in classification table", ErrUnknownNeuron, down)
			}
			if !seen[class] {
				seen[class] = true
				classes = append(classes, class)
			}
		}
	}

	return classes, nil
}

// WriteFile persists the map as a JSON object whose key order matches
// the map's iteration order. The write is atomic (tmp + rename), and an
// existing file at path is replaced.
func (m *Map) WriteFile(path string) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range m.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return fmt.Errorf("marshaling key: %w", err)
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		entryJSON, err := json.Marshal(m.entries[key])
		if err != nil {
			return fmt.Errorf("marshaling entry %s: %w", key, err)
		}
		buf.Write(entryJSON)
	}
	buf.WriteByte('}')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing tmp map file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomic rename: %w", err)
	}

	return nil
}

// ReadFile loads a persisted map. Key order follows document order, so
// a round trip through WriteFile preserves iteration order.
func ReadFile(path string) (*Map, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map file: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(content))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing map file: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("parsing map file: expected object, got %v", tok)
	}

	m := &Map{entries: make(map[string]*Entry)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parsing map file: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("parsing map file: expected string key, got %v", tok)
		}

		var e Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("parsing entry %s: %w", key, err)
		}
		if len(e.Downstream) != len(e.Strength) || len(e.Strength) != len(e.Types) {
			return nil, fmt.Errorf("entry %s: parallel arrays have unequal lengths (%d/%d/%d)",
				key, len(e.Downstream), len(e.Strength), len(e.Types))
		}

		if _, exists := m.entries[key]; !exists {
			m.order = append(m.order, key)
		}
		m.entries[key] = &e
	}

	return m, nil
}

// Package memtable provides the reference in-memory foreign-data
// backend: a growable ordered slice of rows, scanned in insertion
// order, with linear-scan update and delete by row identity. It
// validates protocol correctness, not efficiency.
package memtable

import (
	"context"
	"fmt"
	"sync"

	"github.com/txn2/fdw-bridge/pkg/fdw"
)

// Recognized table options. Unrecognized options are ignored.
const (
	// OptionKeyColumn names the column carrying the row identity.
	// Defaults to the first declared column.
	OptionKeyColumn = "key_column"

	// OptionShared attaches the instance to a process-wide store keyed
	// by the qualified table name, so separate sessions observe the
	// same rows. Default is a private store per instance.
	OptionShared = "shared"
)

// store is the backing row storage. Private instances own one each;
// shared instances borrow a named one from the process-wide pool. The
// mutex is the sharing discipline for the shared case; a single
// instance's calls never interleave.
type store struct {
	mu   sync.Mutex
	rows []fdw.Row
}

var (
	sharedMu     sync.Mutex
	sharedStores = map[string]*store{}
)

func sharedStore(name string) *store {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	s, ok := sharedStores[name]
	if !ok {
		s = &store{}
		sharedStores[name] = s
	}
	return s
}

// Table is an in-memory ForeignData implementor. One instance exists
// per (table, session) pairing.
type Table struct {
	desc      *fdw.Descriptor
	keyColumn string
	store     *store
}

// New creates an in-memory backend for the described table.
func New(desc *fdw.Descriptor) (*Table, error) {
	key := desc.TableOptions.String(OptionKeyColumn, "")
	if key == "" {
		if len(desc.Columns) == 0 {
			return nil, fmt.Errorf("table %s declares no columns: %w", desc.QualifiedName(), fdw.ErrUnsupported)
		}
		key = desc.Columns[0].Name
	}
	if desc.ColumnIndex(key) < 0 {
		return nil, fmt.Errorf("key column %q not in %s: %w", key, desc.QualifiedName(), fdw.ErrUnsupported)
	}

	t := &Table{desc: desc, keyColumn: key}
	if desc.TableOptions.Bool(OptionShared, false) {
		t.store = sharedStore(desc.QualifiedName())
	} else {
		t.store = &store{}
	}
	return t, nil
}

// KeyColumns declares the single-column row identity.
func (t *Table) KeyColumns(_ *fdw.Descriptor) []string {
	return []string{t.keyColumn}
}

// BeginScan snapshots the current rows so the cursor replays a stable
// sequence across Rescan, even if the shared store changes mid-scan.
func (t *Table) BeginScan(_ context.Context, desc *fdw.Descriptor, preds []fdw.Predicate) (fdw.ScanCursor, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	snapshot := make([]fdw.Row, 0, len(t.store.rows))
	for _, row := range t.store.rows {
		if fdw.FilterRow(row, desc, preds) {
			snapshot = append(snapshot, row.Clone())
		}
	}
	return &cursor{rows: snapshot}, nil
}

// BeginModify starts a write sequence against the backing store.
func (t *Table) BeginModify(_ context.Context, _ *fdw.Descriptor) (fdw.Modifier, error) {
	return &modifier{table: t}, nil
}

// Close releases the instance. The backing store outlives shared
// instances; private stores die with the instance.
func (t *Table) Close() error {
	return nil
}

func (t *Table) keyIndex() int {
	return t.desc.ColumnIndex(t.keyColumn)
}

// findRow returns the position of the row whose key cell equals the
// identity, or -1. Caller holds the store lock.
func (t *Table) findRow(id fdw.RowIdentity) int {
	if len(id) != 1 {
		return -1
	}
	keyIdx := t.keyIndex()
	for i, row := range t.store.rows {
		if keyIdx < len(row) && row[keyIdx].Equal(id[0]) {
			return i
		}
	}
	return -1
}

// cursor iterates a point-in-time snapshot in insertion order.
type cursor struct {
	rows []fdw.Row
	pos  int
}

// Next returns the next snapshot row, or ok=false past the end.
func (c *cursor) Next() (fdw.Row, bool, error) {
	if c.pos >= len(c.rows) {
		return nil, false, nil
	}
	row := c.rows[c.pos]
	c.pos++
	return row.Clone(), true, nil
}

// Rescan rewinds to the start of the snapshot.
func (c *cursor) Rescan() error {
	c.pos = 0
	return nil
}

// Close drops the snapshot.
func (c *cursor) Close() error {
	c.rows = nil
	c.pos = 0
	return nil
}

// modifier applies writes directly to the backing store.
type modifier struct {
	table *Table
}

// Insert appends the row, enforcing key uniqueness.
func (m *modifier) Insert(row fdw.Row) error {
	t := m.table
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	keyIdx := t.keyIndex()
	if keyIdx >= len(row) {
		return fmt.Errorf("row shorter than schema of %s: %w", t.desc.QualifiedName(), fdw.ErrUnsupported)
	}
	key := row[keyIdx]
	if idx := t.findRow(fdw.RowIdentity{key}); idx >= 0 {
		return fmt.Errorf("duplicate key %s in %s: %w", key, t.desc.QualifiedName(), fdw.ErrConstraintViolation)
	}
	t.store.rows = append(t.store.rows, row.Clone())
	return nil
}

// Update replaces the identified row in place, keeping its position.
func (m *modifier) Update(id fdw.RowIdentity, newRow fdw.Row) error {
	t := m.table
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	idx := t.findRow(id)
	if idx < 0 {
		return fmt.Errorf("key %s in %s: %w", id, t.desc.QualifiedName(), fdw.ErrNotFound)
	}

	keyIdx := t.keyIndex()
	if keyIdx >= len(newRow) {
		return fmt.Errorf("row shorter than schema of %s: %w", t.desc.QualifiedName(), fdw.ErrUnsupported)
	}
	newKey := newRow[keyIdx]
	if other := t.findRow(fdw.RowIdentity{newKey}); other >= 0 && other != idx {
		return fmt.Errorf("duplicate key %s in %s: %w", newKey, t.desc.QualifiedName(), fdw.ErrConstraintViolation)
	}

	t.store.rows[idx] = newRow.Clone()
	return nil
}

// Delete removes the identified row.
func (m *modifier) Delete(id fdw.RowIdentity) error {
	t := m.table
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	idx := t.findRow(id)
	if idx < 0 {
		return fmt.Errorf("key %s in %s: %w", id, t.desc.QualifiedName(), fdw.ErrNotFound)
	}
	t.store.rows = append(t.store.rows[:idx], t.store.rows[idx+1:]...)
	return nil
}

// Close ends the write sequence.
func (m *modifier) Close() error {
	return nil
}

// Verify interface compliance.
var (
	_ fdw.ForeignData = (*Table)(nil)
	_ fdw.ScanCursor  = (*cursor)(nil)
	_ fdw.Modifier    = (*modifier)(nil)
)

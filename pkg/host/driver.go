// Package host implements the fixed calling convention the host
// engine's executor drives against any ForeignData implementor: the
// begin/iterate/rescan/end scan sequence and the
// begin/insert/update/delete/end modify sequence, threaded through
// opaque handles the host stores in its per-statement bookkeeping.
package host

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/txn2/fdw-bridge/pkg/fdw"
	"github.com/txn2/fdw-bridge/pkg/handle"
	"github.com/txn2/fdw-bridge/pkg/session"
)

// scanState is the per-statement cursor bookkeeping behind one scan
// handle. It exists from BeginScan to EndScan and is never reused.
type scanState struct {
	table     string
	desc      *fdw.Descriptor
	preds     []fdw.Predicate
	cursor    fdw.ScanCursor
	exhausted bool
}

// modifyState is the per-statement context behind one modify handle.
type modifyState struct {
	table      string
	desc       *fdw.Descriptor
	modifier   fdw.Modifier
	keyColumns []string
}

// Driver drives adapter instances through the scan and modify
// protocols on behalf of the host executor. Handles it issues are
// opaque: the host copies them and hands them back unchanged; a handle
// used after its End call fails with a stale-handle error instead of
// touching reclaimed state.
type Driver struct {
	sessions *session.Manager
	scans    *handle.Arena[*scanState]
	mods     *handle.Arena[*modifyState]
	logger   *slog.Logger
}

// NewDriver creates a protocol driver over a session manager.
func NewDriver(sessions *session.Manager, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		sessions: sessions,
		scans:    handle.NewArena[*scanState](),
		mods:     handle.NewArena[*modifyState](),
		logger:   logger,
	}
}

// Sessions exposes the session manager so the host can open and close
// sessions around statement execution.
func (d *Driver) Sessions() *session.Manager { return d.sessions }

// BeginScan starts a scan sequence for one statement and returns its
// handle. The predicates are copied; a backend that cannot evaluate
// them returns unfiltered rows and the driver re-filters.
func (d *Driver) BeginScan(ctx context.Context, sessionID, table string, preds []fdw.Predicate) (handle.Handle, error) {
	adapter, desc, err := d.sessions.Adapter(ctx, sessionID, table)
	if err != nil {
		return handle.Handle{}, err
	}

	predCopy := append([]fdw.Predicate(nil), preds...)
	cursor, err := adapter.BeginScan(ctx, desc, predCopy)
	if err != nil {
		return handle.Handle{}, fmt.Errorf("beginning scan of %s: %w", table, err)
	}

	h := d.scans.Alloc(&scanState{
		table:  table,
		desc:   desc,
		preds:  predCopy,
		cursor: cursor,
	})
	d.logger.Debug("scan started", "table", table, "handle", h)
	return h, nil
}

// IterateScan produces the next row of the scan, or ok=false at
// end-of-data. Past exhaustion it keeps returning ok=false without
// touching the backend cursor. Rows the backend returned despite an
// unevaluated predicate are filtered out here.
func (d *Driver) IterateScan(h handle.Handle) (fdw.Row, bool, error) {
	st, err := d.scans.Get(h)
	if err != nil {
		return nil, false, err
	}
	if st.exhausted {
		return nil, false, nil
	}

	for {
		row, ok, err := st.cursor.Next()
		if err != nil {
			return nil, false, fmt.Errorf("iterating %s: %w", st.table, err)
		}
		if !ok {
			st.exhausted = true
			return nil, false, nil
		}
		if fdw.FilterRow(row, st.desc, st.preds) {
			return row.Clone(), true, nil
		}
	}
}

// Rescan resets the scan to its starting position under the original
// predicates, typically because the host re-executes a sub-plan.
func (d *Driver) Rescan(h handle.Handle) error {
	st, err := d.scans.Get(h)
	if err != nil {
		return err
	}
	if err := st.cursor.Rescan(); err != nil {
		return fmt.Errorf("rescanning %s: %w", st.table, err)
	}
	st.exhausted = false
	return nil
}

// EndScan releases the scan handle and its backend cursor. Valid from
// any point in the sequence, including before exhaustion. The handle
// is invalidated even when the cursor's own teardown fails.
func (d *Driver) EndScan(h handle.Handle) error {
	st, err := d.scans.Release(h)
	if err != nil {
		return err
	}
	d.logger.Debug("scan ended", "table", st.table, "handle", h)
	if err := st.cursor.Close(); err != nil {
		return fmt.Errorf("ending scan of %s: %w", st.table, err)
	}
	return nil
}

// BeginModify starts a write sequence for one statement and returns
// its handle.
func (d *Driver) BeginModify(ctx context.Context, sessionID, table string) (handle.Handle, error) {
	adapter, desc, err := d.sessions.Adapter(ctx, sessionID, table)
	if err != nil {
		return handle.Handle{}, err
	}

	modifier, err := adapter.BeginModify(ctx, desc)
	if err != nil {
		return handle.Handle{}, fmt.Errorf("beginning modify of %s: %w", table, err)
	}

	h := d.mods.Alloc(&modifyState{
		table:      table,
		desc:       desc,
		modifier:   modifier,
		keyColumns: adapter.KeyColumns(desc),
	})
	d.logger.Debug("modify started", "table", table, "handle", h)
	return h, nil
}

// ExecInsert stores one row. The row is validated against the declared
// schema and copied before it reaches the backend. A failure leaves
// the sequence open; the host decides whether to continue.
func (d *Driver) ExecInsert(h handle.Handle, row fdw.Row) error {
	st, err := d.mods.Get(h)
	if err != nil {
		return err
	}
	if err := st.desc.ValidateRow(row); err != nil {
		return err
	}
	if err := st.modifier.Insert(row.Clone()); err != nil {
		d.logger.Debug("insert failed", "table", st.table, "kind", fdw.Classify(err))
		return err
	}
	return nil
}

// ExecUpdate replaces the row identified by id with newRow.
func (d *Driver) ExecUpdate(h handle.Handle, id fdw.RowIdentity, newRow fdw.Row) error {
	st, err := d.mods.Get(h)
	if err != nil {
		return err
	}
	if err := st.desc.ValidateRow(newRow); err != nil {
		return err
	}
	if err := st.modifier.Update(id, newRow.Clone()); err != nil {
		d.logger.Debug("update failed", "table", st.table, "kind", fdw.Classify(err))
		return err
	}
	return nil
}

// ExecDelete removes the row identified by id.
func (d *Driver) ExecDelete(h handle.Handle, id fdw.RowIdentity) error {
	st, err := d.mods.Get(h)
	if err != nil {
		return err
	}
	if err := st.modifier.Delete(id); err != nil {
		d.logger.Debug("delete failed", "table", st.table, "kind", fdw.Classify(err))
		return err
	}
	return nil
}

// Identity extracts the backend-declared row identity from a row
// produced by a prior scan, in support of the host's update and delete
// targeting.
func (d *Driver) Identity(h handle.Handle, row fdw.Row) (fdw.RowIdentity, error) {
	st, err := d.mods.Get(h)
	if err != nil {
		return nil, err
	}
	return fdw.IdentityFromRow(row, st.desc, st.keyColumns)
}

// EndModify releases the modify handle and its backend context. The
// handle is invalidated even when teardown fails.
func (d *Driver) EndModify(h handle.Handle) error {
	st, err := d.mods.Release(h)
	if err != nil {
		return err
	}
	d.logger.Debug("modify ended", "table", st.table, "handle", h)
	if err := st.modifier.Close(); err != nil {
		return fmt.Errorf("ending modify of %s: %w", st.table, err)
	}
	return nil
}

// OpenScans returns the number of live scan handles, for host-side
// leak accounting.
func (d *Driver) OpenScans() int { return d.scans.Len() }

// OpenModifies returns the number of live modify handles.
func (d *Driver) OpenModifies() int { return d.mods.Len() }

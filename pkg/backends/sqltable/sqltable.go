// Package sqltable provides a foreign-data backend over database/sql
// with the lib/pq driver. Scans buffer the statement's result set so a
// rescan replays a stable snapshot; writes map RowsAffected and
// SQLSTATE unique violations onto the adapter error taxonomy.
package sqltable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/txn2/fdw-bridge/pkg/fdw"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// psq is the statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Table is a SQL-backed ForeignData implementor.
type Table struct {
	db      *sql.DB
	cfg     Config
	ownedDB bool
}

// New opens a connection pool for the described table and applies
// pending migrations when the descriptor requests them.
func New(desc *fdw.Descriptor) (*Table, error) {
	cfg, err := ParseConfig(desc)
	if err != nil {
		return nil, err
	}

	connector, err := pq.NewConnector(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %v: %w", desc.QualifiedName(), err, fdw.ErrBackendFailure)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	t := &Table{db: db, cfg: cfg, ownedDB: true}
	if cfg.MigrationsDir != "" {
		if err := Migrate(db, cfg.MigrationsDir); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return t, nil
}

// NewWithDB wraps an existing pool, leaving its lifecycle to the
// caller. Used by tests and by hosts that pool connections themselves.
func NewWithDB(db *sql.DB, desc *fdw.Descriptor) (*Table, error) {
	cfg, err := ParseConfig(desc)
	if err != nil {
		return nil, err
	}
	return &Table{db: db, cfg: cfg}, nil
}

// KeyColumns declares the single-column row identity.
func (t *Table) KeyColumns(_ *fdw.Descriptor) []string {
	return []string{t.cfg.KeyColumn}
}

// BeginScan issues the SELECT and buffers the full result set.
// Supported predicates become WHERE clauses; the rest are skipped and
// left to the host's re-filter.
func (t *Table) BeginScan(ctx context.Context, desc *fdw.Descriptor, preds []fdw.Predicate) (fdw.ScanCursor, error) {
	qb := psq.Select(desc.ColumnNames()...).From(t.cfg.Table)
	for _, p := range preds {
		if cond, ok := whereClause(p, desc); ok {
			qb = qb.Where(cond)
		}
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building scan for %s: %w", desc.QualifiedName(), fdw.ErrBackendFailure)
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.QueryTimeout)
	defer cancel()

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %v: %w", desc.QualifiedName(), err, fdw.ErrBackendFailure)
	}
	defer func() { _ = rows.Close() }()

	buffered, err := bufferRows(rows, desc)
	if err != nil {
		return nil, err
	}
	return &cursor{rows: buffered}, nil
}

// BeginModify starts a write sequence. Each operation autocommits; the
// backend offers no multi-statement rollback.
func (t *Table) BeginModify(ctx context.Context, desc *fdw.Descriptor) (fdw.Modifier, error) {
	return &modifier{table: t, desc: desc, ctx: ctx}, nil
}

// Close releases the pool when this instance opened it.
func (t *Table) Close() error {
	if !t.ownedDB {
		return nil
	}
	if err := t.db.Close(); err != nil {
		return fmt.Errorf("closing pool: %v: %w", err, fdw.ErrBackendFailure)
	}
	return nil
}

// whereClause maps a predicate to a squirrel condition. Predicates on
// unknown columns or with NULL operands are not pushed down.
func whereClause(p fdw.Predicate, desc *fdw.Descriptor) (sq.Sqlizer, bool) {
	if desc.ColumnIndex(p.Column) < 0 || p.Value.IsNull() {
		return nil, false
	}
	v := p.Value.GoValue()
	switch p.Op {
	case fdw.OpEq:
		return sq.Eq{p.Column: v}, true
	case fdw.OpNe:
		return sq.NotEq{p.Column: v}, true
	case fdw.OpLt:
		return sq.Lt{p.Column: v}, true
	case fdw.OpLte:
		return sq.LtOrEq{p.Column: v}, true
	case fdw.OpGt:
		return sq.Gt{p.Column: v}, true
	case fdw.OpGte:
		return sq.GtOrEq{p.Column: v}, true
	default:
		return nil, false
	}
}

// bufferRows drains a result set into boundary rows.
func bufferRows(rows *sql.Rows, desc *fdw.Descriptor) ([]fdw.Row, error) {
	var out []fdw.Row
	for rows.Next() {
		raw := make([]any, len(desc.Columns))
		ptrs := make([]any, len(desc.Columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("reading %s: %v: %w", desc.QualifiedName(), err, fdw.ErrBackendFailure)
		}

		row := make(fdw.Row, len(desc.Columns))
		for i, v := range raw {
			cell, err := cellForColumn(v, desc.Columns[i].Type)
			if err != nil {
				return nil, fmt.Errorf("column %q of %s: %w", desc.Columns[i].Name, desc.QualifiedName(), err)
			}
			row[i] = cell
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %v: %w", desc.QualifiedName(), err, fdw.ErrBackendFailure)
	}
	return out, nil
}

// cellForColumn converts a driver value into a cell of the declared
// type. lib/pq hands text columns back as []byte, so byte slices are
// coerced by declared type rather than taken at face value.
func cellForColumn(v any, typ fdw.Type) (fdw.Cell, error) {
	if v == nil {
		return fdw.Null(), nil
	}
	if b, ok := v.([]byte); ok && typ == fdw.TypeText {
		return fdw.Text(string(b)), nil
	}
	cell, err := fdw.FromGoValue(v)
	if err != nil {
		return fdw.Null(), err
	}
	if cell.Kind() != typ.Kind() {
		return fdw.Null(), fmt.Errorf("driver returned %s for %s column: %w", cell.Kind(), typ, fdw.ErrBackendFailure)
	}
	return cell, nil
}

// cursor iterates the buffered statement snapshot.
type cursor struct {
	rows []fdw.Row
	pos  int
}

// Next returns the next buffered row, or ok=false past the end.
func (c *cursor) Next() (fdw.Row, bool, error) {
	if c.pos >= len(c.rows) {
		return nil, false, nil
	}
	row := c.rows[c.pos]
	c.pos++
	return row.Clone(), true, nil
}

// Rescan rewinds over the buffered snapshot without re-querying.
func (c *cursor) Rescan() error {
	c.pos = 0
	return nil
}

// Close drops the buffer.
func (c *cursor) Close() error {
	c.rows = nil
	c.pos = 0
	return nil
}

// modifier issues one SQL statement per operation.
type modifier struct {
	table *Table
	desc  *fdw.Descriptor
	ctx   context.Context
}

// Insert stores the row, mapping unique violations onto the taxonomy.
func (m *modifier) Insert(row fdw.Row) error {
	t := m.table
	values := make([]any, len(row))
	for i, cell := range row {
		values[i] = cell.GoValue()
	}

	query, args, err := psq.Insert(t.cfg.Table).
		Columns(m.desc.ColumnNames()...).
		Values(values...).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert for %s: %w", m.desc.QualifiedName(), fdw.ErrBackendFailure)
	}

	ctx, cancel := context.WithTimeout(m.ctx, t.cfg.QueryTimeout)
	defer cancel()

	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return mapExecError(err, m.desc)
	}
	return nil
}

// Update replaces every column of the identified row.
func (m *modifier) Update(id fdw.RowIdentity, newRow fdw.Row) error {
	t := m.table
	if len(id) != 1 {
		return fmt.Errorf("composite identity for %s: %w", m.desc.QualifiedName(), fdw.ErrUnsupported)
	}

	qb := psq.Update(t.cfg.Table).Where(sq.Eq{t.cfg.KeyColumn: id[0].GoValue()})
	for i, col := range m.desc.Columns {
		qb = qb.Set(col.Name, newRow[i].GoValue())
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return fmt.Errorf("building update for %s: %w", m.desc.QualifiedName(), fdw.ErrBackendFailure)
	}

	ctx, cancel := context.WithTimeout(m.ctx, t.cfg.QueryTimeout)
	defer cancel()

	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapExecError(err, m.desc)
	}
	return requireTarget(res, id, m.desc)
}

// Delete removes the identified row.
func (m *modifier) Delete(id fdw.RowIdentity) error {
	t := m.table
	if len(id) != 1 {
		return fmt.Errorf("composite identity for %s: %w", m.desc.QualifiedName(), fdw.ErrUnsupported)
	}

	query, args, err := psq.Delete(t.cfg.Table).
		Where(sq.Eq{t.cfg.KeyColumn: id[0].GoValue()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete for %s: %w", m.desc.QualifiedName(), fdw.ErrBackendFailure)
	}

	ctx, cancel := context.WithTimeout(m.ctx, t.cfg.QueryTimeout)
	defer cancel()

	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapExecError(err, m.desc)
	}
	return requireTarget(res, id, m.desc)
}

// Close ends the write sequence. Statements autocommitted as issued.
func (m *modifier) Close() error {
	return nil
}

// mapExecError translates driver errors onto the adapter taxonomy.
func mapExecError(err error, desc *fdw.Descriptor) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("duplicate key in %s: %w", desc.QualifiedName(), fdw.ErrConstraintViolation)
	}
	return fmt.Errorf("writing %s: %v: %w", desc.QualifiedName(), err, fdw.ErrBackendFailure)
}

// requireTarget turns a zero-row update or delete into ErrNotFound.
func requireTarget(res sql.Result, id fdw.RowIdentity, desc *fdw.Descriptor) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows for %s: %v: %w", desc.QualifiedName(), err, fdw.ErrBackendFailure)
	}
	if n == 0 {
		return fmt.Errorf("key %s in %s: %w", id, desc.QualifiedName(), fdw.ErrNotFound)
	}
	return nil
}

// Verify interface compliance.
var (
	_ fdw.ForeignData = (*Table)(nil)
	_ fdw.ScanCursor  = (*cursor)(nil)
	_ fdw.Modifier    = (*modifier)(nil)
)

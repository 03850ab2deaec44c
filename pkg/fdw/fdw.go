package fdw

import "context"

// ForeignData is the capability set every backend implements. The
// in-memory table implements this. Other backends (a SQL database, a
// remote API, a file) can too.
//
// All operations are synchronous and are never invoked concurrently
// for the same instance: the host guarantees at most one in-flight
// scan or modify sequence per adapter instance within a session.
// Distinct sessions hold independent instances; a backend that shares
// physical state across instances supplies its own locking discipline.
type ForeignData interface {
	// BeginScan prepares to produce rows for one statement. It must
	// not fail for a well-formed descriptor. Predicates the backend
	// cannot evaluate are ignored, not errors; the host re-filters.
	BeginScan(ctx context.Context, desc *Descriptor, preds []Predicate) (ScanCursor, error)

	// BeginModify prepares a write sequence for one statement.
	BeginModify(ctx context.Context, desc *Descriptor) (Modifier, error)

	// KeyColumns declares the shape of the row identity the backend
	// expects on update and delete, as column names of desc in
	// identity order.
	KeyColumns(desc *Descriptor) []string

	// Close releases the adapter instance. Called no later than
	// session end.
	Close() error
}

// ScanCursor is the per-statement read cursor. It exists only inside
// one scan sequence and is never reused across statements. Calls
// arrive strictly sequentially: Next any number of times, Rescan from
// any position, Close exactly once, possibly before exhaustion.
type ScanCursor interface {
	// Next returns the next row, or ok=false past end-of-data. It must
	// be safely callable any number of times after exhaustion. Row
	// ordering is backend-defined; the in-memory backend returns
	// insertion order.
	Next() (row Row, ok bool, err error)

	// Rescan resets the cursor to the beginning of the same scan,
	// keeping the original predicates. Required when the host
	// re-executes a sub-plan; getting this wrong silently drops rows.
	Rescan() error

	// Close releases scan-local resources. Callable even when the scan
	// was abandoned early, e.g. under a LIMIT.
	Close() error
}

// Modifier is the per-statement write context. Each operation is
// independently fallible; a failure does not terminate the sequence,
// and the host decides whether to continue or to Close.
type Modifier interface {
	// Insert stores the row. Returns ErrConstraintViolation when the
	// row conflicts with a backend-enforced key rule; the backend
	// state is left unchanged in that case.
	Insert(row Row) error

	// Update replaces the row identified by id with newRow. Returns
	// ErrNotFound when no row matches.
	Update(id RowIdentity, newRow Row) error

	// Delete removes the row identified by id. Returns ErrNotFound
	// when no row matches.
	Delete(id RowIdentity) error

	// Close releases modify-local resources.
	Close() error
}

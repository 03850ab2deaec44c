// Package fdw defines the contract between a host query engine and
// foreign-data backends: the cell/row value model, the read-only table
// descriptor handed to adapters, and the ForeignData capability set a
// backend implements to be scannable and writable by the host.
package fdw

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the variant stored in a Cell.
type Kind int

// Cell variants. KindNull is the zero value so an uninitialized Cell
// reads as SQL NULL.
const (
	KindNull Kind = iota
	KindText
	KindInt
	KindFloat
	KindBool
	KindBytes
)

// String returns the lowercase variant name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Cell is one column's value for one row. It is a tagged union; the
// variant must match the declared type of its column for the lifetime
// of the row. Cells are value types and safe to copy.
type Cell struct {
	kind Kind
	text string
	i    int64
	f    float64
	b    bool
	raw  []byte
}

// Null returns a NULL cell.
func Null() Cell { return Cell{} }

// Text returns a text cell.
func Text(s string) Cell { return Cell{kind: KindText, text: s} }

// Int returns an integer cell.
func Int(v int64) Cell { return Cell{kind: KindInt, i: v} }

// Float returns a floating-point cell.
func Float(v float64) Cell { return Cell{kind: KindFloat, f: v} }

// Bool returns a boolean cell.
func Bool(v bool) Cell { return Cell{kind: KindBool, b: v} }

// Bytes returns a binary cell. The slice is copied.
func Bytes(p []byte) Cell {
	return Cell{kind: KindBytes, raw: append([]byte(nil), p...)}
}

// Kind returns the variant stored in the cell.
func (c Cell) Kind() Kind { return c.kind }

// IsNull reports whether the cell is NULL.
func (c Cell) IsNull() bool { return c.kind == KindNull }

// AsText returns the text value. Valid only for KindText.
func (c Cell) AsText() string { return c.text }

// AsInt returns the integer value. Valid only for KindInt.
func (c Cell) AsInt() int64 { return c.i }

// AsFloat returns the float value. Valid only for KindFloat.
func (c Cell) AsFloat() float64 { return c.f }

// AsBool returns the boolean value. Valid only for KindBool.
func (c Cell) AsBool() bool { return c.b }

// AsBytes returns a copy of the binary value. Valid only for KindBytes.
func (c Cell) AsBytes() []byte { return append([]byte(nil), c.raw...) }

// Equal reports whether two cells hold the same variant and value.
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case KindNull:
		return true
	case KindText:
		return c.text == o.text
	case KindInt:
		return c.i == o.i
	case KindFloat:
		return c.f == o.f
	case KindBool:
		return c.b == o.b
	case KindBytes:
		return bytes.Equal(c.raw, o.raw)
	default:
		return false
	}
}

// Compare orders two cells of the same comparable variant. It returns
// -1, 0 or 1, and an error for NULLs, bytes, booleans or mismatched
// variants, which have no ordering here.
func (c Cell) Compare(o Cell) (int, error) {
	if c.kind != o.kind {
		return 0, fmt.Errorf("comparing %s with %s: %w", c.kind, o.kind, ErrUnsupported)
	}
	switch c.kind {
	case KindText:
		return strings.Compare(c.text, o.text), nil
	case KindInt:
		switch {
		case c.i < o.i:
			return -1, nil
		case c.i > o.i:
			return 1, nil
		}
		return 0, nil
	case KindFloat:
		switch {
		case c.f < o.f:
			return -1, nil
		case c.f > o.f:
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("comparing %s cells: %w", c.kind, ErrUnsupported)
	}
}

// String renders the cell for logs and error messages.
func (c Cell) String() string {
	switch c.kind {
	case KindNull:
		return "NULL"
	case KindText:
		return c.text
	case KindInt:
		return strconv.FormatInt(c.i, 10)
	case KindFloat:
		return strconv.FormatFloat(c.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(c.b)
	case KindBytes:
		return fmt.Sprintf("\\x%x", c.raw)
	default:
		return c.kind.String()
	}
}

// GoValue returns the cell as a driver-friendly Go value (nil, string,
// int64, float64, bool or []byte) for the database/sql boundary.
func (c Cell) GoValue() any {
	switch c.kind {
	case KindText:
		return c.text
	case KindInt:
		return c.i
	case KindFloat:
		return c.f
	case KindBool:
		return c.b
	case KindBytes:
		return c.AsBytes()
	default:
		return nil
	}
}

// FromGoValue converts a Go value coming back from a driver into a Cell.
func FromGoValue(v any) (Cell, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case string:
		return Text(t), nil
	case []byte:
		return Bytes(t), nil
	case int64:
		return Int(t), nil
	case int:
		return Int(int64(t)), nil
	case float64:
		return Float(t), nil
	case bool:
		return Bool(t), nil
	case time.Time:
		return Text(t.Format(time.RFC3339Nano)), nil
	default:
		return Null(), fmt.Errorf("unmappable value type %T: %w", v, ErrUnsupported)
	}
}

// Row is an ordered sequence of cells. Length and column order are
// fixed by the table's declared schema for the duration of a statement.
// Rows are value types; Clone is used whenever a row crosses the
// host/backend boundary so neither side aliases the other's storage.
type Row []Cell

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Equal reports cell-wise equality.
func (r Row) Equal(o Row) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if !r[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// RowIdentity is the backend-declared key value locating one row for
// update or delete. Single-column keys are the common case; composite
// keys are a multi-cell identity in key-column order.
type RowIdentity []Cell

// Equal reports cell-wise equality.
func (id RowIdentity) Equal(o RowIdentity) bool {
	return Row(id).Equal(Row(o))
}

// String joins the identity cells for log and error messages.
func (id RowIdentity) String() string {
	parts := make([]string, len(id))
	for i, c := range id {
		parts[i] = c.String()
	}
	return strings.Join(parts, "/")
}

// IdentityFromRow extracts the identity cells named by keyColumns from
// a row laid out per desc.
func IdentityFromRow(row Row, desc *Descriptor, keyColumns []string) (RowIdentity, error) {
	if len(keyColumns) == 0 {
		return nil, fmt.Errorf("no key columns declared for %s: %w", desc.QualifiedName(), ErrUnsupported)
	}
	id := make(RowIdentity, 0, len(keyColumns))
	for _, name := range keyColumns {
		idx := desc.ColumnIndex(name)
		if idx < 0 {
			return nil, fmt.Errorf("key column %q not in %s: %w", name, desc.QualifiedName(), ErrUnsupported)
		}
		if idx >= len(row) {
			return nil, fmt.Errorf("row shorter than schema of %s: %w", desc.QualifiedName(), ErrBackendFailure)
		}
		id = append(id, row[idx])
	}
	return id, nil
}

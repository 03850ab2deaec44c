package fdw

import (
	"fmt"
	"strconv"
	"time"
)

// Type is a declared column type. It aligns one-to-one with the
// non-null Cell kinds.
type Type int

// Column types.
const (
	TypeText Type = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeBytes
)

// String returns the lowercase type name.
func (t Type) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeBytes:
		return "bytes"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Kind returns the Cell kind a value of this type carries.
func (t Type) Kind() Kind {
	switch t {
	case TypeText:
		return KindText
	case TypeInt:
		return KindInt
	case TypeFloat:
		return KindFloat
	case TypeBool:
		return KindBool
	case TypeBytes:
		return KindBytes
	default:
		return KindNull
	}
}

// ParseType maps a catalog type name to a Type. Common SQL aliases are
// accepted.
func ParseType(s string) (Type, error) {
	switch s {
	case "text", "string", "varchar":
		return TypeText, nil
	case "int", "integer", "bigint":
		return TypeInt, nil
	case "float", "double", "real":
		return TypeFloat, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "bytes", "bytea", "blob":
		return TypeBytes, nil
	default:
		return TypeText, fmt.Errorf("unknown column type %q: %w", s, ErrUnsupported)
	}
}

// Column is one entry of a foreign table's declared schema.
type Column struct {
	Name string
	Type Type
}

// Options is free-form key-value configuration attached to a foreign
// table or server definition. Keys are backend-interpreted; backends
// must ignore keys they do not recognize.
type Options map[string]string

// String returns the value for key, or def when absent.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		return v
	}
	return def
}

// Int returns the integer value for key, or def when absent or
// unparseable.
func (o Options) Int(key string, def int) int {
	v, ok := o[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Bool returns the boolean value for key, or def when absent or
// unparseable.
func (o Options) Bool(key string, def bool) bool {
	v, ok := o[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Duration returns the duration value for key, or def when absent or
// unparseable.
func (o Options) Duration(key string, def time.Duration) time.Duration {
	v, ok := o[key]
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Clone returns an independent copy of the option map.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Descriptor identifies one foreign table mapping: table identity,
// ordered column schema, and the table- and server-level options
// supplied when the table was defined. The host owns the descriptor;
// adapters receive a read-only view, immutable for the table's
// lifetime.
type Descriptor struct {
	Table         string
	Namespace     string
	Columns       []Column
	TableOptions  Options
	ServerOptions Options
}

// QualifiedName returns namespace.table, or just the table name when
// no namespace is set.
func (d *Descriptor) QualifiedName() string {
	if d.Namespace != "" {
		return d.Namespace + "." + d.Table
	}
	return d.Table
}

// ColumnIndex returns the position of the named column, or -1.
func (d *Descriptor) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in schema order.
func (d *Descriptor) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// ValidateRow checks a row against the declared schema: exact arity
// and, per cell, either NULL or the column's declared variant.
func (d *Descriptor) ValidateRow(row Row) error {
	if len(row) != len(d.Columns) {
		return fmt.Errorf("row has %d cells, %s declares %d columns: %w",
			len(row), d.QualifiedName(), len(d.Columns), ErrUnsupported)
	}
	for i, cell := range row {
		if cell.IsNull() {
			continue
		}
		if cell.Kind() != d.Columns[i].Type.Kind() {
			return fmt.Errorf("column %q expects %s, row carries %s: %w",
				d.Columns[i].Name, d.Columns[i].Type, cell.Kind(), ErrUnsupported)
		}
	}
	return nil
}

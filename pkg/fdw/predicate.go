package fdw

import "fmt"

// CompareOp is a predicate comparison operator.
type CompareOp string

// Comparison operators a host may push down.
const (
	OpEq  CompareOp = "="
	OpNe  CompareOp = "<>"
	OpLt  CompareOp = "<"
	OpLte CompareOp = "<="
	OpGt  CompareOp = ">"
	OpGte CompareOp = ">="
)

// Predicate is one pushdown-able filter condition: column OP value.
// Predicates are opaque to adapters; a backend that cannot evaluate a
// predicate ignores it and lets the host re-filter the returned rows.
// A rescan restarts the cursor under the original predicates.
type Predicate struct {
	Column string
	Op     CompareOp
	Value  Cell
}

// String renders the predicate for logs.
func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %s", p.Column, p.Op, p.Value)
}

// Matches evaluates the predicate against a row laid out per desc.
// Unknown columns, NULL operands and uncomparable variants evaluate to
// false, mirroring SQL's treatment of NULL comparisons.
func (p Predicate) Matches(row Row, desc *Descriptor) bool {
	idx := desc.ColumnIndex(p.Column)
	if idx < 0 || idx >= len(row) {
		return false
	}
	cell := row[idx]
	if cell.IsNull() || p.Value.IsNull() {
		return false
	}
	if p.Op == OpEq {
		return cell.Equal(p.Value)
	}
	if p.Op == OpNe {
		return cell.Kind() == p.Value.Kind() && !cell.Equal(p.Value)
	}
	cmp, err := cell.Compare(p.Value)
	if err != nil {
		return false
	}
	switch p.Op {
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	default:
		return false
	}
}

// FilterRow reports whether a row satisfies every predicate in preds.
func FilterRow(row Row, desc *Descriptor, preds []Predicate) bool {
	for _, p := range preds {
		if !p.Matches(row, desc) {
			return false
		}
	}
	return true
}

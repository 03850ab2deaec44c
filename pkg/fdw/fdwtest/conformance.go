// Package fdwtest provides a reusable conformance harness for
// ForeignData backends. A backend's test package supplies a factory
// and gets the full protocol contract exercised: scan completeness,
// idempotence past exhaustion, rescan reproducibility, precise
// update/delete targeting and duplicate-key rejection.
package fdwtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/fdw-bridge/pkg/fdw"
)

// Factory builds a fresh, empty backend instance over desc. Each
// subtest gets its own instance.
type Factory func(t *testing.T, desc *fdw.Descriptor) fdw.ForeignData

// UsersDescriptor returns the three-column text table the harness
// works against, keyed on id.
func UsersDescriptor() *fdw.Descriptor {
	return &fdw.Descriptor{
		Table:     "users",
		Namespace: "public",
		Columns: []fdw.Column{
			{Name: "id", Type: fdw.TypeText},
			{Name: "name", Type: fdw.TypeText},
			{Name: "email", Type: fdw.TypeText},
		},
		TableOptions: fdw.Options{"key_column": "id"},
	}
}

// UserRow builds one row for the users descriptor.
func UserRow(id, name, email string) fdw.Row {
	return fdw.Row{fdw.Text(id), fdw.Text(name), fdw.Text(email)}
}

// InsertRows stores rows through one modify sequence.
func InsertRows(t *testing.T, adapter fdw.ForeignData, desc *fdw.Descriptor, rows ...fdw.Row) {
	t.Helper()
	ctx := context.Background()

	mod, err := adapter.BeginModify(ctx, desc)
	require.NoError(t, err)
	for _, row := range rows {
		require.NoError(t, mod.Insert(row))
	}
	require.NoError(t, mod.Close())
}

// ScanAll drains a full scan sequence and returns the rows in cursor
// order.
func ScanAll(t *testing.T, adapter fdw.ForeignData, desc *fdw.Descriptor, preds ...fdw.Predicate) []fdw.Row {
	t.Helper()
	ctx := context.Background()

	cursor, err := adapter.BeginScan(ctx, desc, preds)
	require.NoError(t, err)
	defer func() { require.NoError(t, cursor.Close()) }()

	return Drain(t, cursor)
}

// Drain reads a cursor to exhaustion.
func Drain(t *testing.T, cursor fdw.ScanCursor) []fdw.Row {
	t.Helper()

	var rows []fdw.Row
	for {
		row, ok, err := cursor.Next()
		require.NoError(t, err)
		if !ok {
			return rows
		}
		rows = append(rows, row)
	}
}

// RunConformance exercises the full backend contract.
func RunConformance(t *testing.T, newBackend Factory) {
	ctx := context.Background()

	t.Run("insert then scan returns all rows", func(t *testing.T) {
		desc := UsersDescriptor()
		adapter := newBackend(t, desc)
		defer func() { require.NoError(t, adapter.Close()) }()

		inserted := []fdw.Row{
			UserRow("1", "ada", "ada@example.com"),
			UserRow("2", "ben", "ben@example.com"),
			UserRow("3", "cat", "cat@example.com"),
		}
		InsertRows(t, adapter, desc, inserted...)

		got := ScanAll(t, adapter, desc)
		require.Len(t, got, len(inserted))
		for _, want := range inserted {
			assert.True(t, containsRow(got, want), "missing row %v", want)
		}
	})

	t.Run("iterate is idempotent past exhaustion", func(t *testing.T) {
		desc := UsersDescriptor()
		adapter := newBackend(t, desc)
		defer func() { require.NoError(t, adapter.Close()) }()

		InsertRows(t, adapter, desc, UserRow("1", "ada", "ada@example.com"))

		cursor, err := adapter.BeginScan(ctx, desc, nil)
		require.NoError(t, err)
		defer func() { require.NoError(t, cursor.Close()) }()

		Drain(t, cursor)
		for i := 0; i < 3; i++ {
			row, ok, err := cursor.Next()
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, row)
		}
	})

	t.Run("rescan reproduces the original order", func(t *testing.T) {
		desc := UsersDescriptor()
		adapter := newBackend(t, desc)
		defer func() { require.NoError(t, adapter.Close()) }()

		InsertRows(t, adapter, desc,
			UserRow("1", "ada", "ada@example.com"),
			UserRow("2", "ben", "ben@example.com"),
			UserRow("3", "cat", "cat@example.com"),
		)

		cursor, err := adapter.BeginScan(ctx, desc, nil)
		require.NoError(t, err)
		defer func() { require.NoError(t, cursor.Close()) }()

		first := Drain(t, cursor)
		require.NoError(t, cursor.Rescan())
		second := Drain(t, cursor)

		require.Len(t, second, len(first))
		for i := range first {
			assert.True(t, first[i].Equal(second[i]), "row %d differs after rescan", i)
		}
	})

	t.Run("rescan from mid-scan restarts at the beginning", func(t *testing.T) {
		desc := UsersDescriptor()
		adapter := newBackend(t, desc)
		defer func() { require.NoError(t, adapter.Close()) }()

		InsertRows(t, adapter, desc,
			UserRow("1", "ada", "ada@example.com"),
			UserRow("2", "ben", "ben@example.com"),
		)

		cursor, err := adapter.BeginScan(ctx, desc, nil)
		require.NoError(t, err)
		defer func() { require.NoError(t, cursor.Close()) }()

		_, ok, err := cursor.Next()
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, cursor.Rescan())
		assert.Len(t, Drain(t, cursor), 2)
	})

	t.Run("update changes exactly one row", func(t *testing.T) {
		desc := UsersDescriptor()
		adapter := newBackend(t, desc)
		defer func() { require.NoError(t, adapter.Close()) }()

		InsertRows(t, adapter, desc,
			UserRow("1", "ada", "ada@example.com"),
			UserRow("2", "ben", "ben@example.com"),
		)

		mod, err := adapter.BeginModify(ctx, desc)
		require.NoError(t, err)
		require.NoError(t, mod.Update(
			fdw.RowIdentity{fdw.Text("1")},
			UserRow("1", "lovelace", "ada@example.com"),
		))
		require.NoError(t, mod.Close())

		got := ScanAll(t, adapter, desc)
		require.Len(t, got, 2)
		assert.True(t, containsRow(got, UserRow("1", "lovelace", "ada@example.com")))
		assert.True(t, containsRow(got, UserRow("2", "ben", "ben@example.com")))
		assert.False(t, containsRow(got, UserRow("1", "ada", "ada@example.com")), "old values must not survive")
	})

	t.Run("update onto an existing key is a constraint violation", func(t *testing.T) {
		desc := UsersDescriptor()
		adapter := newBackend(t, desc)
		defer func() { require.NoError(t, adapter.Close()) }()

		InsertRows(t, adapter, desc,
			UserRow("1", "ada", "ada@example.com"),
			UserRow("2", "ben", "ben@example.com"),
		)

		mod, err := adapter.BeginModify(ctx, desc)
		require.NoError(t, err)

		err = mod.Update(fdw.RowIdentity{fdw.Text("2")}, UserRow("1", "ben", "ben@example.com"))
		require.Error(t, err)
		assert.ErrorIs(t, err, fdw.ErrConstraintViolation)

		// A key change that stays unique is still allowed.
		require.NoError(t, mod.Update(
			fdw.RowIdentity{fdw.Text("2")},
			UserRow("3", "ben", "ben@example.com"),
		))
		require.NoError(t, mod.Close())

		got := ScanAll(t, adapter, desc)
		require.Len(t, got, 2)
		assert.True(t, containsRow(got, UserRow("1", "ada", "ada@example.com")))
		assert.True(t, containsRow(got, UserRow("3", "ben", "ben@example.com")))
	})

	t.Run("update of a missing row is NotFound", func(t *testing.T) {
		desc := UsersDescriptor()
		adapter := newBackend(t, desc)
		defer func() { require.NoError(t, adapter.Close()) }()

		mod, err := adapter.BeginModify(ctx, desc)
		require.NoError(t, err)
		defer func() { require.NoError(t, mod.Close()) }()

		err = mod.Update(fdw.RowIdentity{fdw.Text("missing")}, UserRow("missing", "x", "x@example.com"))
		require.Error(t, err)
		assert.ErrorIs(t, err, fdw.ErrNotFound)
	})

	t.Run("delete removes exactly one row", func(t *testing.T) {
		desc := UsersDescriptor()
		adapter := newBackend(t, desc)
		defer func() { require.NoError(t, adapter.Close()) }()

		InsertRows(t, adapter, desc,
			UserRow("1", "ada", "ada@example.com"),
			UserRow("2", "ben", "ben@example.com"),
		)

		mod, err := adapter.BeginModify(ctx, desc)
		require.NoError(t, err)
		require.NoError(t, mod.Delete(fdw.RowIdentity{fdw.Text("1")}))

		err = mod.Delete(fdw.RowIdentity{fdw.Text("1")})
		assert.ErrorIs(t, err, fdw.ErrNotFound, "second delete of the same key")
		require.NoError(t, mod.Close())

		got := ScanAll(t, adapter, desc)
		require.Len(t, got, 1)
		assert.True(t, got[0].Equal(UserRow("2", "ben", "ben@example.com")))
	})

	t.Run("duplicate key insert fails and leaves state unchanged", func(t *testing.T) {
		desc := UsersDescriptor()
		adapter := newBackend(t, desc)
		defer func() { require.NoError(t, adapter.Close()) }()

		InsertRows(t, adapter, desc, UserRow("1", "ada", "ada@example.com"))

		mod, err := adapter.BeginModify(ctx, desc)
		require.NoError(t, err)
		err = mod.Insert(UserRow("1", "impostor", "other@example.com"))
		require.Error(t, err)
		assert.ErrorIs(t, err, fdw.ErrConstraintViolation)

		// A failed exec does not terminate the sequence.
		require.NoError(t, mod.Insert(UserRow("2", "ben", "ben@example.com")))
		require.NoError(t, mod.Close())

		got := ScanAll(t, adapter, desc)
		require.Len(t, got, 2)
		assert.True(t, containsRow(got, UserRow("1", "ada", "ada@example.com")), "original row survives the conflict")
	})

	t.Run("scan abandoned early can still be closed", func(t *testing.T) {
		desc := UsersDescriptor()
		adapter := newBackend(t, desc)
		defer func() { require.NoError(t, adapter.Close()) }()

		InsertRows(t, adapter, desc,
			UserRow("1", "ada", "ada@example.com"),
			UserRow("2", "ben", "ben@example.com"),
		)

		cursor, err := adapter.BeginScan(ctx, desc, nil)
		require.NoError(t, err)

		_, ok, err := cursor.Next()
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, cursor.Close())
	})

	t.Run("full lifecycle", func(t *testing.T) {
		desc := UsersDescriptor()
		adapter := newBackend(t, desc)
		defer func() { require.NoError(t, adapter.Close()) }()

		InsertRows(t, adapter, desc, UserRow("1", "name", "name@name.com"))

		got := ScanAll(t, adapter, desc)
		require.Len(t, got, 1)
		assert.True(t, got[0].Equal(UserRow("1", "name", "name@name.com")))

		mod, err := adapter.BeginModify(ctx, desc)
		require.NoError(t, err)
		require.NoError(t, mod.Update(
			fdw.RowIdentity{fdw.Text("1")},
			UserRow("1", "hello", "name@name.com"),
		))
		require.NoError(t, mod.Close())

		got = ScanAll(t, adapter, desc)
		require.Len(t, got, 1)
		assert.True(t, got[0].Equal(UserRow("1", "hello", "name@name.com")))

		mod, err = adapter.BeginModify(ctx, desc)
		require.NoError(t, err)
		require.NoError(t, mod.Delete(fdw.RowIdentity{fdw.Text("1")}))
		require.NoError(t, mod.Close())

		assert.Empty(t, ScanAll(t, adapter, desc))
	})
}

func containsRow(rows []fdw.Row, want fdw.Row) bool {
	for _, row := range rows {
		if row.Equal(want) {
			return true
		}
	}
	return false
}

package memtable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/fdw-bridge/pkg/fdw"
	"github.com/txn2/fdw-bridge/pkg/fdw/fdwtest"
)

func TestConformance(t *testing.T) {
	fdwtest.RunConformance(t, func(t *testing.T, desc *fdw.Descriptor) fdw.ForeignData {
		t.Helper()
		table, err := New(desc)
		require.NoError(t, err)
		return table
	})
}

func TestNewDefaultsKeyToFirstColumn(t *testing.T) {
	desc := fdwtest.UsersDescriptor()
	delete(desc.TableOptions, OptionKeyColumn)

	table, err := New(desc)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, table.KeyColumns(desc))
}

func TestNewRejectsUnknownKeyColumn(t *testing.T) {
	desc := fdwtest.UsersDescriptor()
	desc.TableOptions[OptionKeyColumn] = "nope"

	_, err := New(desc)
	assert.ErrorIs(t, err, fdw.ErrUnsupported)
}

func TestNewIgnoresUnrecognizedOptions(t *testing.T) {
	desc := fdwtest.UsersDescriptor()
	desc.TableOptions["host_specific_knob"] = "whatever"

	_, err := New(desc)
	assert.NoError(t, err)
}

func TestScanReturnsInsertionOrder(t *testing.T) {
	desc := fdwtest.UsersDescriptor()
	table, err := New(desc)
	require.NoError(t, err)

	rows := []fdw.Row{
		fdwtest.UserRow("3", "cat", "cat@example.com"),
		fdwtest.UserRow("1", "ada", "ada@example.com"),
		fdwtest.UserRow("2", "ben", "ben@example.com"),
	}
	fdwtest.InsertRows(t, table, desc, rows...)

	got := fdwtest.ScanAll(t, table, desc)
	require.Len(t, got, 3)
	for i := range rows {
		assert.True(t, got[i].Equal(rows[i]), "row %d out of insertion order", i)
	}
}

func TestScanAppliesPredicates(t *testing.T) {
	desc := fdwtest.UsersDescriptor()
	table, err := New(desc)
	require.NoError(t, err)

	fdwtest.InsertRows(t, table, desc,
		fdwtest.UserRow("1", "ada", "ada@example.com"),
		fdwtest.UserRow("2", "ben", "ben@example.com"),
	)

	got := fdwtest.ScanAll(t, table, desc, fdw.Predicate{Column: "name", Op: fdw.OpEq, Value: fdw.Text("ben")})
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(fdwtest.UserRow("2", "ben", "ben@example.com")))
}

func TestScanSnapshotIsStableAcrossWrites(t *testing.T) {
	desc := fdwtest.UsersDescriptor()
	table, err := New(desc)
	require.NoError(t, err)

	fdwtest.InsertRows(t, table, desc, fdwtest.UserRow("1", "ada", "ada@example.com"))

	cursor, err := table.BeginScan(context.Background(), desc, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, cursor.Close()) }()

	fdwtest.InsertRows(t, table, desc, fdwtest.UserRow("2", "ben", "ben@example.com"))

	require.NoError(t, cursor.Rescan())
	assert.Len(t, fdwtest.Drain(t, cursor), 1, "rescan replays the begin-scan snapshot")
}

func TestPrivateInstancesDoNotShareRows(t *testing.T) {
	desc := fdwtest.UsersDescriptor()

	first, err := New(desc)
	require.NoError(t, err)
	second, err := New(desc)
	require.NoError(t, err)

	fdwtest.InsertRows(t, first, desc, fdwtest.UserRow("1", "ada", "ada@example.com"))

	assert.Len(t, fdwtest.ScanAll(t, first, desc), 1)
	assert.Empty(t, fdwtest.ScanAll(t, second, desc), "private stores never observe each other")
}

func TestSharedInstancesObserveEachOther(t *testing.T) {
	desc := fdwtest.UsersDescriptor()
	desc.Table = "users_shared_visibility"
	desc.TableOptions[OptionShared] = "true"

	first, err := New(desc)
	require.NoError(t, err)
	second, err := New(desc)
	require.NoError(t, err)

	fdwtest.InsertRows(t, first, desc, fdwtest.UserRow("1", "ada", "ada@example.com"))

	got := fdwtest.ScanAll(t, second, desc)
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(fdwtest.UserRow("1", "ada", "ada@example.com")))
}

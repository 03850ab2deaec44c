package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/fdw-bridge/pkg/fdw"
)

func TestSyntheticRowConformsToSchema(t *testing.T) {
	desc := &fdw.Descriptor{
		Table: "mixed",
		Columns: []fdw.Column{
			{Name: "id", Type: fdw.TypeText},
			{Name: "n", Type: fdw.TypeInt},
			{Name: "f", Type: fdw.TypeFloat},
			{Name: "b", Type: fdw.TypeBool},
			{Name: "raw", Type: fdw.TypeBytes},
		},
	}

	row := syntheticRow(desc)
	require.NoError(t, desc.ValidateRow(row))
}

func TestRenderRow(t *testing.T) {
	row := fdw.Row{fdw.Text("1"), fdw.Text("ada"), fdw.Null()}
	assert.Equal(t, "1\tada\tNULL", renderRow(row))
}

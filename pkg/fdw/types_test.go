package fdw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellVariants(t *testing.T) {
	assert.Equal(t, KindNull, Null().Kind())
	assert.True(t, Null().IsNull())

	c := Text("hello")
	assert.Equal(t, KindText, c.Kind())
	assert.Equal(t, "hello", c.AsText())

	assert.Equal(t, int64(42), Int(42).AsInt())
	assert.InDelta(t, 1.5, Float(1.5).AsFloat(), 0)
	assert.True(t, Bool(true).AsBool())
	assert.Equal(t, []byte{1, 2}, Bytes([]byte{1, 2}).AsBytes())
}

func TestCellZeroValueIsNull(t *testing.T) {
	var c Cell
	assert.True(t, c.IsNull())
	assert.Equal(t, "NULL", c.String())
}

func TestCellEqual(t *testing.T) {
	assert.True(t, Text("a").Equal(Text("a")))
	assert.False(t, Text("a").Equal(Text("b")))
	assert.False(t, Text("1").Equal(Int(1)), "variants differ")
	assert.True(t, Null().Equal(Null()))
	assert.True(t, Bytes([]byte{7}).Equal(Bytes([]byte{7})))
}

func TestCellCompare(t *testing.T) {
	cmp, err := Int(1).Compare(Int(2))
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = Text("b").Compare(Text("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)

	_, err = Int(1).Compare(Text("1"))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Bool(true).Compare(Bool(false))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestCellBytesAreCopied(t *testing.T) {
	src := []byte{1, 2, 3}
	c := Bytes(src)
	src[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, c.AsBytes())

	out := c.AsBytes()
	out[1] = 9
	assert.Equal(t, []byte{1, 2, 3}, c.AsBytes())
}

func TestFromGoValue(t *testing.T) {
	c, err := FromGoValue("x")
	require.NoError(t, err)
	assert.Equal(t, KindText, c.Kind())

	c, err = FromGoValue(int64(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.AsInt())

	c, err = FromGoValue(nil)
	require.NoError(t, err)
	assert.True(t, c.IsNull())

	_, err = FromGoValue(struct{}{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRowCloneIsIndependent(t *testing.T) {
	row := Row{Text("1"), Text("a")}
	clone := row.Clone()
	clone[1] = Text("b")

	assert.Equal(t, "a", row[1].AsText())
	assert.Equal(t, "b", clone[1].AsText())
}

func TestRowEqual(t *testing.T) {
	assert.True(t, Row{Text("1")}.Equal(Row{Text("1")}))
	assert.False(t, Row{Text("1")}.Equal(Row{Text("2")}))
	assert.False(t, Row{Text("1")}.Equal(Row{Text("1"), Text("2")}))
}

func TestIdentityFromRow(t *testing.T) {
	desc := &Descriptor{
		Table: "users",
		Columns: []Column{
			{Name: "id", Type: TypeText},
			{Name: "name", Type: TypeText},
		},
	}
	row := Row{Text("1"), Text("ada")}

	id, err := IdentityFromRow(row, desc, []string{"id"})
	require.NoError(t, err)
	require.Len(t, id, 1)
	assert.Equal(t, "1", id[0].AsText())

	_, err = IdentityFromRow(row, desc, []string{"missing"})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = IdentityFromRow(row, desc, nil)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDescriptorValidateRow(t *testing.T) {
	desc := &Descriptor{
		Table: "t",
		Columns: []Column{
			{Name: "id", Type: TypeText},
			{Name: "n", Type: TypeInt},
		},
	}

	assert.NoError(t, desc.ValidateRow(Row{Text("1"), Int(2)}))
	assert.NoError(t, desc.ValidateRow(Row{Text("1"), Null()}), "NULL is valid for any column")
	assert.ErrorIs(t, desc.ValidateRow(Row{Text("1")}), ErrUnsupported)
	assert.ErrorIs(t, desc.ValidateRow(Row{Text("1"), Text("2")}), ErrUnsupported)
}

func TestDescriptorQualifiedName(t *testing.T) {
	d := &Descriptor{Table: "users", Namespace: "public"}
	assert.Equal(t, "public.users", d.QualifiedName())

	d = &Descriptor{Table: "users"}
	assert.Equal(t, "users", d.QualifiedName())
}

func TestParseType(t *testing.T) {
	for name, want := range map[string]Type{
		"text":    TypeText,
		"varchar": TypeText,
		"integer": TypeInt,
		"double":  TypeFloat,
		"boolean": TypeBool,
		"bytea":   TypeBytes,
	} {
		got, err := ParseType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseType("jsonb")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestOptionsGetters(t *testing.T) {
	o := Options{"a": "x", "n": "3", "b": "true", "d": "5s", "bad": "zz"}

	assert.Equal(t, "x", o.String("a", "def"))
	assert.Equal(t, "def", o.String("missing", "def"))
	assert.Equal(t, 3, o.Int("n", 1))
	assert.Equal(t, 1, o.Int("bad", 1))
	assert.True(t, o.Bool("b", false))
	assert.False(t, o.Bool("bad", false))
	assert.Equal(t, "5s", o.Duration("d", 0).String())
	assert.Equal(t, "1s", o.Duration("bad", 1000000000).String())
}

package schema_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recordgraph/rg/schema"
)

func TestCrossTypeNumericEquality(t *testing.T) {
	require.True(t, schema.Int64(3).Equal(schema.Double(3.0)))
	require.False(t, schema.Int64(3).Equal(schema.Double(3.5)))
	require.Equal(t, schema.Int64(3).Hash(), schema.Double(3.0).Hash())
}

func TestCompareIncomparable(t *testing.T) {
	_, ok := schema.String("a").Compare(schema.Bool(true))
	require.False(t, ok)
	ord, ok := schema.Int64(1).Compare(schema.Double(2))
	require.True(t, ok)
	require.Equal(t, schema.LT, ord)
}

func TestEBV(t *testing.T) {
	require.True(t, schema.Int64(1).EBV())
	require.False(t, schema.Int64(0).EBV())
	require.False(t, schema.Null().EBV())
	require.False(t, schema.String("").EBV())
	require.True(t, schema.String("x").EBV())
}

func TestTupleElementRoundTrip(t *testing.T) {
	for _, v := range []schema.FieldValue{
		schema.Int64(-42), schema.Double(3.25), schema.String("hi"),
		schema.Bool(true), schema.Data([]byte{1, 2, 3}), schema.Null(),
	} {
		got := schema.FromTupleElement(v.ToTupleElement())
		require.True(t, v.Equal(got), "round trip of %+v got %+v", v, got)
	}
}

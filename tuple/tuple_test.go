package tuple_test

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recordgraph/rg/tuple"
)

func TestRoundTrip(t *testing.T) {
	cases := []tuple.Tuple{
		{tuple.Str("hello")},
		{tuple.Int(0)},
		{tuple.Int(-1)},
		{tuple.Int(1 << 40)},
		{tuple.Int(-(1 << 40))},
		{tuple.Float(3.14)},
		{tuple.Float(-3.14)},
		{tuple.Bool(true)},
		{tuple.Bool(false)},
		{tuple.Bytes([]byte{0x00, 0x01, 0xFF})},
		{tuple.Nested(tuple.Str("a"), tuple.Int(1)), tuple.Str("tail")},
	}
	for _, c := range cases {
		packed := tuple.Pack(c)
		got, err := tuple.Unpack(packed)
		require.NoError(t, err)
		require.Equal(t, c, got)
	}
}

func TestIntegerOrderPreserved(t *testing.T) {
	ints := []int64{-1 << 40, -1000, -1, 0, 1, 1000, 1 << 40}
	packed := make([][]byte, len(ints))
	for i, v := range ints {
		packed[i] = tuple.Pack(tuple.Tuple{tuple.Int(v)})
	}
	sorted := append([][]byte{}, packed...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })
	for i := range sorted {
		if !bytes.Equal(sorted[i], packed[i]) {
			t.Fatalf("integer packing does not preserve order at index %d", i)
		}
	}
}

func TestFloatOrderPreserved(t *testing.T) {
	floats := []float64{-100.5, -1, -0.001, 0, 0.001, 1, 100.5}
	packed := make([][]byte, len(floats))
	for i, v := range floats {
		packed[i] = tuple.Pack(tuple.Tuple{tuple.Float(v)})
	}
	for i := 1; i < len(packed); i++ {
		require.True(t, bytes.Compare(packed[i-1], packed[i]) < 0)
	}
}

func TestStrincExcludesPrefixItself(t *testing.T) {
	prefix := []byte("I/by_email/")
	upper := tuple.Strinc(prefix)
	require.True(t, bytes.Compare(prefix, upper) < 0)
	require.True(t, bytes.HasPrefix(append(append([]byte{}, prefix...), 0xFF), prefix))
	require.False(t, bytes.HasPrefix(upper, prefix) && len(upper) == len(prefix))
}

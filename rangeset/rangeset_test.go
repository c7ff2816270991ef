package rangeset_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recordgraph/rg/rangeset"
)

func TestNextBatchBeginStrictlyIncreases(t *testing.T) {
	rs := rangeset.New()
	rs.Init(rangeset.KeyRange{Begin: []byte("a"), End: []byte("z")})

	var lastBegin []byte
	for i := 0; i < 5; i++ {
		b, ok := rs.NextBatchBounds()
		require.True(t, ok)
		if lastBegin != nil {
			require.True(t, bytes.Compare(b.Begin, lastBegin) > 0, "begin must strictly increase")
		}
		lastBegin = append([]byte{}, b.Begin...)
		lastKey := append(append([]byte{}, b.Begin...), byte('a'+i))
		require.NoError(t, rs.RecordProgress(b.RangeID, lastKey, false))
	}
	require.False(t, rs.IsEmpty())
}

func TestBatchBelowSizeMarksComplete(t *testing.T) {
	rs := rangeset.New()
	rs.Init(rangeset.KeyRange{Begin: []byte("a"), End: []byte("z")})
	b, ok := rs.NextBatchBounds()
	require.True(t, ok)
	// itemsInBatch(3) < batchSize(100) => complete.
	require.NoError(t, rs.RecordProgress(b.RangeID, []byte("m"), 3 < 100))
	require.True(t, rs.IsEmpty())
	_, ok = rs.NextBatchBounds()
	require.False(t, ok)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rs := rangeset.New()
	rs.Init(
		rangeset.KeyRange{Begin: []byte("a"), End: []byte("m")},
		rangeset.KeyRange{Begin: []byte("m"), End: []byte("z")},
	)
	b, ok := rs.NextBatchBounds()
	require.True(t, ok)
	require.NoError(t, rs.RecordProgress(b.RangeID, []byte("c"), false))

	blob := rs.Encode()
	decoded, err := rangeset.Decode(blob)
	require.NoError(t, err)
	require.Equal(t, rs.Encode(), decoded.Encode())
}

func TestMarkRangeCompleteOnEmptyBatch(t *testing.T) {
	rs := rangeset.New()
	rs.Init(rangeset.KeyRange{Begin: []byte("a"), End: []byte("z")})
	b, ok := rs.NextBatchBounds()
	require.True(t, ok)
	require.NoError(t, rs.MarkRangeComplete(b.RangeID))
	require.True(t, rs.IsEmpty())
}

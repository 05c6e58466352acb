package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLengthRoundTrips(t *testing.T) {
	values := []uint64{5, 5, 5, 1, 1, 9, 9, 9, 9}
	encoded := EncodeRunLength(values)
	decoded, n, err := DecodeRunLength(encoded, len(values))
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, values, decoded)
}

func TestRunLengthEmpty(t *testing.T) {
	encoded := EncodeRunLength(nil)
	decoded, _, err := DecodeRunLength(encoded, 0)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestMonotonicRunRoundTrips(t *testing.T) {
	values := []uint64{3, 4, 5, 6, 10, 20, 21, 22}
	encoded := EncodeMonotonicRun(values)
	decoded, n, err := DecodeMonotonicRun(encoded, len(values))
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, values, decoded)
}

func TestTwoWayMonotonicRunRoundTrips(t *testing.T) {
	values := []uint64{10, 11, 12, 13, 8, 7, 6, 100}
	encoded := EncodeTwoWayMonotonicRun(values)
	decoded, n, err := DecodeTwoWayMonotonicRun(encoded, len(values))
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, values, decoded)
}

func TestTwoWayMonotonicRunHandlesZeroFloor(t *testing.T) {
	values := []uint64{0, 1, 2}
	encoded := EncodeTwoWayMonotonicRun(values)
	decoded, _, err := DecodeTwoWayMonotonicRun(encoded, len(values))
	require.NoError(t, err)
	assert.Equal(t, values, decoded)
}

func TestDeltaRoundTrips(t *testing.T) {
	values := []uint64{1000, 1000, 1001, 950, 2000}
	encoded := EncodeDelta(values)
	decoded, n, err := DecodeDelta(encoded)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, values, decoded)
}

func TestDeltaEmpty(t *testing.T) {
	encoded := EncodeDelta(nil)
	decoded, _, err := DecodeDelta(encoded)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

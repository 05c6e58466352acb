package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeDocumentRoundTrips(t *testing.T) {
	viewCache := []byte{1, 2, 3}
	registry := []byte{4, 5}
	opLog := []byte{6, 7, 8, 9}

	buf := EncodeDocument(viewCache, registry, opLog)

	gotView, gotRegistry, gotOpLog, err := DecodeDocument(buf)
	require.NoError(t, err)
	assert.Equal(t, viewCache, gotView)
	assert.Equal(t, registry, gotRegistry)
	assert.Equal(t, opLog, gotOpLog)
}

func TestEncodeDecodeDocumentEmptyRegions(t *testing.T) {
	buf := EncodeDocument(nil, nil, nil)

	gotView, gotRegistry, gotOpLog, err := DecodeDocument(buf)
	require.NoError(t, err)
	assert.Empty(t, gotView)
	assert.Empty(t, gotRegistry)
	assert.Empty(t, gotOpLog)
}

func TestDecodeDocumentRejectsTruncatedBuffer(t *testing.T) {
	buf := EncodeDocument([]byte{1, 2, 3}, []byte{4, 5}, []byte{6, 7, 8, 9})
	_, _, _, err := DecodeDocument(buf[:2])
	require.Error(t, err)
}

package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/mnemo/internal/storage"
)

func TestNormalizeLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-5, storage.DefaultRecentLimit},
		{0, storage.DefaultRecentLimit},
		{1, 1},
		{50, 50},
		{storage.MaxRecentLimit, storage.MaxRecentLimit},
		{storage.MaxRecentLimit + 1, storage.MaxRecentLimit},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, storage.NormalizeLimit(tt.in), "NormalizeLimit(%d)", tt.in)
	}
}

func TestEmbeddingCodec(t *testing.T) {
	vec := []float32{0, 1, -1, 0.5, 3.25e-7, -1234.5}

	buf := storage.EncodeEmbedding(vec)
	assert.Len(t, buf, len(vec)*4)

	got, err := storage.DecodeEmbedding(buf)
	require.NoError(t, err)
	assert.Equal(t, vec, got)
}

func TestEmbeddingCodec_Empty(t *testing.T) {
	assert.Nil(t, storage.EncodeEmbedding(nil))
	assert.Nil(t, storage.EncodeEmbedding([]float32{}))

	got, err := storage.DecodeEmbedding(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDecodeEmbedding_RejectsTruncatedBlob(t *testing.T) {
	_, err := storage.DecodeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err)
}

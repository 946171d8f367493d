package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/docchat/internal/chunker"
)

func chunkWithVec(text string, vec []float32) EmbeddedChunk {
	return EmbeddedChunk{
		Chunk:  chunker.Chunk{Text: text, Source: "t.txt"},
		Vector: vec,
	}
}

func TestIndexQueryEmpty(t *testing.T) {
	ix := NewIndex()
	assert.Empty(t, ix.Query([]float32{1, 0}, 3))
	assert.Equal(t, 0, ix.Len())
}

func TestIndexQueryOrdering(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Insert([]EmbeddedChunk{
		chunkWithVec("orthogonal", []float32{0, 1}),
		chunkWithVec("exact", []float32{1, 0}),
		chunkWithVec("diagonal", []float32{1, 1}),
	}))

	hits := ix.Query([]float32{1, 0}, 3)
	require.Len(t, hits, 3)
	assert.Equal(t, "exact", hits[0].Chunk.Text)
	assert.Equal(t, "diagonal", hits[1].Chunk.Text)
	assert.Equal(t, "orthogonal", hits[2].Chunk.Text)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Greater(t, hits[1].Score, hits[2].Score)
}

func TestIndexQueryTieBreaksByInsertionOrder(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Insert([]EmbeddedChunk{
		chunkWithVec("first", []float32{1, 0}),
		chunkWithVec("second", []float32{1, 0}),
		chunkWithVec("third", []float32{2, 0}), // same direction, same cosine
	}))

	hits := ix.Query([]float32{1, 0}, 3)
	require.Len(t, hits, 3)
	assert.Equal(t, "first", hits[0].Chunk.Text)
	assert.Equal(t, "second", hits[1].Chunk.Text)
	assert.Equal(t, "third", hits[2].Chunk.Text)
}

func TestIndexQueryFewerThanK(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Insert([]EmbeddedChunk{chunkWithVec("only", []float32{1, 1})}))
	hits := ix.Query([]float32{1, 0}, 5)
	assert.Len(t, hits, 1)
}

func TestIndexInsertDimensionMismatch(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Insert([]EmbeddedChunk{chunkWithVec("a", []float32{1, 0, 0})}))
	err := ix.Insert([]EmbeddedChunk{chunkWithVec("b", []float32{1, 0})})
	assert.Error(t, err)
	// the failed batch must not be partially applied
	assert.Equal(t, 1, ix.Len())
}

func TestIndexInsertRejectsEmptyVector(t *testing.T) {
	ix := NewIndex()
	assert.Error(t, ix.Insert([]EmbeddedChunk{chunkWithVec("a", nil)}))
}

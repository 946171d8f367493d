package session

import (
	"fmt"
	"math"
	"sort"

	"github.com/mohammad-safakhou/docchat/internal/chunker"
)

// EmbeddedChunk is a document chunk together with its vector.
type EmbeddedChunk struct {
	chunker.Chunk
	Vector []float32
}

// Scored pairs a chunk with its similarity to a query.
type Scored struct {
	Chunk EmbeddedChunk
	Score float64
}

// Index is a flat-scan similarity index over one session's chunks. At the
// scale of a single user's documents a linear cosine scan is plenty; the
// contract would survive swapping in an approximate-neighbor structure.
//
// The index is not internally locked: the owning session's lock covers it.
type Index struct {
	chunks []EmbeddedChunk
	dim    int
}

func NewIndex() *Index {
	return &Index{}
}

// Len reports how many chunks the index holds.
func (ix *Index) Len() int { return len(ix.chunks) }

// Insert appends embedded chunks. Vector dimensionality must be constant
// within the index; the first insert fixes it.
func (ix *Index) Insert(chunks []EmbeddedChunk) error {
	dim := ix.dim
	for _, c := range chunks {
		if len(c.Vector) == 0 {
			return fmt.Errorf("chunk %q@%d has no vector", c.Source, c.Offset)
		}
		if dim == 0 {
			dim = len(c.Vector)
		} else if len(c.Vector) != dim {
			return fmt.Errorf("embedding dimension mismatch: index has %d, got %d", dim, len(c.Vector))
		}
	}
	ix.dim = dim
	ix.chunks = append(ix.chunks, chunks...)
	return nil
}

// Query returns the k most similar chunks under cosine similarity, highest
// first. Ties keep insertion order, earlier chunk wins. Fewer than k come
// back when the index is small; an empty index yields an empty result.
func (ix *Index) Query(vec []float32, k int) []Scored {
	if k <= 0 || len(ix.chunks) == 0 {
		return nil
	}
	scored := make([]Scored, 0, len(ix.chunks))
	for _, c := range ix.chunks {
		scored = append(scored, Scored{Chunk: c, Score: cosine(vec, c.Vector)})
	}
	// Stable sort keeps insertion order within equal scores.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Package vector holds fragment embeddings and answers nearest-neighbour queries for retrieval.
package vector

import (
	"context"
	"fmt"
)

// Index stores one vector per fragment ID.
type Index interface {
	// Upsert stores vectors under ids, replacing any vector already stored for an id.
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns up to k hits ordered by descending score. When accept is non-nil,
	// only ids it accepts are considered.
	Search(ctx context.Context, query []float32, k int, accept func(id string) bool) ([]Hit, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Close() error
}

// Hit is a single search result. Score is the cosine similarity clipped to [0, 1].
type Hit struct {
	ID    string
	Score float64
}

// Kind names an index implementation.
type Kind string

// KindMemory is brute-force search over vectors held in memory.
const KindMemory Kind = "memory"

// NewIndex creates an index of the given kind. An empty kind selects KindMemory.
func NewIndex(kind Kind, dimensions int) (Index, error) {
	switch kind {
	case KindMemory, "":
		return NewMemoryIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index kind: %s (supported: memory)", kind)
	}
}

package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an exact in-process Store. It backs tests and small
// local corpora where running Qdrant or Postgres is overkill.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Ensure(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension {
		return fmt.Errorf("%w: index holds %d-dimensional vectors, requested %d", ErrDimensionMismatch, s.dimension, dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, entries []Entry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		if s.dimension != 0 && len(entry.Vector) != s.dimension {
			return 0, fmt.Errorf("%w: entry %s has %d dimensions, index expects %d", ErrDimensionMismatch, entry.ChunkID, len(entry.Vector), s.dimension)
		}
	}

	// Validated up front so the batch applies fully or not at all.
	for _, entry := range entries {
		vec := make([]float32, len(entry.Vector))
		copy(vec, entry.Vector)
		entry.Vector = vec
		s.entries[entry.ChunkID] = entry
	}

	return len(entries), nil
}

func (s *MemoryStore) Search(_ context.Context, vector []float32, topK int) ([]Candidate, error) {
	if topK < 1 {
		topK = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimension != 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index expects %d", ErrDimensionMismatch, len(vector), s.dimension)
	}

	candidates := make([]Candidate, 0, len(s.entries))
	for _, entry := range s.entries {
		candidates = append(candidates, Candidate{
			ChunkID:    entry.ChunkID,
			Payload:    entry.Payload,
			Similarity: CosineSimilarity(vector, entry.Vector),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func (s *MemoryStore) Prune(_ context.Context, documentID string, fromIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.entries {
		if entry.Payload.DocumentID == documentID && entry.Payload.ChunkIndex >= fromIndex {
			delete(s.entries, id)
		}
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
	return nil
}

func (s *MemoryStore) ContentHash(_ context.Context, documentID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.entries {
		if entry.Payload.DocumentID == documentID && entry.Payload.ContentHash != "" {
			return entry.Payload.ContentHash, nil
		}
	}
	return "", nil
}

// Len reports how many entries the store holds.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// CosineSimilarity scores the closeness of two vectors in [-1, 1].
// A zero vector scores 0 against everything.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var (
	_ Store         = (*MemoryStore)(nil)
	_ ContentHasher = (*MemoryStore)(nil)
)

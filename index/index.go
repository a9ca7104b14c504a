// Package index defines the vector index port used for storing chunk
// embeddings and running similarity searches, with Qdrant, pgvector,
// and in-memory adapters.
package index

import (
	"context"
	"errors"
)

// ErrUnavailable reports a connectivity or storage failure in the
// underlying index engine.
var ErrUnavailable = errors.New("vector index unavailable")

// ErrDimensionMismatch reports a vector whose dimensionality disagrees
// with the index. Beyond the failed call, it signals an embedding
// model inconsistency: ingestion must halt rather than continue with
// incomparable vectors.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Payload carries enough chunk metadata to answer queries without a
// second lookup against the source documents.
type Payload struct {
	DocumentID  string `json:"document_id"`
	ChunkIndex  int    `json:"chunk_index"`
	Title       string `json:"title"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	Text        string `json:"content"`
	ContentHash string `json:"content_hash,omitempty"`
}

// Entry is one indexed vector. Upserting an entry whose ChunkID is
// already present replaces it.
type Entry struct {
	ChunkID string
	Vector  []float32
	Payload Payload
}

// Candidate is a ranked search hit. Similarity is cosine similarity
// and only comparable between vectors produced by the same embedding
// model.
type Candidate struct {
	ChunkID    string
	Payload    Payload
	Similarity float64
}

// Store is the similarity-search capability. Implementations must make
// each Upsert batch atomic from a reader's perspective: a concurrent
// Search never observes a half-written entry.
type Store interface {
	// Ensure prepares the backing collection for vectors of the given
	// dimensionality. It must be called before Upsert or Search.
	Ensure(ctx context.Context, dimension int) error

	// Upsert stores the entries, replacing any with matching chunk
	// IDs, and returns the number of entries applied.
	Upsert(ctx context.Context, entries []Entry) (int, error)

	// Search returns up to topK candidates ordered by descending
	// similarity. Asking for more entries than the index holds
	// returns everything, not an error.
	Search(ctx context.Context, vector []float32, topK int) ([]Candidate, error)

	// Prune removes the document's entries whose chunk index is at or
	// above fromIndex. Re-ingesting a document that now produces fewer
	// chunks uses it to drop the entries the shorter text no longer
	// covers.
	Prune(ctx context.Context, documentID string, fromIndex int) error

	// Clear removes all indexed entries.
	Clear(ctx context.Context) error
}

// ContentHasher is implemented by stores that can report the content
// hash recorded for a document, letting ingestion skip documents whose
// content has not changed.
type ContentHasher interface {
	ContentHash(ctx context.Context, documentID string) (string, error)
}

// Package chunker splits documents into fixed-size overlapping text
// chunks, the unit of embedding and retrieval.
package chunker

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"personarag/corpus"
)

// ErrInvalidConfig reports chunk parameters that cannot produce a
// valid split. Callers must fix the configuration; this is not
// retryable.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Chunk is a contiguous span of a document's raw text. Start and End
// are rune offsets into the original text, so every chunk can be
// traced back to its source.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	Start      int
	End        int
}

// Chunker performs fixed-size splitting measured in runes. Successive
// chunks start size-overlap runes apart, so adjacent chunks share
// exactly overlap runes of context.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split chunks the document's raw text. Empty text yields no chunks.
// A document shorter than the chunk size yields exactly one chunk; the
// final chunk may be shorter than the chunk size.
func (c *Chunker) Split(doc corpus.Document) []Chunk {
	runes := []rune(doc.RawText)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]Chunk, 0, (len(runes)+step-1)/step)

	for start := 0; ; start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		index := len(chunks)
		chunks = append(chunks, Chunk{
			ID:         ChunkID(doc.ID, index),
			DocumentID: doc.ID,
			Index:      index,
			Text:       string(runes[start:end]),
			Start:      start,
			End:        end,
		})
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// ChunkID derives a stable chunk identifier from the document ID and
// the chunk's position. Re-ingesting a document regenerates the same
// IDs, which lets the index overwrite stale entries in place.
func ChunkID(documentID string, index int) string {
	name := fmt.Sprintf("%s:%d", documentID, index)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

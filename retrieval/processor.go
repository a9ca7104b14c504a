// Package retrieval embeds questions and ranks indexed chunks against
// them.
package retrieval

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"personarag/embeddings"
	"personarag/index"
)

const defaultTopK = 5

// Processor is the query-side pipeline: embed the question, run a
// similarity search, return ranked candidates. Similarity is cosine
// similarity throughout, so scores are comparable across store
// implementations as long as the embedding model is the same.
type Processor struct {
	embedder embeddings.Embedder
	store    index.Store
	logger   *log.Logger
	topK     int
}

func NewProcessor(embedder embeddings.Embedder, store index.Store, logger *log.Logger, topK int) *Processor {
	if logger == nil {
		logger = log.Default()
	}
	if topK < 1 {
		topK = defaultTopK
	}
	return &Processor{
		embedder: embedder,
		store:    store,
		logger:   logger,
		topK:     topK,
	}
}

// Retrieve returns up to topK candidates for the question, ordered by
// descending similarity with ties broken by ascending chunk ID. A
// topK below 1 falls back to the configured default.
func (p *Processor) Retrieve(ctx context.Context, question string, topK int) ([]index.Candidate, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}
	if topK < 1 {
		topK = p.topK
	}

	vectors, err := p.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: embedder returned no vectors", embeddings.ErrUnavailable)
	}

	candidates, err := p.store.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	// Remote engines order by similarity but leave equal scores in
	// arbitrary order; re-sorting here keeps every store deterministic.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})

	p.logger.Printf("retrieved %d candidates for question (top_k=%d)", len(candidates), topK)
	return candidates, nil
}

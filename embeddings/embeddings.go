// Package embeddings maps text to fixed-dimension vectors through a
// pluggable provider.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"personarag/config"
)

// ErrUnavailable reports that the embedding provider could not be
// reached or could not produce vectors. Batch calls are all-or-nothing:
// no partial results accompany this error.
var ErrUnavailable = errors.New("embedding provider unavailable")

// ErrDimensionMismatch reports a vector whose dimensionality disagrees
// with the configured embedding dimension. It signals a model-identity
// inconsistency, so ingestion halts rather than indexing incomparable
// vectors.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder converts texts into vectors, preserving input order. All
// vectors from one embedder share the same dimensionality and model
// identity; mixing models in one index invalidates similarity scores.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Provider  string
	Model     string
	Dimension int

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewEmbedder(cfg config.Config) (Embedder, error) {
	opts := Options{
		Provider:      cfg.Embeddings.Provider,
		Model:         cfg.Embeddings.Model,
		Dimension:     cfg.Embeddings.Dimension,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIEmbedder(opts), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", opts.Provider)
	}
}

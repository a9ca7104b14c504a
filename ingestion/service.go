// Package ingestion drives documents through chunking, embedding, and
// vector storage.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"

	"personarag/chunker"
	"personarag/corpus"
	"personarag/embeddings"
	"personarag/index"
)

// Stage names the step an ingestion run (or one document within it)
// is at. A failure report carries the stage that broke.
type Stage string

const (
	StageCollecting Stage = "collecting"
	StageChunking   Stage = "chunking"
	StageEmbedding  Stage = "embedding"
	StageStoring    Stage = "storing"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

const defaultBatchSize = 64

// Failure records one document that could not be ingested, and at
// which stage it failed. The run carries on with the remaining
// documents; callers retry just these.
type Failure struct {
	DocumentID string
	Title      string
	Stage      Stage
	Err        error
}

// Report summarises one ingestion run.
type Report struct {
	Documents int
	Skipped   int
	Chunks    int
	Stored    int
	Failures  []Failure
}

// FailedDocumentIDs lists the documents that need a retry.
func (r Report) FailedDocumentIDs() []string {
	ids := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		ids = append(ids, f.DocumentID)
	}
	return ids
}

type Service struct {
	chunker   *chunker.Chunker
	embedder  embeddings.Embedder
	store     index.Store
	logger    *log.Logger
	dimension int
	batchSize int
}

func NewService(ch *chunker.Chunker, embedder embeddings.Embedder, store index.Store, logger *log.Logger, dimension int) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		chunker:   ch,
		embedder:  embedder,
		store:     store,
		logger:    logger,
		dimension: dimension,
		batchSize: defaultBatchSize,
	}
}

// IngestDirectory loads scraper output from dir and ingests it. Files
// that fail to load are reported as collecting-stage failures; the
// rest of the corpus still goes through.
func (s *Service) IngestDirectory(ctx context.Context, dir string) (Report, error) {
	s.logger.Printf("ingestion stage=%s dir=%s", StageCollecting, dir)
	documents, loadFailures, err := corpus.LoadDir(dir)
	if err != nil {
		return Report{}, fmt.Errorf("collect documents: %w", err)
	}
	for _, f := range loadFailures {
		s.logger.Printf("ingestion stage=%s file=%s: %v", StageFailed, f.Path, f.Err)
	}

	report, err := s.Ingest(ctx, documents)
	for _, f := range loadFailures {
		report.Failures = append(report.Failures, Failure{
			Title: f.Path,
			Stage: StageCollecting,
			Err:   f.Err,
		})
	}
	return report, err
}

// Ingest runs each document through chunk, embed, and store. A
// document failing to embed or store is recorded in the report and the
// run continues; a dimension mismatch aborts the whole run because it
// means the embedding model no longer matches the index.
func (s *Service) Ingest(ctx context.Context, documents []corpus.Document) (Report, error) {
	report := Report{Documents: len(documents)}

	if s.embedder == nil {
		return report, fmt.Errorf("embedder not configured")
	}
	if s.store == nil {
		return report, fmt.Errorf("vector store not configured")
	}
	if err := s.store.Ensure(ctx, s.dimension); err != nil {
		return report, fmt.Errorf("prepare index: %w", err)
	}

	hasher, _ := s.store.(index.ContentHasher)

	for _, doc := range documents {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		produced, stored, skipped, err := s.ingestDocument(ctx, doc, hasher)
		report.Chunks += produced
		report.Stored += stored
		if err != nil {
			stage := stageOf(err)
			report.Failures = append(report.Failures, Failure{
				DocumentID: doc.ID,
				Title:      doc.Title,
				Stage:      stage,
				Err:        err,
			})
			s.logger.Printf("ingestion stage=%s document=%s title=%q: %v", StageFailed, doc.ID, doc.Title, err)
			if errors.Is(err, index.ErrDimensionMismatch) || errors.Is(err, embeddings.ErrDimensionMismatch) {
				return report, fmt.Errorf("halting run, embedding model mismatch: %w", err)
			}
			continue
		}
		if skipped {
			report.Skipped++
		}
	}

	s.logger.Printf("ingestion stage=%s documents=%d stored=%d skipped=%d failed=%d",
		StageDone, report.Documents, report.Stored, report.Skipped, len(report.Failures))
	return report, nil
}

func (s *Service) ingestDocument(ctx context.Context, doc corpus.Document, hasher index.ContentHasher) (produced, stored int, skipped bool, err error) {
	hash := doc.ContentHash()
	if hasher != nil {
		known, hashErr := hasher.ContentHash(ctx, doc.ID)
		if hashErr != nil {
			s.logger.Printf("content hash lookup for %s failed: %v", doc.ID, hashErr)
		} else if known != "" && known == hash {
			s.logger.Printf("document %s unchanged, skipping", doc.ID)
			return 0, 0, true, nil
		}
	}

	s.logger.Printf("ingestion stage=%s document=%s", StageChunking, doc.ID)
	chunks := s.chunker.Split(doc)
	if len(chunks) == 0 {
		s.logger.Printf("document %s has no text, skipping", doc.ID)
		return 0, 0, true, nil
	}

	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := s.ingestBatch(ctx, doc, hash, chunks[start:end]); err != nil {
			return len(chunks), stored, false, err
		}
		stored += end - start
	}

	// A shorter document produces fewer chunks than the indexed copy;
	// entries beyond the new count would otherwise stay searchable.
	if err := s.store.Prune(ctx, doc.ID, len(chunks)); err != nil {
		return len(chunks), stored, false, fmt.Errorf("prune stale chunks: %w", err)
	}

	s.logger.Printf("ingested %s (%d chunks)", doc.ID, stored)
	return len(chunks), stored, false, nil
}

// ingestBatch embeds and upserts one slice of chunks. Both calls are
// all-or-nothing, so an interrupted run never leaves a batch half
// applied; retrying the document redoes whole batches.
func (s *Service) ingestBatch(ctx context.Context, doc corpus.Document, hash string, chunks []chunker.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	s.logger.Printf("ingestion stage=%s document=%s batch=%d", StageEmbedding, doc.ID, len(texts))
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: have %d chunks, %d vectors", len(chunks), len(vectors))
	}

	entries := make([]index.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = index.Entry{
			ChunkID: c.ID,
			Vector:  vectors[i],
			Payload: index.Payload{
				DocumentID:  c.DocumentID,
				ChunkIndex:  c.Index,
				Title:       doc.Title,
				Source:      string(doc.Source),
				URL:         doc.URL,
				Text:        c.Text,
				ContentHash: hash,
			},
		}
	}

	s.logger.Printf("ingestion stage=%s document=%s batch=%d", StageStoring, doc.ID, len(entries))
	if _, err := s.store.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	return nil
}

func stageOf(err error) Stage {
	switch {
	case errors.Is(err, embeddings.ErrUnavailable), errors.Is(err, embeddings.ErrDimensionMismatch):
		return StageEmbedding
	case errors.Is(err, index.ErrUnavailable), errors.Is(err, index.ErrDimensionMismatch):
		return StageStoring
	default:
		return StageFailed
	}
}

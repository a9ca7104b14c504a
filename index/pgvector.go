package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"personarag/database"
)

// PgvectorStore keeps chunk vectors in Postgres with the pgvector
// extension. Batches apply inside one transaction, so readers see each
// upsert all at once or not at all.
type PgvectorStore struct {
	pool      *pgxpool.Pool
	dimension int
}

func NewPgvectorStore(pool *pgxpool.Pool) *PgvectorStore {
	return &PgvectorStore{pool: pool}
}

func (s *PgvectorStore) Ensure(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}
	s.dimension = dimension
	if err := database.EnsureSchema(ctx, s.pool, dimension); err != nil {
		return fmt.Errorf("%w: ensure schema: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PgvectorStore) Upsert(ctx context.Context, entries []Entry) (count int, err error) {
	if len(entries) == 0 {
		return 0, nil
	}
	for _, entry := range entries {
		if s.dimension != 0 && len(entry.Vector) != s.dimension {
			return 0, fmt.Errorf("%w: entry %s has %d dimensions, index expects %d", ErrDimensionMismatch, entry.ChunkID, len(entry.Vector), s.dimension)
		}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("%w: begin tx: %v", ErrUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, entry := range entries {
		if _, err = tx.Exec(ctx, `
			INSERT INTO rag_chunks (id, document_id, chunk_index, title, source, url, content, content_hash, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
			ON CONFLICT (id) DO UPDATE SET
				document_id = EXCLUDED.document_id,
				chunk_index = EXCLUDED.chunk_index,
				title = EXCLUDED.title,
				source = EXCLUDED.source,
				url = EXCLUDED.url,
				content = EXCLUDED.content,
				content_hash = EXCLUDED.content_hash,
				embedding = EXCLUDED.embedding,
				updated_at = NOW()
		`, entry.ChunkID, entry.Payload.DocumentID, entry.Payload.ChunkIndex, entry.Payload.Title,
			entry.Payload.Source, entry.Payload.URL, entry.Payload.Text, entry.Payload.ContentHash,
			pgvector.NewVector(entry.Vector)); err != nil {
			return 0, wrapPgError("upsert chunk", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit tx: %v", ErrUnavailable, err)
	}
	return len(entries), nil
}

func (s *PgvectorStore) Search(ctx context.Context, vector []float32, topK int) ([]Candidate, error) {
	if topK < 1 {
		topK = 1
	}
	if s.dimension != 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index expects %d", ErrDimensionMismatch, len(vector), s.dimension)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, title, source, url, content,
		       1 - (embedding <=> $1::vector) AS similarity
		FROM rag_chunks
		ORDER BY embedding <=> $1::vector, id
		LIMIT $2
	`, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, wrapPgError("query similar chunks", err)
	}
	defer rows.Close()

	candidates := make([]Candidate, 0, topK)
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ChunkID, &c.Payload.DocumentID, &c.Payload.ChunkIndex, &c.Payload.Title,
			&c.Payload.Source, &c.Payload.URL, &c.Payload.Text, &c.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scan similar chunk: %v", ErrUnavailable, err)
		}
		candidates = append(candidates, c)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, rows.Err())
	}
	return candidates, nil
}

func (s *PgvectorStore) Prune(ctx context.Context, documentID string, fromIndex int) error {
	if _, err := s.pool.Exec(ctx,
		"DELETE FROM rag_chunks WHERE document_id = $1 AND chunk_index >= $2", documentID, fromIndex); err != nil {
		return wrapPgError("delete stale chunks", err)
	}
	return nil
}

func (s *PgvectorStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE rag_chunks"); err != nil {
		return wrapPgError("truncate chunks", err)
	}
	return nil
}

func (s *PgvectorStore) ContentHash(ctx context.Context, documentID string) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx,
		"SELECT content_hash FROM rag_chunks WHERE document_id = $1 LIMIT 1", documentID).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", wrapPgError("query content hash", err)
	}
	return hash, nil
}

// wrapPgError maps pgvector's dimension complaints onto the port's
// sentinel; everything else counts as index unavailability.
func wrapPgError(op string, err error) error {
	if strings.Contains(err.Error(), "dimensions") {
		return fmt.Errorf("%w: %s: %v", ErrDimensionMismatch, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

var (
	_ Store         = (*PgvectorStore)(nil)
	_ ContentHasher = (*PgvectorStore)(nil)
)

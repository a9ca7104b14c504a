package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// QdrantStore talks to a Qdrant instance over its REST API. Qdrant
// point upserts with wait=true are atomic per batch, which satisfies
// the reader-never-sees-partial-writes contract.
type QdrantStore struct {
	baseURL    string
	collection string
	dimension  int
	client     *http.Client
}

type QdrantOptions struct {
	Host       string
	Port       int
	Collection string
	Timeout    time.Duration
}

func NewQdrantStore(opts QdrantOptions) *QdrantStore {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantStore{
		baseURL:    fmt.Sprintf("http://%s:%d", opts.Host, opts.Port),
		collection: opts.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *QdrantStore) Ensure(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}
	s.dimension = dimension

	status, _, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	status, data, err := s.do(ctx, http.MethodPut, s.collectionURL(""), body)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("%w: create collection %s: %s", ErrUnavailable, s.collection, strings.TrimSpace(string(data)))
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	points := make([]map[string]any, len(entries))
	for i, entry := range entries {
		if s.dimension != 0 && len(entry.Vector) != s.dimension {
			return 0, fmt.Errorf("%w: entry %s has %d dimensions, index expects %d", ErrDimensionMismatch, entry.ChunkID, len(entry.Vector), s.dimension)
		}
		points[i] = map[string]any{
			"id":      entry.ChunkID,
			"vector":  entry.Vector,
			"payload": entry.Payload,
		}
	}

	body := map[string]any{"points": points}
	status, data, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body)
	if err != nil {
		return 0, err
	}
	if status >= 300 {
		if isDimensionError(status, data) {
			return 0, fmt.Errorf("%w: qdrant rejected upsert: %s", ErrDimensionMismatch, strings.TrimSpace(string(data)))
		}
		return 0, fmt.Errorf("%w: upsert points: %s", ErrUnavailable, strings.TrimSpace(string(data)))
	}
	return len(entries), nil
}

func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int) ([]Candidate, error) {
	if topK < 1 {
		topK = 1
	}
	if s.dimension != 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index expects %d", ErrDimensionMismatch, len(vector), s.dimension)
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	status, data, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), body)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		if isDimensionError(status, data) {
			return nil, fmt.Errorf("%w: qdrant rejected search: %s", ErrDimensionMismatch, strings.TrimSpace(string(data)))
		}
		return nil, fmt.Errorf("%w: search points: %s", ErrUnavailable, strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Result []struct {
			ID      string  `json:"id"`
			Score   float64 `json:"score"`
			Payload Payload `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", ErrUnavailable, err)
	}

	candidates := make([]Candidate, 0, len(parsed.Result))
	for _, hit := range parsed.Result {
		candidates = append(candidates, Candidate{
			ChunkID:    hit.ID,
			Payload:    hit.Payload,
			Similarity: hit.Score,
		})
	}
	return candidates, nil
}

func (s *QdrantStore) Prune(ctx context.Context, documentID string, fromIndex int) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
				{"key": "chunk_index", "range": map[string]any{"gte": fromIndex}},
			},
		},
	}
	status, data, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"), body)
	if err != nil {
		return err
	}
	if status >= 300 && status != http.StatusNotFound {
		return fmt.Errorf("%w: delete stale points: %s", ErrUnavailable, strings.TrimSpace(string(data)))
	}
	return nil
}

func (s *QdrantStore) Clear(ctx context.Context) error {
	status, data, err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil)
	if err != nil {
		return err
	}
	if status >= 300 && status != http.StatusNotFound {
		return fmt.Errorf("%w: delete collection %s: %s", ErrUnavailable, s.collection, strings.TrimSpace(string(data)))
	}
	return nil
}

func (s *QdrantStore) ContentHash(ctx context.Context, documentID string) (string, error) {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
		"limit":        1,
		"with_payload": []string{"content_hash"},
	}
	status, data, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/scroll"), body)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", nil
	}
	if status >= 300 {
		return "", fmt.Errorf("%w: scroll points: %s", ErrUnavailable, strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Result struct {
			Points []struct {
				Payload struct {
					ContentHash string `json:"content_hash"`
				} `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode scroll response: %v", ErrUnavailable, err)
	}
	if len(parsed.Result.Points) == 0 {
		return "", nil
	}
	return parsed.Result.Points[0].Payload.ContentHash, nil
}

func (s *QdrantStore) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.baseURL, s.collection, suffix)
}

func (s *QdrantStore) do(ctx context.Context, method, url string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: call qdrant: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read qdrant response: %v", ErrUnavailable, err)
	}
	return resp.StatusCode, data, nil
}

func isDimensionError(status int, body []byte) bool {
	return status == http.StatusBadRequest && bytes.Contains(bytes.ToLower(body), []byte("dimension"))
}

var (
	_ Store         = (*QdrantStore)(nil)
	_ ContentHasher = (*QdrantStore)(nil)
)

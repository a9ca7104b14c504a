package index

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
)

func newQdrantTestStore(t *testing.T, handler http.Handler) (*QdrantStore, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}

	store := NewQdrantStore(QdrantOptions{
		Host:       u.Hostname(),
		Port:       port,
		Collection: "test_collection",
	})
	return store, ts
}

func TestQdrantEnsureCreatesMissingCollection(t *testing.T) {
	var created bool
	store, _ := newQdrantTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			http.NotFound(w, r)
		case r.Method == http.MethodPut:
			var body struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode create body: %v", err)
			}
			if body.Vectors.Size != 4 || body.Vectors.Distance != "Cosine" {
				t.Errorf("unexpected collection config: %+v", body.Vectors)
			}
			created = true
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	if err := store.Ensure(context.Background(), 4); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !created {
		t.Fatal("expected collection to be created")
	}
}

func TestQdrantEnsureSkipsExistingCollection(t *testing.T) {
	store, _ := newQdrantTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := store.Ensure(context.Background(), 4); err != nil {
		t.Fatalf("ensure: %v", err)
	}
}

func TestQdrantUpsertSendsPoints(t *testing.T) {
	store, _ := newQdrantTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/test_collection/points" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Error("expected wait=true on upsert")
		}
		var body struct {
			Points []struct {
				ID      string    `json:"id"`
				Vector  []float32 `json:"vector"`
				Payload Payload   `json:"payload"`
			} `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode upsert body: %v", err)
		}
		if len(body.Points) != 2 {
			t.Errorf("expected 2 points, got %d", len(body.Points))
		}
		if body.Points[0].Payload.Title != "Post" {
			t.Errorf("payload not forwarded: %+v", body.Points[0].Payload)
		}
		w.WriteHeader(http.StatusOK)
	}))

	count, err := store.Upsert(context.Background(), []Entry{
		{ChunkID: "id-1", Vector: []float32{1, 0}, Payload: Payload{Title: "Post"}},
		{ChunkID: "id-2", Vector: []float32{0, 1}, Payload: Payload{Title: "Post"}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
}

func TestQdrantUpsertDimensionCheckedLocally(t *testing.T) {
	store, _ := newQdrantTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	store.dimension = 4

	_, err := store.Upsert(context.Background(), []Entry{{ChunkID: "id-1", Vector: []float32{1, 0}}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestQdrantSearchParsesResults(t *testing.T) {
	store, _ := newQdrantTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/test_collection/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"id": "id-1", "score": 0.92, "payload": map[string]any{"title": "Post", "content": "body text", "source": "medium"}},
				{"id": "id-2", "score": 0.61, "payload": map[string]any{"title": "Other", "content": "more text", "source": "linkedin"}},
			},
		})
	}))

	results, err := store.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(results))
	}
	if results[0].ChunkID != "id-1" || results[0].Similarity != 0.92 {
		t.Fatalf("unexpected first candidate: %+v", results[0])
	}
	if results[0].Payload.Text != "body text" {
		t.Fatalf("payload text not decoded: %+v", results[0].Payload)
	}
}

func TestQdrantErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, "boom", ErrUnavailable},
		{"dimension error", http.StatusBadRequest, `{"status":{"error":"Wrong input: Vector dimension error: expected dim: 4, got 2"}}`, ErrDimensionMismatch},
		{"other bad request", http.StatusBadRequest, "bad payload", ErrUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, _ := newQdrantTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))

			_, err := store.Search(context.Background(), []float32{1, 0}, 5)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestQdrantUnreachable(t *testing.T) {
	store := NewQdrantStore(QdrantOptions{Host: "127.0.0.1", Port: 1, Collection: "test"})
	if _, err := store.Search(context.Background(), []float32{1, 0}, 5); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestQdrantPruneSendsFilteredDelete(t *testing.T) {
	store, _ := newQdrantTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/test_collection/points/delete" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Error("expected wait=true on delete")
		}
		var body struct {
			Filter struct {
				Must []struct {
					Key   string `json:"key"`
					Match *struct {
						Value string `json:"value"`
					} `json:"match"`
					Range *struct {
						GTE int `json:"gte"`
					} `json:"range"`
				} `json:"must"`
			} `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode delete body: %v", err)
		}
		if len(body.Filter.Must) != 2 {
			t.Fatalf("expected 2 filter conditions, got %d", len(body.Filter.Must))
		}
		if body.Filter.Must[0].Key != "document_id" || body.Filter.Must[0].Match.Value != "doc-1" {
			t.Errorf("unexpected document filter: %+v", body.Filter.Must[0])
		}
		if body.Filter.Must[1].Key != "chunk_index" || body.Filter.Must[1].Range.GTE != 3 {
			t.Errorf("unexpected index filter: %+v", body.Filter.Must[1])
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := store.Prune(context.Background(), "doc-1", 3); err != nil {
		t.Fatalf("prune: %v", err)
	}
}

func TestQdrantContentHash(t *testing.T) {
	store, _ := newQdrantTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/test_collection/points/scroll" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"points": []map[string]any{
					{"payload": map[string]any{"content_hash": "deadbeef"}},
				},
			},
		})
	}))

	hash, err := store.ContentHash(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	if hash != "deadbeef" {
		t.Fatalf("expected deadbeef, got %q", hash)
	}
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"personarag/answer"
	"personarag/embeddings"
	"personarag/index"
	"personarag/ingestion"
)

type stubQueryService struct {
	result answer.Result
	err    error

	question string
	topK     int
}

func (s *stubQueryService) AnswerQuestion(_ context.Context, question string, topK int) (answer.Result, error) {
	s.question = question
	s.topK = topK
	return s.result, s.err
}

type stubIngestService struct {
	report ingestion.Report
	err    error

	dir string
}

func (s *stubIngestService) IngestDirectory(_ context.Context, dir string) (ingestion.Report, error) {
	s.dir = dir
	return s.report, s.err
}

func newTestServer(query QueryService, ingest IngestService) *Server {
	return New(query, ingest, nil)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubQueryService{}, &stubIngestService{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestQueryHappyPath(t *testing.T) {
	query := &stubQueryService{
		result: answer.Result{
			Answer: "I wrote about distributed tracing last spring.",
			Sources: []answer.Source{
				{Title: "Tracing Post", Content: "details", Kind: "medium", URL: "https://example.com/t", Similarity: 0.92},
			},
		},
	}
	srv := newTestServer(query, &stubIngestService{})

	body := strings.NewReader(`{"question": "What did you write about tracing?", "top_k": 3}`)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/query", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if query.topK != 3 {
		t.Fatalf("topK not forwarded, got %d", query.topK)
	}

	var resp queryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != query.result.Answer {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Source != "medium" || resp.Sources[0].Similarity != 0.92 {
		t.Fatalf("unexpected sources: %+v", resp.Sources)
	}
}

func TestQueryValidation(t *testing.T) {
	srv := newTestServer(&stubQueryService{}, &stubIngestService{})

	cases := []struct {
		name string
		body string
	}{
		{"empty question", `{"question": "   "}`},
		{"invalid json", `{"question": `},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(tc.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestQueryMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&stubQueryService{}, &stubIngestService{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/query", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestQueryDependencyFailureMapsToBadGateway(t *testing.T) {
	query := &stubQueryService{err: fmt.Errorf("embed question: %w", embeddings.ErrUnavailable)}
	srv := newTestServer(query, &stubIngestService{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"question": "anything"}`)))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestIngestReturnsReport(t *testing.T) {
	ingest := &stubIngestService{
		report: ingestion.Report{
			Documents: 4,
			Chunks:    12,
			Stored:    9,
			Skipped:   1,
			Failures: []ingestion.Failure{
				{DocumentID: "doc-1", Title: "Broken", Stage: ingestion.StageEmbedding, Err: embeddings.ErrUnavailable},
			},
		},
	}
	srv := newTestServer(&stubQueryService{}, ingest)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(`{"dir": "./data"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ingest.dir != "./data" {
		t.Fatalf("dir not forwarded, got %q", ingest.dir)
	}

	var resp ingestResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Documents != 4 || resp.Stored != 9 || resp.Skipped != 1 {
		t.Fatalf("unexpected report: %+v", resp)
	}
	if len(resp.Failed) != 1 || resp.Failed[0].Stage != string(ingestion.StageEmbedding) {
		t.Fatalf("unexpected failures: %+v", resp.Failed)
	}
}

func TestIngestDimensionMismatchMapsToConflict(t *testing.T) {
	ingest := &stubIngestService{
		report: ingestion.Report{
			Documents: 3,
			Stored:    7,
			Failures: []ingestion.Failure{
				{DocumentID: "doc-2", Title: "Broken", Stage: ingestion.StageStoring, Err: index.ErrDimensionMismatch},
			},
		},
		err: fmt.Errorf("store chunks: %w", index.ErrDimensionMismatch),
	}
	srv := newTestServer(&stubQueryService{}, ingest)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(`{"dir": "./data"}`)))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	// A halted run must still hand back the partial report so the
	// caller knows which documents to retry.
	var resp ingestErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Report.Stored != 7 {
		t.Fatalf("partial progress lost: %+v", resp.Report)
	}
	if len(resp.Report.Failed) != 1 || resp.Report.Failed[0].DocumentID != "doc-2" {
		t.Fatalf("failed document IDs lost: %+v", resp.Report.Failed)
	}
}

func TestIngestRequiresDir(t *testing.T) {
	srv := newTestServer(&stubQueryService{}, &stubIngestService{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

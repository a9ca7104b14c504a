// Package api exposes the ingestion and question-answering entry
// points over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"personarag/answer"
	"personarag/embeddings"
	"personarag/index"
	"personarag/ingestion"
	"personarag/llm"
)

// QueryService answers a single question.
type QueryService interface {
	AnswerQuestion(ctx context.Context, question string, topK int) (answer.Result, error)
}

// IngestService ingests scraper output from a directory.
type IngestService interface {
	IngestDirectory(ctx context.Context, dir string) (ingestion.Report, error)
}

type Server struct {
	query   QueryService
	ingest  IngestService
	logger  *log.Logger
	handler http.Handler
}

type errorResponse struct {
	Error string `json:"error"`
}

type queryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type queryResponse struct {
	Answer              string        `json:"answer"`
	Sources             []querySource `json:"sources"`
	InsufficientContext bool          `json:"insufficient_context"`
}

type querySource struct {
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	URL        string  `json:"url,omitempty"`
	Similarity float64 `json:"similarity"`
}

type ingestRequest struct {
	Dir string `json:"dir"`
}

type ingestResponse struct {
	Documents int             `json:"documents"`
	Chunks    int             `json:"chunks"`
	Stored    int             `json:"stored"`
	Skipped   int             `json:"skipped"`
	Failed    []ingestFailure `json:"failed"`
}

type ingestFailure struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
}

type ingestErrorResponse struct {
	Error  string         `json:"error"`
	Report ingestResponse `json:"report"`
}

func New(query QueryService, ingest IngestService, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{query: query, ingest: ingest, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/query", s.handleQuery)
	mux.HandleFunc("/v1/ingest", s.handleIngest)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	result, err := s.query.AnswerQuestion(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.logger.Printf("query failed: %v", err)
		writeError(w, statusFor(err), "could not answer the question")
		return
	}

	resp := queryResponse{
		Answer:              result.Answer,
		Sources:             make([]querySource, len(result.Sources)),
		InsufficientContext: result.InsufficientContext,
	}
	for i, src := range result.Sources {
		resp.Sources[i] = querySource{
			Title:      src.Title,
			Content:    src.Content,
			Source:     src.Kind,
			URL:        src.URL,
			Similarity: src.Similarity,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Dir) == "" {
		writeError(w, http.StatusBadRequest, "dir is required")
		return
	}

	report, err := s.ingest.IngestDirectory(r.Context(), req.Dir)
	if err != nil {
		s.logger.Printf("ingestion failed: %v", err)
		// A halted run still carries partial progress and the failed
		// document IDs; the caller needs them to retry.
		writeJSON(w, statusFor(err), ingestErrorResponse{
			Error:  "ingestion failed",
			Report: toIngestResponse(report),
		})
		return
	}

	writeJSON(w, http.StatusOK, toIngestResponse(report))
}

func toIngestResponse(report ingestion.Report) ingestResponse {
	resp := ingestResponse{
		Documents: report.Documents,
		Chunks:    report.Chunks,
		Stored:    report.Stored,
		Skipped:   report.Skipped,
		Failed:    make([]ingestFailure, len(report.Failures)),
	}
	for i, failure := range report.Failures {
		resp.Failed[i] = ingestFailure{
			DocumentID: failure.DocumentID,
			Title:      failure.Title,
			Stage:      string(failure.Stage),
			Error:      failure.Err.Error(),
		}
	}
	return resp
}

// statusFor maps capability failures onto 502 so callers can tell a
// broken dependency from a broken request.
func statusFor(err error) int {
	switch {
	case errors.Is(err, embeddings.ErrUnavailable),
		errors.Is(err, index.ErrUnavailable),
		errors.Is(err, llm.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, index.ErrDimensionMismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

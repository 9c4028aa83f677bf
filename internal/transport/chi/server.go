// Package chi serves the policyrag HTTP API on a go-chi router.
package chi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/policyrag/internal/domain/batch"
	"github.com/kailas-cloud/policyrag/internal/domain/role"
	logpkg "github.com/kailas-cloud/policyrag/internal/logger"
	"github.com/kailas-cloud/policyrag/internal/metrics"
	"github.com/kailas-cloud/policyrag/internal/usecase/answer"
	"github.com/kailas-cloud/policyrag/internal/usecase/health"
	"github.com/kailas-cloud/policyrag/internal/usecase/ingest"
)

// maxBodyBytes caps request bodies; ingestion batches carry full document text.
const maxBodyBytes = 8 << 20

// Server holds the HTTP handlers.
type Server struct {
	ingester  Ingester
	retriever Retriever
	answerer  Answerer
	health    HealthChecker
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewServer creates an HTTP API server. answerer may be nil when no generation model is configured.
func NewServer(
	ingester Ingester,
	retriever Retriever,
	answerer Answerer,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	return &Server{
		ingester:  ingester,
		retriever: retriever,
		answerer:  answerer,
		health:    health,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

// Routes builds the router with the full middleware chain.
func (s *Server) Routes(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(APIKeyAuth(apiKeys))
	r.Use(metrics.HTTPMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents", s.IngestDocuments)
		r.Delete("/documents/{id}", s.DeleteDocument)
		r.Post("/retrieve", s.Retrieve)
		r.Post("/answer", s.Answer)
	})
	return r
}

// IngestDocuments handles POST /v1/documents.
func (s *Server) IngestDocuments(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if !s.decode(w, r, &req) {
		return
	}

	sources := make([]ingest.Source, len(req.Documents))
	for i, d := range req.Documents {
		sources[i] = ingest.Source{DocumentID: d.ID, Text: d.Text}
	}

	results := s.ingester.IngestAll(r.Context(), sources)

	items := make([]IngestResultItem, len(results))
	for i, res := range results {
		items[i] = ingestResultItem(res)
	}
	committed, failed := batch.Summary(results)

	writeJSON(w, http.StatusOK, IngestResponse{
		Items:     items,
		Committed: committed,
		Failed:    failed,
	})
}

// DeleteDocument handles DELETE /v1/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r = r.WithContext(logpkg.With(r.Context(), zap.String("document_id", id)))
	n, err := s.ingester.Delete(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{ID: id, DeletedChunks: n})
}

// Retrieve handles POST /v1/retrieve.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx := logpkg.With(r.Context(), zap.String("role", req.Role))
	b, err := s.retriever.Retrieve(ctx, req.Query, role.Role(req.Role), req.TopN)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, RetrieveResponse{
		Query:   b.Query,
		Role:    req.Role,
		Entries: b.Entries,
		Context: b.Render(),
	})
}

// Answer handles POST /v1/answer.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	if s.answerer == nil {
		writeError(w, http.StatusNotImplemented, CodeGenerationUnavailable, "answer generation is not configured")
		return
	}

	var req AnswerRequest
	if !s.decode(w, r, &req) {
		return
	}

	var (
		ans answer.Answer
		err error
	)
	if req.Role != "" {
		ans, err = s.answerer.AnswerAs(r.Context(), req.Query, role.Role(req.Role))
	} else {
		ans, err = s.answerer.Answer(r.Context(), req.Query)
	}
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AnswerResponse{
		Answer:  ans.Text,
		Role:    ans.Role.String(),
		Sources: ans.Bundle.Sources(),
		Entries: ans.Bundle.Entries,
	})
}

// HealthCheck handles GET /health. Only an unreachable store makes the service unavailable.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == health.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// decode reads and validates a JSON body, writing the error response on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, validationMessage(err))
		return false
	}
	return true
}

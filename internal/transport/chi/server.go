package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/neargravity/semguard/internal/domain"
	"github.com/neargravity/semguard/internal/domain/analysis"
	"github.com/neargravity/semguard/internal/metrics"
	"github.com/neargravity/semguard/internal/usecase/guard"
	healthuc "github.com/neargravity/semguard/internal/usecase/health"
)

// Consumer contracts for the HTTP layer. Implemented by the semantic engine,
// the guard service, the NEAR client and the health service.
type (
	// Analyzer runs the distance/outlier engine over pre-embedded documents.
	Analyzer interface {
		Analyze(docs []domain.Document, threshold float64) (analysis.Report, error)
	}

	// GuardRunner executes the full search-embed-analyze-record flow.
	GuardRunner interface {
		Run(ctx context.Context, query string, threshold float64, count int) (guard.Result, error)
	}

	// AnalysisReader fetches a previously recorded report by identifier.
	AnalysisReader interface {
		GetAnalysis(ctx context.Context, identifier string) (analysis.Report, error)
	}

	// HealthChecker aggregates component health.
	HealthChecker interface {
		Check(ctx context.Context) healthuc.Report
	}
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// maxGuardCount bounds the per-request result count on the guard route.
const maxGuardCount = 10

// Server is the HTTP API: direct engine runs, guard runs, chain lookups.
type Server struct {
	engine           Analyzer
	guard            GuardRunner
	reader           AnalysisReader
	health           HealthChecker
	logger           *zap.Logger
	defaultThreshold float64
	errorHandlers    []errorHandler
}

// NewServer creates an HTTP API server. guard and reader can be nil when the
// corresponding providers are not configured; their routes then return 503.
func NewServer(engine Analyzer, guardSvc GuardRunner, reader AnalysisReader, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		engine:           engine,
		guard:            guardSvc,
		reader:           reader,
		health:           health,
		logger:           logger,
		defaultThreshold: analysis.DefaultThreshold,
	}
	s.errorHandlers = []errorHandler{
		dimensionMismatchHandler,
		sentinelHandler(domain.ErrInsufficientDocuments, http.StatusUnprocessableEntity, CodeInsufficientDocuments),
		sentinelHandler(domain.ErrDegenerateEmbedding, http.StatusUnprocessableEntity, CodeDegenerateEmbedding),
		sentinelHandler(domain.ErrInvalidThreshold, http.StatusBadRequest, CodeInvalidThreshold),
		sentinelHandler(domain.ErrDuplicateDocument, http.StatusBadRequest, CodeDuplicateDocument),
		sentinelHandler(domain.ErrTooManyDocuments, http.StatusRequestEntityTooLarge, CodeTooManyDocuments),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrSearchProviderError, http.StatusBadGateway, CodeSearchProviderError),
		sentinelHandler(domain.ErrChainUnavailable, http.StatusBadGateway, CodeChainUnavailable),
	}
	return s
}

// WithDefaultThreshold overrides the threshold used when a request omits one.
func (s *Server) WithDefaultThreshold(t float64) *Server {
	if t > 0 {
		s.defaultThreshold = t
	}
	return s
}

// Register mounts all API routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/v1/analyze", s.Analyze)
	r.Post("/v1/guard", s.Guard)
	r.Get("/v1/analysis/{id}", s.GetAnalysis)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Analyze handles POST /v1/analyze: pre-embedded documents in, report out.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "documents are required")
		return
	}
	for _, d := range req.Documents {
		if d.ID == "" {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "every document needs an id")
			return
		}
		if len(d.Embedding) == 0 {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "document "+d.ID+" has no embedding")
			return
		}
	}

	// An omitted threshold decodes as 0, which is inside the engine's valid
	// domain; resolve the default here so 0 never reaches the engine.
	threshold := req.Threshold
	if threshold == 0 {
		threshold = s.defaultThreshold
	}

	report, err := s.engine.Analyze(documentsFromAnalyze(req.Documents), threshold)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		s.handleDomainError(w, err)
		return
	}
	recordAnalysis(report)

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		AnalysisID: uuid.NewString(),
		Report:     report,
	})
}

// Guard handles POST /v1/guard: query in, full guard run out.
func (s *Server) Guard(w http.ResponseWriter, r *http.Request) {
	if s.guard == nil {
		writeError(w, http.StatusServiceUnavailable, CodeSearchProviderError, "guard flow is not configured")
		return
	}

	var req GuardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query is required")
		return
	}
	if req.Count < 0 || req.Count > maxGuardCount {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("count must be between 1 and %d", maxGuardCount))
		return
	}

	res, err := s.guard.Run(r.Context(), req.Query, req.Threshold, req.Count)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		s.handleDomainError(w, err)
		return
	}
	recordAnalysis(res.Report)

	writeJSON(w, http.StatusOK, GuardResponse{
		AnalysisID: res.AnalysisID,
		Query:      res.Query,
		QueryHash:  res.QueryHash,
		Documents:  guardDocuments(res.Documents),
		Report:     res.Report,
		Receipt:    res.Receipt,
	})
}

// GetAnalysis handles GET /v1/analysis/{id}: chain view read of a stored
// report. The id is the query hash used at submission time.
func (s *Server) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.reader == nil {
		writeError(w, http.StatusServiceUnavailable, CodeChainUnavailable, "chain reads are not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "analysis id is required")
		return
	}

	report, err := s.reader.GetAnalysis(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// recordAnalysis updates engine metrics after a successful run.
func recordAnalysis(report analysis.Report) {
	metrics.AnalysesTotal.WithLabelValues("ok").Inc()
	metrics.AnalysisDuration.Observe((time.Duration(report.ProcessingTimeMS) * time.Millisecond).Seconds())
	for _, o := range report.Outliers {
		metrics.OutliersTotal.WithLabelValues(string(o.Severity)).Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInsufficientDocuments,
		domain.ErrDimensionMismatch,
		domain.ErrDegenerateEmbedding,
		domain.ErrInvalidThreshold,
		domain.ErrTooManyDocuments,
		domain.ErrDuplicateDocument,
		domain.ErrNotFound,
		domain.ErrEmbeddingProviderError,
		domain.ErrSearchProviderError,
		domain.ErrChainUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// dimensionMismatchHandler surfaces the offending document and dimensions.
func dimensionMismatchHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		return false
	}
	var dme *domain.DimensionMismatchError
	if errors.As(err, &dme) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":        CodeDimensionMismatch,
			"message":     msg,
			"document_id": dme.DocumentID,
			"want":        dme.Want,
			"got":         dme.Got,
		})
		return true
	}
	writeError(w, http.StatusBadRequest, CodeDimensionMismatch, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

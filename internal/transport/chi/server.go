// Package chi is the HTTP transport: hand-written handlers over the dedup
// and health usecases, mounted on a chi router.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/neardup/internal/domain"
	"github.com/kailas-cloud/neardup/internal/minhash"
	dedupuc "github.com/kailas-cloud/neardup/internal/usecase/dedup"
	healthuc "github.com/kailas-cloud/neardup/internal/usecase/health"
)

const maxBatchSize = 1000

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest          = "bad_request"
	CodeValidationFailed    = "validation_failed"
	CodeCollectionNotFound  = "collection_not_found"
	CodeCollectionExists    = "collection_already_exists"
	CodeDuplicateDocument   = "duplicate_document"
	CodeConfigMismatch      = "config_mismatch"
	CodeConverterDisabled   = "converter_disabled"
	CodeInternalError       = "internal_error"
)

// DocumentPayload is one raw document in ingest and filter requests.
type DocumentPayload struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// IngestRequest is the body of POST /documents.
type IngestRequest struct {
	Documents []DocumentPayload `json:"documents"`
}

// IngestResponse reports how many documents were ingested.
type IngestResponse struct {
	Inserted int `json:"inserted"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Content string `json:"content"`
	TopK    int    `json:"top_k"`
	RefineK int    `json:"refine_k"`
}

// SearchResultItem is one ranked similarity hit.
type SearchResultItem struct {
	DocID      int64   `json:"doc_id"`
	DocName    string  `json:"doc_name"`
	TokenSet   string  `json:"token_set"`
	Similarity float64 `json:"similarity"`
	Distance   float64 `json:"distance"`
}

// SearchResponse is the body of a successful POST /search.
type SearchResponse struct {
	Items []SearchResultItem `json:"items"`
	Total int                `json:"total"`
}

// FilterRequest is the body of POST /filter: candidates are compared against
// the query text and only those strictly above the threshold survive.
type FilterRequest struct {
	Query     string            `json:"query"`
	Threshold float64           `json:"threshold"`
	Documents []DocumentPayload `json:"documents"`
}

// FilterResultItem is one surviving document.
type FilterResultItem struct {
	DocID      int64   `json:"doc_id"`
	DocName    string  `json:"doc_name"`
	Similarity float64 `json:"similarity"`
}

// FilterResponse is the body of a successful POST /filter.
type FilterResponse struct {
	Items []FilterResultItem `json:"items"`
	Total int                `json:"total"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the dedup engine over HTTP.
type Server struct {
	dedup         *dedupuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(dedup *dedupuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		dedup:  dedup,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		duplicateDocumentHandler,
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, CodeCollectionNotFound),
		sentinelHandler(domain.ErrCollectionExists, http.StatusConflict, CodeCollectionExists),
		sentinelHandler(domain.ErrConfigMismatch, http.StatusConflict, CodeConfigMismatch),
		sentinelHandler(minhash.ErrNumPermMismatch, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(dedupuc.ErrNoConverter, http.StatusNotImplemented, CodeConverterDisabled),
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chirouter.Router) {
	r.Put("/collections", s.CreateCollection)
	r.Delete("/collections", s.DropCollection)
	r.Post("/documents", s.IngestDocuments)
	r.Post("/documents/convert", s.IngestSource)
	r.Post("/search", s.Search)
	r.Post("/filter", s.Filter)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// CreateCollection handles PUT /collections.
func (s *Server) CreateCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.dedup.CreateCollection(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// DropCollection handles DELETE /collections.
func (s *Server) DropCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.dedup.DropCollection(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IngestDocuments handles POST /documents.
func (s *Server) IngestDocuments(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Documents) == 0 || len(req.Documents) > maxBatchSize {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("documents count must be between 1 and %d", maxBatchSize))
		return
	}

	inputs := make([]dedupuc.DocumentInput, len(req.Documents))
	for i, d := range req.Documents {
		inputs[i] = dedupuc.DocumentInput{ID: d.ID, Name: d.Name, Content: d.Content}
	}

	if err := s.dedup.Ingest(r.Context(), inputs); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{Inserted: len(inputs)})
}

// IngestSource handles POST /documents/convert: the body is the raw source
// file, converted to text by the external converter before ingestion. The
// document identity comes from the id and name query parameters.
func (s *Server) IngestSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "id query parameter must be an integer")
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "name query parameter is required")
		return
	}

	if err := s.dedup.IngestSource(r.Context(), id, name, r.Body); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{Inserted: 1})
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.TopK < 0 || req.RefineK < 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "top_k and refine_k must not be negative")
		return
	}

	candidates, err := s.dedup.Search(r.Context(), req.Content, req.TopK, req.RefineK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]SearchResultItem, len(candidates))
	for i := range candidates {
		items[i] = SearchResultItem{
			DocID:      candidates[i].DocID(),
			DocName:    candidates[i].DocName(),
			TokenSet:   candidates[i].TokenSet(),
			Similarity: candidates[i].Similarity(),
			Distance:   candidates[i].Distance(),
		}
	}

	writeJSON(w, http.StatusOK, SearchResponse{Items: items, Total: len(items)})
}

// Filter handles POST /filter: the exact-verification path over caller-supplied
// documents, no index involved.
func (s *Server) Filter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Threshold < 0 || req.Threshold > 1 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "threshold must be in [0, 1]")
		return
	}
	if len(req.Documents) == 0 || len(req.Documents) > maxBatchSize {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("documents count must be between 1 and %d", maxBatchSize))
		return
	}

	inputs := make([]dedupuc.DocumentInput, len(req.Documents))
	for i, d := range req.Documents {
		inputs[i] = dedupuc.DocumentInput{ID: d.ID, Name: d.Name, Content: d.Content}
	}

	docs, err := s.dedup.BuildDocuments(r.Context(), inputs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	querySig := s.dedup.SignText(req.Query)
	items := make([]FilterResultItem, 0, len(docs))
	for i := range docs {
		sim, err := minhash.Similarity(querySig, docs[i].MinHash())
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		if sim > req.Threshold {
			items = append(items, FilterResultItem{
				DocID:      docs[i].ID(),
				DocName:    docs[i].Name(),
				Similarity: sim,
			})
		}
	}

	writeJSON(w, http.StatusOK, FilterResponse{Items: items, Total: len(items)})
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrCollectionNotFound,
		domain.ErrCollectionExists,
		domain.ErrDuplicateDocument,
		domain.ErrConfigMismatch,
		minhash.ErrNumPermMismatch,
		dedupuc.ErrNoConverter,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// duplicateDocumentHandler handles ErrDuplicateDocument with the conflicting id.
func duplicateDocumentHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrDuplicateDocument) {
		return false
	}
	var dde *domain.DuplicateDocumentError
	if errors.As(err, &dde) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"code":    CodeDuplicateDocument,
			"message": msg,
			"doc_id":  dde.DocID,
		})
		return true
	}
	writeError(w, http.StatusConflict, CodeDuplicateDocument, msg)
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

// Package chi exposes the question answering service over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	askuc "github.com/kailas-cloud/ragdex/internal/usecase/ask"
	documentuc "github.com/kailas-cloud/ragdex/internal/usecase/document"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	"github.com/kailas-cloud/ragdex/internal/usecase/vector"
)

const (
	welcomeMessage  = "Welcome to the Q&A bot! Use /ask endpoint to ask questions."
	uploadedMessage = "File uploaded and processed"
	deletedMessage  = "File and related embeddings deleted"
	notFoundMessage = "File not found"

	uploadField = "file"
	// DefaultMaxUploadBytes bounds a multipart upload when no limit is configured.
	DefaultMaxUploadBytes int64 = 32 << 20
	multipartMemory       int64 = 8 << 20
)

// Auditor runs the catalog/index consistency check.
type Auditor interface {
	Check(ctx context.Context) (vector.Report, error)
}

// Server holds the HTTP handlers.
type Server struct {
	documents     *documentuc.Service
	ask           *askuc.Service
	health        *healthuc.Service
	auditor       Auditor
	logger        *zap.Logger
	maxUpload     int64
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	documents *documentuc.Service,
	ask *askuc.Service,
	health *healthuc.Service,
	auditor Auditor,
	logger *zap.Logger,
) *Server {
	return &Server{
		documents:     documents,
		ask:           ask,
		health:        health,
		auditor:       auditor,
		logger:        logger,
		maxUpload:     DefaultMaxUploadBytes,
		errorHandlers: defaultErrorHandlers(),
	}
}

// WithMaxUploadBytes limits the size of an upload request body.
func (s *Server) WithMaxUploadBytes(n int64) *Server {
	if n > 0 {
		s.maxUpload = n
	}
	return s
}

// Routes builds the router with the standard middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})

	r.Get("/", s.Root)
	r.Post("/upload", s.Upload)
	r.Delete("/delete/{name}", s.Delete)
	r.Post("/ask", s.Ask)
	r.Post("/search", s.Search)
	r.Get("/documents", s.ListDocuments)
	r.Get("/admin/consistency", s.Consistency)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

type messageResponse struct {
	Message string `json:"message"`
}

type uploadResponse struct {
	Message   string   `json:"message"`
	Chunks    int      `json:"chunks"`
	Document  string   `json:"document"`
	IDs       []string `json:"ids"`
	Overwrote bool     `json:"overwrote"`
}

type queryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

type hitResponse struct {
	ID       string  `json:"id"`
	Document string  `json:"document"`
	Seq      int     `json:"seq"`
	Text     string  `json:"text"`
	Score    float32 `json:"score"`
}

type askResponse struct {
	Answer  string        `json:"answer"`
	Sources []hitResponse `json:"sources,omitempty"`
}

type searchResponse struct {
	Items []hitResponse `json:"items"`
	Total int           `json:"total"`
}

type documentResponse struct {
	Name       string     `json:"name"`
	Size       int64      `json:"size"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
	Chunks     int        `json:"chunks"`
	Stored     bool       `json:"stored"`
	Indexed    bool       `json:"indexed"`
}

type documentListResponse struct {
	Items []documentResponse `json:"items"`
	Total int                `json:"total"`
}

type consistencyResponse struct {
	Consistent       bool     `json:"consistent"`
	Documents        int      `json:"documents"`
	Records          int      `json:"records"`
	CatalogChunks    int      `json:"catalog_chunks"`
	MissingRecords   []string `json:"missing_records"`
	OrphanRecords    []string `json:"orphan_records"`
	Misowned         []string `json:"misowned"`
	PersistedMatches bool     `json:"persisted_matches"`
	PersistedDetail  string   `json:"persisted_detail,omitempty"`
}

type healthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Index   indexStats        `json:"index"`
	Version string            `json:"version"`
}

type indexStats struct {
	Documents  int `json:"documents"`
	Records    int `json:"records"`
	Dimensions int `json:"dimensions"`
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: welcomeMessage})
}

// Upload handles POST /upload with a multipart "file" field.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid multipart body: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, `multipart field "file" is required`)
		return
	}
	defer func() { _ = file.Close() }()

	res, err := s.documents.Upload(r.Context(), header.Filename, file)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:   uploadedMessage,
		Chunks:    res.Chunks,
		Document:  res.Name,
		IDs:       res.IDs,
		Overwrote: res.Overwrote,
	})
}

// Delete handles DELETE /delete/{name}.
func (s *Server) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	found, err := s.documents.Delete(r.Context(), name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, messageResponse{Message: notFoundMessage})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: deletedMessage})
}

// Ask handles POST /ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	answer, err := s.ask.Ask(r.Context(), req.Query, req.K)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:  answer.Text,
		Sources: hitsToResponse(answer.Sources),
	})
}

// Search handles POST /search and returns ranked passages without generation.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	hits, err := s.ask.Search(r.Context(), req.Query, req.K)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := hitsToResponse(hits)
	writeJSON(w, http.StatusOK, searchResponse{Items: items, Total: len(items)})
}

// ListDocuments handles GET /documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	entries, err := s.documents.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]documentResponse, len(entries))
	for i, e := range entries {
		items[i] = documentResponse{
			Name:    e.Name,
			Size:    e.Size,
			Chunks:  e.Chunks,
			Stored:  e.Stored,
			Indexed: e.Indexed,
		}
		if !e.ModTime.IsZero() {
			mt := e.ModTime.UTC()
			items[i].ModifiedAt = &mt
		}
	}
	writeJSON(w, http.StatusOK, documentListResponse{Items: items, Total: len(items)})
}

// Consistency handles GET /admin/consistency. A violation is reported with
// status 500 and the full report body.
func (s *Server) Consistency(w http.ResponseWriter, r *http.Request) {
	rep, err := s.auditor.Check(r.Context())
	if err != nil && !errors.Is(err, domain.ErrConsistencyViolation) {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusInternalServerError
		s.logger.Error("consistency violation", zap.Error(err))
	}
	writeJSON(w, status, consistencyResponse{
		Consistent:       rep.Consistent(),
		Documents:        rep.Documents,
		Records:          rep.Records,
		CatalogChunks:    rep.CatalogChunks,
		MissingRecords:   nonNil(rep.MissingRecords),
		OrphanRecords:    nonNil(rep.OrphanRecords),
		Misowned:         nonNil(rep.Misowned),
		PersistedMatches: rep.PersistedMatches,
		PersistedDetail:  rep.PersistedDetail,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
		Index: indexStats{
			Documents:  report.Index.Documents,
			Records:    report.Index.Records,
			Dimensions: report.Index.Dimensions,
		},
		Version: report.Version,
	})
}

func decodeQuery(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return req, false
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return req, false
	}
	if req.K < 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "k must not be negative")
		return req, false
	}
	return req, true
}

func hitsToResponse(hits []domain.Hit) []hitResponse {
	out := make([]hitResponse, len(hits))
	for i, h := range hits {
		out[i] = hitResponse{
			ID:       h.ChunkID,
			Document: h.Document,
			Seq:      h.Seq,
			Text:     h.Text,
			Score:    h.Score,
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

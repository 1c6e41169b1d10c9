package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/logger"
)

// Error codes returned in the "code" field of an error body.
const (
	codeBadRequest           = "bad_request"
	codeValidationFailed     = "validation_failed"
	codePayloadTooLarge      = "payload_too_large"
	codeNotFound             = "not_found"
	codeExtractionFailed     = "extraction_failed"
	codeEmptyDocument        = "empty_document"
	codeEmbeddingProvider    = "embedding_provider_error"
	codeGenerationFailed     = "generation_failed"
	codeVectorDimMismatch    = "vector_dim_mismatch"
	codePersistenceFailed    = "persistence_failed"
	codeIndexCorrupted       = "index_corrupted"
	codeConsistencyViolation = "consistency_violation"
	codeCancelled            = "request_cancelled"
	codeInternal             = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// defaultErrorHandlers is ordered: the first matching sentinel wins.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		clientHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		clientHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		clientHandler(domain.ErrEmptyDocument, http.StatusUnprocessableEntity, codeEmptyDocument),
		clientHandler(domain.ErrExtraction, http.StatusUnprocessableEntity, codeExtractionFailed),
		serverHandler(domain.ErrEmbedding, http.StatusBadGateway, codeEmbeddingProvider),
		serverHandler(domain.ErrGeneration, http.StatusBadGateway, codeGenerationFailed),
		serverHandler(domain.ErrVectorDimMismatch, http.StatusInternalServerError, codeVectorDimMismatch),
		serverHandler(domain.ErrIndexCorruption, http.StatusInternalServerError, codeIndexCorrupted),
		serverHandler(domain.ErrConsistencyViolation, http.StatusInternalServerError, codeConsistencyViolation),
		serverHandler(domain.ErrPersistence, http.StatusInternalServerError, codePersistenceFailed),
	}
}

// clientHandler answers with the full error text; it only describes the
// caller's own input.
func clientHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

// serverHandler answers with the sentinel text only, without internals.
func serverHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	if ctxErr := r.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		log.Info("request cancelled", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, codeCancelled, "request cancelled")
		return
	}
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

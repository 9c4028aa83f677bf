package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/policyrag/internal/domain"
	logpkg "github.com/kailas-cloud/policyrag/internal/logger"
)

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest            ErrorCode = "bad_request"
	CodeValidationFailed      ErrorCode = "validation_failed"
	CodeUnauthorized          ErrorCode = "unauthorized"
	CodeNotFound              ErrorCode = "not_found"
	CodeDocumentNotFound      ErrorCode = "document_not_found"
	CodeUnsupportedRole       ErrorCode = "unsupported_role"
	CodeMalformedMetadata     ErrorCode = "malformed_metadata"
	CodeIncompleteIngestion   ErrorCode = "incomplete_ingestion"
	CodeVectorDimMismatch     ErrorCode = "vector_dim_mismatch"
	CodeUpstreamTimeout       ErrorCode = "upstream_timeout"
	CodeEmbeddingUnavailable  ErrorCode = "embedding_unavailable"
	CodeStoreUnavailable      ErrorCode = "store_unavailable"
	CodeGenerationUnavailable ErrorCode = "generation_unavailable"
	CodeInternalError         ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type errorMapping struct {
	sentinel error
	status   int
	code     ErrorCode
}

// errorMappings is ordered: the first match wins. Causes come before the
// wrappers that carry them so clients see why an ingestion was incomplete.
var errorMappings = []errorMapping{
	{domain.ErrUpstreamTimeout, http.StatusGatewayTimeout, CodeUpstreamTimeout},
	{domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable, CodeEmbeddingUnavailable},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, CodeStoreUnavailable},
	{domain.ErrGenerationUnavailable, http.StatusServiceUnavailable, CodeGenerationUnavailable},
	{domain.ErrVectorDimMismatch, http.StatusBadGateway, CodeVectorDimMismatch},
	{domain.ErrMalformedMetadata, http.StatusInternalServerError, CodeMalformedMetadata},
	{domain.ErrDocumentNotFound, http.StatusNotFound, CodeDocumentNotFound},
	{domain.ErrUnsupportedRole, http.StatusBadRequest, CodeUnsupportedRole},
	{domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed},
	{domain.ErrIncompleteIngestion, http.StatusInternalServerError, CodeIncompleteIngestion},
}

// classify maps an error to its code and HTTP status.
func classify(err error) (ErrorCode, int) {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return m.code, m.status
		}
	}
	return CodeInternalError, http.StatusInternalServerError
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return m.sentinel.Error()
		}
	}
	return "internal error"
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

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	code, status := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("code", string(code)), zap.Error(err))
	} else {
		log.Warn("domain error", zap.String("code", string(code)), zap.Error(err))
	}
	writeError(w, status, code, safeDomainMessage(err))
}

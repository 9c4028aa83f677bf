package chi

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kailas-cloud/policyrag/internal/domain/batch"
	"github.com/kailas-cloud/policyrag/internal/domain/bundle"
)

// IngestRequest is the body of POST /v1/documents.
type IngestRequest struct {
	Documents []DocumentItem `json:"documents" validate:"required,min=1,max=100,dive"`
}

// DocumentItem is a single document to ingest.
type DocumentItem struct {
	ID   string `json:"id" validate:"required,max=256"`
	Text string `json:"text" validate:"required"`
}

// IngestResultItem is the per-document ingestion outcome.
type IngestResultItem struct {
	ID     string         `json:"id"`
	Status batch.Status   `json:"status"`
	Chunks int            `json:"chunks"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// IngestResponse summarizes a batch ingestion.
type IngestResponse struct {
	Items     []IngestResultItem `json:"items"`
	Committed int                `json:"committed"`
	Failed    int                `json:"failed"`
}

// DeleteResponse is returned by DELETE /v1/documents/{id}.
type DeleteResponse struct {
	ID            string `json:"id"`
	DeletedChunks int    `json:"deleted_chunks"`
}

// RetrieveRequest is the body of POST /v1/retrieve.
type RetrieveRequest struct {
	Query string `json:"query" validate:"required,max=4096"`
	Role  string `json:"role" validate:"required,oneof=intern employee manager unknown"`
	TopN  int    `json:"top_n" validate:"omitempty,min=1,max=50"`
}

// RetrieveResponse carries the ranked context bundle.
type RetrieveResponse struct {
	Query   string         `json:"query"`
	Role    string         `json:"role"`
	Entries []bundle.Entry `json:"entries"`
	Context string         `json:"context"`
}

// AnswerRequest is the body of POST /v1/answer. Without a role the role is classified from the query.
type AnswerRequest struct {
	Query string `json:"query" validate:"required,max=4096"`
	Role  string `json:"role" validate:"omitempty,oneof=intern employee manager unknown"`
}

// AnswerResponse is a generated answer with its sources.
type AnswerResponse struct {
	Answer  string         `json:"answer"`
	Role    string         `json:"role"`
	Sources []string       `json:"sources"`
	Entries []bundle.Entry `json:"entries"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// validationMessage flattens validator errors into one deterministic message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s' tag", e.Namespace(), e.Tag()))
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

func ingestResultItem(r batch.Result) IngestResultItem {
	item := IngestResultItem{
		ID:     r.DocumentID(),
		Status: r.Status(),
		Chunks: r.Chunks(),
	}
	if r.Err() != nil {
		code, _ := classify(r.Err())
		item.Error = &ErrorResponse{Code: code, Message: safeDomainMessage(r.Err())}
	}
	return item
}

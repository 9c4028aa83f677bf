package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmbeddingUnavailable signals that the embedding provider was unreachable or rejected the input.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrStoreUnavailable signals that the vector store was unreachable.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrMalformedMetadata signals a metadata field that violates its expected format.
	ErrMalformedMetadata = errors.New("malformed metadata")
	// ErrIncompleteIngestion signals a document batch that was not committed.
	ErrIncompleteIngestion = errors.New("incomplete ingestion")
	// ErrUpstreamTimeout signals an external call that exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrUnsupportedRole signals a user role outside the closed role set.
	ErrUnsupportedRole = errors.New("unsupported role")
	// ErrInvalidInput signals a caller error (bad argument, empty identifier).
	ErrInvalidInput = errors.New("invalid input")
	// ErrVectorDimMismatch signals an embedding whose dimension differs from the deployment dimension.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrGenerationUnavailable signals a failure of the answer-generation provider.
	ErrGenerationUnavailable = errors.New("generation unavailable")
	// ErrDocumentNotFound signals a document with no stored records.
	ErrDocumentNotFound = errors.New("document not found")
)

// MalformedMetadataError reports the record and field that failed validation.
type MalformedMetadataError struct {
	ID    string
	Field string
	Value string
}

func (e *MalformedMetadataError) Error() string {
	return fmt.Sprintf("%s: %s has %s=%q", ErrMalformedMetadata.Error(), e.ID, e.Field, e.Value)
}

func (e *MalformedMetadataError) Unwrap() error { return ErrMalformedMetadata }

// NewMalformedMetadata creates a malformed metadata error.
func NewMalformedMetadata(id, field, value string) error {
	return &MalformedMetadataError{ID: id, Field: field, Value: value}
}

// IncompleteIngestionError reports a document whose batch was aborted.
// ChunkIndex is -1 when the failure was not tied to a single chunk (e.g. the store write).
type IncompleteIngestionError struct {
	DocumentID string
	ChunkIndex int
	Err        error
}

func (e *IncompleteIngestionError) Error() string {
	if e.ChunkIndex < 0 {
		return fmt.Sprintf("%s: document %s: %v", ErrIncompleteIngestion.Error(), e.DocumentID, e.Err)
	}
	return fmt.Sprintf("%s: document %s chunk %d: %v",
		ErrIncompleteIngestion.Error(), e.DocumentID, e.ChunkIndex, e.Err)
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches either.
func (e *IncompleteIngestionError) Unwrap() []error {
	return []error{ErrIncompleteIngestion, e.Err}
}

// NewIncompleteIngestion creates an incomplete ingestion error.
func NewIncompleteIngestion(documentID string, chunkIndex int, err error) error {
	return &IncompleteIngestionError{DocumentID: documentID, ChunkIndex: chunkIndex, Err: err}
}

// IsRetryable reports whether err is a transient upstream failure.
// Input faults (malformed metadata, unsupported role, invalid input) are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMalformedMetadata) ||
		errors.Is(err, ErrUnsupportedRole) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrVectorDimMismatch) {
		return false
	}
	return errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrUpstreamTimeout)
}

// WrapUpstream classifies an error from an external call. Deadline expiry becomes
// ErrUpstreamTimeout; anything else is wrapped with the given unavailability sentinel.
func WrapUpstream(err, unavailable error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
	}
	if errors.Is(err, unavailable) || errors.Is(err, ErrUpstreamTimeout) {
		return err
	}
	return fmt.Errorf("%w: %w", unavailable, err)
}

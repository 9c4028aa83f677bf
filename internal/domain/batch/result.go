// Package batch describes per-document outcomes of a multi-document ingestion run.
package batch

// Status is the ingestion outcome of a single document.
type Status string

// Document status values.
const (
	StatusCommitted Status = "committed"
	StatusFailed    Status = "failed"
)

// Result is the outcome of ingesting one document of a batch.
type Result struct {
	documentID string
	status     Status
	chunks     int
	err        error
}

// NewCommitted creates a result for a document whose records were written.
func NewCommitted(documentID string, chunks int) Result {
	return Result{documentID: documentID, status: StatusCommitted, chunks: chunks}
}

// NewFailed creates a result for a document that was not written.
func NewFailed(documentID string, err error) Result {
	return Result{documentID: documentID, status: StatusFailed, err: err}
}

// DocumentID returns the document identifier.
func (r Result) DocumentID() string { return r.documentID }

// Status returns the ingestion outcome.
func (r Result) Status() Status { return r.status }

// Chunks returns the number of records written; zero for failures.
func (r Result) Chunks() int { return r.chunks }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Summary counts committed and failed documents.
func Summary(results []Result) (committed, failed int) {
	for _, r := range results {
		if r.status == StatusCommitted {
			committed++
		} else {
			failed++
		}
	}
	return committed, failed
}

package batch

import (
	"errors"
	"testing"
)

func TestNewCommitted(t *testing.T) {
	r := NewCommitted("employee_handbook.txt", 4)
	if r.DocumentID() != "employee_handbook.txt" {
		t.Errorf("DocumentID() = %q", r.DocumentID())
	}
	if r.Status() != StatusCommitted {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusCommitted)
	}
	if r.Chunks() != 4 {
		t.Errorf("Chunks() = %d", r.Chunks())
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v, want nil", r.Err())
	}
}

func TestNewFailed(t *testing.T) {
	err := errors.New("embedding unavailable")
	r := NewFailed("manager_updates.txt", err)
	if r.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusFailed)
	}
	if r.Chunks() != 0 {
		t.Errorf("Chunks() = %d, want 0", r.Chunks())
	}
	if !errors.Is(r.Err(), err) {
		t.Errorf("Err() = %v, want %v", r.Err(), err)
	}
}

func TestSummary(t *testing.T) {
	committed, failed := Summary([]Result{
		NewCommitted("a", 1),
		NewFailed("b", errors.New("x")),
		NewCommitted("c", 0),
	})
	if committed != 2 || failed != 1 {
		t.Errorf("Summary = %d/%d, want 2/1", committed, failed)
	}
}

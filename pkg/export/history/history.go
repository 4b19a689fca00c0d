package history

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Run statuses.
const (
	StatusSuccess   = "success"
	StatusFailure   = "failure"
	StatusCancelled = "cancelled"
)

// DefaultLimit is the number of runs List returns when Query.Limit is zero.
const DefaultLimit = 100

// Run is the record of one export.
type Run struct {
	ID        string
	Job       string // empty for ad-hoc exports
	Driver    string
	Format    string
	Output    string
	Status    string
	Stage     string // failing stage, empty on success
	Error     string
	Rows      int64
	Bytes     int64
	StartedAt time.Time
	Duration  time.Duration
}

// Query filters the runs returned by List. Zero fields match everything.
type Query struct {
	Job    string
	Status string
	Since  time.Time
	Limit  int
}

func (q Query) limit() int {
	if q.Limit > 0 {
		return q.Limit
	}
	return DefaultLimit
}

func (q Query) matches(r *Run) bool {
	if q.Job != "" && r.Job != q.Job {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	if !q.Since.IsZero() && r.StartedAt.Before(q.Since) {
		return false
	}
	return true
}

// Store persists runs. Implementations are safe for concurrent use.
type Store interface {
	// Record stores run. Recording the same ID twice is an error.
	Record(ctx context.Context, run *Run) error

	// List returns matching runs, newest first.
	List(ctx context.Context, q Query) ([]*Run, error)

	// Prune deletes runs started before cutoff and returns how many were
	// removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}

// ErrDuplicateRun is returned when a run ID is recorded twice.
var ErrDuplicateRun = errors.New("run already recorded")

// StorageError is returned when a store operation fails.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("history %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, op string, err error) *StorageError {
	return &StorageError{Backend: backend, Op: op, Err: err}
}

package sync

import "fmt"

// SourceError reports a ledger login or connectivity failure.
// It is fatal: the run aborts before any board writes.
type SourceError struct {
	Op  string
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// PageError reports a failed page request during supplier pagination.
// A failed page invalidates the whole fetch; no partial result is used.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("ledger page %d failed: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// QueryError reports a failed board lookup (group, watermark or identity).
type QueryError struct {
	Op  string
	Key string
	Err error
}

func (e *QueryError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("board %s for key %s failed: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("board %s failed: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// WriteError reports a failed board create, update or batch create.
type WriteError struct {
	Op  string
	Key string
	Err error
}

func (e *WriteError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("board %s for %s failed: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("board %s failed: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

package sync

import (
	"errors"
	"fmt"
)

// ErrSyncInProgress is returned by Reconciler.PerformSync when another run
// is already in flight. At most one reconciliation executes at a time.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrRunTimeout is the cause recorded when a run exceeds its configured
// deadline.
var ErrRunTimeout = errors.New("sync run deadline exceeded")

// SourceUnavailableError reports a failed campaign fetch. The fetch is
// all-or-nothing: a failure for any single sub-account aborts the whole run.
type SourceUnavailableError struct {
	SubAccountID string
	Err          error
}

func (e *SourceUnavailableError) Error() string {
	if e.SubAccountID != "" {
		return fmt.Sprintf("campaign source unavailable (sub-account %s): %v", e.SubAccountID, e.Err)
	}
	return fmt.Sprintf("campaign source unavailable: %v", e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// StoreUnavailableError reports a failed page fetch from the page store.
type StoreUnavailableError struct {
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("page store unavailable: %v", e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// UpdateFailedError reports a failed write for a single page. It never
// aborts the run; the Reconciler records it and continues.
type UpdateFailedError struct {
	PageID string
	Err    error
}

func (e *UpdateFailedError) Error() string {
	return fmt.Sprintf("page %s update failed: %v", e.PageID, e.Err)
}

func (e *UpdateFailedError) Unwrap() error {
	return e.Err
}

package orchestrator

import (
	"context"
	"time"
)

// Job is one source's extraction unit of work, adapted from the teacher's
// scheduler Job contract and extended with the concurrency/quota knobs
// §4.7 requires per source.
type Job interface {
	// Source is the extractor identifier this job dispatches against.
	Source() string

	// Targets enumerates the URLs this run should visit, already filtered
	// of anything the caller wants to force-retry regardless of de-dup.
	Targets(ctx context.Context) ([]string, error)

	// Run fetches and extracts one target, pushing resulting pipeline
	// items downstream. A non-nil error counts as a failed target; the
	// orchestrator does not classify it, and any failed target sends the
	// source to cooldown.
	Run(ctx context.Context, target string) error

	// ConcurrencyCap bounds how many targets of this source may run at
	// once; DailyQuota bounds how many may run in a calendar day (0 = no
	// quota enforced).
	ConcurrencyCap() int
	DailyQuota() int
}

// RetriableError marks a Job.Run failure as retriable rather than fatal.
type RetriableError struct {
	Err error
}

func (e *RetriableError) Error() string { return e.Err.Error() }
func (e *RetriableError) Unwrap() error { return e.Err }

// IsRetriable reports whether err is a *RetriableError. The orchestrator's
// dispatch loop does not call it: every failed target sends its source to
// cooldown.
func IsRetriable(err error) bool {
	_, ok := err.(*RetriableError)
	return ok
}

// sourceTracker holds the live state machine position and bookkeeping for
// one source, guarded by the owning Orchestrator's mutex.
type sourceTracker struct {
	source          string
	state           State
	running         int
	cooldownUntil   time.Time
	consecutiveFail int
	lastError       error
}

package pipeline

import "fmt"

// ErrorKind is the closed error taxonomy of spec.md §7. Exactly one kind
// ever crosses a stage boundary, carried in a *StageError rather than a
// bare error string, so callers branch on Kind instead of matching text.
type ErrorKind string

const (
	ErrKindTransientNetwork ErrorKind = "transient_network"
	ErrKindRateLimited      ErrorKind = "rate_limited"
	ErrKindForbidden        ErrorKind = "forbidden"
	ErrKindChallenge        ErrorKind = "challenge"
	ErrKindExtraction       ErrorKind = "extraction_failure"
	ErrKindValidation       ErrorKind = "validation_failure"
	ErrKindResolverNotYet   ErrorKind = "resolver_not_yet"
	ErrKindUpstreamAPI      ErrorKind = "upstream_api_error"
	ErrKindPersistConflict  ErrorKind = "persistence_conflict"
)

// StageError is the structured side-channel error every stage emits on a
// dropped item: never an unstructured exception back up to the worker.
type StageError struct {
	Kind     ErrorKind
	Stage    string
	ItemKind ItemKind
	ItemRef  string // concise identifier of the bad item, e.g. display name
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline[%s/%s]: %s (%s): %v", e.Stage, e.Kind, e.ItemKind, e.ItemRef, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func newValidationError(stage string, kind ItemKind, ref string, err error) *StageError {
	return &StageError{Kind: ErrKindValidation, Stage: stage, ItemKind: kind, ItemRef: ref, Err: err}
}

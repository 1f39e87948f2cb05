package worker

import (
	"fmt"

	"github.com/easel-cloud/easel/internal/generator"
)

// ErrKind classifies why a job attempt failed. Every kind consumes a
// retry attempt; the queue decides whether to redeliver.
type ErrKind string

const (
	ErrKindValidation       ErrKind = "validation"
	ErrKindUnknownGenerator ErrKind = "unknown_generator"
	ErrKindProvider         ErrKind = "provider"
	ErrKindArtifact         ErrKind = "artifact"
	ErrKindPersistence      ErrKind = "persistence"
	ErrKindTimeout          ErrKind = "timeout"
)

// JobError is the tagged failure of one job attempt.
type JobError struct {
	Kind   ErrKind
	Detail string
	cause  error
}

func (e *JobError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *JobError) Unwrap() error {
	return e.cause
}

func failure(kind ErrKind, detail string, cause error) Result {
	return Result{Err: &JobError{Kind: kind, Detail: detail, cause: cause}}
}

// Result is the tagged outcome of one job attempt. Exactly one of
// Outputs or Err is meaningful; a zero Result means the job needed no
// work (already terminal, e.g. cancelled before processing).
type Result struct {
	Outputs []*generator.Artifact
	Err     *JobError
}

func (r Result) Failed() bool {
	return r.Err != nil
}

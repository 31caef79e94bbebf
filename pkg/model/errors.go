package model

import (
	"errors"
	"fmt"
)

// Domain errors surfaced by the dispatch engine. Both scheduling errors are
// recoverable by the client: a BadCommit client must rebase, a
// no-pending-work client retries later.
var (
	ErrBadCommit      = errors.New("commit too old")
	ErrNoPendingWork  = errors.New("no tests to run for this commit")
	ErrNotReady       = errors.New("service not ready")
	ErrEmptyResultSet = errors.New("empty result set")
)

// StoreUnavailableError wraps a failed persistent-store call. Read paths
// propagate it to the caller; best-effort writes log and swallow it.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrCodeBadCommit        ErrorCode = "BadCommitError"
	ErrCodeResourceNotFound ErrorCode = "ResourceNotFoundError"
	ErrCodeStoreUnavailable ErrorCode = "StoreUnavailableError"
	ErrCodeNotReady         ErrorCode = "NotReadyError"
	ErrCodeValidation       ErrorCode = "ValidationError"
	ErrCodeInternal         ErrorCode = "InternalError"
)

// APIError is a structured error returned by the HTTP API.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// APIErrorFor maps an engine error to its API representation.
func APIErrorFor(err error) *APIError {
	var unavailable *StoreUnavailableError
	switch {
	case errors.Is(err, ErrBadCommit):
		return &APIError{Code: ErrCodeBadCommit, Message: "commit too old; rebase before requesting work"}
	case errors.Is(err, ErrNoPendingWork):
		return &APIError{Code: ErrCodeResourceNotFound, Message: "no tests to run for this commit"}
	case errors.Is(err, ErrNotReady):
		return &APIError{Code: ErrCodeNotReady, Message: "service is still booting"}
	case errors.Is(err, ErrEmptyResultSet):
		return &APIError{Code: ErrCodeResourceNotFound, Message: err.Error()}
	case errors.As(err, &unavailable):
		return &APIError{Code: ErrCodeStoreUnavailable, Message: err.Error()}
	default:
		return &APIError{Code: ErrCodeInternal, Message: err.Error()}
	}
}

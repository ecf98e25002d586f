// Package services defines the business logic for projects, comments,
// uploads, and feedback summaries. This file centralizes service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Project, comment and upload errors.
var (
	// ErrProjectNotFound indicates that the requested project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrInvalidProject is returned when a project is missing a required field
	// or carries a malformed deadline.
	ErrInvalidProject = errors.New("invalid project")

	// ErrInvalidComment is returned when a comment has no author or no text.
	ErrInvalidComment = errors.New("invalid comment")

	// ErrUploadsDisabled is returned when no object store is configured.
	ErrUploadsDisabled = errors.New("file uploads are not configured")

	// ErrInvalidFileType is returned for extensions outside the allow-list.
	ErrInvalidFileType = errors.New("invalid file type")

	// ErrFileTooLarge is returned when an upload exceeds the configured cap.
	ErrFileTooLarge = errors.New("file too large")
)

// Summarization errors.
var (
	// ErrProjectIDRequired is returned when GenerateSummary gets a blank id.
	ErrProjectIDRequired = errors.New("project ID is required")

	// ErrNoFeedback is returned when a project has no comments to summarize.
	// It is a caller precondition failure, not a system fault.
	ErrNoFeedback = errors.New("no comments found for this project")

	// ErrRateLimited means the LLM gateway answered 429. Not retried here.
	ErrRateLimited = errors.New("rate limit exceeded, please try again later")

	// ErrPaymentRequired means the LLM gateway answered 402.
	ErrPaymentRequired = errors.New("payment required, please add credits to your workspace")

	// ErrUpstream is the class of every other LLM failure, including transport
	// errors and timeouts. Concrete failures are *UpstreamError values.
	ErrUpstream = errors.New("ai gateway error")

	// ErrStorage wraps any read or write failure against the database.
	ErrStorage = errors.New("storage error")
)

// UpstreamError is an unclassified LLM gateway failure. StatusCode carries the
// raw HTTP status, or 0 when no response was received (network error,
// timeout, empty completion).
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", ErrUpstream, e.Err)
		}
		return ErrUpstream.Error()
	}
	return fmt.Sprintf("%s: %d", ErrUpstream, e.StatusCode)
}

// Is makes errors.Is(err, ErrUpstream) hold for every *UpstreamError.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

func (e *UpstreamError) Unwrap() error { return e.Err }

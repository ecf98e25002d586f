// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes give clients a stable, machine-readable error taxonomy next to the
// human-readable message. Handlers pick the most specific code and pass it to
// fail() together with the HTTP status.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "no_feedback",
//	  "message": "no comments found for this project",
//	  "error": "no comments found for this project"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeNoFeedback      = "no_feedback"
	ErrCodePaymentRequired = "payment_required"
	ErrCodeUpstream        = "upstream_error"
	ErrCodeStorage         = "storage_error"
	ErrCodeCreateFailed    = "create_failed"
	ErrCodeListFailed      = "list_failed"
	ErrCodeUploadsDisabled = "uploads_disabled"
	ErrCodeInvalidFileType = "invalid_file_type"
	ErrCodePayloadTooLarge = "payload_too_large"
	ErrCodeUploadFailed    = "upload_failed"
	ErrCodeSummaryFailed   = "summary_failed"
)

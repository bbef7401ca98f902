package constants

const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeAuthFailed       = "AUTH_FAILED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeConflict         = "CONFLICT"
	ErrCodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternal         = "INTERNAL_ERROR"
	// Store timed out; safe to retry.
	ErrCodeUnavailable = "TEMPORARILY_UNAVAILABLE"
)

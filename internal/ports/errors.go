package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Data Source Errors
	ErrBackendUnavailable   = errors.New("data source is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the data source")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("data source authentication failed (check API keys)")
	ErrDecodeFailed         = errors.New("failed to decode data source response")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrUpdateFailed = errors.New("database update failed")
)

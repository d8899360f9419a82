package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeUnauthorized   = "E_UNAUTHORIZED"    // missing or wrong bearer token
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeNotFound       = "E_NOT_FOUND"       // no such route

	// Lock errors
	CodeLockHeld    = "E_LOCK_HELD"     // another client holds a live lease on the project
	CodeLockNotHeld = "E_LOCK_NOT_HELD" // the caller does not hold the lease it tried to renew

	// File errors
	CodeFileNotFound    = "E_FILE_NOT_FOUND"    // the project has no such file
	CodeFileInvalidName = "E_FILE_INVALID_NAME" // the name is not one of the tracked files
	CodeFileTooLarge    = "E_FILE_TOO_LARGE"    // content exceeds the configured limit
)

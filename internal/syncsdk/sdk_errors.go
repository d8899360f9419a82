package syncsdk

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoServerURL      = errors.New("sdk: server url missing")
	ErrInvalidServerURL = errors.New("sdk: invalid server url")

	// ErrUnreachable wraps every failure where no usable response was received
	ErrUnreachable      = errors.New("sdk: coordinator unreachable")
	ErrResponseTooLarge = errors.New("sdk: response body too large")

	ErrFileNotFound = errors.New("sdk: file not found")

	// content travels as a JSON string, so it must be valid UTF-8
	ErrInvalidContent = errors.New("sdk: content is not valid UTF-8")
)

const (
	CodeInvalidRequest = "E_INVALID_REQUEST"
	CodeUnauthorized   = "E_UNAUTHORIZED"
	CodeRateLimited    = "E_RATE_LIMITED"
	CodeInternalError  = "E_INTERNAL_ERROR"
	CodeLockHeld       = "E_LOCK_HELD"
	CodeLockNotHeld    = "E_LOCK_NOT_HELD"
	CodeFileNotFound   = "E_FILE_NOT_FOUND"
	CodeFileTooLarge   = "E_FILE_TOO_LARGE"
)

// APIError is a non-2xx response from the coordinator
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d %s - %s", e.StatusCode, e.Code, e.Message)
}

// LockHeldError is returned when another client holds the project lease
type LockHeldError struct {
	Lock *Lock
}

func (e *LockHeldError) Error() string {
	if e.Lock == nil {
		return "sdk: lock held by another client"
	}
	return fmt.Sprintf("sdk: lock held by %s until %s", e.Lock.ClientID, e.Lock.ExpiresAt.Format("15:04:05"))
}

// IsUnreachable reports whether err means the coordinator could not be talked to at all
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// handleAPIError turns the outcome of a request into an error, or nil on 2xx
func handleAPIError(resp *Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnreachable, operation, requestErr)
	}

	if resp.IsSuccess() {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.Status}
	if err := resp.Decode(apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.Status)
	}
	return fmt.Errorf("%s: %w", operation, apiErr)
}

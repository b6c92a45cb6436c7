package providers

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRemoteUnavailable covers transient transport and service failures.
	ErrRemoteUnavailable = errors.New("remote service unavailable")
	// ErrRemoteAuth means the access credential is missing, expired or rejected.
	ErrRemoteAuth = errors.New("remote authentication failed")
)

// APIError describes a non-success response from the remote service.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Message)
}

// Unwrap maps the response onto the error taxonomy so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	if IsAuthStatus(e.StatusCode) {
		return ErrRemoteAuth
	}
	return ErrRemoteUnavailable
}

// IsAuthStatus reports whether an HTTP status means the credential was refused.
func IsAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// IsAuthError reports whether err is (or wraps) an authentication failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrRemoteAuth)
}

// IsUnavailable reports whether err is (or wraps) a transient remote failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}

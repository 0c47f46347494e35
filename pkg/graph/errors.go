package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for Graph operations.
var (
	// ErrAuth indicates authentication failed after every configured
	// strategy, or a call still came back 401 after one re-auth.
	ErrAuth = errors.New("authentication failed")

	// ErrNotFound indicates the requested site, drive, folder or item
	// does not exist.
	ErrNotFound = errors.New("item not found")

	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrLibraryNotFound indicates no drive matched the configured
	// library name.
	ErrLibraryNotFound = errors.New("document library not found")

	// ErrThrottled indicates the request was rate limited by Graph.
	ErrThrottled = errors.New("request throttled")

	// ErrUnavailable indicates the Graph service returned a 5xx.
	ErrUnavailable = errors.New("service unavailable")

	// ErrTokenExpired indicates a pre-authenticated download URL was
	// rejected; the caller must obtain fresh item URLs.
	ErrTokenExpired = errors.New("download url expired")
)

// APIError wraps Graph call failures with request context.
type APIError struct {
	// Op is the operation that failed (e.g., "ListChildren").
	Op string

	// Path is the site-relative or drive-relative path, if applicable.
	Path string

	// Status is the HTTP status code, zero when the call never
	// reached the service.
	Status int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("graph %s %s: status %d: %v", e.Op, e.Path, e.Status, e.Err)
	}
	return fmt.Sprintf("graph %s: status %d: %v", e.Op, e.Status, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsAuth returns true if the error indicates authentication failed.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsNotFound returns true if the error indicates a missing item.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsLibraryNotFound returns true if no drive matched the configured
// library name.
func IsLibraryNotFound(err error) bool {
	return errors.Is(err, ErrLibraryNotFound)
}

// IsThrottled returns true if the error indicates Graph rate limiting.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsTokenExpired returns true if the error indicates an expired
// download URL.
func IsTokenExpired(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}

// statusErr maps an HTTP status code to a sentinel error.
func statusErr(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrAccessDenied
	case status == 404:
		return ErrNotFound
	case status == 429:
		return ErrThrottled
	case status >= 500:
		return ErrUnavailable
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}

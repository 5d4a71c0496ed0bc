package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoProviderEnabled reports that no enrichment path was configured
// for any of the requested sources. It is never worth retrying.
var ErrNoProviderEnabled = errors.New("no enrichment provider enabled")

// Category classifies an enrichment failure for retry decisions and
// metrics labels.
type Category string

// Failure categories.
const (
	CategoryUnauthorized Category = "unauthorized"
	CategoryForbidden    Category = "forbidden"
	CategoryRateLimited  Category = "rate_limited"
	CategoryNotFound     Category = "not_found"
	CategoryServerError  Category = "server_error"
	CategoryNetwork      Category = "network"
	CategoryBadResponse  Category = "bad_response"
	CategoryDisabled     Category = "disabled"
)

// Error wraps an enrichment failure with its category.
type Error struct {
	Category Category
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could plausibly succeed.
// Auth and client-side failures are permanent; transient upstream
// trouble is not.
func (e *Error) Retryable() bool {
	switch e.Category {
	case CategoryRateLimited, CategoryServerError, CategoryNetwork:
		return true
	default:
		return false
	}
}

// newError builds a categorized error.
func newError(cat Category, err error) *Error {
	return &Error{Category: cat, Err: err}
}

// categorizeStatus maps an HTTP status to a failure category.
func categorizeStatus(status int) Category {
	switch {
	case status == http.StatusUnauthorized:
		return CategoryUnauthorized
	case status == http.StatusForbidden:
		return CategoryForbidden
	case status == http.StatusTooManyRequests:
		return CategoryRateLimited
	case status == http.StatusNotFound:
		return CategoryNotFound
	case status >= 500:
		return CategoryServerError
	default:
		return CategoryBadResponse
	}
}

// Categorize extracts the failure category from an enrichment error,
// defaulting to network for plain transport errors.
func Categorize(err error) Category {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	if errors.Is(err, ErrNoProviderEnabled) {
		return CategoryDisabled
	}
	return CategoryNetwork
}

// IsRetryable reports whether the scheduler should attempt err again.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrNoProviderEnabled) {
		return false
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	// Plain transport errors are transient.
	return true
}

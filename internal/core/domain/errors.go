package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory is the closed set of failure classes a request can end in.
type ErrorCategory string

const (
	CategoryClient     ErrorCategory = "client_error"
	CategoryAuth       ErrorCategory = "auth_error"
	CategoryValidation ErrorCategory = "validation_error"
	CategoryServer     ErrorCategory = "server_error"
	CategoryNetwork    ErrorCategory = "network_error"
)

// Retryable reports whether failures of this category may be retried at all.
func (c ErrorCategory) Retryable() bool {
	return c == CategoryServer || c == CategoryNetwork
}

// DefaultErrorMessage is surfaced when an error response body is not JSON.
const DefaultErrorMessage = "Network error"

// APIError is the single error shape produced at the HTTP boundary.
// Status is 0 when the request never got a response.
type APIError struct {
	Status  int                 `json:"status,omitempty"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"errors,omitempty"`
	Err     error               `json:"-"`
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		if e.Err != nil {
			return fmt.Sprintf("network: %s: %v", e.Message, e.Err)
		}
		return "network: " + e.Message
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// HasStatus reports whether the error carries a usable HTTP status.
func (e *APIError) HasStatus() bool {
	return e.Status >= 100 && e.Status <= 599
}

// QueryError is the terminal error handed back to callers once a request
// stops retrying.
type QueryError struct {
	Key       string
	Category  ErrorCategory
	Attempts  int
	Exhausted bool // retryable category, retry budget used up
	Err       error
}

func (e *QueryError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "query %s failed (%s", e.Key, e.Category)
	if e.Exhausted {
		fmt.Fprintf(&sb, ", retries exhausted after %d", e.Attempts)
	}
	sb.WriteString(")")
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *QueryError) Unwrap() error { return e.Err }

// Status returns the HTTP status of the underlying API error, or 0.
func (e *QueryError) Status() int {
	var apiErr *APIError
	if errors.As(e.Err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

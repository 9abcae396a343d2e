// Package fallback turns a terminal request error into what the error
// boundary shows: a label, a description and a retry action.
package fallback

import (
	"context"
	"errors"

	"github.com/vietddude/queryplane/internal/core/domain"
	"github.com/vietddude/queryplane/internal/query/retry"
)

// Fallback describes how a failed request is presented.
type Fallback struct {
	Category    domain.ErrorCategory `json:"category"`
	Label       string               `json:"label"`
	Description string               `json:"description"`
	// Retryable is false when retrying cannot help without user action.
	Retryable bool `json:"retryable"`

	reset func(ctx context.Context) error
}

// Retry runs the reset hook, clearing attempt state and refetching.
func (f Fallback) Retry(ctx context.Context) error {
	if f.reset == nil {
		return errors.New("fallback: no reset hook")
	}
	return f.reset(ctx)
}

var texts = map[domain.ErrorCategory]struct{ label, description string }{
	domain.CategoryClient: {
		"Request failed",
		"The request could not be completed. Check the details and try again.",
	},
	domain.CategoryAuth: {
		"Access denied",
		"Your session has expired or you do not have permission to view this.",
	},
	domain.CategoryValidation: {
		"Invalid input",
		"Some of the submitted values were rejected. Correct them and resubmit.",
	},
	domain.CategoryServer: {
		"Server error",
		"Something went wrong on our side. We have been notified.",
	},
	domain.CategoryNetwork: {
		"Connection problem",
		"We could not reach the server. Check your connection and try again.",
	},
}

// Select picks the presentation for err. reset is invoked by Retry.
func Select(err error, reset func(ctx context.Context) error) Fallback {
	cat := domain.CategoryNetwork
	var qerr *domain.QueryError
	if errors.As(err, &qerr) {
		cat = qerr.Category
	} else {
		cat = retry.Classify(err)
	}

	t := texts[cat]
	return Fallback{
		Category:    cat,
		Label:       t.label,
		Description: t.description,
		Retryable:   cat != domain.CategoryAuth && cat != domain.CategoryValidation,
		reset:       reset,
	}
}

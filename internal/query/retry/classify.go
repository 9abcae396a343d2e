package retry

import (
	"errors"

	"github.com/vietddude/queryplane/internal/core/domain"
	"github.com/vietddude/queryplane/internal/forms"
)

// Classify maps a failed request to its ErrorCategory. It is a pure function
// of the error's status and body: 401/403 are always AuthError, whatever the
// message says, and a missing or unusable status is always NetworkError.
func Classify(err error) domain.ErrorCategory {
	if err == nil {
		return domain.CategoryNetwork // Should not happen
	}

	// Schema failures never left the process.
	var verr *forms.ValidationError
	if errors.As(err, &verr) {
		return domain.CategoryValidation
	}

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || !apiErr.HasStatus() {
		// Transport failures, timeouts, cancelled dials, anything without a
		// status code.
		return domain.CategoryNetwork
	}

	return classifyStatus(apiErr)
}

func classifyStatus(apiErr *domain.APIError) domain.ErrorCategory {
	switch s := apiErr.Status; {
	case s == 401 || s == 403:
		return domain.CategoryAuth
	case s == 422:
		return domain.CategoryValidation
	case s == 400 && len(apiErr.Fields) > 0:
		// Bad request carrying per-field errors is a validation failure.
		return domain.CategoryValidation
	case s >= 400 && s < 500:
		return domain.CategoryClient
	default:
		// 5xx, plus unexpected 1xx-3xx surfaced as errors.
		return domain.CategoryServer
	}
}

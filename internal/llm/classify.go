package llm

import (
	"context"
	"errors"
	"net/http"

	"basegraph.app/insight/common/llm"
	"basegraph.app/insight/internal/apperr"
)

// ClassifyError maps a provider failure onto the stable error taxonomy.
// Kinds already in the taxonomy pass through unchanged.
func ClassifyError(err error) apperr.Kind {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	if apiErr, ok := llm.AsAPIError(err); ok {
		switch {
		case apiErr.StatusCode >= 500:
			return apperr.KindServerError
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return apperr.KindRateLimited
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return apperr.KindUnauthorized
		case apiErr.StatusCode == http.StatusRequestTimeout:
			return apperr.KindTimeout
		case apiErr.StatusCode >= 400:
			return apperr.KindBadRequest
		}
		// StatusCode 0: the request never reached the provider.
		if errors.Is(apiErr.Err, context.DeadlineExceeded) {
			return apperr.KindTimeout
		}
		return apperr.KindNetworkError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.KindTimeout
	}
	return apperr.KindNetworkError
}

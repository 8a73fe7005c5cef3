package apperr

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrOrderNotFound        = errors.New("order not found")
	ErrPageNotFound         = errors.New("personal page not found")
	ErrTransitionConflict   = errors.New("transition conflict")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrProviderUnavailable  = errors.New("provider unavailable")
	ErrFulfillmentFailed    = errors.New("fulfillment failed")
	ErrRateLimited          = errors.New("rate limited")
)

func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"

	case errors.Is(err, ErrAuthenticationFailed):
		return "authentication_failed"

	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"

	case errors.Is(err, ErrPageNotFound):
		return "page_not_found"

	case errors.Is(err, ErrTransitionConflict):
		return "transition_conflict"

	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"

	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"

	case errors.Is(err, ErrFulfillmentFailed):
		return "fulfillment_failed"

	case errors.Is(err, ErrRateLimited):
		return "rate_limited"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest

	case errors.Is(err, ErrAuthenticationFailed):
		return http.StatusUnauthorized

	case errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrPageNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrTransitionConflict):
		return http.StatusOK

	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrProviderUnavailable):
		return http.StatusServiceUnavailable

	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller should expect a later attempt to succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrFulfillmentFailed) ||
		errors.Is(err, context.DeadlineExceeded)
}

package httpx

import (
	"errors"
	"net/http"

	"github.com/ladtc/ladtc/internal/shared"
)

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated), errors.Is(err, shared.ErrSessionStoreUnavailable):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidPayment),
		errors.Is(err, shared.ErrNoMembership),
		errors.Is(err, shared.ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes the user-safe message and status for err.
func RespondError(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), shared.UserSafeMessage(err))
}

package http

import (
	"errors"
	"net/http"

	inErrors "github.com/Alturino/storefront/internal/errors"
)

// StatusCode maps a service error to the status code it is answered with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case inErrors.IsExpiredCredential(err),
		errors.Is(err, inErrors.ErrUnauthenticated),
		errors.Is(err, inErrors.ErrTokenInvalid),
		errors.Is(err, inErrors.ErrTokenRevoked),
		errors.Is(err, inErrors.ErrEmptyAuth):
		return http.StatusUnauthorized
	case errors.Is(err, inErrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, inErrors.ErrCartLineNotFound), errors.Is(err, inErrors.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, inErrors.ErrCheckoutInProgress):
		return http.StatusConflict
	case errors.Is(err, inErrors.ErrInvalidQuantity),
		errors.Is(err, inErrors.ErrEmptyCart),
		errors.Is(err, inErrors.ErrInvalidOrderStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

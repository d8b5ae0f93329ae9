package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	inErrors "github.com/Alturino/storefront/internal/errors"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil", err: nil, expected: http.StatusOK},
		{name: "expired credential", err: fmt.Errorf("failed loading with error=%w", inErrors.ErrCredentialExpired), expected: http.StatusUnauthorized},
		{name: "expired jwt message", err: errors.New("JWT expired"), expected: http.StatusUnauthorized},
		{name: "revoked", err: inErrors.ErrTokenRevoked, expected: http.StatusUnauthorized},
		{name: "forbidden", err: inErrors.ErrForbidden, expected: http.StatusForbidden},
		{name: "line not found", err: fmt.Errorf("wrapped error=%w", inErrors.ErrCartLineNotFound), expected: http.StatusNotFound},
		{name: "order not found", err: inErrors.ErrOrderNotFound, expected: http.StatusNotFound},
		{name: "checkout in progress", err: inErrors.ErrCheckoutInProgress, expected: http.StatusConflict},
		{name: "invalid quantity", err: inErrors.ErrInvalidQuantity, expected: http.StatusBadRequest},
		{name: "empty cart", err: inErrors.ErrEmptyCart, expected: http.StatusBadRequest},
		{name: "unknown", err: errors.New("connection reset"), expected: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusCode(tt.err))
		})
	}
}

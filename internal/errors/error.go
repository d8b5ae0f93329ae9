package errors

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrEmptyAuth          = errors.New("missing authorization")
	ErrEmptySubject       = errors.New("missing subject")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrCredentialExpired  = errors.New("credential expired")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidQuantity    = errors.New("quantity must be between 1 and 9999")
	ErrCartLineNotFound   = errors.New("cart line not found")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidOrderStatus = errors.New("invalid order status")
	ErrNotificationFailed = errors.New("failed notifying admin")
)

// CodeExpiredJwt is the code the persistence gateway answers with when the
// bearer token it was given has expired.
const CodeExpiredJwt = "PGRST301"

// IsExpiredCredential reports whether err means the caller's credential is no
// longer accepted and the session has to be signed out.
func IsExpiredCredential(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCredentialExpired) || errors.Is(err, jwt.ErrTokenExpired) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == CodeExpiredJwt {
		return true
	}
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) && coded.ErrorCode() == CodeExpiredJwt {
		return true
	}
	return strings.Contains(err.Error(), "JWT expired")
}

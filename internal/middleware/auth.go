package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/auth"
	"github.com/Alturino/storefront/internal/constants"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/internal/session"
)

const MsgSessionExpired = "Your session has expired. Please sign in again."

type Denylist interface {
	session.Revoker
	IsRevoked(c context.Context, token string) (bool, error)
}

func writeRejected(c context.Context, w http.ResponseWriter, statusCode int, message string) {
	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "failed",
		"statusCode": statusCode,
		"message":    message,
	})
}

// Auth attaches a session to every request. Requests without a bearer token
// continue signed out. Invalid, revoked or expired tokens are rejected, and an
// expired one is revoked on the way out.
func Auth(secretKey string, denylist Denylist) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, span := otel.Tracer.Start(r.Context(), "middleware Auth")
			defer span.End()

			logger := zerolog.Ctx(c).With().Str(log.KeyTag, "middleware Auth").Logger()
			c = logger.WithContext(c)

			sess := session.New(denylist)

			authorization := r.Header.Get(inHttp.HeaderAuthorization)
			if authorization == "" {
				logger.Trace().Msg("no authorization, continuing signed out")
				next.ServeHTTP(w, r.WithContext(session.AttachToContext(c, sess)))
				return
			}

			token, found := strings.CutPrefix(authorization, "Bearer ")
			if !found {
				token, found = strings.CutPrefix(authorization, "bearer ")
			}
			if !found || token == "" {
				err := inErrors.ErrTokenInvalid
				otel.RecordError(err, span)
				logger.Error().Err(err).Msg(err.Error())
				writeRejected(c, w, http.StatusUnauthorized, err.Error())
				return
			}

			logger = logger.With().Str(log.KeyProcess, "verifying token").Logger()
			logger.Trace().Msg("verifying token")
			jwtToken, err := auth.VerifyToken(c, secretKey, token)
			if errors.Is(err, jwt.ErrTokenExpired) {
				otel.RecordError(err, span)
				logger.Warn().Err(err).Msg("token expired")

				if userID, ok := unverifiedSubject(token); ok {
					sess.SignIn(c, session.Identity{UserID: userID, Token: token})
				}
				sess.ForceSignOut(c, inErrors.ErrCredentialExpired)
				writeRejected(c, w, http.StatusUnauthorized, MsgSessionExpired)
				return
			}
			if err != nil {
				err = fmt.Errorf("%w with error=%w", inErrors.ErrTokenInvalid, err)
				otel.RecordError(err, span)
				logger.Error().Err(err).Msg(err.Error())
				writeRejected(c, w, http.StatusUnauthorized, inErrors.ErrTokenInvalid.Error())
				return
			}

			userID, err := auth.UserIdFromJwtToken(jwtToken)
			if err != nil {
				otel.RecordError(err, span)
				logger.Error().Err(err).Msg(err.Error())
				writeRejected(c, w, http.StatusUnauthorized, inErrors.ErrTokenInvalid.Error())
				return
			}
			logger = logger.With().Str(log.KeyUserID, userID.String()).Logger()

			if denylist != nil {
				revoked, err := denylist.IsRevoked(c, token)
				if err != nil {
					otel.RecordError(err, span)
					logger.Error().Err(err).Msg(err.Error())
					writeRejected(c, w, http.StatusInternalServerError, err.Error())
					return
				}
				if revoked {
					err = inErrors.ErrTokenRevoked
					otel.RecordError(err, span)
					logger.Warn().Err(err).Msg(err.Error())
					writeRejected(c, w, http.StatusUnauthorized, err.Error())
					return
				}
			}
			logger.Trace().Msg("verified token")

			c = logger.WithContext(c)
			sess.SignIn(c, session.Identity{
				UserID:    userID,
				Token:     token,
				ExpiresAt: auth.ExpiresAtFromJwtToken(jwtToken),
			})
			c = auth.AttachJwtToken(c, jwtToken)
			c = session.AttachToContext(c, sess)
			next.ServeHTTP(w, r.WithContext(c))
		})
	}
}

// unverifiedSubject reads the subject of a token whose signature was already
// checked but whose expiry failed.
func unverifiedSubject(token string) (uuid.UUID, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

type ProfileFinder interface {
	FindProfileById(c context.Context, id uuid.UUID) (repository.Profile, error)
}

// LoadProfile attaches the profile of the signed in user to the session. A
// missing profile leaves the session without one.
func LoadProfile(finder ProfileFinder) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, span := otel.Tracer.Start(r.Context(), "middleware LoadProfile")
			defer span.End()

			logger := zerolog.Ctx(c).With().
				Str(log.KeyTag, "middleware LoadProfile").
				Str(log.KeyProcess, "finding profile").
				Logger()

			sess := session.FromContext(c)
			identity, ok := sess.Identity()
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			logger.Trace().Msg("finding profile")
			profile, err := finder.FindProfileById(c, identity.UserID)
			switch {
			case errors.Is(err, pgx.ErrNoRows):
				logger.Info().Str(log.KeyUserID, identity.UserID.String()).Msg("no profile")
			case err != nil:
				err = sess.Intercept(c, fmt.Errorf("failed finding profile with error=%w", err))
				otel.RecordError(err, span)
				logger.Error().Err(err).Msg(err.Error())
				if inErrors.IsExpiredCredential(err) {
					writeRejected(c, w, http.StatusUnauthorized, MsgSessionExpired)
					return
				}
			default:
				sess.SetProfile(session.Profile{
					UserID:      profile.ID,
					FullName:    profile.FullName,
					Email:       profile.Email,
					PhoneNumber: profile.PhoneNumber,
					Role:        profile.Role,
				})
				logger.Trace().Msg("found profile")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Admin only lets through sessions whose profile has the admin role.
func Admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := r.Context()
		logger := zerolog.Ctx(c).With().Str(log.KeyTag, "middleware Admin").Logger()

		sess := session.FromContext(c)
		if _, ok := sess.Identity(); !ok {
			logger.Warn().Err(inErrors.ErrUnauthenticated).Msg(inErrors.ErrUnauthenticated.Error())
			writeRejected(c, w, http.StatusUnauthorized, inErrors.ErrUnauthenticated.Error())
			return
		}
		profile, ok := sess.Profile()
		if !ok || profile.Role != constants.RoleAdmin {
			logger.Warn().Err(inErrors.ErrForbidden).Msg(inErrors.ErrForbidden.Error())
			writeRejected(c, w, http.StatusForbidden, inErrors.ErrForbidden.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

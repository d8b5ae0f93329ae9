// Package session holds the identity of the shopper a request acts for and
// notifies interested components when that identity changes.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
)

type Identity struct {
	UserID    uuid.UUID
	Token     string
	ExpiresAt time.Time
}

func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

type Profile struct {
	UserID      uuid.UUID `json:"userId"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	Role        string    `json:"role"`
}

// Revoker invalidates a token before its natural expiry.
type Revoker interface {
	Revoke(c context.Context, token string, until time.Time) error
}

// Observer is called after every identity change. identity is nil after a
// sign-out.
type Observer func(c context.Context, identity *Identity)

type Context struct {
	mu        sync.RWMutex
	identity  *Identity
	profile   *Profile
	observers map[int]Observer
	nextID    int
	revoker   Revoker
	now       func() time.Time
}

func New(revoker Revoker) *Context {
	return &Context{observers: map[int]Observer{}, revoker: revoker, now: time.Now}
}

func (s *Context) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

func (s *Context) Profile() (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return Profile{}, false
	}
	return *s.profile, true
}

func (s *Context) SetProfile(profile Profile) {
	s.mu.Lock()
	s.profile = &profile
	s.mu.Unlock()
}

func (s *Context) SignIn(c context.Context, identity Identity) {
	s.mu.Lock()
	s.identity = &identity
	s.profile = nil
	s.mu.Unlock()

	zerolog.Ctx(c).Debug().
		Str(log.KeyTag, "session SignIn").
		Str(log.KeyUserID, identity.UserID.String()).
		Msg("signed in")
	s.notify(c, &identity)
}

func (s *Context) SignOut(c context.Context) {
	s.mu.Lock()
	wasSignedIn := s.identity != nil
	s.identity = nil
	s.profile = nil
	s.mu.Unlock()

	if !wasSignedIn {
		return
	}
	zerolog.Ctx(c).Debug().Str(log.KeyTag, "session SignOut").Msg("signed out")
	s.notify(c, nil)
}

// ForceSignOut revokes the current token and signs out. Revocation failures
// are logged and do not keep the session alive.
func (s *Context) ForceSignOut(c context.Context, cause error) {
	logger := zerolog.Ctx(c).With().Str(log.KeyTag, "session ForceSignOut").Logger()

	identity, ok := s.Identity()
	if !ok {
		return
	}
	logger = logger.With().Str(log.KeyUserID, identity.UserID.String()).Logger()
	logger.Warn().Err(cause).Msg("forcing sign out")
	metrics.ForcedSignOuts.Inc()

	if s.revoker != nil && identity.Token != "" {
		until := identity.ExpiresAt
		if until.IsZero() {
			until = s.now().Add(24 * time.Hour)
		}
		if err := s.revoker.Revoke(c, identity.Token, until); err != nil {
			logger.Error().Err(err).Msg("failed revoking token")
		}
	}
	s.SignOut(c)
}

// OnChange registers o and returns a func removing it again.
func (s *Context) OnChange(o Observer) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = o
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Check fails with ErrCredentialExpired and signs out when the current
// identity has outlived its token.
func (s *Context) Check(c context.Context) error {
	identity, ok := s.Identity()
	if !ok {
		return nil
	}
	if identity.Expired(s.now()) {
		s.ForceSignOut(c, inErrors.ErrCredentialExpired)
		return inErrors.ErrCredentialExpired
	}
	return nil
}

// Intercept forces a sign-out when err says the credential is no longer
// accepted. err is returned unchanged.
func (s *Context) Intercept(c context.Context, err error) error {
	if inErrors.IsExpiredCredential(err) {
		s.ForceSignOut(c, err)
	}
	return err
}

func (s *Context) notify(c context.Context, identity *Identity) {
	s.mu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.RUnlock()

	for _, o := range observers {
		o(c, identity)
	}
}

type sessionKey struct{}

func AttachToContext(c context.Context, s *Context) context.Context {
	return context.WithValue(c, sessionKey{}, s)
}

// FromContext returns the session attached to c, or a signed-out one.
func FromContext(c context.Context) *Context {
	if s, ok := c.Value(sessionKey{}).(*Context); ok {
		return s
	}
	return New(nil)
}

package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Alturino/storefront/cart/pkg/response"
	"github.com/Alturino/storefront/internal/alert"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/session"
)

// CartService hands out Stores that share one persistence backend, one
// mutation queue and one set of in-flight loads.
type CartService struct {
	backend Backend
	cache   SnapshotCache
	queue   *mutationQueue
	loads   *singleflight.Group
}

// NewCartService builds the service. cache may be nil.
func NewCartService(backend Backend, cache SnapshotCache) *CartService {
	return &CartService{
		backend: backend,
		cache:   cache,
		queue:   newMutationQueue(),
		loads:   &singleflight.Group{},
	}
}

// NewStore returns the cart of sess. Callers Close it when the session ends.
func (svc *CartService) NewStore(sess *session.Context, alerts alert.Channel) *Store {
	return newStore(svc.backend, svc.cache, svc.queue, svc.loads, sess, alerts)
}

// Summary answers from the mirrored summary when there is one and loads the
// cart otherwise.
func (svc *CartService) Summary(c context.Context, sess *session.Context) (response.Summary, error) {
	c, span := otel.Tracer.Start(c, "CartService Summary")
	defer span.End()

	logger := zerolog.Ctx(c).With().Str(log.KeyTag, "CartService Summary").Logger()

	identity, ok := sess.Identity()
	if !ok {
		return response.EmptySnapshot().Summary(), nil
	}
	logger = logger.With().Str(log.KeyUserID, identity.UserID.String()).Logger()

	if svc.cache != nil {
		logger.Debug().Msg("getting mirrored cart summary")
		summary, found, err := svc.cache.Get(c, identity.UserID)
		if err != nil {
			logger.Warn().Err(err).Msg("failed getting mirrored cart summary")
		}
		if found {
			logger.Debug().Msg("got mirrored cart summary")
			return summary, nil
		}
	}

	store := svc.NewStore(sess, alert.Discard)
	defer store.Close()
	snapshot, err := store.Load(logger.WithContext(c))
	if err != nil {
		err = fmt.Errorf("failed loading cart summary with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Summary{}, err
	}
	return snapshot.Summary(), nil
}

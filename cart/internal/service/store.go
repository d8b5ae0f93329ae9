package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/Alturino/storefront/cart/pkg/request"
	"github.com/Alturino/storefront/cart/pkg/response"
	"github.com/Alturino/storefront/internal/alert"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/internal/session"
)

const (
	MsgSignInToAdd     = "Please sign in to add items to cart"
	MsgSignInToChange  = "Please sign in to manage your cart"
	MsgItemAdded       = "Great choice! Item added to your cart."
	MsgItemIncreased   = "Cart updated! Item quantity increased."
	MsgAddFailed       = "Failed to add item to cart"
	MsgIncreaseFailed  = "Failed to update cart item"
	MsgQuantityUpdated = "Cart updated"
	MsgInvalidQuantity = "Quantity must be between 1 and 9999"
	MsgItemRemoved     = "Item removed from cart"
	MsgRemoveFailed    = "Failed to remove item from cart"
)

// Backend is the persistence the Store mirrors. *repository.Queries
// satisfies it.
type Backend interface {
	FindCartLinesByUserId(c context.Context, userID uuid.UUID) ([]repository.FindCartLinesByUserIdRow, error)
	InsertCartLine(c context.Context, arg repository.InsertCartLineParams) (repository.CartItem, error)
	UpdateCartLineQuantity(c context.Context, arg repository.UpdateCartLineQuantityParams) (repository.CartItem, error)
	DeleteCartLine(c context.Context, arg repository.DeleteCartLineParams) (int64, error)
	DeleteCartLinesByUserId(c context.Context, userID uuid.UUID) (int64, error)
	DeductCartLines(c context.Context, arg repository.DeductCartLinesParams) (int64, error)
}

type SnapshotCache interface {
	Set(c context.Context, userID uuid.UUID, summary response.Summary) error
	Get(c context.Context, userID uuid.UUID) (response.Summary, bool, error)
	Delete(c context.Context, userID uuid.UUID) error
}

// Store is the cart of one session. Only the Store replaces its snapshot, and
// only wholesale.
type Store struct {
	backend Backend
	cache   SnapshotCache
	queue   *mutationQueue
	loads   *singleflight.Group
	session *session.Context
	alerts  alert.Channel

	mu       sync.RWMutex
	snapshot response.Snapshot
	version  atomic.Uint64
	loading  atomic.Int32

	unsubscribe func()
}

func newStore(
	backend Backend,
	cache SnapshotCache,
	queue *mutationQueue,
	loads *singleflight.Group,
	sess *session.Context,
	alerts alert.Channel,
) *Store {
	if alerts == nil {
		alerts = alert.Discard
	}
	s := &Store{
		backend:  backend,
		cache:    cache,
		queue:    queue,
		loads:    loads,
		session:  sess,
		alerts:   alerts,
		snapshot: response.EmptySnapshot(),
	}
	s.unsubscribe = sess.OnChange(func(c context.Context, _ *session.Identity) {
		if _, err := s.Load(c); err != nil {
			zerolog.Ctx(c).Warn().
				Err(err).
				Str(log.KeyTag, "Store OnChange").
				Msg("failed reloading cart after identity change")
		}
	})
	return s
}

// Close detaches the Store from its session.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Snapshot returns a copy of the current cart.
func (s *Store) Snapshot() response.Snapshot {
	s.mu.RLock()
	snapshot := s.snapshot.Clone()
	s.mu.RUnlock()
	snapshot.Loading = s.loading.Load() > 0
	return snapshot
}

func (s *Store) publish(snapshot response.Snapshot) {
	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()
}

// publishAt replaces the snapshot unless a write committed after version was
// read.
func (s *Store) publishAt(version uint64, snapshot response.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version.Load() != version {
		return false
	}
	s.snapshot = snapshot
	return true
}

func (s *Store) fetch(c context.Context, userID uuid.UUID) (response.Snapshot, error) {
	rows, err := s.backend.FindCartLinesByUserId(c, userID)
	if err != nil {
		return response.Snapshot{}, s.session.Intercept(c, err)
	}
	lines := make([]response.CartLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, row.Response())
	}
	return response.Snapshot{Lines: lines}, nil
}

// Load replaces the snapshot with the lines persisted for the signed in user.
// Without an identity the snapshot becomes empty.
func (s *Store) Load(c context.Context) (response.Snapshot, error) {
	c, span := otel.Tracer.Start(c, "Store Load")
	defer span.End()

	logger := zerolog.Ctx(c).With().Str(log.KeyTag, "Store Load").Logger()

	identity, ok := s.session.Identity()
	if !ok {
		logger.Debug().Msg("no identity, resetting cart")
		s.version.Add(1)
		s.publish(response.EmptySnapshot())
		return s.Snapshot(), nil
	}
	userID := identity.UserID
	span.SetAttributes(attribute.String(log.KeyUserID, userID.String()))
	logger = logger.With().Str(log.KeyUserID, userID.String()).Logger()

	if err := s.session.Check(c); err != nil {
		otel.RecordError(err, span)
		logger.Warn().Err(err).Msg(err.Error())
		metrics.CartLoads.WithLabelValues(metrics.ResultFailure).Inc()
		return s.Snapshot(), err
	}

	s.loading.Add(1)
	defer s.loading.Add(-1)

	l := s.queue.pin(userID)
	defer s.queue.release(userID, l)
	gen := l.generation()
	version := s.version.Load()
	logger = logger.With().Str(log.KeyProcess, "loading cart lines").Logger()
	logger.Debug().Msg("loading cart lines")
	v, err, shared := s.loads.Do(userID.String(), func() (interface{}, error) {
		return s.fetch(c, userID)
	})
	if err != nil {
		err = fmt.Errorf("failed loading cart of userId=%s with error=%w", userID.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		metrics.CartLoads.WithLabelValues(metrics.ResultFailure).Inc()
		return s.Snapshot(), err
	}
	snapshot := v.(response.Snapshot).Clone()
	metrics.CartLoads.WithLabelValues(metrics.ResultSuccess).Inc()

	if !s.publishAt(version, snapshot) {
		logger.Debug().Msg("discarded cart lines older than the current snapshot")
		return s.Snapshot(), nil
	}
	logger.Debug().
		Int(log.KeyCartLines, len(snapshot.Lines)).
		Bool("shared", shared).
		Msg("loaded cart lines")

	mirrored := l.ifCurrent(gen, func() { s.mirror(c, userID, snapshot) })
	if !mirrored {
		logger.Debug().Msg("skipped mirroring cart lines read before a committed write")
	}
	return s.Snapshot(), nil
}

// committed marks a write of userID as durable. Reads already in flight no
// longer reach the mirror, and later reads start a fresh fetch.
func (s *Store) committed(l *lane, userID uuid.UUID) uint64 {
	s.loads.Forget(userID.String())
	l.bump()
	return s.version.Add(1)
}

// reload publishes a fresh read after a write of this Store committed. It
// runs inside the lane of userID.
func (s *Store) reload(c context.Context, l *lane, userID uuid.UUID) error {
	version := s.committed(l, userID)

	snapshot, err := s.fetch(c, userID)
	if err != nil {
		return fmt.Errorf("failed reloading cart of userId=%s with error=%w", userID.String(), err)
	}
	if s.publishAt(version, snapshot) {
		s.mirror(c, userID, snapshot)
	}
	return nil
}

func (s *Store) mirror(c context.Context, userID uuid.UUID, snapshot response.Snapshot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(c, userID, snapshot.Summary()); err != nil {
		zerolog.Ctx(c).Warn().
			Err(err).
			Str(log.KeyTag, "Store mirror").
			Str(log.KeyUserID, userID.String()).
			Msg("failed mirroring cart summary")
	}
}

func (s *Store) fail(c context.Context, span trace.Span, operation string, message string, err error) error {
	otel.RecordError(err, span)
	zerolog.Ctx(c).Error().Err(err).Msg(err.Error())
	s.alerts.Emit(c, alert.Error(message))
	metrics.CartMutations.WithLabelValues(operation, metrics.ResultFailure).Inc()
	return err
}

// AddItem merges req into the line of the same product, size and color, or
// inserts a new line. Without an identity it only emits feedback.
func (s *Store) AddItem(c context.Context, req request.AddItem) error {
	c, span := otel.Tracer.Start(c, "Store AddItem")
	defer span.End()

	req = req.WithDefaults()
	logger := zerolog.Ctx(c).With().
		Str(log.KeyTag, "Store AddItem").
		Str(log.KeyProductID, req.ProductID.String()).
		Int32(log.KeyQuantity, req.Quantity).
		Logger()
	c = logger.WithContext(c)

	identity, ok := s.session.Identity()
	if !ok {
		logger.Info().Msg("add to cart without identity")
		s.alerts.Emit(c, alert.Error(MsgSignInToAdd))
		metrics.CartMutations.WithLabelValues("add", metrics.ResultSkipped).Inc()
		return nil
	}
	if req.Quantity < 1 || req.Quantity > request.MaxQuantity {
		return s.fail(c, span, "add", MsgInvalidQuantity, inErrors.ErrInvalidQuantity)
	}
	userID := identity.UserID
	logger = logger.With().Str(log.KeyUserID, userID.String()).Logger()
	c = logger.WithContext(c)

	merged := false
	err := s.queue.Do(c, userID, func(l *lane) error {
		if err := s.session.Check(c); err != nil {
			return err
		}

		logger.Debug().Msg("reading cart lines before merge")
		current, err := s.fetch(c, userID)
		if err != nil {
			return err
		}

		existing, found := current.Find(req.ProductID, req.Size, req.Color)
		if found {
			merged = true
			if existing.Quantity > request.MaxQuantity-req.Quantity {
				return inErrors.ErrInvalidQuantity
			}
			logger = logger.With().
				Str(log.KeyProcess, "increasing cart line quantity").
				Str(log.KeyCartLineID, existing.ID.String()).
				Logger()
			logger.Info().Msg("increasing cart line quantity")
			_, err = s.backend.UpdateCartLineQuantity(c, repository.UpdateCartLineQuantityParams{
				ID:       existing.ID,
				UserID:   userID,
				Quantity: existing.Quantity + req.Quantity,
			})
			if err != nil {
				return s.session.Intercept(c, err)
			}
			logger.Info().Msg("increased cart line quantity")
		} else {
			logger = logger.With().Str(log.KeyProcess, "inserting cart line").Logger()
			logger.Info().Msg("inserting cart line")
			_, err = s.backend.InsertCartLine(c, repository.InsertCartLineParams{
				UserID:    userID,
				ProductID: req.ProductID,
				Quantity:  req.Quantity,
				Size:      req.Size,
				Color:     req.Color,
			})
			if err != nil {
				return s.session.Intercept(c, err)
			}
			logger.Info().Msg("inserted cart line")
		}

		if err := s.reload(c, l, userID); err != nil {
			logger.Warn().Err(err).Msg(err.Error())
		}
		return nil
	})
	if err != nil {
		message := MsgAddFailed
		switch {
		case errors.Is(err, inErrors.ErrInvalidQuantity):
			message = MsgInvalidQuantity
		case merged:
			message = MsgIncreaseFailed
		}
		err = fmt.Errorf("failed adding productId=%s to cart with error=%w", req.ProductID.String(), err)
		return s.fail(c, span, "add", message, err)
	}

	if merged {
		s.alerts.Emit(c, alert.Success(MsgItemIncreased))
	} else {
		s.alerts.Emit(c, alert.Success(MsgItemAdded))
	}
	metrics.CartMutations.WithLabelValues("add", metrics.ResultSuccess).Inc()
	return nil
}

// UpdateQuantity sets the quantity of one line. Callers clamp to the product
// stock, the Store only rejects quantities below one.
func (s *Store) UpdateQuantity(c context.Context, lineID uuid.UUID, quantity int32) error {
	c, span := otel.Tracer.Start(c, "Store UpdateQuantity")
	defer span.End()

	logger := zerolog.Ctx(c).With().
		Str(log.KeyTag, "Store UpdateQuantity").
		Str(log.KeyCartLineID, lineID.String()).
		Int32(log.KeyQuantity, quantity).
		Logger()
	c = logger.WithContext(c)

	if quantity < 1 || quantity > request.MaxQuantity {
		return s.fail(c, span, "update", MsgInvalidQuantity, inErrors.ErrInvalidQuantity)
	}
	identity, ok := s.session.Identity()
	if !ok {
		return s.fail(c, span, "update", MsgSignInToChange, inErrors.ErrUnauthenticated)
	}
	userID := identity.UserID

	err := s.queue.Do(c, userID, func(l *lane) error {
		if err := s.session.Check(c); err != nil {
			return err
		}
		logger.Info().Msg("updating cart line quantity")
		_, err := s.backend.UpdateCartLineQuantity(c, repository.UpdateCartLineQuantityParams{
			ID:       lineID,
			UserID:   userID,
			Quantity: quantity,
		})
		if errors.Is(err, pgx.ErrNoRows) {
			return inErrors.ErrCartLineNotFound
		}
		if err != nil {
			return s.session.Intercept(c, err)
		}
		logger.Info().Msg("updated cart line quantity")

		if err := s.reload(c, l, userID); err != nil {
			logger.Warn().Err(err).Msg(err.Error())
		}
		return nil
	})
	if err != nil {
		err = fmt.Errorf("failed updating cartLineId=%s with error=%w", lineID.String(), err)
		return s.fail(c, span, "update", MsgIncreaseFailed, err)
	}

	s.alerts.Emit(c, alert.Success(MsgQuantityUpdated))
	metrics.CartMutations.WithLabelValues("update", metrics.ResultSuccess).Inc()
	return nil
}

func (s *Store) RemoveItem(c context.Context, lineID uuid.UUID) error {
	c, span := otel.Tracer.Start(c, "Store RemoveItem")
	defer span.End()

	logger := zerolog.Ctx(c).With().
		Str(log.KeyTag, "Store RemoveItem").
		Str(log.KeyCartLineID, lineID.String()).
		Logger()
	c = logger.WithContext(c)

	identity, ok := s.session.Identity()
	if !ok {
		return s.fail(c, span, "remove", MsgSignInToChange, inErrors.ErrUnauthenticated)
	}
	userID := identity.UserID

	err := s.queue.Do(c, userID, func(l *lane) error {
		if err := s.session.Check(c); err != nil {
			return err
		}
		logger.Info().Msg("deleting cart line")
		deleted, err := s.backend.DeleteCartLine(c, repository.DeleteCartLineParams{ID: lineID, UserID: userID})
		if err != nil {
			return s.session.Intercept(c, err)
		}
		if deleted == 0 {
			return inErrors.ErrCartLineNotFound
		}
		logger.Info().Msg("deleted cart line")

		if err := s.reload(c, l, userID); err != nil {
			logger.Warn().Err(err).Msg(err.Error())
		}
		return nil
	})
	if err != nil {
		err = fmt.Errorf("failed removing cartLineId=%s with error=%w", lineID.String(), err)
		return s.fail(c, span, "remove", MsgRemoveFailed, err)
	}

	s.alerts.Emit(c, alert.Success(MsgItemRemoved))
	metrics.CartMutations.WithLabelValues("remove", metrics.ResultSuccess).Inc()
	return nil
}

// Clear deletes every line of the user and empties the snapshot without
// reading it back. It does nothing without an identity.
func (s *Store) Clear(c context.Context) error {
	c, span := otel.Tracer.Start(c, "Store Clear")
	defer span.End()

	logger := zerolog.Ctx(c).With().Str(log.KeyTag, "Store Clear").Logger()

	identity, ok := s.session.Identity()
	if !ok {
		return nil
	}
	userID := identity.UserID
	logger = logger.With().Str(log.KeyUserID, userID.String()).Logger()
	c = logger.WithContext(c)

	err := s.queue.Do(c, userID, func(l *lane) error {
		if err := s.session.Check(c); err != nil {
			return err
		}
		logger.Info().Msg("deleting cart lines")
		deleted, err := s.backend.DeleteCartLinesByUserId(c, userID)
		if err != nil {
			return s.session.Intercept(c, err)
		}
		logger.Info().Int64("deleted", deleted).Msg("deleted cart lines")

		s.committed(l, userID)
		s.publish(response.EmptySnapshot())
		if s.cache != nil {
			if err := s.cache.Delete(c, userID); err != nil {
				logger.Warn().Err(err).Msg("failed deleting cart summary mirror")
			}
		}
		return nil
	})
	if err != nil {
		err = fmt.Errorf("failed clearing cart of userId=%s with error=%w", userID.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		metrics.CartMutations.WithLabelValues("clear", metrics.ResultFailure).Inc()
		return err
	}

	metrics.CartMutations.WithLabelValues("clear", metrics.ResultSuccess).Inc()
	return nil
}

// ClearOrdered takes the ordered lines out of the cart. Quantity added to a
// line after it was ordered stays, and so do lines added since. It does
// nothing without an identity.
func (s *Store) ClearOrdered(c context.Context, ordered []response.CartLine) error {
	c, span := otel.Tracer.Start(c, "Store ClearOrdered")
	defer span.End()

	logger := zerolog.Ctx(c).With().Str(log.KeyTag, "Store ClearOrdered").Logger()

	identity, ok := s.session.Identity()
	if !ok || len(ordered) == 0 {
		return nil
	}
	userID := identity.UserID
	logger = logger.With().
		Str(log.KeyUserID, userID.String()).
		Int(log.KeyCartLines, len(ordered)).
		Logger()
	c = logger.WithContext(c)

	arg := repository.DeductCartLinesParams{
		UserID:     userID,
		IDs:        make([]uuid.UUID, 0, len(ordered)),
		Quantities: make([]int32, 0, len(ordered)),
	}
	for _, line := range ordered {
		arg.IDs = append(arg.IDs, line.ID)
		arg.Quantities = append(arg.Quantities, line.Quantity)
	}

	err := s.queue.Do(c, userID, func(l *lane) error {
		if err := s.session.Check(c); err != nil {
			return err
		}
		logger.Info().Msg("deducting ordered cart lines")
		deleted, err := s.backend.DeductCartLines(c, arg)
		if err != nil {
			return s.session.Intercept(c, err)
		}
		logger.Info().Int64("deleted", deleted).Msg("deducted ordered cart lines")

		if err := s.reload(c, l, userID); err != nil {
			logger.Warn().Err(err).Msg(err.Error())
		}
		return nil
	})
	if err != nil {
		err = fmt.Errorf("failed clearing ordered lines of userId=%s with error=%w", userID.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		metrics.CartMutations.WithLabelValues("clear", metrics.ResultFailure).Inc()
		return err
	}

	metrics.CartMutations.WithLabelValues("clear", metrics.ResultSuccess).Inc()
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/order/pkg/response"
)

type OrderBackend interface {
	FindOrderById(c context.Context, arg repository.FindOrderByIdParams) (repository.Order, error)
	FindOrdersByUserId(c context.Context, userID uuid.UUID) ([]repository.Order, error)
	ListOrders(c context.Context, status pgtype.Text) ([]repository.Order, error)
	FindOrderItemsByOrderIds(c context.Context, orderIds []uuid.UUID) ([]repository.OrderItem, error)
}

// StatusBackend is used inside the transaction that changes an order status.
type StatusBackend interface {
	FindOrderStatusForUpdate(c context.Context, id uuid.UUID) (string, error)
	UpdateOrderStatus(c context.Context, arg repository.UpdateOrderStatusParams) (repository.Order, error)
}

type txFunc func(c context.Context, fn func(StatusBackend) error) error

type OrderService struct {
	backend OrderBackend
	inTx    txFunc
}

func NewOrderService(pool *pgxpool.Pool, queries *repository.Queries) *OrderService {
	return &OrderService{
		backend: queries,
		inTx: func(c context.Context, fn func(StatusBackend) error) error {
			tx, err := pool.Begin(c)
			if err != nil {
				return fmt.Errorf("failed beginning transaction with error=%w", err)
			}
			defer tx.Rollback(c)

			if err := fn(queries.WithTx(tx)); err != nil {
				return err
			}
			if err := tx.Commit(c); err != nil {
				return fmt.Errorf("failed committing transaction with error=%w", err)
			}
			return nil
		},
	}
}

func (s *OrderService) withLines(c context.Context, orders []repository.Order) ([]response.Order, error) {
	if len(orders) == 0 {
		return []response.Order{}, nil
	}
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	items, err := s.backend.FindOrderItemsByOrderIds(c, ids)
	if err != nil {
		return nil, fmt.Errorf("failed finding order items with error=%w", err)
	}
	res, err := repository.OrdersResponse(orders, items)
	if err != nil {
		return nil, fmt.Errorf("failed mapping orders with error=%w", err)
	}
	return res, nil
}

// FindOrders returns the orders of userID with their lines, newest first.
func (s *OrderService) FindOrders(c context.Context, userID uuid.UUID) ([]response.Order, error) {
	c, span := otel.Tracer.Start(c, "OrderService FindOrders")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService FindOrders").
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyProcess, "finding orders").
		Logger()

	logger.Info().Msg("finding orders")
	orders, err := s.backend.FindOrdersByUserId(c, userID)
	if err != nil {
		err = fmt.Errorf("failed finding orders with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	res, err := s.withLines(c, orders)
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Int(log.KeyOrders, len(res)).Msg("found orders")
	return res, nil
}

func (s *OrderService) FindOrderById(c context.Context, userID uuid.UUID, orderID uuid.UUID) (response.Order, error) {
	c, span := otel.Tracer.Start(c, "OrderService FindOrderById")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService FindOrderById").
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyOrderID, orderID.String()).
		Str(log.KeyProcess, "finding order by id").
		Logger()

	logger.Info().Msg("finding order by id")
	order, err := s.backend.FindOrderById(c, repository.FindOrderByIdParams{ID: orderID, UserID: userID})
	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("%w orderId=%s", inErrors.ErrOrderNotFound, orderID.String())
		otel.RecordError(err, span)
		logger.Warn().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	if err != nil {
		err = fmt.Errorf("failed finding order by id with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}

	res, err := s.withLines(c, []repository.Order{order})
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	logger.Info().Msg("found order by id")
	return res[0], nil
}

// ListOrders returns every order, newest first. An empty status lists all of
// them.
func (s *OrderService) ListOrders(c context.Context, status string) ([]response.Order, error) {
	c, span := otel.Tracer.Start(c, "OrderService ListOrders")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService ListOrders").
		Str(log.KeyOrderStatus, status).
		Str(log.KeyProcess, "listing orders").
		Logger()

	filter := pgtype.Text{}
	if status != "" {
		parsed, ok := response.ParseStatus(status)
		if !ok {
			err := fmt.Errorf("%w status=%s", inErrors.ErrInvalidOrderStatus, status)
			otel.RecordError(err, span)
			logger.Warn().Err(err).Msg(err.Error())
			return nil, err
		}
		filter = pgtype.Text{String: string(parsed), Valid: true}
	}

	logger.Info().Msg("listing orders")
	orders, err := s.backend.ListOrders(c, filter)
	if err != nil {
		err = fmt.Errorf("failed listing orders with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	res, err := s.withLines(c, orders)
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Int(log.KeyOrders, len(res)).Msg("listed orders")
	return res, nil
}

// UpdateOrderStatus moves an order to status. Delivered and cancelled orders
// keep their status.
func (s *OrderService) UpdateOrderStatus(c context.Context, orderID uuid.UUID, status string) (response.Order, error) {
	c, span := otel.Tracer.Start(c, "OrderService UpdateOrderStatus")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService UpdateOrderStatus").
		Str(log.KeyOrderID, orderID.String()).
		Str(log.KeyOrderStatus, status).
		Str(log.KeyProcess, "updating order status").
		Logger()

	next, ok := response.ParseStatus(status)
	if !ok {
		err := fmt.Errorf("%w status=%s", inErrors.ErrInvalidOrderStatus, status)
		otel.RecordError(err, span)
		logger.Warn().Err(err).Msg(err.Error())
		return response.Order{}, err
	}

	logger.Info().Msg("updating order status")
	var updated repository.Order
	err := s.inTx(c, func(q StatusBackend) error {
		current, err := q.FindOrderStatusForUpdate(c, orderID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w orderId=%s", inErrors.ErrOrderNotFound, orderID.String())
		}
		if err != nil {
			return fmt.Errorf("failed locking order with error=%w", err)
		}
		if currentStatus := response.Status(current); currentStatus.IsTerminal() && currentStatus != next {
			return fmt.Errorf(
				"%w cannot change status from %s to %s",
				inErrors.ErrInvalidOrderStatus,
				current,
				next,
			)
		}
		updated, err = q.UpdateOrderStatus(c, repository.UpdateOrderStatusParams{ID: orderID, Status: string(next)})
		if err != nil {
			return fmt.Errorf("failed updating order status with error=%w", err)
		}
		return nil
	})
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}

	res, err := s.withLines(c, []repository.Order{updated})
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	logger.Info().Msg("updated order status")
	return res[0], nil
}

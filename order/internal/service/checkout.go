package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	cartResponse "github.com/Alturino/storefront/cart/pkg/response"
	"github.com/Alturino/storefront/internal/alert"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/internal/session"
	notifRequest "github.com/Alturino/storefront/notification/pkg/request"
	notifResponse "github.com/Alturino/storefront/notification/pkg/response"
	"github.com/Alturino/storefront/order/pkg/request"
	"github.com/Alturino/storefront/order/pkg/response"
)

const (
	MsgOrderSubmitted   = "Order submitted successfully!"
	MsgOrderNotified    = "Your order details have been successfully sent to our admin team. You will be contacted shortly to confirm your order and arrange delivery."
	MsgOrderReceived    = "Your order has been received. Our team will contact you soon to confirm the details."
	MsgCheckoutFailed   = "Failed to process order. Please try again."
	MsgCartEmpty        = "Your cart is empty"
	MsgCartNotCleared   = "Your order was placed but your cart could not be cleared. Please refresh the page."
	MsgCheckoutInFlight = "Your order is already being submitted"
)

// State of the checkout of one user. Idle moves to Submitting, which ends in
// Submitted or Failed. Failed falls back to Idle as soon as it is recorded.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
	StateFailed     State = "failed"
)

// Cart is the part of the cart store checkout reads and clears. ClearOrdered
// removes only what went into the order.
type Cart interface {
	Load(c context.Context) (cartResponse.Snapshot, error)
	ClearOrdered(c context.Context, ordered []cartResponse.CartLine) error
}

type CheckoutBackend interface {
	InsertOrder(c context.Context, arg repository.InsertOrderParams) (repository.Order, error)
	InsertOrderItems(c context.Context, arg []repository.InsertOrderItemsParams) (int64, error)
	DeleteOrder(c context.Context, arg repository.DeleteOrderParams) (int64, error)
}

type Notifier interface {
	NotifyAdmin(c context.Context, req notifRequest.NotifyAdmin) (notifResponse.NotifyAdmin, error)
}

// CheckoutService turns a cart into an order. Each user has at most one
// submission in flight.
type CheckoutService struct {
	backend  CheckoutBackend
	notifier Notifier
	policy   TotalPolicy

	mu      sync.Mutex
	states  map[uuid.UUID]State
	observe func(userID uuid.UUID, from State, to State)
}

// NewCheckoutService builds the orchestrator. notifier may be nil, in which
// case no admin is notified.
func NewCheckoutService(backend CheckoutBackend, notifier Notifier, policy TotalPolicy) *CheckoutService {
	if policy == nil {
		policy = SubtotalPolicy{}
	}
	return &CheckoutService{
		backend:  backend,
		notifier: notifier,
		policy:   policy,
		states:   map[uuid.UUID]State{},
	}
}

func (svc *CheckoutService) State(userID uuid.UUID) State {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if state, ok := svc.states[userID]; ok {
		return state
	}
	return StateIdle
}

// moveTo must be called with mu held.
func (svc *CheckoutService) moveTo(userID uuid.UUID, to State) {
	from, ok := svc.states[userID]
	if !ok {
		from = StateIdle
	}
	if to == StateIdle {
		delete(svc.states, userID)
	} else {
		svc.states[userID] = to
	}
	if svc.observe != nil {
		svc.observe(userID, from, to)
	}
}

func (svc *CheckoutService) begin(userID uuid.UUID) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.states[userID] == StateSubmitting {
		return inErrors.ErrCheckoutInProgress
	}
	svc.moveTo(userID, StateSubmitting)
	return nil
}

// finish records the outcome. A failed attempt passes through Failed back to
// Idle so the cart can be submitted again.
func (svc *CheckoutService) finish(userID uuid.UUID, submitted bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if submitted {
		svc.moveTo(userID, StateSubmitted)
		return
	}
	svc.moveTo(userID, StateFailed)
	svc.moveTo(userID, StateIdle)
}

// Submit places the order for the signed in user. Without an identity it does
// nothing and returns a zero result.
func (svc *CheckoutService) Submit(
	c context.Context,
	sess *session.Context,
	cart Cart,
	alerts alert.Channel,
	req request.Checkout,
) (res response.Checkout, err error) {
	c, span := otel.Tracer.Start(c, "CheckoutService Submit")
	defer span.End()

	if alerts == nil {
		alerts = alert.Discard
	}
	logger := zerolog.Ctx(c).With().Str(log.KeyTag, "CheckoutService Submit").Logger()

	identity, ok := sess.Identity()
	if !ok {
		logger.Info().Msg("checkout without identity")
		metrics.Checkouts.WithLabelValues(metrics.ResultSkipped).Inc()
		return response.Checkout{}, nil
	}
	userID := identity.UserID
	span.SetAttributes(attribute.String(log.KeyUserID, userID.String()))
	logger = logger.With().Str(log.KeyUserID, userID.String()).Logger()
	c = logger.WithContext(c)

	if err := svc.begin(userID); err != nil {
		otel.RecordError(err, span)
		logger.Warn().Err(err).Msg(err.Error())
		alerts.Emit(c, alert.Warning(MsgCheckoutInFlight))
		return response.Checkout{}, err
	}
	logger.Info().Str(log.KeyCheckoutState, string(StateSubmitting)).Msg("submitting checkout")

	submitted := false
	defer func() {
		svc.finish(userID, submitted)
		metrics.Checkouts.WithLabelValues(metrics.Result(err)).Inc()
	}()

	logger = logger.With().Str(log.KeyProcess, "loading cart").Logger()
	logger.Info().Msg("loading cart")
	snapshot, err := cart.Load(c)
	if err != nil {
		err = fmt.Errorf("failed loading cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		alerts.Emit(c, alert.Error(MsgCheckoutFailed))
		return response.Checkout{}, err
	}
	if snapshot.IsEmpty() {
		err = inErrors.ErrEmptyCart
		otel.RecordError(err, span)
		logger.Warn().Err(err).Msg(err.Error())
		alerts.Emit(c, alert.Warning(MsgCartEmpty))
		return response.Checkout{}, err
	}
	logger.Info().Int(log.KeyCartLines, len(snapshot.Lines)).Msg("loaded cart")

	shipping := req.Shipping.WithDefaults()
	shippingJson, err := json.Marshal(shipping)
	if err != nil {
		err = fmt.Errorf("failed marshaling shipping address with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		alerts.Emit(c, alert.Error(MsgCheckoutFailed))
		return response.Checkout{}, err
	}

	total := svc.policy.Total(snapshot)
	logger = logger.With().
		Str(log.KeyProcess, "inserting order").
		Str(log.KeyTotalAmount, total.String()).
		Logger()
	logger.Info().Msg("inserting order")
	inserted, err := svc.backend.InsertOrder(c, repository.InsertOrderParams{
		UserID:          userID,
		TotalAmount:     repository.NumericFromDecimal(total),
		ShippingAddress: shippingJson,
		Status:          string(response.StatusPending),
	})
	if err != nil {
		err = sess.Intercept(c, fmt.Errorf("failed inserting order with error=%w", err))
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		alerts.Emit(c, alert.Error(MsgCheckoutFailed))
		return response.Checkout{}, err
	}
	logger = logger.With().Str(log.KeyOrderID, inserted.ID.String()).Logger()
	logger.Info().Msg("inserted order")

	logger = logger.With().Str(log.KeyProcess, "inserting order lines").Logger()
	logger.Info().Msg("inserting order lines")
	params := make([]repository.InsertOrderItemsParams, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		params = append(params, repository.InsertOrderItemsParams{
			OrderID:   inserted.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     repository.NumericFromDecimal(line.UnitPrice()),
			Size:      line.Size,
			Color:     line.Color,
		})
	}
	if _, err = svc.backend.InsertOrderItems(c, params); err != nil {
		err = sess.Intercept(c, fmt.Errorf("failed inserting order lines with error=%w", err))
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())

		logger.Info().Msg("deleting order without lines")
		_, deleteErr := svc.backend.DeleteOrder(c, repository.DeleteOrderParams{ID: inserted.ID, UserID: userID})
		if deleteErr != nil {
			deleteErr = fmt.Errorf("failed deleting orderId=%s with error=%w", inserted.ID.String(), deleteErr)
			otel.RecordError(deleteErr, span)
			logger.Error().Err(deleteErr).Msg(deleteErr.Error())
			err = errors.Join(err, deleteErr)
		} else {
			logger.Info().Msg("deleted order without lines")
		}

		alerts.Emit(c, alert.Error(MsgCheckoutFailed))
		return response.Checkout{}, err
	}
	logger.Info().Int(log.KeyOrderLines, len(params)).Msg("inserted order lines")

	order, err := inserted.Response()
	if err != nil {
		logger.Warn().Err(err).Msg("failed mapping inserted order")
		order = response.Order{ID: inserted.ID, UserID: userID, TotalAmount: total, ShippingAddress: shipping, Status: response.StatusPending}
	}
	for _, p := range params {
		order.Lines = append(order.Lines, response.OrderLine{
			OrderID:   p.OrderID,
			ProductID: p.ProductID,
			Quantity:  p.Quantity,
			Price:     repository.DecimalFromNumeric(p.Price),
			Size:      p.Size,
			Color:     p.Color,
		})
	}

	notified := svc.notify(c, sess, order, snapshot)

	logger = logger.With().Str(log.KeyProcess, "clearing cart").Logger()
	logger.Info().Msg("clearing ordered cart lines")
	if clearErr := cart.ClearOrdered(c, snapshot.Lines); clearErr != nil {
		logger.Warn().Err(clearErr).Msg("failed clearing cart after checkout")
		alerts.Emit(c, alert.Warning(MsgCartNotCleared))
	} else {
		logger.Info().Msg("cleared ordered cart lines")
	}

	message := MsgOrderReceived
	if notified {
		message = MsgOrderNotified
	}
	alerts.Emit(c, alert.Success(MsgOrderSubmitted))

	submitted = true
	logger.Info().Str(log.KeyCheckoutState, string(StateSubmitted)).Bool("notified", notified).Msg("submitted checkout")
	return response.Checkout{Order: order, Notified: notified, Message: message}, nil
}

// notify tells the admin about the order. Any failure only means the admin
// was not notified.
func (svc *CheckoutService) notify(
	c context.Context,
	sess *session.Context,
	order response.Order,
	snapshot cartResponse.Snapshot,
) bool {
	logger := zerolog.Ctx(c).With().Str(log.KeyProcess, "notifying admin").Logger()
	if svc.notifier == nil {
		logger.Info().Msg("no notifier configured")
		return false
	}

	userInfo := notifRequest.UserInfo{
		UserID:   order.UserID,
		FullName: order.ShippingAddress.FullName,
		Email:    order.ShippingAddress.Email,
	}
	if profile, ok := sess.Profile(); ok {
		userInfo.FullName = profile.FullName
		userInfo.Email = profile.Email
	}

	items := make([]notifRequest.CartItem, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		item := notifRequest.CartItem{
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			Price:      line.UnitPrice(),
			Size:       line.Size,
			Color:      line.Color,
			TotalPrice: line.UnitPrice().Mul(decimal.NewFromInt32(line.Quantity)),
		}
		if line.Product != nil {
			item.ProductName = line.Product.Name
		}
		items = append(items, item)
	}

	logger.Info().Msg("notifying admin")
	_, err := svc.notifier.NotifyAdmin(c, notifRequest.NotifyAdmin{
		OrderData: notifRequest.OrderData{
			OrderID:         order.ID,
			TotalAmount:     order.TotalAmount,
			Status:          string(order.Status),
			ShippingAddress: order.ShippingAddress,
			CreatedAt:       order.CreatedAt,
		},
		UserInfo:  userInfo,
		CartItems: items,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed notifying admin")
		return false
	}
	logger.Info().Msg("notified admin")
	return true
}

package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/alert"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/session"
	"github.com/Alturino/storefront/order/internal/service"
	"github.com/Alturino/storefront/order/pkg/request"
	"github.com/Alturino/storefront/order/pkg/response"
)

type OrderFinder interface {
	FindOrders(c context.Context, userID uuid.UUID) ([]response.Order, error)
	FindOrderById(c context.Context, userID uuid.UUID, orderID uuid.UUID) (response.Order, error)
	ListOrders(c context.Context, status string) ([]response.Order, error)
	UpdateOrderStatus(c context.Context, orderID uuid.UUID, status string) (response.Order, error)
}

// CartFactory opens the cart of the session for the length of a request. The
// returned func releases it.
type CartFactory func(sess *session.Context, alerts alert.Channel) (service.Cart, func())

type OrderController struct {
	orders   OrderFinder
	checkout *service.CheckoutService
	newCart  CartFactory
	validate *validator.Validate
}

// AttachOrderController registers the checkout and order routes. admin guards
// the /admin routes.
func AttachOrderController(
	router *mux.Router,
	orders OrderFinder,
	checkout *service.CheckoutService,
	newCart CartFactory,
	admin mux.MiddlewareFunc,
) {
	controller := OrderController{
		orders:   orders,
		checkout: checkout,
		newCart:  newCart,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	router.HandleFunc("/checkout", controller.Checkout).Methods(http.MethodPost)
	router.HandleFunc("/orders", controller.FindOrders).Methods(http.MethodGet)
	router.HandleFunc("/orders/{orderId}", controller.FindOrderById).Methods(http.MethodGet)

	adminRouter := router.PathPrefix("/admin/orders").Subrouter()
	if admin != nil {
		adminRouter.Use(admin)
	}
	adminRouter.HandleFunc("", controller.ListOrders).Methods(http.MethodGet)
	adminRouter.HandleFunc("/{orderId}/status", controller.UpdateOrderStatus).Methods(http.MethodPatch)
}

func writeFailed(w http.ResponseWriter, r *http.Request, statusCode int, err error, alerts []alert.Event) {
	inHttp.WriteJsonResponse(r.Context(), w, map[string]string{}, map[string]interface{}{
		"status":     "failed",
		"statusCode": statusCode,
		"message":    err.Error(),
		"alerts":     alerts,
	})
}

func writeSuccess(w http.ResponseWriter, r *http.Request, message string, data map[string]interface{}, alerts []alert.Event) {
	inHttp.WriteJsonResponse(r.Context(), w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    message,
		"data":       data,
		"alerts":     alerts,
	})
}

func (ctrl OrderController) Checkout(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "OrderController Checkout")
	defer span.End()

	logger := zerolog.Ctx(c).With().Str(log.KeyTag, "OrderController Checkout").Logger()
	alerts := alert.NewBuffer()

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	reqBody := request.Checkout{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, http.StatusBadRequest, err, alerts.Events())
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "validating request body").Logger()
	logger.Info().Msg("validating request body")
	if err := ctrl.validate.StructCtx(c, reqBody); err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, http.StatusBadRequest, err, alerts.Events())
		return
	}
	logger = logger.With().Object("shipping", reqBody.Shipping).Logger()
	logger.Info().Msg("validated request body")

	sess := session.FromContext(c)
	if _, ok := sess.Identity(); !ok {
		err := inErrors.ErrUnauthenticated
		logger.Warn().Err(err).Msg(err.Error())
		writeFailed(w, r, http.StatusUnauthorized, err, alerts.Events())
		return
	}

	cart, release := ctrl.newCart(sess, alerts)
	defer release()

	logger = logger.With().Str(log.KeyProcess, "submitting checkout").Logger()
	logger.Info().Msg("submitting checkout")
	c = logger.WithContext(c)
	r = r.WithContext(c)
	res, err := ctrl.checkout.Submit(c, sess, cart, alerts, reqBody)
	if err != nil {
		err = fmt.Errorf("failed submitting checkout with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, inHttp.StatusCode(err), err, alerts.Events())
		return
	}
	logger.Info().Str(log.KeyOrderID, res.Order.ID.String()).Msg("submitted checkout")

	writeSuccess(w, r, res.Message, map[string]interface{}{"checkout": res}, alerts.Events())
}

func (ctrl OrderController) FindOrders(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "OrderController FindOrders")
	defer span.End()

	logger := zerolog.Ctx(c).With().
		Str(log.KeyTag, "OrderController FindOrders").
		Str(log.KeyProcess, "finding orders").
		Logger()

	identity, ok := session.FromContext(c).Identity()
	if !ok {
		writeFailed(w, r, http.StatusUnauthorized, inErrors.ErrUnauthenticated, []alert.Event{})
		return
	}

	logger.Info().Msg("finding orders")
	c = logger.WithContext(c)
	orders, err := ctrl.orders.FindOrders(c, identity.UserID)
	if err != nil {
		err = fmt.Errorf("failed finding orders with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, inHttp.StatusCode(err), err, []alert.Event{})
		return
	}
	logger.Info().Int(log.KeyOrders, len(orders)).Msg("found orders")

	writeSuccess(w, r, "found orders", map[string]interface{}{"orders": orders}, []alert.Event{})
}

func (ctrl OrderController) FindOrderById(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "OrderController FindOrderById")
	defer span.End()

	logger := zerolog.Ctx(c).With().
		Str(log.KeyTag, "OrderController FindOrderById").
		Str(log.KeyProcess, "validating orderId").
		Logger()

	pathValues := mux.Vars(r)
	orderID, err := uuid.Parse(pathValues["orderId"])
	if err != nil {
		err = fmt.Errorf("failed validating orderId=%s with error=%w", pathValues["orderId"], err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, http.StatusBadRequest, err, []alert.Event{})
		return
	}

	identity, ok := session.FromContext(c).Identity()
	if !ok {
		writeFailed(w, r, http.StatusUnauthorized, inErrors.ErrUnauthenticated, []alert.Event{})
		return
	}

	logger = logger.With().
		Str(log.KeyOrderID, orderID.String()).
		Str(log.KeyProcess, "finding order").
		Logger()
	logger.Info().Msg("finding order")
	c = logger.WithContext(c)
	order, err := ctrl.orders.FindOrderById(c, identity.UserID, orderID)
	if err != nil {
		err = fmt.Errorf("failed finding order with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, inHttp.StatusCode(err), err, []alert.Event{})
		return
	}
	logger.Info().Msg("found order")

	writeSuccess(w, r, "found order", map[string]interface{}{"order": order}, []alert.Event{})
}

func (ctrl OrderController) ListOrders(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "OrderController ListOrders")
	defer span.End()

	status := r.URL.Query().Get("status")
	logger := zerolog.Ctx(c).With().
		Str(log.KeyTag, "OrderController ListOrders").
		Str(log.KeyOrderStatus, status).
		Str(log.KeyProcess, "listing orders").
		Logger()

	logger.Info().Msg("listing orders")
	c = logger.WithContext(c)
	orders, err := ctrl.orders.ListOrders(c, status)
	if err != nil {
		err = fmt.Errorf("failed listing orders with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, inHttp.StatusCode(err), err, []alert.Event{})
		return
	}
	logger.Info().Int(log.KeyOrders, len(orders)).Msg("listed orders")

	writeSuccess(w, r, "listed orders", map[string]interface{}{"orders": orders}, []alert.Event{})
}

func (ctrl OrderController) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "OrderController UpdateOrderStatus")
	defer span.End()

	logger := zerolog.Ctx(c).With().
		Str(log.KeyTag, "OrderController UpdateOrderStatus").
		Str(log.KeyProcess, "validating orderId").
		Logger()

	pathValues := mux.Vars(r)
	orderID, err := uuid.Parse(pathValues["orderId"])
	if err != nil {
		err = fmt.Errorf("failed validating orderId=%s with error=%w", pathValues["orderId"], err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, http.StatusBadRequest, err, []alert.Event{})
		return
	}
	logger = logger.With().Str(log.KeyOrderID, orderID.String()).Logger()

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	reqBody := request.UpdateOrderStatus{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, http.StatusBadRequest, err, []alert.Event{})
		return
	}
	if err := ctrl.validate.StructCtx(c, reqBody); err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, http.StatusBadRequest, err, []alert.Event{})
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().
		Str(log.KeyOrderStatus, reqBody.Status).
		Str(log.KeyProcess, "updating order status").
		Logger()
	logger.Info().Msg("updating order status")
	c = logger.WithContext(c)
	order, err := ctrl.orders.UpdateOrderStatus(c, orderID, reqBody.Status)
	if err != nil {
		err = fmt.Errorf("failed updating order status with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, inHttp.StatusCode(err), err, []alert.Event{})
		return
	}
	logger.Info().Msg("updated order status")

	writeSuccess(w, r, "updated order status", map[string]interface{}{"order": order}, []alert.Event{})
}

package controller

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/cart/internal/service"
	"github.com/Alturino/storefront/cart/pkg/request"
	"github.com/Alturino/storefront/cart/pkg/response"
	"github.com/Alturino/storefront/internal/alert"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/session"
)

type CartController struct {
	service  *service.CartService
	validate *validator.Validate
}

func AttachCartController(router *mux.Router, service *service.CartService) {
	controller := CartController{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	carts := router.PathPrefix("/carts").Subrouter()
	carts.HandleFunc("", controller.FindCart).Methods(http.MethodGet)
	carts.HandleFunc("", controller.ClearCart).Methods(http.MethodDelete)
	carts.HandleFunc("/summary", controller.FindCartSummary).Methods(http.MethodGet)
	carts.HandleFunc("/items", controller.AddItem).Methods(http.MethodPost)
	carts.HandleFunc("/items/{lineId}", controller.UpdateQuantity).Methods(http.MethodPatch)
	carts.HandleFunc("/items/{lineId}", controller.RemoveItem).Methods(http.MethodDelete)
}

func writeFailed(
	w http.ResponseWriter,
	r *http.Request,
	statusCode int,
	err error,
	alerts *alert.Buffer,
) {
	inHttp.WriteJsonResponse(r.Context(), w, map[string]string{}, map[string]interface{}{
		"status":     "failed",
		"statusCode": statusCode,
		"message":    err.Error(),
		"alerts":     alerts.Events(),
	})
}

func writeCart(
	w http.ResponseWriter,
	r *http.Request,
	message string,
	snapshot response.Snapshot,
	alerts *alert.Buffer,
) {
	inHttp.WriteJsonResponse(r.Context(), w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    message,
		"data":       map[string]interface{}{"cart": snapshot},
		"alerts":     alerts.Events(),
	})
}

func (ctrl CartController) FindCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController FindCart")
	defer span.End()

	logger := zerolog.Ctx(c).With().
		Str(log.KeyTag, "CartController FindCart").
		Str(log.KeyProcess, "loading cart").
		Logger()
	c = logger.WithContext(c)
	r = r.WithContext(c)

	alerts := alert.NewBuffer()
	store := ctrl.service.NewStore(session.FromContext(c), alerts)
	defer store.Close()

	logger.Info().Msg("loading cart")
	snapshot, err := store.Load(c)
	if err != nil {
		err = fmt.Errorf("failed loading cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, inHttp.StatusCode(err), err, alerts)
		return
	}
	logger.Info().Int(log.KeyCartLines, len(snapshot.Lines)).Msg("loaded cart")

	writeCart(w, r, "found cart", snapshot, alerts)
}

func (ctrl CartController) FindCartSummary(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController FindCartSummary")
	defer span.End()

	logger := zerolog.Ctx(c).With().Str(log.KeyTag, "CartController FindCartSummary").Logger()
	c = logger.WithContext(c)
	r = r.WithContext(c)

	logger.Info().Msg("finding cart summary")
	summary, err := ctrl.service.Summary(c, session.FromContext(c))
	if err != nil {
		err = fmt.Errorf("failed finding cart summary with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, inHttp.StatusCode(err), err, alert.NewBuffer())
		return
	}
	logger.Info().Msg("found cart summary")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    "found cart summary",
		"data":       map[string]interface{}{"summary": summary},
	})
}

func (ctrl CartController) AddItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController AddItem")
	defer span.End()

	logger := zerolog.Ctx(c).With().Str(log.KeyTag, "CartController AddItem").Logger()
	alerts := alert.NewBuffer()

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	reqBody := request.AddItem{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, http.StatusBadRequest, err, alerts)
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "validating request body").Logger()
	logger.Info().Msg("validating request body")
	if err := ctrl.validate.StructCtx(c, reqBody); err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, http.StatusBadRequest, err, alerts)
		return
	}
	logger = logger.With().Any(log.KeyRequestBody, reqBody).Logger()
	logger.Info().Msg("validated request body")

	store := ctrl.service.NewStore(session.FromContext(c), alerts)
	defer store.Close()

	logger = logger.With().Str(log.KeyProcess, "adding item to cart").Logger()
	logger.Info().Msg("adding item to cart")
	c = logger.WithContext(c)
	r = r.WithContext(c)
	if err := store.AddItem(c, reqBody); err != nil {
		err = fmt.Errorf("failed adding item to cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, inHttp.StatusCode(err), err, alerts)
		return
	}
	logger.Info().Msg("added item to cart")

	if _, ok := session.FromContext(c).Identity(); !ok {
		writeFailed(w, r, http.StatusUnauthorized, inErrors.ErrUnauthenticated, alerts)
		return
	}
	writeCart(w, r, "added item to cart", store.Snapshot(), alerts)
}

func (ctrl CartController) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController UpdateQuantity")
	defer span.End()

	logger := zerolog.Ctx(c).With().
		Str(log.KeyTag, "CartController UpdateQuantity").
		Str(log.KeyProcess, "validating lineId").
		Logger()
	alerts := alert.NewBuffer()

	pathValues := mux.Vars(r)
	lineID, err := uuid.Parse(pathValues["lineId"])
	if err != nil {
		err = fmt.Errorf("failed validating lineId=%s with error=%w", pathValues["lineId"], err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, http.StatusBadRequest, err, alerts)
		return
	}
	logger = logger.With().Str(log.KeyCartLineID, lineID.String()).Logger()

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	reqBody := request.UpdateQuantity{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, http.StatusBadRequest, err, alerts)
		return
	}
	if err := ctrl.validate.StructCtx(c, reqBody); err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, http.StatusBadRequest, err, alerts)
		return
	}
	logger.Info().Msg("decoded request body")

	store := ctrl.service.NewStore(session.FromContext(c), alerts)
	defer store.Close()
	c = logger.WithContext(c)
	r = r.WithContext(c)

	logger = logger.With().Str(log.KeyProcess, "clamping quantity to stock").Logger()
	logger.Info().Msg("clamping quantity to stock")
	snapshot, err := store.Load(c)
	if err != nil {
		err = fmt.Errorf("failed loading cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, inHttp.StatusCode(err), err, alerts)
		return
	}
	quantity := reqBody.Quantity
	if line, ok := snapshot.FindLine(lineID); ok && line.Product != nil {
		quantity = response.ClampQuantity(quantity, line.Product.Stock)
	}
	logger = logger.With().Int32(log.KeyQuantity, quantity).Logger()
	logger.Info().Msg("clamped quantity to stock")

	logger = logger.With().Str(log.KeyProcess, "updating cart line quantity").Logger()
	logger.Info().Msg("updating cart line quantity")
	c = logger.WithContext(c)
	if err := store.UpdateQuantity(c, lineID, quantity); err != nil {
		err = fmt.Errorf("failed updating lineId=%s with error=%w", lineID.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, inHttp.StatusCode(err), err, alerts)
		return
	}
	logger.Info().Msg("updated cart line quantity")

	writeCart(w, r, fmt.Sprintf("updated lineId=%s", lineID.String()), store.Snapshot(), alerts)
}

func (ctrl CartController) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController RemoveItem")
	defer span.End()

	logger := zerolog.Ctx(c).With().
		Str(log.KeyTag, "CartController RemoveItem").
		Str(log.KeyProcess, "validating lineId").
		Logger()
	alerts := alert.NewBuffer()

	pathValues := mux.Vars(r)
	lineID, err := uuid.Parse(pathValues["lineId"])
	if err != nil {
		err = fmt.Errorf("failed validating lineId=%s with error=%w", pathValues["lineId"], err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, http.StatusBadRequest, err, alerts)
		return
	}
	logger = logger.With().Str(log.KeyCartLineID, lineID.String()).Logger()

	store := ctrl.service.NewStore(session.FromContext(c), alerts)
	defer store.Close()

	logger = logger.With().Str(log.KeyProcess, "removing cart line").Logger()
	logger.Info().Msg("removing cart line")
	c = logger.WithContext(c)
	r = r.WithContext(c)
	if err := store.RemoveItem(c, lineID); err != nil {
		err = fmt.Errorf("failed removing lineId=%s with error=%w", lineID.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, inHttp.StatusCode(err), err, alerts)
		return
	}
	logger.Info().Msg("removed cart line")

	writeCart(w, r, fmt.Sprintf("removed lineId=%s", lineID.String()), store.Snapshot(), alerts)
}

func (ctrl CartController) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController ClearCart")
	defer span.End()

	logger := zerolog.Ctx(c).With().
		Str(log.KeyTag, "CartController ClearCart").
		Str(log.KeyProcess, "clearing cart").
		Logger()
	c = logger.WithContext(c)
	r = r.WithContext(c)
	alerts := alert.NewBuffer()

	store := ctrl.service.NewStore(session.FromContext(c), alerts)
	defer store.Close()

	logger.Info().Msg("clearing cart")
	if err := store.Clear(c); err != nil {
		err = fmt.Errorf("failed clearing cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeFailed(w, r, inHttp.StatusCode(err), err, alerts)
		return
	}
	logger.Info().Msg("cleared cart")

	writeCart(w, r, "cleared cart", store.Snapshot(), alerts)
}

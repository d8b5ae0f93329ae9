package controller

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/notification/internal/service"
	"github.com/Alturino/storefront/notification/pkg/request"
	"github.com/Alturino/storefront/notification/pkg/response"
)

const PathNotifyAdmin = "/functions/v1/notify-admin"

type NotificationController struct {
	service  *service.NotificationService
	validate *validator.Validate
}

func AttachNotificationController(router *mux.Router, svc *service.NotificationService) {
	controller := NotificationController{
		service:  svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	router.HandleFunc(PathNotifyAdmin, controller.NotifyAdmin).Methods(http.MethodPost)
}

func writeReply(w http.ResponseWriter, r *http.Request, statusCode int, reply response.NotifyAdmin) {
	w.Header().Set(inHttp.HeaderContentType, inHttp.HeaderValueJson)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed writing notify-admin reply")
	}
}

func (ctrl NotificationController) NotifyAdmin(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "NotificationController NotifyAdmin")
	defer span.End()

	logger := zerolog.Ctx(c).With().
		Str(log.KeyTag, "NotificationController NotifyAdmin").
		Str(log.KeyProcess, "decoding request body").
		Logger()

	logger.Info().Msg("decoding request body")
	reqBody := request.NotifyAdmin{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeReply(w, r, http.StatusBadRequest, response.NotifyAdmin{Error: response.ErrorNotify, Message: err.Error()})
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "validating request body").Logger()
	logger.Info().Msg("validating request body")
	if err := ctrl.validate.StructCtx(c, reqBody); err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeReply(w, r, http.StatusBadRequest, response.NotifyAdmin{Error: response.ErrorNotify, Message: err.Error()})
		return
	}
	logger = logger.With().Object(log.KeyNotification, reqBody).Logger()
	logger.Info().Msg("validated request body")

	logger = logger.With().Str(log.KeyProcess, "notifying admin").Logger()
	logger.Info().Msg("notifying admin")
	reply, err := ctrl.service.NotifyAdmin(logger.WithContext(c), reqBody)
	if err != nil {
		err = fmt.Errorf("failed notifying admin with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		writeReply(w, r, http.StatusInternalServerError, reply)
		return
	}
	logger.Info().Msg("notified admin")

	writeReply(w, r, http.StatusOK, reply)
}

package cmd

import (
	"context"
	"fmt"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/infra"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	"github.com/Alturino/storefront/internal/middleware"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/notification/internal/controller"
	"github.com/Alturino/storefront/notification/internal/publisher"
	"github.com/Alturino/storefront/notification/internal/service"
)

func RunNotificationService(c context.Context) {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyAppName, constants.AppNotificationService).
		Str(log.KeyTag, "main RunNotificationService").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "initializing config").Logger()
	logger.Info().Msg("initializing config")
	c = logger.WithContext(c)
	cfg := config.InitConfig(c, constants.AppNotificationService)
	logger = logger.Level(log.LevelFor(cfg.Application.Env))
	logger.Info().Msg("initialized config")

	logger = logger.With().Str(log.KeyProcess, "initializing otel sdk").Logger()
	logger.Info().Msg("initializing otel sdk")
	c = logger.WithContext(c)
	shutdownFuncs, err := otel.InitOtelSdk(c, constants.AppNotificationService, cfg.Otel)
	if err != nil {
		err = fmt.Errorf("failed initializing otel sdk with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	defer func() {
		logger.Info().Msg("shutting down otel")
		if err := otel.ShutdownOtel(context.WithoutCancel(c), shutdownFuncs); err != nil {
			err = fmt.Errorf("failed shutting down otel with error=%w", err)
			logger.Error().Err(err).Msg(err.Error())
			return
		}
		logger.Info().Msg("shutdown otel")
	}()
	logger.Info().Msg("initialized otel sdk")

	logger = logger.With().
		Str(log.KeyProcess, "initializing publisher").
		Str("kind", cfg.Broker.Kind).
		Logger()
	logger.Info().Msg("initializing publisher")
	c = logger.WithContext(c)
	var p publisher.Publisher
	switch cfg.Broker.Kind {
	case publisher.KindAmqp:
		conn, ch := infra.NewBrokerChannel(c, cfg.Broker)
		defer conn.Close()
		defer ch.Close()
		p = publisher.NewAmqpPublisher(ch, cfg.Broker.Queue)
	case publisher.KindRedis:
		client := infra.NewCacheClient(c, cfg.Cache)
		defer client.Close()
		p = publisher.NewRedisPublisher(client, cfg.Broker.Queue)
	default:
		err = fmt.Errorf("unknown broker kind=%s", cfg.Broker.Kind)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	logger.Info().Msg("initialized publisher")

	logger = logger.With().Str(log.KeyProcess, "initializing router").Logger()
	logger.Info().Msg("initializing router")
	router := mux.NewRouter()
	router.Handle("/metrics", metrics.Handler()).Methods("GET")
	api := router.NewRoute().Subrouter()
	api.Use(otelmux.Middleware(constants.AppNotificationService), middleware.Logging, middleware.RecoverPanic)
	controller.AttachNotificationController(api, service.NewNotificationService(p))
	logger.Info().Msg("initialized router")

	logger = logger.With().Str(log.KeyProcess, "initializing server").Logger()
	logger.Info().Msg("initializing server")
	server := infra.NewHttpServer(c, cfg.Application, router)
	logger.Info().Msg("initialized server")

	c = logger.WithContext(c)
	if err := infra.Serve(c, server); err != nil {
		return
	}
	logger.Info().Msg("server completely shutdown")
}

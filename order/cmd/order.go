package cmd

import (
	"context"
	"fmt"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/alert"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/internal/session"
	"github.com/Alturino/storefront/notification/pkg/client"
	"github.com/Alturino/storefront/order/internal/controller"
	"github.com/Alturino/storefront/order/internal/service"
)

// Cart is what checkout needs from the cart of a session.
type Cart = service.Cart

// AttachOrder registers checkout and order routes. newCart opens the cart of
// a session for one request and returns a func releasing it.
func AttachOrder(
	c context.Context,
	router *mux.Router,
	pool *pgxpool.Pool,
	queries *repository.Queries,
	cfg *config.Config,
	newCart func(sess *session.Context, alerts alert.Channel) (Cart, func()),
	admin mux.MiddlewareFunc,
) error {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "main AttachOrder").
		Str(log.KeyProcess, "initializing total policy").
		Logger()

	logger.Info().Str("policy", cfg.Checkout.TotalPolicy).Msg("initializing total policy")
	policy, err := service.NewTotalPolicy(cfg.Checkout)
	if err != nil {
		err = fmt.Errorf("failed initializing total policy with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("initialized total policy")

	var notifier service.Notifier
	if cfg.Notification.URL != "" {
		notifier = client.NewClient(cfg.Notification)
		logger.Info().Str("url", cfg.Notification.URL).Msg("notifying admin through notify-admin endpoint")
	} else {
		logger.Warn().Msg("notification url is empty, admin will not be notified")
	}

	logger = logger.With().Str(log.KeyProcess, "initializing order controller").Logger()
	logger.Info().Msg("initializing order controller")
	controller.AttachOrderController(
		router,
		service.NewOrderService(pool, queries),
		service.NewCheckoutService(queries, notifier, policy),
		newCart,
		admin,
	)
	logger.Info().Msg("initialized order controller")

	return nil
}

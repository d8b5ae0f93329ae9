package cmd

import (
	"context"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/cart/internal/cache"
	"github.com/Alturino/storefront/cart/internal/controller"
	"github.com/Alturino/storefront/cart/internal/service"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/repository"
)

// AttachCart builds the cart service on top of queries and the snapshot
// mirror in redis and registers the /carts routes. The returned service
// hands out per-session stores to the rest of the storefront.
func AttachCart(
	c context.Context,
	router *mux.Router,
	queries *repository.Queries,
	client *redis.Client,
	cfg config.Cache,
) *service.CartService {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "main AttachCart").
		Str(log.KeyProcess, "initializing cart service").
		Logger()

	logger.Info().Msg("initializing cart service")
	cartService := service.NewCartService(queries, cache.NewSummaryCache(client, cfg.SnapshotTTL))
	logger.Info().Msg("initialized cart service")

	logger = logger.With().Str(log.KeyProcess, "initializing cart controller").Logger()
	logger.Info().Msg("initializing cart controller")
	controller.AttachCartController(router, cartService)
	logger.Info().Msg("initialized cart controller")

	return cartService
}

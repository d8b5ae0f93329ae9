package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/infra"
	"github.com/Alturino/storefront/internal/log"
)

func runMigrate(c context.Context) error {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyAppName, constants.AppMigrate).
		Str(log.KeyTag, "main runMigrate").
		Logger()

	c = logger.WithContext(c)
	cfg := config.InitConfig(c, constants.AppStorefront)
	logger = logger.Level(log.LevelFor(cfg.Application.Env))

	logger = logger.With().Str(log.KeyProcess, "migrating database").Logger()
	logger.Info().Str("path", cfg.Database.MigrationPath).Msg("migrating database")
	c = logger.WithContext(c)
	db := infra.NewDatabaseClient(c, cfg.Database)
	defer db.Close()

	if err := infra.MigrateUp(c, db, cfg.Database); err != nil {
		err = fmt.Errorf("failed migrating database with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("migrated database")
	return nil
}

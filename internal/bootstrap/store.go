// Package bootstrap opens the primary store selected by configuration.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kkkkikiki/checkout/internal/config"
	"github.com/kkkkikiki/checkout/internal/database"
	"github.com/kkkkikiki/checkout/internal/filestore"
	"github.com/kkkkikiki/checkout/internal/repository"
	"github.com/kkkkikiki/checkout/internal/service"
)

// OpenStore returns the configured store and a function that releases it.
// Postgres schemas are migrated before the store is returned.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.Store, func() error, error) {
	if cfg.App.UsesFileStore() {
		store, err := filestore.New(cfg.App.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open file store: %w", err)
		}
		logger.Info("using file store", zap.String("dir", cfg.App.DataDir))
		return store, func() error { return nil }, nil
	}

	db, err := database.NewDB(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, db.Postgres); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repository.NewStore(db.Postgres), db.Close, nil
}

// Package database opens the Postgres pool behind the repository store and
// keeps its schema current.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/kkkkikiki/checkout/internal/config"
)

// DB wraps the checkout's Postgres pool.
type DB struct {
	Postgres *sqlx.DB
	logger   *zap.Logger
}

// NewDB opens the pool described by cfg.Database and waits until Postgres
// accepts connections, retrying while the server starts up.
func NewDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*DB, error) {
	dbCfg := cfg.Database

	pool, err := sqlx.Open("postgres", dbCfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}

	db := &DB{Postgres: pool, logger: logger.Named("postgres")}
	db.configurePool(dbCfg)

	if err := db.waitReady(ctx, dbCfg.ConnectRetries, dbCfg.RetryDelay); err != nil {
		pool.Close()
		return nil, err
	}

	db.logger.Info("connected to PostgreSQL",
		zap.String("host", dbCfg.Host),
		zap.String("database", dbCfg.Name),
		zap.Int("max_conns", dbCfg.MaxConns),
	)
	return db, nil
}

func (db *DB) configurePool(c config.DatabaseConfig) {
	idle := c.MinConns
	if c.MaxConns > 0 && idle > c.MaxConns {
		idle = c.MaxConns
	}
	db.Postgres.SetMaxOpenConns(c.MaxConns)
	db.Postgres.SetMaxIdleConns(idle)
	db.Postgres.SetConnMaxLifetime(c.ConnMaxLifetime)
	db.Postgres.SetConnMaxIdleTime(c.ConnMaxIdleTime)
}

// waitReady pings up to attempts times, sleeping delay between tries.
func (db *DB) waitReady(ctx context.Context, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = db.Postgres.PingContext(ctx); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		db.logger.Warn("PostgreSQL not ready, retrying",
			zap.Int("attempt", i),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to ping PostgreSQL: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("failed to ping PostgreSQL after %d attempts: %w", attempts, err)
}

// Close releases the pool.
func (db *DB) Close() error {
	if err := db.Postgres.Close(); err != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", err)
	}
	return nil
}

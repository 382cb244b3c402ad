// Command checkoutctl administers coupons and inspects leads.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kkkkikiki/checkout/internal/bootstrap"
	"github.com/kkkkikiki/checkout/internal/config"
	"github.com/kkkkikiki/checkout/internal/database"
	"github.com/kkkkikiki/checkout/internal/logging"
	"github.com/kkkkikiki/checkout/internal/service"
)

var Version = "dev"

// app carries what every subcommand needs. Tests swap open for a temp store.
type app struct {
	open    func(ctx context.Context) (service.Store, func() error, error)
	migrate func(ctx context.Context) error
	out     io.Writer
}

func main() {
	a := &app{open: openConfiguredStore, migrate: migrateConfiguredStore, out: os.Stdout}
	if err := a.rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "checkoutctl",
		Short:         "checkoutctl - administer checkout coupons and leads",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(a.out)

	rootCmd.AddCommand(a.migrateCmd())
	rootCmd.AddCommand(a.couponCmd())
	rootCmd.AddCommand(a.leadsCmd())
	return rootCmd
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "schema is up to date")
			return nil
		},
	}
}

func loadConfig(ctx context.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(false, "warn")
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openConfiguredStore(ctx context.Context) (service.Store, func() error, error) {
	cfg, logger, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	return bootstrap.OpenStore(ctx, cfg, logger)
}

func migrateConfiguredStore(ctx context.Context) error {
	cfg, logger, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.App.UsesFileStore() {
		logger.Warn("APP_STORE=file needs no migration")
		return nil
	}

	db, err := database.NewDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	return database.Migrate(ctx, db.Postgres)
}

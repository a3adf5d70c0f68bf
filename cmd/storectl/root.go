package main

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ariefcatur/beyou-storefront/internal/config"
	"github.com/ariefcatur/beyou-storefront/internal/logger"
	"github.com/ariefcatur/beyou-storefront/internal/postgres"
)

var (
	cfg  config.Config
	logg *zap.SugaredLogger
	db   *pgxpool.Pool
)

var rootCmd = &cobra.Command{
	Use:           "storectl",
	Short:         "BeYou back-office maintenance commands",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logg = logger.New(logger.Options{Service: cfg.ServiceName + "-ctl", Level: cfg.LogLevel, File: cfg.LogFile})
		db, err = postgres.Connect(cmd.Context(), cfg.PostgresDSN, postgres.Options{MaxConns: 2})
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if db != nil {
			db.Close()
		}
		if logg != nil {
			_ = logg.Sync()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, recordSaleCmd, listSalesCmd)
}

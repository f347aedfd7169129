package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/paygw/internal/config"
	"github.com/example/paygw/internal/database"
	"github.com/example/paygw/pkg/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := log.Init(serviceName, loggerOptions(cfg)...)

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	logger.Info().Msg("database migrated")
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}

func loggerOptions(cfg *config.Config) []log.Option {
	opts := []log.Option{log.WithLogLevel(cfg.LogLevel), log.WithConsoleLogger()}
	if cfg.LogFile != "" {
		opts = append(opts, log.WithFileLogger(cfg.LogFile))
	}
	return opts
}

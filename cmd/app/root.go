package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"courierhub/cmd"

	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "courierhub",
		Short:         "Courier dispatch service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "optional YAML configuration file")

	root.AddCommand(newServeCommand(opts), newMigrateCommand(opts))
	return root
}

// bootstrap loads configuration and opens the database shared by every
// subcommand.
func bootstrap(opts *rootOptions) (cmd.Config, *slog.Logger, *gorm.DB, error) {
	cfg, err := cmd.LoadConfig(opts.configPath)
	if err != nil {
		return cmd.Config{}, nil, nil, err
	}
	logger := cmd.NewLogger(cfg.Log, os.Stdout)

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return cmd.Config{}, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, logger, db, nil
}

func closeDatabase(db *gorm.DB, logger *slog.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err = sqlDB.Close(); err != nil {
		logger.Warn("closing database failed", "error", err)
	}
}

func contextOf(c *cobra.Command) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

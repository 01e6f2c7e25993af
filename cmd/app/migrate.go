package main

import (
	"courierhub/internal/adapters/out/postgres"

	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(c *cobra.Command, _ []string) error {
			_, logger, db, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer closeDatabase(db, logger)

			if err = postgres.Migrate(contextOf(c), db); err != nil {
				return err
			}
			logger.Info("schema is up to date")
			return nil
		},
	}
}

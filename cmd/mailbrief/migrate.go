package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/znz-systems/mailbrief/internal/database"
	"github.com/znz-systems/mailbrief/internal/stage"
	"github.com/znz-systems/mailbrief/migrations"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending subscriber table migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			url := opts.cfg.Subscribers.DatabaseURL
			if url == "" {
				return fmt.Errorf("%w: DATABASE_URL is required", stage.ErrConfiguration)
			}
			if err := database.RunMigrations(migrations.FS, url); err != nil {
				return err
			}
			slog.Info("migrations applied")
			return nil
		},
	}
}

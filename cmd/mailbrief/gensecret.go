package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/znz-systems/mailbrief/internal/auth"
)

func newGenSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-secret",
		Short: "Print a random token for EVENTS_API_TOKEN or TELEGRAM_WEBHOOK_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := auth.GenerateToken()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
}

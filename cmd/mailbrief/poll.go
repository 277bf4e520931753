package main

import (
	"github.com/spf13/cobra"
)

func newPollCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Drain unseen messages from the mailbox into the record store once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := newDeps(opts.cfg)
			defer d.Close()

			poller, err := d.poller(cmd.Context(), false)
			if err != nil {
				return printError(cmd.OutOrStdout(), err)
			}
			return printResult(cmd.OutOrStdout(), poller.Run(cmd.Context()))
		},
	}
}

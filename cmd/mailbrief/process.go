package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newProcessCmd(opts *rootOptions) *cobra.Command {
	var keys []string
	var eventFile string
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Summarize and deliver stored records",
		Long:  "Process stored records named by --key, or an object-created event read from --event (use - for stdin).",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(keys) == 0 && eventFile == "" {
				return fmt.Errorf("either --key or --event is required")
			}
			d := newDeps(opts.cfg)
			defer d.Close()

			processor, err := d.pipeline(cmd.Context(), false)
			if err != nil {
				return printError(cmd.OutOrStdout(), err)
			}
			if len(keys) > 0 {
				return printResult(cmd.OutOrStdout(), processor.ProcessKeys(cmd.Context(), keys))
			}
			raw, err := readEvent(cmd.InOrStdin(), eventFile)
			if err != nil {
				return printError(cmd.OutOrStdout(), err)
			}
			return printResult(cmd.OutOrStdout(), processor.HandleEvent(cmd.Context(), raw))
		},
	}
	cmd.Flags().StringSliceVar(&keys, "key", nil, "record key to process (repeatable)")
	cmd.Flags().StringVar(&eventFile, "event", "", "path to an object-created event document, or - for stdin")
	return cmd
}

func readEvent(in io.Reader, path string) ([]byte, error) {
	if path == "-" {
		raw, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("read event from stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event file: %w", err)
	}
	return raw, nil
}

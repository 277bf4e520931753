package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/znz-systems/mailbrief/internal/config"
	"github.com/znz-systems/mailbrief/internal/stage"
)

type rootOptions struct {
	envFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "mailbrief",
		Short:         "Summarize mail into Telegram chats",
		Long:          "mailbrief polls a shared mailbox, stores each message, summarizes it and delivers the summary to the subscriber owning the recipient alias.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "load environment from this file (default .env when present)")

	cmd.AddCommand(
		newServeCmd(opts),
		newPollCmd(opts),
		newProcessCmd(opts),
		newMigrateCmd(opts),
		newGenSecretCmd(),
	)
	return cmd
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// printError reports err as a failed result document so construction
// failures produce the same output shape as a run. It returns err.
func printError(w io.Writer, err error) error {
	_ = printResult(w, stage.ErrorResult(err))
	return err
}

// printResult writes res as JSON and turns a server-side failure into an
// error so the process exits non-zero.
func printResult(w io.Writer, res stage.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if res.Failed() {
		return fmt.Errorf("invocation %s failed with code %d", res.InvocationID, res.Code)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/znz-systems/mailbrief/internal/ratelimit"
	"github.com/znz-systems/mailbrief/internal/schedule"
	"github.com/znz-systems/mailbrief/internal/web"
	"github.com/znz-systems/mailbrief/internal/web/handlers"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, the poll scheduler and the optional SMTP listener",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
}

func serve(parent context.Context, opts *rootOptions) error {
	cfg := opts.cfg
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := newDeps(cfg)
	defer d.Close()

	updates, err := d.commandHandler(ctx, true)
	if err != nil {
		return err
	}
	processor, err := d.pipeline(ctx, true)
	if err != nil {
		return err
	}

	var pollHandler *handlers.PollHandler
	var scheduler *schedule.Scheduler
	if cfg.PollSchedule != "" && cfg.PollSchedule != "off" {
		poller, err := d.poller(ctx, true)
		if err != nil {
			return err
		}
		pollHandler = handlers.NewPollHandler(poller)
		scheduler, err = schedule.New(ctx, cfg.PollSchedule, poller)
		if err != nil {
			return err
		}
	}

	smtpSrv, err := d.smtpServer(ctx, true)
	if err != nil {
		return err
	}

	limiter := ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Stop()

	router := web.NewRouter(web.RouterDeps{
		WebhookHandler: handlers.NewWebhookHandler(updates),
		EventsHandler:  handlers.NewEventsHandler(processor),
		PollHandler:    pollHandler,
		Limiter:        limiter,
		WebhookSecret:  cfg.Telegram.WebhookSecret,
		APIToken:       cfg.EventsAPIToken,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("mailbrief starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	if smtpSrv != nil {
		go func() {
			if err := smtpSrv.Start(); err != nil {
				errCh <- fmt.Errorf("inbound smtp server: %w", err)
			}
		}()
	}
	if scheduler != nil {
		scheduler.Start()
		slog.Info("poll scheduler started", "schedule", cfg.PollSchedule)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if smtpSrv != nil {
		if err := smtpSrv.Shutdown(); err != nil {
			slog.Error("inbound smtp shutdown error", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return runErr
}

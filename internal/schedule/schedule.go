// Package schedule runs mailbox polls on a cron schedule inside the serve
// process.
package schedule

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/znz-systems/mailbrief/internal/stage"
)

// Job is one scheduled unit of work.
type Job interface {
	Run(ctx context.Context) stage.Result
}

type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

// New registers job under the cron expression expr. Overlapping runs are
// skipped rather than queued. ctx is handed to every run.
func New(ctx context.Context, expr string, job Job) (*Scheduler, error) {
	logger := cronLogger{}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))
	s := &Scheduler{cron: c, ctx: ctx}
	if _, err := c.AddFunc(expr, func() { s.run(job) }); err != nil {
		return nil, fmt.Errorf("%w: invalid schedule %q: %w", stage.ErrConfiguration, expr, err)
	}
	return s, nil
}

func (s *Scheduler) run(job Job) {
	res := job.Run(s.ctx)
	if res.Failed() {
		slog.Error("scheduled poll failed", "invocation_id", res.InvocationID, "code", res.Code)
		return
	}
	slog.Info("scheduled poll finished", "invocation_id", res.InvocationID, "code", res.Code)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and blocks until a running job returns or ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// cronLogger adapts cron's logr-style logger to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

package schedule

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/znz-systems/mailbrief/internal/stage"
)

type countingJob struct {
	runs atomic.Int32
}

func (j *countingJob) Run(context.Context) stage.Result {
	j.runs.Add(1)
	return stage.NewResult(http.StatusOK, nil)
}

func TestNew_InvalidExpression(t *testing.T) {
	_, err := New(context.Background(), "not a schedule", &countingJob{})
	if !errors.Is(err, stage.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestScheduler_RunsJob(t *testing.T) {
	job := &countingJob{}
	s, err := New(context.Background(), "@every 1s", job)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Start()

	deadline := time.Now().Add(5 * time.Second)
	for job.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	if job.runs.Load() == 0 {
		t.Fatal("expected the job to run at least once")
	}
}

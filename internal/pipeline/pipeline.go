// Package pipeline turns stored email records into chat notifications:
// resolve the recipient alias, look up the subscriber, summarise, deliver
// and record the delivery time.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/znz-systems/mailbrief/internal/alias"
	"github.com/znz-systems/mailbrief/internal/blob"
	"github.com/znz-systems/mailbrief/internal/models"
	"github.com/znz-systems/mailbrief/internal/notify"
	"github.com/znz-systems/mailbrief/internal/stage"
	"github.com/znz-systems/mailbrief/internal/store"
)

var (
	ErrForeignBucket      = fmt.Errorf("event is for another bucket: %w", stage.ErrNotFound)
	ErrNoAlias            = fmt.Errorf("recipient is not a subscriber alias: %w", stage.ErrNotFound)
	ErrInactiveSubscriber = fmt.Errorf("subscriber is inactive: %w", stage.ErrNotFound)
)

type Summarizer interface {
	Summarize(ctx context.Context, subject, body string) string
}

type Deliverer interface {
	Deliver(ctx context.Context, target string, msg notify.Message) error
}

// Processor is built once per process from long-lived clients and is safe
// for concurrent use.
type Processor struct {
	blobs       blob.Store
	subscribers store.SubscriberStore
	summarizer  Summarizer
	notifier    Deliverer
	now         func() time.Time
}

func NewProcessor(blobs blob.Store, subscribers store.SubscriberStore, summarizer Summarizer, notifier Deliverer) *Processor {
	return &Processor{
		blobs:       blobs,
		subscribers: subscribers,
		summarizer:  summarizer,
		notifier:    notifier,
		now:         time.Now,
	}
}

type EventSummary struct {
	Processed int             `json:"processed"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	Outcomes  []stage.Outcome `json:"outcomes"`
}

// HandleEvent processes every object-created record in a storage event.
// Records are independent; the result is a 500 only when at least one
// record failed for a reason other than missing or unresolvable input.
func (p *Processor) HandleEvent(ctx context.Context, raw []byte) stage.Result {
	events, err := blob.DecodeEvents(raw)
	if err != nil {
		slog.Warn("ignoring malformed storage event", "error", err)
		return stage.ErrorResult(err)
	}

	var report stage.Report
	for _, ev := range events {
		if !p.ownsBucket(ev.Bucket) {
			err := fmt.Errorf("bucket %q: %w", ev.Bucket, ErrForeignBucket)
			slog.Info("record skipped", "key", ev.Key, "reason", err)
			report.Add(stage.Fail(ev.Key, err))
			continue
		}
		report.Add(p.ProcessRecord(ctx, ev.Key))
	}
	return summarize(report)
}

// ownsBucket reports whether an event bucket belongs to the configured
// store. Backends without a bucket accept every event, as do events that
// name none.
func (p *Processor) ownsBucket(bucket string) bool {
	b, ok := p.blobs.(interface{ Bucket() string })
	if !ok || bucket == "" {
		return true
	}
	return b.Bucket() == bucket
}

func (p *Processor) ProcessKeys(ctx context.Context, keys []string) stage.Result {
	var report stage.Report
	for _, key := range keys {
		report.Add(p.ProcessRecord(ctx, key))
	}
	return summarize(report)
}

func summarize(report stage.Report) stage.Result {
	summary := EventSummary{
		Processed: report.Count(stage.StatusOK),
		Skipped:   report.Count(stage.StatusSkipped),
		Failed:    report.Count(stage.StatusFailed),
		Outcomes:  report.Outcomes,
	}
	code := http.StatusOK
	if summary.Failed > 0 {
		code = http.StatusInternalServerError
	}
	return stage.NewResult(code, summary)
}

// Dispatch processes a single key and only logs the outcome. It is the
// in-process trigger used when the blob backend has no notifications.
func (p *Processor) Dispatch(ctx context.Context, key string) {
	_ = p.ProcessRecord(ctx, key)
}

// ProcessRecord runs one stored record through the pipeline.
func (p *Processor) ProcessRecord(ctx context.Context, key string) stage.Outcome {
	err := p.process(ctx, key)
	if err != nil {
		out := stage.Fail(key, err)
		if out.Status == stage.StatusSkipped {
			slog.Info("record skipped", "key", key, "reason", err)
		} else {
			slog.Error("record failed", "key", key, "error", err)
		}
		return out
	}
	return stage.OK(key)
}

func (p *Processor) process(ctx context.Context, key string) error {
	raw, err := p.blobs.Get(ctx, key)
	if errors.Is(err, blob.ErrObjectNotFound) {
		return fmt.Errorf("record %s: %w", key, stage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}

	var msg models.NormalizedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("%w: decode record: %w", stage.ErrMalformedInput, err)
	}

	subscriberID, ok := alias.Resolve(msg.To)
	if !ok {
		return fmt.Errorf("to %q: %w", msg.To, ErrNoAlias)
	}

	sub, err := p.subscribers.GetSubscriber(ctx, subscriberID)
	if err != nil {
		return fmt.Errorf("subscriber %s: %w", subscriberID, err)
	}
	if !sub.Active() {
		return fmt.Errorf("subscriber %s: %w", subscriberID, ErrInactiveSubscriber)
	}

	received := msg.Date
	if received == "" && !msg.ReceivedAt.IsZero() {
		received = msg.ReceivedAt.Format(time.RFC1123Z)
	}
	text := p.summarizer.Summarize(ctx, msg.Subject, msg.Body)
	notification := notify.FormatEmail(notify.Email{
		From:     msg.From,
		Subject:  msg.Subject,
		Summary:  text,
		Received: received,
	})
	if err := p.notifier.Deliver(ctx, sub.SubscriberID, notification); err != nil {
		return fmt.Errorf("deliver: %w", err)
	}

	// The message is already delivered; a failed touch is logged, not retried.
	if err := p.subscribers.UpdateSubscriberField(ctx, sub.SubscriberID, models.FieldLastMessageAt, p.now().UTC()); err != nil {
		slog.Warn("failed to record delivery time", "subscriber_id", sub.SubscriberID, "error", err)
	}
	slog.Info("summary delivered", "key", key, "subscriber_id", sub.SubscriberID)
	return nil
}

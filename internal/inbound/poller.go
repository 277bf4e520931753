package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/emersion/go-imap/v2"

	"github.com/znz-systems/mailbrief/internal/mailbox"
	"github.com/znz-systems/mailbrief/internal/stage"
)

type PollerOptions struct {
	// OnStored runs after a record is stored and its source marked seen.
	// It is used to dispatch records in-process when the blob backend has
	// no change notifications.
	OnStored func(ctx context.Context, key string)
}

// Poller drains unseen messages from the shared mailbox into the record
// store. The dialer and recorder are long-lived; each Run opens its own IMAP
// session and logs out before returning.
type Poller struct {
	dialer   mailbox.Dialer
	recorder *Recorder
	onStored func(ctx context.Context, key string)
}

func NewPoller(dialer mailbox.Dialer, recorder *Recorder, opts PollerOptions) *Poller {
	return &Poller{
		dialer:   dialer,
		recorder: recorder,
		onStored: opts.OnStored,
	}
}

type PollSummary struct {
	ProcessedCount int             `json:"processed_count"`
	Skipped        int             `json:"skipped"`
	Failed         int             `json:"failed"`
	Outcomes       []stage.Outcome `json:"outcomes"`
}

// Run performs one poll. It fails as a whole only when the mailbox cannot be
// opened or searched; every message after that is handled in isolation.
func (p *Poller) Run(ctx context.Context) stage.Result {
	sess, err := p.dialer.Dial(ctx)
	if err != nil {
		slog.Error("mailbox connect failed", "error", err)
		return stage.ErrorResult(fmt.Errorf("connect mailbox: %w", err))
	}

	uids, err := sess.SearchUnseen(ctx)
	if err != nil {
		slog.Error("mailbox search failed", "error", err)
		logout(sess)
		return stage.ErrorResult(fmt.Errorf("search mailbox: %w", err))
	}
	slog.Info("mailbox poll started", "unseen", len(uids))

	var report stage.Report
	stored := 0
	for _, uid := range uids {
		if ctx.Err() != nil {
			break
		}
		if sess == nil {
			if sess, err = p.dialer.Dial(ctx); err != nil {
				report.Add(stage.Fail(unit(uid), fmt.Errorf("reconnect mailbox: %w", err)))
				slog.Error("mailbox reconnect failed", "uid", uid, "error", err)
				continue
			}
		}

		key, err := p.processOne(ctx, sess, uid)
		if key != "" {
			stored++
		}
		if err != nil {
			report.Add(stage.Fail(unit(uid), err))
			slog.Error("mailbox message failed", "uid", uid, "key", key, "error", err)
			// A timed out connection is unusable; reopen for the next message.
			if errors.Is(err, stage.ErrTransientIO) {
				logout(sess)
				sess = nil
			}
			continue
		}
		report.Add(stage.OK(unit(uid)))
		slog.Info("mailbox message stored", "uid", uid, "key", key)

		if p.onStored != nil {
			p.onStored(ctx, key)
		}
	}
	if sess != nil {
		logout(sess)
	}

	summary := PollSummary{
		ProcessedCount: stored,
		Skipped:        report.Count(stage.StatusSkipped),
		Failed:         report.Count(stage.StatusFailed),
		Outcomes:       report.Outcomes,
	}
	slog.Info("mailbox poll finished", "processed", summary.ProcessedCount, "failed", summary.Failed)
	return stage.NewResult(http.StatusOK, summary)
}

// processOne returns the record key once the record is stored, even when
// marking the source seen fails afterwards.
func (p *Poller) processOne(ctx context.Context, sess mailbox.Session, uid imap.UID) (string, error) {
	raw, err := sess.Fetch(ctx, uid)
	if err != nil {
		return "", err
	}
	key, err := p.recorder.Record(ctx, unit(uid), "", raw)
	if err != nil {
		return "", err
	}
	if err := sess.MarkSeen(ctx, uid); err != nil {
		return key, err
	}
	return key, nil
}

func unit(uid imap.UID) string {
	return "uid:" + strconv.FormatUint(uint64(uid), 10)
}

func logout(sess mailbox.Session) {
	if err := sess.Logout(); err != nil {
		slog.Warn("mailbox logout failed", "error", err)
	}
}

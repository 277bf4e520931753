package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/znz-systems/mailbrief/internal/blob"
	"github.com/znz-systems/mailbrief/internal/command"
	"github.com/znz-systems/mailbrief/internal/config"
	"github.com/znz-systems/mailbrief/internal/database"
	"github.com/znz-systems/mailbrief/internal/inbound"
	"github.com/znz-systems/mailbrief/internal/mailbox"
	"github.com/znz-systems/mailbrief/internal/notify"
	"github.com/znz-systems/mailbrief/internal/pipeline"
	"github.com/znz-systems/mailbrief/internal/stage"
	"github.com/znz-systems/mailbrief/internal/store"
	"github.com/znz-systems/mailbrief/internal/store/dynamo"
	"github.com/znz-systems/mailbrief/internal/store/postgres"
	"github.com/znz-systems/mailbrief/internal/summary"
	"github.com/znz-systems/mailbrief/migrations"
)

// deps holds the components shared by the subcommands. Fields stay nil until
// the matching build method runs.
type deps struct {
	cfg *config.Config

	db          *sql.DB
	blobs       blob.Store
	subscribers store.SubscriberStore
	notifier    *notify.Notifier
	processor   *pipeline.Processor
}

func newDeps(cfg *config.Config) *deps {
	return &deps{cfg: cfg}
}

func (d *deps) Close() {
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}
}

func (d *deps) blobStore(ctx context.Context) (blob.Store, error) {
	if d.blobs != nil {
		return d.blobs, nil
	}
	if err := d.cfg.Require(config.ComponentStorage); err != nil {
		return nil, err
	}
	blobs, err := blob.NewFromConfig(ctx, d.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	d.blobs = blobs
	return blobs, nil
}

// subscriberStore opens the configured backend. Postgres schemas are migrated
// when migrate is set.
func (d *deps) subscriberStore(ctx context.Context, migrate bool) (store.SubscriberStore, error) {
	if d.subscribers != nil {
		return d.subscribers, nil
	}
	if err := d.cfg.Require(config.ComponentSubscribers); err != nil {
		return nil, err
	}
	switch d.cfg.Subscribers.Backend {
	case "dynamodb":
		s, err := dynamo.NewFromConfig(ctx, d.cfg.Subscribers)
		if err != nil {
			return nil, err
		}
		d.subscribers = s
	default:
		db, err := postgres.NewDB(ctx, d.cfg.Subscribers.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		d.db = db
		if migrate {
			if err := database.RunMigrations(migrations.FS, d.cfg.Subscribers.DatabaseURL); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		d.subscribers = postgres.NewSubscriberStore(db)
	}
	return d.subscribers, nil
}

func (d *deps) telegram() (*notify.Notifier, error) {
	if d.notifier != nil {
		return d.notifier, nil
	}
	if err := d.cfg.Require(config.ComponentTelegram); err != nil {
		return nil, err
	}
	d.notifier = notify.NewNotifier(notify.NewTelegramSender(d.cfg.Telegram))
	return d.notifier, nil
}

func (d *deps) pipeline(ctx context.Context, migrate bool) (*pipeline.Processor, error) {
	if d.processor != nil {
		return d.processor, nil
	}
	if err := d.cfg.Require(config.ComponentSummary); err != nil {
		return nil, err
	}
	blobs, err := d.blobStore(ctx)
	if err != nil {
		return nil, err
	}
	subscribers, err := d.subscriberStore(ctx, migrate)
	if err != nil {
		return nil, err
	}
	notifier, err := d.telegram()
	if err != nil {
		return nil, err
	}
	d.processor = pipeline.NewProcessor(blobs, subscribers, summary.New(d.cfg.Summary), notifier)
	return d.processor, nil
}

// recorderOptions wires the in-process trigger when the blob backend cannot
// emit object-created notifications.
func (d *deps) recorderOptions(ctx context.Context, migrate bool) (inbound.PollerOptions, error) {
	if !d.cfg.Storage.InlineTrigger {
		return inbound.PollerOptions{}, nil
	}
	processor, err := d.pipeline(ctx, migrate)
	if err != nil {
		return inbound.PollerOptions{}, err
	}
	return inbound.PollerOptions{OnStored: processor.Dispatch}, nil
}

func (d *deps) poller(ctx context.Context, migrate bool) (*inbound.Poller, error) {
	if err := d.cfg.Require(config.ComponentMailbox); err != nil {
		return nil, err
	}
	blobs, err := d.blobStore(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := d.recorderOptions(ctx, migrate)
	if err != nil {
		return nil, err
	}
	return inbound.NewPoller(mailbox.NewDialer(d.cfg.Mailbox), inbound.NewRecorder(blobs, nil), opts), nil
}

func (d *deps) commandHandler(ctx context.Context, migrate bool) (*command.Handler, error) {
	if err := d.cfg.Require(config.ComponentAlias); err != nil {
		return nil, err
	}
	subscribers, err := d.subscriberStore(ctx, migrate)
	if err != nil {
		return nil, err
	}
	notifier, err := d.telegram()
	if err != nil {
		return nil, err
	}
	return command.NewHandler(command.NewProcessor(subscribers, d.cfg.Alias.Domain), notifier), nil
}

// smtpServer is nil unless INBOUND_SMTP_ADDR is set.
func (d *deps) smtpServer(ctx context.Context, migrate bool) (*inbound.Server, error) {
	if d.cfg.InboundSMTPAddr == "" {
		return nil, nil
	}
	domain := d.cfg.InboundSMTPDomain
	if domain == "" {
		domain = d.cfg.Alias.Domain
	}
	if domain == "" {
		return nil, fmt.Errorf("%w: INBOUND_SMTP_DOMAIN or ALIAS_DOMAIN is required with INBOUND_SMTP_ADDR", stage.ErrConfiguration)
	}
	blobs, err := d.blobStore(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := d.recorderOptions(ctx, migrate)
	if err != nil {
		return nil, err
	}
	return inbound.NewServer(d.cfg.InboundSMTPAddr, domain, inbound.NewRecorder(blobs, nil), opts), nil
}

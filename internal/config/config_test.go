package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/znz-systems/mailbrief/internal/stage"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("IMAP_USER", "inbox@example.com")
	t.Setenv("IMAP_PASS", "app-password")
	t.Setenv("S3_BUCKET_NAME", "mailbrief-emails")
	t.Setenv("DATABASE_URL", "postgres://mailbrief@localhost/mailbrief?sslmode=disable")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ALIAS_DOMAIN", "mail.example.com")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mailbox.Host != "imap.gmail.com" || cfg.Mailbox.Port != 993 {
		t.Fatalf("unexpected mailbox defaults: %+v", cfg.Mailbox)
	}
	if cfg.Summary.Model != "gpt-3.5-turbo" || cfg.Summary.MaxTokens != 150 {
		t.Fatalf("unexpected summary defaults: %+v", cfg.Summary)
	}
	if err := cfg.Require(ComponentMailbox, ComponentStorage, ComponentSubscribers, ComponentTelegram, ComponentSummary, ComponentAlias); err != nil {
		t.Fatalf("Require: %v", err)
	}
}

func TestLoad_GmailAliases(t *testing.T) {
	t.Setenv("GMAIL_USER", "legacy@gmail.com")
	t.Setenv("GMAIL_PASS", "legacy-pass")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mailbox.Username != "legacy@gmail.com" || cfg.Mailbox.Password != "legacy-pass" {
		t.Fatalf("expected GMAIL_* fallback, got %+v", cfg.Mailbox)
	}
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Setenv("IMAP_PORT", "not-a-port")

	_, err := Load("")
	if !errors.Is(err, stage.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRequire_NamesMissingVariables(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = cfg.Require(ComponentTelegram, ComponentSummary)
	if !errors.Is(err, stage.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	for _, want := range []string{"TELEGRAM_BOT_TOKEN is required", "OPENAI_API_KEY is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
}

func TestRequire_BucketOnlyForS3(t *testing.T) {
	t.Setenv("BLOB_BACKEND", "filesystem")
	t.Setenv("S3_BUCKET_NAME", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Require(ComponentStorage); err != nil {
		t.Fatalf("filesystem backend should not need a bucket: %v", err)
	}

	cfg.Storage.Backend = "s3"
	if err := cfg.Require(ComponentStorage); err == nil || !strings.Contains(err.Error(), "S3_BUCKET_NAME") {
		t.Fatalf("expected missing bucket error, got %v", err)
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/znz-systems/mailbrief/internal/stage"
)

type Component string

const (
	ComponentMailbox     Component = "mailbox"
	ComponentStorage     Component = "storage"
	ComponentSubscribers Component = "subscribers"
	ComponentTelegram    Component = "telegram"
	ComponentSummary     Component = "summary"
	ComponentAlias       Component = "alias"
)

type Config struct {
	Port      int
	LogLevel  string
	LogFormat string

	Mailbox     MailboxConfig
	Storage     StorageConfig
	Subscribers SubscriberConfig
	Telegram    TelegramConfig
	Summary     SummaryConfig
	Alias       AliasConfig

	EventsAPIToken    string
	RateLimitRPS      float64
	RateLimitBurst    int
	PollSchedule      string
	InboundSMTPAddr   string
	InboundSMTPDomain string
}

type MailboxConfig struct {
	Host     string        `env:"IMAP_HOST" validate:"required"`
	Port     int           `env:"IMAP_PORT" validate:"required,gt=0"`
	Username string        `env:"IMAP_USER" validate:"required"`
	Password string        `env:"IMAP_PASS" validate:"required"`
	Mailbox  string        `env:"IMAP_MAILBOX" validate:"required"`
	Timeout  time.Duration `env:"IMAP_TIMEOUT" validate:"gt=0"`
}

type StorageConfig struct {
	Backend           string `env:"BLOB_BACKEND" validate:"oneof=s3 r2 filesystem fs local"`
	FSRoot            string `env:"BLOB_FS_ROOT"`
	S3Bucket          string `env:"S3_BUCKET_NAME" validate:"required_if=Backend s3,required_if=Backend r2"`
	S3Region          string `env:"S3_REGION"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3ForcePathStyle  bool   `env:"S3_FORCE_PATH_STYLE"`
	InlineTrigger     bool   `env:"INLINE_TRIGGER"`
}

type SubscriberConfig struct {
	Backend       string `env:"SUBSCRIBER_STORE" validate:"oneof=postgres dynamodb"`
	DatabaseURL   string `env:"DATABASE_URL" validate:"required_if=Backend postgres"`
	DynamoDBTable string `env:"DYNAMODB_TABLE" validate:"required_if=Backend dynamodb"`
	AWSRegion     string `env:"AWS_REGION"`
	DynamoDBURL   string `env:"DYNAMODB_ENDPOINT"`
}

type TelegramConfig struct {
	BotToken      string        `env:"TELEGRAM_BOT_TOKEN" validate:"required"`
	APIEndpoint   string        `env:"TELEGRAM_API_ENDPOINT" validate:"required"`
	WebhookSecret string        `env:"TELEGRAM_WEBHOOK_SECRET"`
	Timeout       time.Duration `env:"TELEGRAM_TIMEOUT" validate:"gt=0"`
}

type SummaryConfig struct {
	APIKey      string        `env:"OPENAI_API_KEY" validate:"required"`
	URL         string        `env:"SUMMARY_API_URL" validate:"required,url"`
	Model       string        `env:"SUMMARY_MODEL" validate:"required"`
	MaxTokens   int           `env:"SUMMARY_MAX_TOKENS" validate:"gt=0"`
	Temperature float64       `env:"SUMMARY_TEMPERATURE" validate:"gte=0,lte=2"`
	Timeout     time.Duration `env:"SUMMARY_TIMEOUT" validate:"gt=0"`
}

type AliasConfig struct {
	Domain string `env:"ALIAS_DOMAIN" validate:"required,hostname"`
}

// Load reads configuration from the environment, after loading envFile (or
// .env when envFile is empty) if it exists. Load only fails on values that
// cannot be parsed; presence of required settings is checked by Require.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	var errs []error
	intVar := func(key string, fallback int) int {
		v, err := getIntEnv(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	floatVar := func(key string, fallback float64) float64 {
		v, err := getFloatEnv(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	durationVar := func(key string, fallback time.Duration) time.Duration {
		v, err := getDurationEnv(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}

	cfg := &Config{
		Port:      intVar("PORT", 8080),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		Mailbox: MailboxConfig{
			Host:     getEnv("IMAP_HOST", "imap.gmail.com"),
			Port:     intVar("IMAP_PORT", 993),
			Username: getEnv("IMAP_USER", os.Getenv("GMAIL_USER")),
			Password: getEnv("IMAP_PASS", os.Getenv("GMAIL_PASS")),
			Mailbox:  getEnv("IMAP_MAILBOX", "INBOX"),
			Timeout:  durationVar("IMAP_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Backend:           strings.ToLower(getEnv("BLOB_BACKEND", "s3")),
			FSRoot:            getEnv("BLOB_FS_ROOT", "./data/blobs"),
			S3Bucket:          getEnv("S3_BUCKET_NAME", ""),
			S3Region:          getEnv("S3_REGION", os.Getenv("AWS_REGION")),
			S3Endpoint:        getEnv("S3_ENDPOINT", ""),
			S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			S3ForcePathStyle:  getEnv("S3_FORCE_PATH_STYLE", "false") == "true",
			InlineTrigger:     getEnv("INLINE_TRIGGER", "false") == "true",
		},
		Subscribers: SubscriberConfig{
			Backend:       strings.ToLower(getEnv("SUBSCRIBER_STORE", "postgres")),
			DatabaseURL:   getEnv("DATABASE_URL", ""),
			DynamoDBTable: getEnv("DYNAMODB_TABLE", "TelegramUsers"),
			AWSRegion:     getEnv("AWS_REGION", ""),
			DynamoDBURL:   getEnv("DYNAMODB_ENDPOINT", ""),
		},
		Telegram: TelegramConfig{
			BotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
			APIEndpoint:   getEnv("TELEGRAM_API_ENDPOINT", "https://api.telegram.org/bot%s/%s"),
			WebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
			Timeout:       durationVar("TELEGRAM_TIMEOUT", 10*time.Second),
		},
		Summary: SummaryConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			URL:         getEnv("SUMMARY_API_URL", "https://api.openai.com/v1/chat/completions"),
			Model:       getEnv("SUMMARY_MODEL", "gpt-3.5-turbo"),
			MaxTokens:   intVar("SUMMARY_MAX_TOKENS", 150),
			Temperature: floatVar("SUMMARY_TEMPERATURE", 0.7),
			Timeout:     durationVar("SUMMARY_TIMEOUT", 30*time.Second),
		},
		Alias: AliasConfig{
			Domain: strings.ToLower(getEnv("ALIAS_DOMAIN", "")),
		},
		EventsAPIToken:    getEnv("EVENTS_API_TOKEN", ""),
		RateLimitRPS:      floatVar("RATE_LIMIT_RPS", 5.0),
		RateLimitBurst:    intVar("RATE_LIMIT_BURST", 20),
		PollSchedule:      getEnv("POLL_SCHEDULE", "@every 5m"),
		InboundSMTPAddr:   getEnv("INBOUND_SMTP_ADDR", ""),
		InboundSMTPDomain: getEnv("INBOUND_SMTP_DOMAIN", ""),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", stage.ErrConfiguration, err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Require validates the settings of the given components. The returned error
// wraps stage.ErrConfiguration and names every offending variable.
func (c *Config) Require(components ...Component) error {
	var problems []string
	for _, comp := range components {
		target, err := c.section(comp)
		if err != nil {
			return err
		}
		if err := validate.Struct(target); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return fmt.Errorf("%w: %s: %w", stage.ErrConfiguration, comp, err)
			}
			for _, fe := range verrs {
				problems = append(problems, describe(target, fe))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", stage.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) section(comp Component) (any, error) {
	switch comp {
	case ComponentMailbox:
		return c.Mailbox, nil
	case ComponentStorage:
		return c.Storage, nil
	case ComponentSubscribers:
		return c.Subscribers, nil
	case ComponentTelegram:
		return c.Telegram, nil
	case ComponentSummary:
		return c.Summary, nil
	case ComponentAlias:
		return c.Alias, nil
	default:
		return nil, fmt.Errorf("%w: unknown component %q", stage.ErrConfiguration, comp)
	}
}

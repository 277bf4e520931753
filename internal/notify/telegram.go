package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/znz-systems/mailbrief/internal/config"
	"github.com/znz-systems/mailbrief/internal/stage"
)

// TelegramSender sends through the Bot API. It is built once per process and
// shared; the underlying HTTP client enforces the configured timeout.
type TelegramSender struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramSender does not call getMe, so constructing it never touches
// the network.
func NewTelegramSender(cfg config.TelegramConfig) *TelegramSender {
	bot := &tgbotapi.BotAPI{
		Token:  cfg.BotToken,
		Client: &http.Client{Timeout: cfg.Timeout},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(cfg.APIEndpoint)
	return &TelegramSender{bot: bot}
}

func (t *TelegramSender) SendText(ctx context.Context, target, text string, mode Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := newMessage(target, text)
	msg.ParseMode = string(mode)
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			return fmt.Errorf("telegram rejected message (%d): %s", apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("%w: telegram send: %w", stage.ErrTransientIO, err)
	}
	return nil
}

func newMessage(target, text string) tgbotapi.MessageConfig {
	if id, err := strconv.ParseInt(strings.TrimSpace(target), 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text)
	}
	username := target
	if !strings.HasPrefix(username, "@") {
		username = "@" + username
	}
	return tgbotapi.NewMessageToChannel(username, text)
}

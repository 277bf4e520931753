package command

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/znz-systems/mailbrief/internal/stage"
)

// envelope is the API gateway wrapping some hosts put around webhook bodies.
type envelope struct {
	Body            *string `json:"body"`
	IsBase64Encoded bool    `json:"isBase64Encoded"`
	UpdateID        *int    `json:"update_id"`
}

// DecodeUpdate parses a webhook body, unwrapping an API gateway envelope and
// base64 encoding when present.
func DecodeUpdate(raw []byte) (tgbotapi.Update, error) {
	var update tgbotapi.Update

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return update, fmt.Errorf("%w: decode webhook body: %w", stage.ErrMalformedInput, err)
	}
	if env.Body != nil && env.UpdateID == nil {
		inner := []byte(*env.Body)
		if env.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(*env.Body))
			if err != nil {
				return update, fmt.Errorf("%w: decode base64 body: %w", stage.ErrMalformedInput, err)
			}
			inner = decoded
		}
		raw = inner
	}

	if err := json.Unmarshal(raw, &update); err != nil {
		return update, fmt.Errorf("%w: decode update: %w", stage.ErrMalformedInput, err)
	}
	return update, nil
}

type Replier interface {
	Reply(ctx context.Context, target, text string) error
}

// Handler is the webhook entry point. It always acknowledges with 200 so the
// messaging platform does not redeliver; failures are logged instead.
type Handler struct {
	processor *Processor
	replier   Replier
}

func NewHandler(processor *Processor, replier Replier) *Handler {
	return &Handler{processor: processor, replier: replier}
}

func (h *Handler) Handle(ctx context.Context, raw []byte) stage.Result {
	update, err := DecodeUpdate(raw)
	if err != nil {
		slog.Warn("ignoring malformed webhook", "error", err)
		return stage.NewResult(http.StatusOK, stage.Fail("webhook", err))
	}
	if update.Message == nil || update.Message.Chat == nil {
		slog.Info("ignoring non-message update", "update_id", update.UpdateID)
		return stage.NewResult(http.StatusOK, stage.Outcome{
			Unit:   "update:" + strconv.Itoa(update.UpdateID),
			Status: stage.StatusSkipped,
			Reason: "no message",
		})
	}

	chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
	unit := "chat:" + chatID
	text := strings.TrimSpace(update.Message.Text)
	slog.Info("command received", "chat_id", chatID, "command", Name(text))

	reply := h.processor.Execute(ctx, chatID, text)
	if err := h.replier.Reply(ctx, chatID, reply); err != nil {
		slog.Error("failed to send command reply", "chat_id", chatID, "error", err)
		return stage.NewResult(http.StatusOK, stage.Fail(unit, err))
	}
	return stage.NewResult(http.StatusOK, stage.OK(unit))
}

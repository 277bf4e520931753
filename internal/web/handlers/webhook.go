package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/znz-systems/mailbrief/internal/stage"
)

// UpdateHandler consumes one raw Telegram update.
type UpdateHandler interface {
	Handle(ctx context.Context, raw []byte) stage.Result
}

type WebhookHandler struct {
	updates UpdateHandler
}

func NewWebhookHandler(updates UpdateHandler) *WebhookHandler {
	return &WebhookHandler{updates: updates}
}

// HandleTelegram answers 200 for anything it could read so Telegram does not
// redeliver updates the bot chose to ignore.
func (h *WebhookHandler) HandleTelegram(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, jsonResponse{Error: "request body too large"})
		return
	}

	res := h.updates.Handle(r.Context(), raw)
	slog.Debug("telegram update handled", "invocation_id", res.InvocationID, "code", res.Code)
	writeResult(w, res)
}

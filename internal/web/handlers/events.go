package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/znz-systems/mailbrief/internal/stage"
)

// EventProcessor consumes a raw object-created notification batch.
type EventProcessor interface {
	HandleEvent(ctx context.Context, raw []byte) stage.Result
}

type EventsHandler struct {
	processor EventProcessor
}

func NewEventsHandler(processor EventProcessor) *EventsHandler {
	return &EventsHandler{processor: processor}
}

func (h *EventsHandler) HandleStorageEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, jsonResponse{Error: "request body too large"})
		return
	}
	writeResult(w, h.processor.HandleEvent(r.Context(), raw))
}

package handlers

import (
	"context"
	"net/http"

	"github.com/znz-systems/mailbrief/internal/stage"
)

// PollRunner runs one mailbox poll cycle.
type PollRunner interface {
	Run(ctx context.Context) stage.Result
}

type PollHandler struct {
	poller PollRunner
}

func NewPollHandler(poller PollRunner) *PollHandler {
	return &PollHandler{poller: poller}
}

func (h *PollHandler) HandlePoll(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.poller.Run(r.Context()))
}

func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, jsonResponse{OK: true})
}

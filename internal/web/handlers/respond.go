package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/znz-systems/mailbrief/internal/stage"
)

// maxBodyBytes bounds every request body accepted by the HTTP surface.
const maxBodyBytes int64 = 1 << 20

type jsonResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write json response", "error", err)
	}
}

// writeResult renders a stage result with its own status code.
func writeResult(w http.ResponseWriter, res stage.Result) {
	writeJSON(w, res.Code, res)
}

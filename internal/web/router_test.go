package web

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/znz-systems/mailbrief/internal/ratelimit"
	"github.com/znz-systems/mailbrief/internal/stage"
	"github.com/znz-systems/mailbrief/internal/web/handlers"
	"github.com/znz-systems/mailbrief/internal/web/middleware"
)

type okUpdates struct{}

func (okUpdates) Handle(context.Context, []byte) stage.Result {
	return stage.NewResult(http.StatusOK, nil)
}

type okPoller struct{}

func (okPoller) Run(context.Context) stage.Result {
	return stage.NewResult(http.StatusOK, nil)
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	limiter := ratelimit.NewLimiter(100, 100)
	t.Cleanup(limiter.Stop)
	return NewRouter(RouterDeps{
		WebhookHandler: handlers.NewWebhookHandler(okUpdates{}),
		PollHandler:    handlers.NewPollHandler(okPoller{}),
		Limiter:        limiter,
		WebhookSecret:  "hook",
		APIToken:       "api",
	})
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name   string
		method string
		path   string
		header map[string]string
		want   int
	}{
		{"health", http.MethodGet, "/healthz", nil, http.StatusOK},
		{"webhook without secret", http.MethodPost, "/webhooks/telegram", nil, http.StatusUnauthorized},
		{"webhook with secret", http.MethodPost, "/webhooks/telegram", map[string]string{middleware.TelegramSecretHeader: "hook"}, http.StatusOK},
		{"poll without token", http.MethodPost, "/jobs/poll", nil, http.StatusUnauthorized},
		{"poll with token", http.MethodPost, "/jobs/poll", map[string]string{"Authorization": "Bearer api"}, http.StatusOK},
		{"events not mounted", http.MethodPost, "/events/storage", map[string]string{"Authorization": "Bearer api"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, bytes.NewBufferString(`{}`))
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("got %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

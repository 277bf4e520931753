package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/znz-systems/mailbrief/internal/ratelimit"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequireBearer(t *testing.T) {
	cases := []struct {
		token  string
		header string
		want   int
	}{
		{"", "Bearer x", http.StatusServiceUnavailable},
		{"secret", "", http.StatusUnauthorized},
		{"secret", "Bearer nope", http.StatusUnauthorized},
		{"secret", "Bearer secret", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/jobs/poll", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rr := httptest.NewRecorder()
		RequireBearer(tc.token)(okHandler).ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Fatalf("token=%q header=%q: got %d, want %d", tc.token, tc.header, rr.Code, tc.want)
		}
	}
}

func TestRequireHeaderSecret(t *testing.T) {
	h := RequireHeaderSecret(TelegramSecretHeader, "s3cret")(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	req.Header.Set(TelegramSecretHeader, "s3cret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	RequireHeaderSecret(TelegramSecretHeader, "")(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected pass-through without secret, got %d", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(0.001, 1)
	defer limiter.Stop()
	h := RateLimit(limiter)(okHandler)

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Fatalf("request %d: got %d, want %d", i, rr.Code, want)
		}
	}
}

// Package summary asks a chat-completions endpoint for a short summary of an
// email. It never fails: any problem degrades to a fixed fallback text.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/znz-systems/mailbrief/internal/config"
	"github.com/znz-systems/mailbrief/internal/stage"
)

// MaxPromptBodyChars bounds the body prefix sent to the model.
const MaxPromptBodyChars = 2000

var htmlTag = regexp.MustCompile(`(?i)<(html|body|div|p|br|table|span|a)[\s/>]`)

type Summarizer struct {
	url         string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// New builds a Summarizer whose HTTP client enforces cfg.Timeout on every
// request. The Summarizer is safe for concurrent use.
func New(cfg config.SummaryConfig) *Summarizer {
	return &Summarizer{
		url:         cfg.URL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: cfg.Timeout},
	}
}

// Fallback is the summary used whenever the model cannot be reached.
func Fallback(subject string) string {
	return "Summary: " + subject
}

// Summarize returns a 2-3 sentence summary, or Fallback(subject).
func (s *Summarizer) Summarize(ctx context.Context, subject, body string) string {
	text, err := s.complete(ctx, Prompt(subject, body))
	if err != nil {
		slog.Warn("summary request failed, using fallback", "subject", subject, "error", err)
		return Fallback(subject)
	}
	return text
}

// Prompt renders the instruction sent to the model.
func Prompt(subject, body string) string {
	return fmt.Sprintf("Provide a concise summary of this email.\n\nSubject: %s\n\nBody: %s\n\nThe summary must be 2-3 sentences highlighting the key points.",
		subject, promptBody(body))
}

func promptBody(body string) string {
	if htmlTag.MatchString(body) {
		if md, err := htmltomarkdown.ConvertString(body); err == nil {
			body = md
		}
	}
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) > MaxPromptBodyChars {
		body = string(runes[:MaxPromptBodyChars])
	}
	return body
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (s *Summarizer) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       s.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: summary request: %w", stage.ErrTransientIO, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", stage.ErrTransientIO, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summary API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", errors.New("summary API returned no choices")
	}
	text := strings.TrimSpace(result.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("summary API returned empty content")
	}
	slog.Debug("summary generated", "model", s.model, "duration", time.Since(start))
	return text, nil
}

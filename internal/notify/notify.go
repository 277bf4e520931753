// Package notify delivers formatted messages to subscriber chats.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type Mode string

const (
	ModeRich  Mode = "HTML"
	ModePlain Mode = ""
)

// Sender posts a single text message to a chat.
type Sender interface {
	SendText(ctx context.Context, target, text string, mode Mode) error
}

// Message is one notification in its two renderings. Both carry the same
// information; Plain is used only when Rich is rejected.
type Message struct {
	Rich  string
	Plain string
}

type Notifier struct {
	sender Sender
}

func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// Deliver sends msg.Rich and, if that fails, retries exactly once with
// msg.Plain.
func (n *Notifier) Deliver(ctx context.Context, target string, msg Message) error {
	richErr := n.sender.SendText(ctx, target, msg.Rich, ModeRich)
	if richErr == nil {
		return nil
	}
	slog.Warn("rich message rejected, retrying as plain text", "target", target, "error", richErr)

	if err := n.sender.SendText(ctx, target, msg.Plain, ModePlain); err != nil {
		return fmt.Errorf("deliver to %s: %w", target, errors.Join(richErr, err))
	}
	slog.Info("message delivered as plain text", "target", target)
	return nil
}

// Reply sends a plain command response without fallback.
func (n *Notifier) Reply(ctx context.Context, target, text string) error {
	return n.sender.SendText(ctx, target, text, ModePlain)
}

// Package command implements the chat command interface through which
// subscribers register, inspect and deactivate their alias.
//
// Lifecycle: unregistered -> active (/register), active -> inactive
// (/deactivate), inactive -> active (/register again, keeping the alias).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/znz-systems/mailbrief/internal/alias"
	"github.com/znz-systems/mailbrief/internal/models"
	"github.com/znz-systems/mailbrief/internal/store"
)

const (
	textStart = "Welcome to Email Summary Bot!\n\n" +
		"Commands:\n" +
		"/register - Create your unique email address\n" +
		"/status - Check your email address and status\n" +
		"/deactivate - Disable email forwarding\n" +
		"/help - Show help\n\n" +
		"Flow:\n" +
		"1) /register to get an address\n" +
		"2) Use that address anywhere\n" +
		"3) Summaries arrive here"
	textHelp       = "Commands: /start /register /status /deactivate /help"
	textUnknown    = "Unknown command. Use /help."
	textNotCommand = "Use /start to see available commands."

	textNoEmail         = "You don't have an email yet. Use /register."
	textNothingToDeact  = "No email to deactivate."
	textDeactivated     = "Email deactivated. Use /register to reactivate."
	textAlreadyInactive = "Your email is already inactive. Use /register to reactivate."

	textRegisterError = "Error creating email. Try again later."
	textStatusError   = "Error retrieving status. Try again later."
	textDeactError    = "Error deactivating email. Try again later."

	timestampLayout = "2006-01-02T15:04:05"
)

type Processor struct {
	subscribers store.SubscriberStore
	domain      string
	newAlias    func(subscriberID, domain string) (string, error)
	now         func() time.Time
}

func NewProcessor(subscribers store.SubscriberStore, domain string) *Processor {
	return &Processor{
		subscribers: subscribers,
		domain:      domain,
		newAlias:    alias.Generate,
		now:         time.Now,
	}
}

// Name lowercases a command message, dropping a trailing @botname. Commands
// take no arguments, so text with more than one word is returned whole and
// matches no command. It returns "" when text is not a command.
func Name(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name := strings.ToLower(text)
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return name
	}
	if at := strings.Index(name, "@"); at > 0 {
		name = name[:at]
	}
	return name
}

// Execute interprets one chat message and returns the reply text. Store
// failures are reported to the user, never returned.
func (p *Processor) Execute(ctx context.Context, chatID, text string) string {
	switch Name(text) {
	case "":
		return textNotCommand
	case "/start":
		return textStart
	case "/help":
		return textHelp
	case "/register":
		return p.register(ctx, chatID)
	case "/status":
		return p.status(ctx, chatID)
	case "/deactivate":
		return p.deactivate(ctx, chatID)
	default:
		return textUnknown
	}
}

func (p *Processor) register(ctx context.Context, chatID string) string {
	sub, err := p.subscribers.GetSubscriber(ctx, chatID)
	switch {
	case errors.Is(err, store.ErrSubscriberNotFound):
		return p.create(ctx, chatID)
	case err != nil:
		slog.Error("register lookup failed", "chat_id", chatID, "error", err)
		return textRegisterError
	case sub.Active():
		return alreadyActive(sub.Alias)
	}

	if err := p.subscribers.UpdateSubscriberField(ctx, chatID, models.FieldStatus, models.StatusActive); err != nil {
		slog.Error("reactivate failed", "chat_id", chatID, "error", err)
		return textRegisterError
	}
	slog.Info("subscriber reactivated", "chat_id", chatID)
	return fmt.Sprintf("Email reactivated.\n\nYour address: %s\n\nUse /status to view details.", sub.Alias)
}

func (p *Processor) create(ctx context.Context, chatID string) string {
	addr, err := p.newAlias(chatID, p.domain)
	if err != nil {
		slog.Error("alias generation failed", "chat_id", chatID, "error", err)
		return textRegisterError
	}
	sub := &models.Subscriber{
		SubscriberID: chatID,
		Alias:        addr,
		Status:       models.StatusActive,
		CreatedAt:    p.now().UTC(),
	}
	if err := p.subscribers.PutSubscriber(ctx, sub); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			// A concurrent /register won; report its alias.
			if existing, getErr := p.subscribers.GetSubscriber(ctx, chatID); getErr == nil && existing.Active() {
				return alreadyActive(existing.Alias)
			}
		}
		slog.Error("register write failed", "chat_id", chatID, "error", err)
		return textRegisterError
	}

	slog.Info("subscriber registered", "chat_id", chatID, "alias", addr)
	return fmt.Sprintf("Email created.\n\nYour address: %s\n\nGive this address to services you want summarized.\nUse /status to view details.", addr)
}

func alreadyActive(addr string) string {
	return "You already have an active email: " + addr
}

func (p *Processor) status(ctx context.Context, chatID string) string {
	sub, err := p.subscribers.GetSubscriber(ctx, chatID)
	if errors.Is(err, store.ErrSubscriberNotFound) {
		return textNoEmail
	}
	if err != nil {
		slog.Error("status lookup failed", "chat_id", chatID, "error", err)
		return textStatusError
	}

	created := "Unknown"
	if !sub.CreatedAt.IsZero() {
		created = sub.CreatedAt.UTC().Format(timestampLayout)
	}
	last := "Never"
	if sub.LastMessageAt != nil {
		last = sub.LastMessageAt.UTC().Format(timestampLayout)
	}
	return fmt.Sprintf("Your Email Status\n\nEmail: %s\nStatus: %s\nCreated: %s\nLast Email: %s",
		sub.Alias, titleCase(string(sub.Status)), created, last)
}

func (p *Processor) deactivate(ctx context.Context, chatID string) string {
	sub, err := p.subscribers.GetSubscriber(ctx, chatID)
	if errors.Is(err, store.ErrSubscriberNotFound) {
		return textNothingToDeact
	}
	if err != nil {
		slog.Error("deactivate lookup failed", "chat_id", chatID, "error", err)
		return textDeactError
	}
	if !sub.Active() {
		return textAlreadyInactive
	}

	if err := p.subscribers.UpdateSubscriberField(ctx, chatID, models.FieldStatus, models.StatusInactive); err != nil {
		slog.Error("deactivate write failed", "chat_id", chatID, "error", err)
		return textDeactError
	}
	slog.Info("subscriber deactivated", "chat_id", chatID)
	return textDeactivated
}

// titleCase builds a fresh Caser per call since Casers are not safe for
// concurrent use.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Email holds the fields shown in an email summary notification.
type Email struct {
	From     string
	Subject  string
	Summary  string
	Received string
}

// FormatEmail renders e for delivery. Every value is HTML-escaped in both
// renderings so the plain retry shows exactly what the rich one would.
func FormatEmail(e Email) Message {
	from := escape(orDefault(e.From, "Unknown"))
	subject := escape(orDefault(e.Subject, "No Subject"))
	summary := escape(e.Summary)
	received := escape(orDefault(e.Received, "Unknown time"))

	return Message{
		Rich: fmt.Sprintf("📧 <b>New Email Summary</b>\n\n<b>From:</b> %s\n<b>Subject:</b> %s\n\n<b>Summary:</b>\n%s\n\n<i>Received: %s</i>",
			from, subject, summary, received),
		Plain: fmt.Sprintf("📧 New Email Summary\n\nFrom: %s\nSubject: %s\n\nSummary:\n%s\n\nReceived: %s",
			from, subject, summary, received),
	}
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

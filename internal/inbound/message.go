package inbound

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/znz-systems/mailbrief/internal/models"
	"github.com/znz-systems/mailbrief/internal/stage"
)

const maxPartBytes = 5 * 1024 * 1024

// ParseMessage normalises a raw RFC 822 message. The plain-text body is
// preferred over HTML and attachment parts are skipped. When the header
// cannot be read the returned message still carries the raw source, along
// with an error wrapping stage.ErrMalformedInput.
func ParseMessage(raw []byte, receivedAt time.Time) (models.NormalizedMessage, error) {
	msg := models.NormalizedMessage{
		ReceivedAt: receivedAt.UTC(),
		RawSource:  string(raw),
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return msg, fmt.Errorf("%w: empty message", stage.ErrMalformedInput)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return msg, fmt.Errorf("%w: read message header: %w", stage.ErrMalformedInput, err)
	}
	defer mr.Close()

	h := mr.Header
	msg.From = headerText(h, "From")
	msg.To = strings.TrimSpace(h.Get("To"))
	msg.Date = strings.TrimSpace(h.Get("Date"))
	msg.Subject = headerText(h, "Subject")
	if id, err := h.MessageID(); err == nil {
		msg.MessageID = id
	}

	var text, html string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			// Keep whatever body was found before the broken part.
			break
		}
		ih, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := ih.ContentType()
		switch strings.ToLower(ct) {
		case "text/plain", "":
			if text == "" {
				text = readPart(p.Body)
			}
		case "text/html":
			if html == "" {
				html = readPart(p.Body)
			}
		}
	}

	body := text
	if body == "" {
		body = html
	}
	msg.Body = truncate(body, models.MaxBodyChars)
	return msg, nil
}

func headerText(h mail.Header, key string) string {
	if v, err := h.Text(key); err == nil {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(h.Get(key))
}

func readPart(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxPartBytes))
	if err != nil && len(b) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.ToValidUTF8(string(b), "�"))
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Package alias generates per-subscriber email aliases and resolves them
// back to subscriber ids.
//
// An alias has the form user_{id}_{suffix}@{domain}. The suffix only makes
// aliases harder to guess; identity is carried by the id alone.
package alias

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"unicode"
)

const (
	prefix = "user"

	SuffixLength   = 6
	suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

var ErrInvalidSubscriberID = errors.New("invalid subscriber id")

// ValidateSubscriberID rejects ids that would make an alias ambiguous.
func ValidateSubscriberID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSubscriberID)
	}
	if strings.ContainsAny(id, "_@") || strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidSubscriberID, id)
	}
	return nil
}

// Encode builds the alias for subscriberID.
func Encode(subscriberID, suffix, domain string) (string, error) {
	if err := ValidateSubscriberID(subscriberID); err != nil {
		return "", err
	}
	domain = strings.ToLower(strings.TrimSpace(domain))
	if suffix == "" || strings.ContainsAny(suffix, "_@") {
		return "", fmt.Errorf("invalid alias suffix %q", suffix)
	}
	if domain == "" {
		return "", errors.New("alias domain is required")
	}
	return prefix + "_" + subscriberID + "_" + suffix + "@" + domain, nil
}

// NewSuffix draws SuffixLength characters from [a-z0-9] using r, or
// crypto/rand when r is nil.
func NewSuffix(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, SuffixLength)
	out := make([]byte, SuffixLength)
	// Rejection sampling keeps the distribution uniform over the alphabet.
	limit := byte(256 - 256%len(suffixAlphabet))
	for i := 0; i < SuffixLength; {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read random suffix: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
			i++
			if i == SuffixLength {
				break
			}
		}
	}
	return string(out), nil
}

// Generate returns a fresh alias for subscriberID on domain.
func Generate(subscriberID, domain string) (string, error) {
	suffix, err := NewSuffix(nil)
	if err != nil {
		return "", err
	}
	return Encode(subscriberID, suffix, domain)
}

// Decode resolves a bare address to its subscriber id. It reports false when
// the address does not follow the alias grammar.
func Decode(address string) (string, bool) {
	address = strings.TrimSpace(address)
	at := strings.LastIndex(address, "@")
	if at <= 0 || at == len(address)-1 {
		return "", false
	}
	local := address[:at]
	if strings.Contains(local, "@") {
		return "", false
	}
	parts := strings.Split(local, "_")
	if len(parts) != 3 || !strings.EqualFold(parts[0], prefix) {
		return "", false
	}
	if ValidateSubscriberID(parts[1]) != nil || parts[2] == "" || strings.IndexFunc(parts[2], unicode.IsSpace) >= 0 {
		return "", false
	}
	return parts[1], true
}

// Resolve finds the first alias in a recipient header value such as
// "Alice <user_42_ab12cd@mail.example.com>, bob@example.com".
func Resolve(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	list, err := mail.ParseAddressList(header)
	if err != nil {
		// Fall back to the raw value for headers net/mail cannot parse.
		for _, field := range strings.FieldsFunc(header, func(r rune) bool { return r == ',' || r == ';' }) {
			addr := strings.Trim(strings.TrimSpace(field), "<>")
			if i := strings.LastIndex(addr, "<"); i >= 0 {
				addr = strings.TrimSuffix(addr[i+1:], ">")
			}
			if id, ok := Decode(addr); ok {
				return id, true
			}
		}
		return "", false
	}
	for _, addr := range list {
		if id, ok := Decode(addr.Address); ok {
			return id, true
		}
	}
	return "", false
}

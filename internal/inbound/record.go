package inbound

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/znz-systems/mailbrief/internal/blob"
)

const (
	recordContentType = "application/json"
	maxMetadataChars  = 100
)

// ContentHash identifies a raw message by its bytes.
func ContentHash(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:16])
}

// RecordKey partitions records by arrival day:
// emails/YYYY/MM/DD/{hash}_{unix}.json (UTC).
func RecordKey(hash string, arrival time.Time) string {
	t := arrival.UTC()
	return fmt.Sprintf("emails/%04d/%02d/%02d/%s_%d.json", t.Year(), int(t.Month()), t.Day(), hash, t.Unix())
}

// Recorder turns raw messages into stored records. It is shared by the
// mailbox poller and the SMTP ingress server.
type Recorder struct {
	blobs blob.Store
	now   func() time.Time
}

func NewRecorder(blobs blob.Store, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{blobs: blobs, now: now}
}

// Record parses raw, stores the normalised record and returns its key.
// sourceID is used as the message id when the message has none. A non-empty
// envelopeTo replaces the To header, for deliveries where the recipient is
// only known from the envelope.
func (r *Recorder) Record(ctx context.Context, sourceID, envelopeTo string, raw []byte) (string, error) {
	arrival := r.now().UTC()
	msg, err := ParseMessage(raw, arrival)
	if err != nil {
		if len(raw) == 0 {
			return "", err
		}
		slog.Warn("storing message with unreadable header", "source", sourceID, "error", err)
	}
	if msg.MessageID == "" {
		msg.MessageID = sourceID
	}
	if envelopeTo != "" {
		msg.To = envelopeTo
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	key := RecordKey(ContentHash(raw), arrival)
	metadata := map[string]string{
		"from":      truncate(msg.From, maxMetadataChars),
		"subject":   truncate(msg.Subject, maxMetadataChars),
		"processed": "false",
	}
	if err := r.blobs.Put(ctx, key, recordContentType, body, metadata); err != nil {
		return "", fmt.Errorf("store record %s: %w", key, err)
	}
	return key, nil
}

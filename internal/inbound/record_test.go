package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/znz-systems/mailbrief/internal/models"
)

func TestRecordKey(t *testing.T) {
	arrival := time.Date(2024, 3, 5, 23, 59, 59, 0, time.FixedZone("CET", 3600))
	got := RecordKey("abc", arrival)
	want := "emails/2024/03/05/abc_1709679599.json"
	if got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("one"))
	b := ContentHash([]byte("two"))
	if len(a) != 32 || a == b {
		t.Fatalf("unexpected hashes %q %q", a, b)
	}
	if a != ContentHash([]byte("one")) {
		t.Fatal("hash must be deterministic")
	}
}

func TestRecorder_StoresNormalizedRecord(t *testing.T) {
	blobs := newMemoryBlobStore()
	rec := NewRecorder(blobs, func() time.Time { return testArrival })
	raw := []byte("From: " + strings.Repeat("x", 150) + "@example.com\r\n" +
		"To: user_42_ab12cd@domain\r\nSubject: Invoice\r\n\r\nPlease pay $50")

	key, err := rec.Record(context.Background(), "uid:7", "", raw)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if want := RecordKey(ContentHash(raw), testArrival); key != want {
		t.Fatalf("key = %q, want %q", key, want)
	}

	obj := blobs.objects[key]
	if obj.contentType != "application/json" {
		t.Fatalf("unexpected content type %q", obj.contentType)
	}
	if obj.metadata["processed"] != "false" || len(obj.metadata["from"]) != maxMetadataChars {
		t.Fatalf("unexpected metadata %v", obj.metadata)
	}

	var msg models.NormalizedMessage
	if err := json.Unmarshal(obj.body, &msg); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if msg.MessageID != "uid:7" {
		t.Fatalf("expected source id as message id, got %q", msg.MessageID)
	}
	if msg.Subject != "Invoice" || msg.Body != "Please pay $50" || msg.RawSource != string(raw) {
		t.Fatalf("unexpected record %+v", msg)
	}
}

func TestRecorder_EnvelopeRecipientOverridesHeader(t *testing.T) {
	blobs := newMemoryBlobStore()
	rec := NewRecorder(blobs, func() time.Time { return testArrival })
	raw := []byte("To: list@example.com\r\nSubject: Hi\r\n\r\nbody")

	key, err := rec.Record(context.Background(), "smtp:1", "user_9_q1w2e3@example.com", raw)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	var msg models.NormalizedMessage
	_ = json.Unmarshal(blobs.objects[key].body, &msg)
	if msg.To != "user_9_q1w2e3@example.com" {
		t.Fatalf("unexpected to %q", msg.To)
	}
}

func TestRecorder_PutFailure(t *testing.T) {
	blobs := newMemoryBlobStore()
	blobs.putErr = errors.New("bucket unavailable")
	rec := NewRecorder(blobs, nil)

	if _, err := rec.Record(context.Background(), "uid:1", "", []byte("Subject: x\r\n\r\ny")); err == nil {
		t.Fatal("expected error")
	}
}

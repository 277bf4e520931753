package alias

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ids := []string{"42", "123456789", "-1001234567890", "abc.DEF-9", "ünï"}
	for _, id := range ids {
		addr, err := Encode(id, "ab12cd", "mail.example.com")
		if err != nil {
			t.Fatalf("encode %q: %v", id, err)
		}
		got, ok := Decode(addr)
		if !ok || got != id {
			t.Fatalf("decode(%q) = %q, %v; want %q", addr, got, ok, id)
		}
	}
}

func TestEncode_RejectsAmbiguousIDs(t *testing.T) {
	for _, id := range []string{"", "a_b", "a@b", "a b"} {
		if _, err := Encode(id, "ab12cd", "example.com"); !errors.Is(err, ErrInvalidSubscriberID) {
			t.Fatalf("encode %q: expected ErrInvalidSubscriberID, got %v", id, err)
		}
	}
}

func TestDecode_NoMatch(t *testing.T) {
	cases := []string{
		"",
		"alice@example.com",
		"user_42@example.com",
		"user_42_ab_cd@example.com",
		"member_42_ab12cd@example.com",
		"user__ab12cd@example.com",
		"user_42_@example.com",
		"user_42_ab12cd@",
		"user_42_ab12cd",
		"user_4 2_ab12cd@example.com",
		"user_42_ab@cd@example.com",
		"user_42_ab 12@example.com",
	}
	for _, addr := range cases {
		if id, ok := Decode(addr); ok {
			t.Fatalf("decode(%q) = %q, want no match", addr, id)
		}
	}
}

func TestDecode_PrefixIsCaseInsensitive(t *testing.T) {
	id, ok := Decode("User_42_ab12cd@Mail.Example.com")
	if !ok || id != "42" {
		t.Fatalf("got %q, %v", id, ok)
	}
}

func TestResolve_HeaderForms(t *testing.T) {
	cases := map[string]string{
		"user_42_ab12cd@domain":                                "42",
		"Someone <user_7_zz99aa@mail.example.com>":             "7",
		"bob@example.com, Alias <user_9_q1w2e3@example.com>":   "9",
		"undisclosed-recipients:;, <user_5_aaaaaa@example.com": "5",
	}
	for header, want := range cases {
		got, ok := Resolve(header)
		if !ok || got != want {
			t.Fatalf("resolve(%q) = %q, %v; want %q", header, got, ok, want)
		}
	}
	if _, ok := Resolve("bob@example.com"); ok {
		t.Fatal("expected no match for plain address")
	}
}

func TestNewSuffix(t *testing.T) {
	suffix, err := NewSuffix(nil)
	if err != nil {
		t.Fatalf("new suffix: %v", err)
	}
	if len(suffix) != SuffixLength {
		t.Fatalf("unexpected length %d", len(suffix))
	}
	for _, r := range suffix {
		if !strings.ContainsRune(suffixAlphabet, r) {
			t.Fatalf("unexpected character %q in %q", r, suffix)
		}
	}
}

func TestNewSuffix_SkipsBiasedBytes(t *testing.T) {
	// 255 is above the rejection limit; 0 maps to 'a', 35 maps to '9'.
	src := bytes.NewReader([]byte{255, 0, 35, 1, 2, 3, 4, 255, 255, 255, 255, 255})
	suffix, err := NewSuffix(src)
	if err != nil {
		t.Fatalf("new suffix: %v", err)
	}
	if suffix != "a9bcde" {
		t.Fatalf("got %q", suffix)
	}
}

func TestNewSuffix_ShortReader(t *testing.T) {
	if _, err := NewSuffix(bytes.NewReader([]byte{1, 2})); err == nil {
		t.Fatal("expected error from short reader")
	}
}

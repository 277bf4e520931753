package auth

import "testing"

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, _ := GenerateToken()
	if len(a) != 64 || a == b {
		t.Fatalf("unexpected tokens %q %q", a, b)
	}
}

func TestValidBearer(t *testing.T) {
	cases := []struct {
		header   string
		expected string
		want     bool
	}{
		{"Bearer secret", "secret", true},
		{"  Bearer   secret  ", "secret", true},
		{"Bearer wrong", "secret", false},
		{"secret", "secret", false},
		{"Bearer ", "secret", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		if got := ValidBearer(tc.header, tc.expected); got != tc.want {
			t.Fatalf("ValidBearer(%q, %q) = %v, want %v", tc.header, tc.expected, got, tc.want)
		}
	}
}

func TestEqual_EmptyExpectedNeverMatches(t *testing.T) {
	if Equal("", "") {
		t.Fatal("empty secret must not match")
	}
	if !Equal("abc", "abc") || Equal("abc", "abd") {
		t.Fatal("unexpected comparison result")
	}
}

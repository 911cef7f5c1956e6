package security

import (
	"strings"
	"testing"
)

func TestEqual(t *testing.T) {
	if !Equal("abc", "abc") {
		t.Fatal("expected equal strings to match")
	}
	if Equal("abc", "abd") {
		t.Fatal("expected different strings to mismatch")
	}
	if Equal("abc", "abcd") {
		t.Fatal("expected different lengths to mismatch")
	}
}

func TestEqualBothRequiresBoth(t *testing.T) {
	cases := []struct {
		name           string
		a1, b1, a2, b2 string
		want           bool
	}{
		{"both match", "x", "x", "y", "y", true},
		{"first differs", "x", "z", "y", "y", false},
		{"second differs", "x", "x", "y", "z", false},
		{"both differ", "x", "z", "y", "z", false},
	}
	for _, tc := range cases {
		if got := EqualBoth(tc.a1, tc.b1, tc.a2, tc.b2); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestSignerSealOpen(t *testing.T) {
	s, err := NewSigner([]byte("secret"), "test")
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	sealed := s.Seal("raw-value")
	if !strings.HasPrefix(sealed, "raw-value.") {
		t.Fatalf("unexpected sealed shape %q", sealed)
	}
	if !s.Open(sealed, "raw-value") {
		t.Fatal("expected sealed value to open")
	}
	if s.Open(sealed, "other") {
		t.Fatal("expected mismatched raw to fail")
	}
	for _, bad := range []string{"", "raw-value", "raw-value.", ".sig", "raw-value.deadbeef"} {
		if s.Open(bad, "raw-value") {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestSignerPurposeSeparation(t *testing.T) {
	a, err := NewSigner([]byte("secret"), "purpose-a")
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	b, err := NewSigner([]byte("secret"), "purpose-b")
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	if b.Open(a.Seal("v"), "v") {
		t.Fatal("expected value sealed for one purpose to fail under another")
	}
}

func TestNewSignerRejectsEmptySecret(t *testing.T) {
	if _, err := NewSigner(nil, "x"); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

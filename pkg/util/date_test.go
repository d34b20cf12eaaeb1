package util

import (
	"testing"
	"time"
)

func TestParseExpiryToken(t *testing.T) {
	got, err := ParseExpiryToken("15JAN25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestParseExpiryTokenMixedCase(t *testing.T) {
	got, err := ParseExpiryToken("02Sep24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseExpiryTokenInvalid(t *testing.T) {
	for _, tok := range []string{"", "JAN25", "99JAN25", "15XXX25", "15JAN2025"} {
		if _, err := ParseExpiryToken(tok); err == nil {
			t.Fatalf("expected error for %q", tok)
		}
	}
}

func TestParseMonthToken(t *testing.T) {
	got, err := ParseMonthToken("JAN25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestDayKey(t *testing.T) {
	ts := time.Date(2025, 3, 4, 15, 30, 45, 123, time.UTC)
	got := DayKey(ts)
	if !got.Equal(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day key %v", got)
	}
}

func TestTrimVariantSuffix(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		variant int
		ok      bool
	}{
		{"SYM_OPT_JAN25_1", "SYM_OPT_JAN25", 1, true},
		{"SYM_OPT_JAN25", "SYM_OPT_JAN25", 0, false},
		{"SYM_OPT_15JAN25_2", "SYM_OPT_15JAN25", 2, true},
		{"plain", "plain", 0, false},
	}
	for _, tc := range tests {
		base, variant, ok := TrimVariantSuffix(tc.name)
		if ok != tc.ok {
			t.Fatalf("%s: ok=%v want %v", tc.name, ok, tc.ok)
		}
		if !ok {
			continue
		}
		if base != tc.base || variant != tc.variant {
			t.Fatalf("%s: got (%s,%d) want (%s,%d)", tc.name, base, variant, tc.base, tc.variant)
		}
	}
}

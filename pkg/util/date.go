package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseExpiryToken parses a DDMMMYY contract-expiry token such as "15JAN25".
// Month letters match case-insensitively.
func ParseExpiryToken(tok string) (time.Time, error) {
	if len(tok) != 7 {
		return time.Time{}, fmt.Errorf("expiry token %q: want DDMMMYY", tok)
	}
	t, err := time.ParseInLocation("02Jan06", tok[:2]+titleMonth(tok[2:5])+tok[5:], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("expiry token %q: %w", tok, err)
	}
	return t, nil
}

// ParseMonthToken parses a MMMYY contract-month token such as "JAN25".
func ParseMonthToken(tok string) (time.Time, error) {
	if len(tok) != 5 {
		return time.Time{}, fmt.Errorf("month token %q: want MMMYY", tok)
	}
	t, err := time.ParseInLocation("Jan06", titleMonth(tok[:3])+tok[3:], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("month token %q: %w", tok, err)
	}
	return t, nil
}

// DayKey truncates a timestamp to its UTC calendar date.
func DayKey(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TrimVariantSuffix splits a trailing "_n" split-table suffix off a name.
// "SYM_OPT_JAN25_1" yields ("SYM_OPT_JAN25", 1, true); names without a
// numeric suffix come back unchanged.
func TrimVariantSuffix(name string) (base string, variant int, ok bool) {
	i := strings.LastIndex(name, "_")
	if i < 0 || i == len(name)-1 {
		return name, 0, false
	}
	n, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return name, 0, false
	}
	return name[:i], n, true
}

func titleMonth(s string) string {
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

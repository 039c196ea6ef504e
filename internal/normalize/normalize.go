// Package normalize maps raw source field values to their canonical stored forms.
// None of these functions fail loudly: unusable input degrades to nil or zero.
package normalize

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// MobileDigits is the length kept from the right of a longer number, dropping country-code prefixes.
const MobileDigits = 10

var ErrInvalidCount = errors.New("invalid_count")

// Mobile returns the canonical mobile number: whitespace and hyphens removed, one leading '+' dropped,
// leading zeros stripped and only the last MobileDigits characters kept. Other characters are left in
// place, so garbage survives and simply never joins. Blank input, or input that strips to nothing, is nil.
func Mobile(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	s = strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimLeft(s, "0")

	if len(s) > MobileDigits {
		s = s[len(s)-MobileDigits:]
	}
	if s == "" {
		return nil
	}
	return &s
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Timestamp parses an ISO-8601-like value. Values without an offset are taken as UTC; the result is
// always in UTC. Unparseable or blank input is nil.
func Timestamp(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		utc := t.UTC()
		return &utc
	}
	return nil
}

// Amount parses a decimal amount. Blank input is zero; ok is false when non-blank input is not a number,
// in which case the amount is also zero.
func Amount(raw string) (amount decimal.Decimal, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, true
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Count parses a non-negative item count. Blank input is zero.
func Count(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		// Tolerate integral decimals such as "2.0" from spreadsheet exports.
		d, derr := decimal.NewFromString(s)
		if derr != nil || !d.Equal(d.Truncate(0)) {
			return 0, ErrInvalidCount
		}
		n = int(d.IntPart())
	}
	if n < 0 {
		return 0, ErrInvalidCount
	}
	return n, nil
}

// Text trims surrounding whitespace.
func Text(raw string) string {
	return strings.TrimSpace(raw)
}

// Package normalizer converts raw statement values into canonical form:
// ISO dates, signed decimal amounts, and cleaned payee names.
package normalizer

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDate   = errors.New("invalid date format")
	ErrInvalidAmount = errors.New("invalid amount format")
)

// MaxPayeeLength caps payee_clean and payee_norm
const MaxPayeeLength = 180

var (
	compactDatePattern = regexp.MustCompile(`^\d{8}$`)
	isoDatePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	usDatePattern      = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)

	whitespacePattern = regexp.MustCompile(`\s+`)
	leadingTagPattern = regexp.MustCompile(`^\[[^\]]*\]\s*`)
	payeeKeyPattern   = regexp.MustCompile(`[^a-z0-9 ]`)
)

// Fallback formats for dates that match none of the primary patterns.
// Only the date portion of a timestamped value is kept.
var genericDateFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02 Jan 2006",
}

// NormalizeDate parses a bank-native date string. The formats tried are a
// closed, ordered list: 8-digit YYYYMMDD, ISO YYYY-MM-DD, month-first
// M/D/YYYY, then a generic fallback. Unrecognized input is a per-row soft
// failure, not a pipeline failure.
func NormalizeDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}

	switch {
	case compactDatePattern.MatchString(raw):
		if t, err := time.ParseInLocation("20060102", raw, time.UTC); err == nil {
			return t, nil
		}
	case isoDatePattern.MatchString(raw):
		if t, err := time.ParseInLocation("2006-01-02", raw, time.UTC); err == nil {
			return t, nil
		}
	case usDatePattern.MatchString(raw):
		if t, err := time.ParseInLocation("1/2/2006", raw, time.UTC); err == nil {
			return t, nil
		}
	}

	for _, format := range genericDateFormats {
		if t, err := time.ParseInLocation(format, raw, time.UTC); err == nil {
			return t.Truncate(24 * time.Hour), nil
		}
	}

	return time.Time{}, ErrInvalidDate
}

// NormalizeAmount strips currency symbols and thousands separators and
// parses a signed decimal. Sign is preserved as given by the source.
func NormalizeAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// CleanPayee produces the human-readable canonical payee: whitespace
// collapsed, a single leading bracketed tag stripped, truncated to 180
// characters. An empty result maps to "Unknown".
func CleanPayee(description string) string {
	result := whitespacePattern.ReplaceAllString(strings.TrimSpace(description), " ")
	result = leadingTagPattern.ReplaceAllString(result, "")
	result = strings.TrimSpace(result)
	result = truncate(result, MaxPayeeLength)
	if result == "" {
		return "Unknown"
	}
	return result
}

// NormalizePayeeKey produces the lossy grouping key: lowercase, characters
// outside [a-z0-9 ] replaced by spaces, whitespace collapsed. Never shown
// to the end user.
func NormalizePayeeKey(payee string) string {
	result := strings.ToLower(payee)
	result = payeeKeyPattern.ReplaceAllString(result, " ")
	result = whitespacePattern.ReplaceAllString(result, " ")
	result = strings.TrimSpace(result)
	return truncate(result, MaxPayeeLength)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

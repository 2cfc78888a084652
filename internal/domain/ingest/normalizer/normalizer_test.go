package normalizer

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"20250711", "2025-07-11"},
		{"2025-07-11", "2025-07-11"},
		{"07/11/2025", "2025-07-11"},
		{"7/4/2025", "2025-07-04"},
		{"  20250711  ", "2025-07-11"},
		{"2025/07/11", "2025-07-11"},
		{"Jul 11, 2025", "2025-07-11"},
		{"11 Jul 2025", "2025-07-11"},
		{"2025-07-11 13:45:00", "2025-07-11"},
	}

	for _, tc := range tests {
		got, err := NormalizeDate(tc.input)
		if err != nil {
			t.Errorf("NormalizeDate(%q) error: %v", tc.input, err)
			continue
		}
		if got.Format("2006-01-02") != tc.expected {
			t.Errorf("NormalizeDate(%q) = %s, want %s", tc.input, got.Format("2006-01-02"), tc.expected)
		}
	}
}

func TestNormalizeDate_MonthFirst(t *testing.T) {
	// 01/02/2025 is January 2nd, not February 1st
	got, err := NormalizeDate("01/02/2025")
	if err != nil {
		t.Fatalf("NormalizeDate failed: %v", err)
	}
	if got.Month() != time.January || got.Day() != 2 {
		t.Errorf("Expected January 2, got %s", got.Format("2006-01-02"))
	}
}

func TestNormalizeDate_Invalid(t *testing.T) {
	for _, input := range []string{"", "  ", "not a date", "99999999", "13/45/2025"} {
		if _, err := NormalizeDate(input); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("NormalizeDate(%q) expected ErrInvalidDate, got %v", input, err)
		}
	}
}

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"-60.00", "-60"},
		{"2500.00", "2500"},
		{"$1,234.56", "1234.56"},
		{"-$45.23", "-45.23"},
		{"  12.99  ", "12.99"},
		{"0", "0"},
	}

	for _, tc := range tests {
		got, err := NormalizeAmount(tc.input)
		if err != nil {
			t.Errorf("NormalizeAmount(%q) error: %v", tc.input, err)
			continue
		}
		if got.String() != tc.expected {
			t.Errorf("NormalizeAmount(%q) = %s, want %s", tc.input, got.String(), tc.expected)
		}
	}
}

func TestNormalizeAmount_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "abc", "$", "12.3.4"} {
		if _, err := NormalizeAmount(input); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("NormalizeAmount(%q) expected ErrInvalidAmount, got %v", input, err)
		}
	}
}

func TestCleanPayee(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  GROCERY   OUTLET  ", "GROCERY OUTLET"},
		{"[POS] COFFEE SHOP", "COFFEE SHOP"},
		{"[ACH] [RECUR] GYM", "[RECUR] GYM"}, // only one leading tag stripped
		{"NETFLIX.COM", "NETFLIX.COM"},
		{"", "Unknown"},
		{"[TAG]", "Unknown"},
		{"\t AMAZON \n MKTP \t", "AMAZON MKTP"},
	}

	for _, tc := range tests {
		if got := CleanPayee(tc.input); got != tc.expected {
			t.Errorf("CleanPayee(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestCleanPayee_Truncates(t *testing.T) {
	long := strings.Repeat("A", 200)
	got := CleanPayee(long)
	if len([]rune(got)) != MaxPayeeLength {
		t.Errorf("Expected %d runes, got %d", MaxPayeeLength, len([]rune(got)))
	}
}

func TestNormalizePayeeKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"NETFLIX.COM", "netflix com"},
		{"Trader Joe's #552", "trader joe s 552"},
		{"AMAZON  MKTP", "amazon mktp"},
		{"***", ""},
	}

	for _, tc := range tests {
		if got := NormalizePayeeKey(tc.input); got != tc.expected {
			t.Errorf("NormalizePayeeKey(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

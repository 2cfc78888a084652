// Package parser turns raw bank-statement export text into staging row
// candidates. It detects the header row and its delimiter, splits lines
// honoring double-quoted fields, and extracts the four required columns.
package parser

import (
	"errors"
	"strings"
)

// Required header columns, after name normalization. Order in the file is
// irrelevant and extra columns are allowed.
const (
	ColumnType        = "transaction type"
	ColumnDate        = "date posted"
	ColumnAmount      = "transaction amount"
	ColumnDescription = "description"
)

var requiredColumns = []string{ColumnType, ColumnDate, ColumnAmount, ColumnDescription}

var (
	ErrEmptyInput    = errors.New("statement content is empty")
	ErrNoHeaderFound = errors.New("no header row with required columns found")
	ErrNoDataRows    = errors.New("no data rows found after header")
)

// Header describes the detected header row of a statement
type Header struct {
	LineIndex int      // zero-based index of the header line
	Delimiter rune     // '\t' or ','
	Columns   []string // normalized column names, in file order
}

// RowCandidate is one raw data row extracted from the statement, prior to
// any semantic normalization.
type RowCandidate struct {
	DateRaw         string
	TransactionType string // upper-cased
	AmountRaw       string
	Description     string
}

// NormalizeLines splits statement text into lines with line endings
// normalized to \n regardless of source convention.
func NormalizeLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return strings.Split(content, "\n")
}

// DetectHeader scans lines in order for the first one containing all four
// required columns. Every non-blank line is tried; a statement with no
// qualifying line anywhere fails the whole request.
func DetectHeader(lines []string) (*Header, error) {
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		delimiter := detectDelimiter(line)
		fields := SplitLine(line, delimiter)

		columns := make([]string, len(fields))
		for j, f := range fields {
			columns[j] = normalizeColumnName(f)
		}

		if hasRequiredColumns(columns) {
			return &Header{LineIndex: i, Delimiter: delimiter, Columns: columns}, nil
		}
	}
	return nil, ErrNoHeaderFound
}

// ParseRows extracts row candidates from every non-blank line after the
// header. Rows missing type, date, or amount are silently skipped; trailing
// fields beyond the description column are space-joined onto it, which
// handles descriptions containing the delimiter itself.
func ParseRows(lines []string, header *Header) ([]RowCandidate, error) {
	typeIdx := columnIndex(header.Columns, ColumnType)
	dateIdx := columnIndex(header.Columns, ColumnDate)
	amountIdx := columnIndex(header.Columns, ColumnAmount)
	descIdx := columnIndex(header.Columns, ColumnDescription)

	var rows []RowCandidate
	for _, line := range lines[header.LineIndex+1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := SplitLine(line, header.Delimiter)

		txType := strings.TrimSpace(fieldAt(fields, typeIdx))
		dateRaw := strings.TrimSpace(fieldAt(fields, dateIdx))
		amountRaw := strings.TrimSpace(fieldAt(fields, amountIdx))
		if txType == "" || dateRaw == "" || amountRaw == "" {
			continue
		}

		description := strings.TrimSpace(fieldAt(fields, descIdx))
		if len(fields) > descIdx+1 {
			parts := []string{description}
			for _, extra := range fields[descIdx+1:] {
				parts = append(parts, strings.TrimSpace(extra))
			}
			description = strings.TrimSpace(strings.Join(parts, " "))
		}
		if description == "" {
			description = "Unknown"
		}

		rows = append(rows, RowCandidate{
			DateRaw:         dateRaw,
			TransactionType: strings.ToUpper(txType),
			AmountRaw:       amountRaw,
			Description:     description,
		})
	}

	if len(rows) == 0 {
		return nil, ErrNoDataRows
	}
	return rows, nil
}

// SplitLine splits a delimited line honoring double-quote-enclosed fields.
// A doubled quote inside a quoted field is an escaped literal quote.
func SplitLine(line string, delimiter rune) []string {
	var fields []string
	var field strings.Builder
	inQuotes := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				field.WriteRune('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case r == delimiter && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}
	fields = append(fields, field.String())
	return fields
}

// detectDelimiter prefers tab when present, then comma, defaulting to tab
func detectDelimiter(line string) rune {
	if strings.ContainsRune(line, '\t') {
		return '\t'
	}
	if strings.ContainsRune(line, ',') {
		return ','
	}
	return '\t'
}

// normalizeColumnName lowercases, trims, and collapses internal whitespace
func normalizeColumnName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func hasRequiredColumns(columns []string) bool {
	for _, required := range requiredColumns {
		if columnIndex(columns, required) < 0 {
			return false
		}
	}
	return true
}

func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}

func fieldAt(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return fields[idx]
}

// Package core provides money parsing and formatting utilities.
//
// Amounts are carried as integer cents to avoid floating-point drift in
// aggregation; floats appear only at the display boundary.
package core

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ParseDecimalToCents converts a decimal string to cents with half-up
// rounding on the third decimal place. Negative values are rejected; zero
// is allowed (a free sample line is a real purchase record).
//
// Examples:
//
//	ParseDecimalToCents("12.34")  -> 1234, nil
//	ParseDecimalToCents("12.346") -> 1235, nil
//	ParseDecimalToCents("0")      -> 0, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	// Take first two fractional digits; half-up rounding on the third
	var fracCents int64
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracCents = d1 * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, nil
}

var groupedNumber = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)

// ParseFlexibleCents accepts either a plain decimal ("500000", "12.34") or a
// display-formatted number with thousands separators ("1,516,000"). The
// grouped form is what the formatted CSV export emits, so re-importing an
// exported file works in both number modes.
func ParseFlexibleCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if groupedNumber.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	return ParseDecimalToCents(s)
}

// FormatCents renders cents as a display number with thousands separators,
// omitting the fraction when it is zero: 151600000 -> "1,516,000",
// 1234 -> "12.34". This matches the spreadsheet-facing UI format.
func FormatCents(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	out := b.String()
	if frac != 0 {
		out += "." + twoDigits(frac)
	}
	if neg {
		return "-" + out
	}
	return out
}

// RawCents renders cents as a plain machine-parseable decimal: 151600000 ->
// "1516000", 1234 -> "12.34".
func RawCents(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	out := strconv.FormatInt(cents/100, 10)
	if frac := cents % 100; frac != 0 {
		out += "." + twoDigits(frac)
	}
	if neg {
		return "-" + out
	}
	return out
}

// twoDigits pads a cent fraction to two places, then drops a trailing zero
// so 1250 renders "12.5" and 1205 renders "12.05".
func twoDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) == 1 {
		s = "0" + s
	}
	return strings.TrimSuffix(s, "0")
}

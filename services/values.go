package services

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// nonPriceRegexp matches everything that cannot be part of a plain decimal number
	nonPriceRegexp = regexp.MustCompile(`[^\d.]`)
	// digitsRegexp captures a run of digits
	digitsRegexp = regexp.MustCompile(`\d+`)

	dateLayouts = []string{
		"2006-1-2", // YYYY-MM-DD
		"2/1/2006", // DD/MM/YYYY
		"2-1-2006", // DD-MM-YYYY
		"1/2/2006", // MM/DD/YYYY
	}
)

// isAbsent reports whether a cell holds one of the site's "no value" markers.
func isAbsent(text string) bool {
	switch strings.TrimSpace(text) {
	case "", "-", "N/A":
		return true
	}
	return false
}

// ParsePrice strips every character that is not a digit or a decimal point and
// parses the rest. Examples:
//
//	"Ksh 1,234.50" → 1234.50
//	"-", "N/A", "" → absent
func ParsePrice(text string) decimal.NullDecimal {
	if isAbsent(text) {
		return decimal.NullDecimal{}
	}
	cleaned := nonPriceRegexp.ReplaceAllString(text, "")
	if cleaned == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// ParseVolume returns the first whole number in text, ignoring thousands
// separators: "5,000 kg" → 5000. Qualitative supply levels such as "High" are absent.
func ParseVolume(text string) decimal.NullDecimal {
	if isAbsent(text) {
		return decimal.NullDecimal{}
	}
	match := digitsRegexp.FindString(strings.ReplaceAll(text, ",", ""))
	if match == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// ParseDate tries each supported layout in order and returns the first that
// parses. When none does it returns today's date and ok=false.
func ParseDate(text string) (t time.Time, ok bool) {
	text = strings.TrimSpace(text)
	if text != "" {
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, text); err == nil {
				return parsed, true
			}
		}
	}
	return today(), false
}

func today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

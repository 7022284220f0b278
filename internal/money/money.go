// Package money parses the tolerant money strings found in bank statements
// and OCR output.
package money

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var nonAmountRx = regexp.MustCompile(`[^0-9.\-+]`)

// Parse parses strings like "$1,234.56", "-123.45", "1 234.56" or
// "1.234,56" into a decimal. Returns false when no amount can be read.
func Parse(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}

	s = strings.NewReplacer(
		"$", "",
		"€", "",
		"£", "",
		" ", "",
		"\u00a0", "",
	).Replace(s)

	// When both separators appear, the last one is the decimal point.
	// A lone comma followed by exactly two digits is a decimal comma.
	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Contains(s, ","):
		if i := strings.LastIndex(s, ","); len(s)-i-1 == 2 && strings.Count(s, ",") == 1 {
			s = s[:i] + "." + s[i+1:]
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	s = nonAmountRx.ReplaceAllString(s, "")
	if s == "" || s == "-" || s == "+" {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

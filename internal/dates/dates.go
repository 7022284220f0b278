// Package dates is the single source of truth for the date formats found in
// bank statements: ISO 8601, Spanish day/month-abbreviation forms, and the
// numeric day-first forms used by Mexican banks.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// monthsES maps Spanish month names and abbreviations (plus common OCR
// variants) to two-digit month numbers.
var monthsES = map[string]string{
	"ENE": "01", "ENERO": "01",
	"FEB": "02", "FEBRERO": "02",
	"MAR": "03", "MARZO": "03",
	"ABR": "04", "ABRIL": "04",
	"MAY": "05", "MAYO": "05",
	"JUN": "06", "JUNIO": "06",
	"JUL": "07", "JULIO": "07",
	"AGO": "08", "AGOSTO": "08",
	"SEP": "09", "SET": "09", "SEPTIEMBRE": "09",
	"OCT": "10", "OCTUBRE": "10",
	"NOV": "11", "NOVIEMBRE": "11",
	"DIC": "12", "DICIEMBRE": "12",
}

var (
	isoRx       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	isoPrefixRx = regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})`)
	spanishRx   = regexp.MustCompile(`^\s*(\d{1,2})/([A-Za-z]{3,10})/(\d{2,4})\s*$`)
	dayMonthRx  = regexp.MustCompile(`^(\d{1,2})\s*([A-ZÁÉÍÓÚ]{3,10})`)
	numericRx   = regexp.MustCompile(`^(\d{1,2})\s*[/-]\s*(\d{1,2})\s*[/-]\s*(\d{2,4})`)
)

// ParseISO validates a strict YYYY-MM-DD string, including that it names a
// real calendar date.
func ParseISO(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !isoRx.MatchString(s) {
		return "", false
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", false
	}
	return s, true
}

// FromISODateTime reduces an ISO date-time like "2025-12-20T12:00:00" to its
// date part. Plain dates pass through; anything else returns false.
func FromISODateTime(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		if iso, ok := ParseISO(s[:10]); ok {
			return iso, true
		}
	}
	return "", false
}

// ParseSpanish parses "30/ene/26" or "15/enero/2024" to ISO. Strings already
// in ISO form pass through.
func ParseSpanish(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if iso, ok := ParseISO(s); ok {
		return iso, true
	}
	m := spanishRx.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	month, ok := monthsES[strings.ToUpper(m[2])]
	if !ok {
		return "", false
	}
	year := m[3]
	if len(year) == 2 {
		year = "20" + year
	}
	day, _ := strconv.Atoi(m[1])
	if day < 1 || day > 31 {
		return "", false
	}
	return fmt.Sprintf("%s-%s-%02d", year, month, day), true
}

// ParseStatement parses the date tokens that appear on statement pages:
// "12 ENE" / "12ENE" (year supplied by the caller), "12/01/24",
// "12-01-2024", and ISO. Two-digit years are assumed to be 2000s. The day
// must be 1-31 and the month 1-12; anything else fails.
func ParseStatement(s string, year int) (string, bool) {
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	u := strings.ToUpper(strings.TrimSpace(s))
	if year == 0 {
		year = time.Now().Year()
	}

	if m := isoPrefixRx.FindStringSubmatch(u); m != nil {
		yr, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if day >= 1 && day <= 31 && month >= 1 && month <= 12 {
			return fmt.Sprintf("%04d-%02d-%02d", yr, month, day), true
		}
		return "", false
	}

	if m := dayMonthRx.FindStringSubmatch(u); m != nil {
		day, _ := strconv.Atoi(m[1])
		if day < 1 || day > 31 {
			return "", false
		}
		month, ok := monthsES[m[2]]
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%04d-%s-%02d", year, month, day), true
	}

	if m := numericRx.FindStringSubmatch(u); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		yr, _ := strconv.Atoi(m[3])
		if day < 1 || day > 31 || month < 1 || month > 12 {
			return "", false
		}
		if yr < 100 {
			yr += 2000
		}
		return fmt.Sprintf("%04d-%02d-%02d", yr, month, day), true
	}

	return "", false
}

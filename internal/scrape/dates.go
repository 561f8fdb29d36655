package scrape

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var monthNumbers = map[string]string{
	"january": "01", "february": "02", "march": "03", "april": "04",
	"may": "05", "june": "06", "july": "07", "august": "08",
	"september": "09", "october": "10", "november": "11", "december": "12",
	"jan": "01", "feb": "02", "mar": "03", "apr": "04", "jun": "06",
	"jul": "07", "aug": "08", "sep": "09", "oct": "10", "nov": "11", "dec": "12",
}

var (
	isoDatePattern   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	slashDatePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
)

// normalizeDate converts a date-like string to YYYY-MM-DD. Accepted inputs
// are ISO dates with or without a time component, and DD/MM/YYYY. The
// returned bool reports whether the input was recognised and valid.
func normalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		candidate := fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])
		if _, err := time.Parse("2006-01-02", candidate); err == nil {
			return candidate, true
		}
		return "", false
	}

	if m := slashDatePattern.FindStringSubmatch(s); m != nil {
		candidate := fmt.Sprintf("%s-%s-%s", m[3], zeroPad(m[2]), zeroPad(m[1]))
		if _, err := time.Parse("2006-01-02", candidate); err == nil {
			return candidate, true
		}
		return "", false
	}

	return "", false
}

// zeroPad left-pads a one-digit day or month component.
func zeroPad(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// looksLikeDate reports whether a string is date-shaped (ISO or DD/MM/YYYY)
// without fully validating calendar bounds.
func looksLikeDate(s string) bool {
	_, ok := normalizeDate(s)
	return ok
}

// utcMidnight truncates a time to 00:00:00 UTC of the same calendar day.
func utcMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package scrape

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// "Added on 3 March 2025", "First listed on 12 January 2024"
	absoluteDatePhrase = regexp.MustCompile(`(?i)\b(Added|Listed|First listed)\s+on\s+(\d{1,2})(?:st|nd|rd|th)?\s+(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{4})`)

	// "Added on 3/4/2025", "Listed 03/04/2025" (day/month/year)
	slashDatePhrase = regexp.MustCompile(`(?i)\b(Added|Listed)\s+(?:on\s+)?(\d{1,2})/(\d{1,2})/(\d{4})`)

	// "Added today", "Listed yesterday", "Added 3 weeks ago"
	relativeDatePhrase = regexp.MustCompile(`(?i)\b(Added|Listed)\s+(today|yesterday|(\d+)\s+(day|week|month)s?\s+ago)`)
)

// extractFreeTextDate applies the three phrase families in order against
// tag-stripped page text. Relative phrases are resolved against the supplied
// reference time. The first family to match wins.
func extractFreeTextDate(text string, reference time.Time) ExtractionResult {
	if m := absoluteDatePhrase.FindStringSubmatch(text); m != nil {
		month, ok := monthNumbers[strings.ToLower(m[3])]
		if ok {
			date := fmt.Sprintf("%s-%s-%s", m[4], month, zeroPad(m[2]))
			if _, err := time.Parse("2006-01-02", date); err == nil {
				return ExtractionResult{Date: date, Source: SourceText, RawSnippet: m[0]}
			}
		}
	}

	if m := slashDatePhrase.FindStringSubmatch(text); m != nil {
		date := fmt.Sprintf("%s-%s-%s", m[4], zeroPad(m[3]), zeroPad(m[2]))
		if _, err := time.Parse("2006-01-02", date); err == nil {
			return ExtractionResult{Date: date, Source: SourceText, RawSnippet: m[0]}
		}
	}

	if m := relativeDatePhrase.FindStringSubmatch(text); m != nil {
		if date, ok := resolveRelativePhrase(m, reference); ok {
			return ExtractionResult{Date: date, Source: SourceText, RawSnippet: m[0]}
		}
	}

	return ExtractionResult{Source: SourceNone}
}

// resolveRelativePhrase converts a matched relative phrase to a concrete
// date. Weeks are 7 days; months move by calendar month.
func resolveRelativePhrase(m []string, reference time.Time) (string, bool) {
	ref := utcMidnight(reference)

	switch strings.ToLower(m[2]) {
	case "today":
		return ref.Format("2006-01-02"), true
	case "yesterday":
		return ref.AddDate(0, 0, -1).Format("2006-01-02"), true
	}

	n, err := strconv.Atoi(m[3])
	if err != nil {
		return "", false
	}

	switch strings.ToLower(m[4]) {
	case "day":
		return ref.AddDate(0, 0, -n).Format("2006-01-02"), true
	case "week":
		return ref.AddDate(0, 0, -n*7).Format("2006-01-02"), true
	case "month":
		return ref.AddDate(0, -n, 0).Format("2006-01-02"), true
	}

	return "", false
}

package scrape

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxPriceHistoryEntries = 10

const (
	minHistoryYear  = 1990
	maxHistoryYear  = 2025
	minHistoryPrice = 50_000
	maxHistoryPrice = 2_000_000
)

var (
	historyArrayPattern = regexp.MustCompile(`"(?:priceHistory|listingHistory|history)"\s*:\s*(\[[^\]]*\])`)

	// "2019: £250,000" or "2019 £250,000"
	yearPricePattern = regexp.MustCompile(`\b(\d{4}):?\s+£([\d,]+)\b`)

	// "Sold on 12 March 2021 for £300,000", "Reduced to £285,000 on 01/02/2023"
	phraseAnchoredPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(Sold)\s+on\s+(\d{1,2}\s+\w+\s+\d{4}|\d{1,2}/\d{1,2}/\d{4})\s+for\s+£([\d,]+)`),
		regexp.MustCompile(`(?i)\b(Price changed|Reduced|Increased)\s+to\s+£([\d,]+)\s+on\s+(\d{1,2}\s+\w+\s+\d{4}|\d{1,2}/\d{1,2}/\d{4})`),
	}

	monthNamePattern = regexp.MustCompile(`(?i)^(\d{1,2})\s+(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{4})$`)
)

// ExtractPriceHistory runs the price-history tiers against raw HTML. A tier
// is attempted only when all earlier tiers produced zero entries. Entries
// are deduplicated by (date, price), sorted newest first and capped. An
// empty result carries DataQuality "none"; nothing is ever fabricated.
func ExtractPriceHistory(html string) PriceHistory {
	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(html))

	var text string
	saleStart, saleEnd := -1, -1
	if docErr == nil {
		text = doc.Text()
		saleStart, saleEnd = saleSectionBounds(text)
	}

	var entries []PriceEvent
	if docErr == nil {
		entries = priceHistoryFromJSONLD(doc)
	}
	if len(entries) == 0 {
		entries = priceHistoryFromScripts(html)
	}
	if len(entries) == 0 && docErr == nil {
		// The sale-history section is held back here so the scoped tier
		// below can claim its rows with the sold event.
		general := text
		if saleStart >= 0 {
			general = text[:saleStart] + text[saleEnd:]
		}
		entries = priceHistoryFromYearPrices(general, "listed")
	}
	if len(entries) == 0 && saleStart >= 0 {
		entries = priceHistoryFromYearPrices(text[saleStart:saleEnd], "sold")
	}
	if len(entries) == 0 && docErr == nil {
		entries = priceHistoryFromPhrases(text)
	}

	entries = dedupeAndSort(entries)
	if len(entries) > maxPriceHistoryEntries {
		entries = entries[:maxPriceHistoryEntries]
	}

	quality := QualityReal
	if len(entries) == 0 {
		quality = QualityNone
	}
	return PriceHistory{Entries: entries, DataQuality: quality}
}

// priceHistoryFromJSONLD reads a priceHistory array from JSON-LD blocks.
func priceHistoryFromJSONLD(doc *goquery.Document) []PriceEvent {
	var entries []PriceEvent

	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, sel *goquery.Selection) {
		if len(entries) > 0 {
			return
		}
		var parsed interface{}
		if err := json.Unmarshal([]byte(sel.Text()), &parsed); err != nil {
			return
		}
		for _, obj := range jsonLDObjects(parsed) {
			raw, ok := obj["priceHistory"].([]interface{})
			if !ok {
				continue
			}
			entries = append(entries, historyEntriesFromArray(raw)...)
		}
	})

	return entries
}

// priceHistoryFromScripts matches embedded history array literals.
func priceHistoryFromScripts(html string) []PriceEvent {
	var entries []PriceEvent

	for _, m := range historyArrayPattern.FindAllStringSubmatch(html, -1) {
		var raw []interface{}
		if err := json.Unmarshal([]byte(m[1]), &raw); err != nil {
			continue
		}
		entries = append(entries, historyEntriesFromArray(raw)...)
		if len(entries) > 0 {
			break
		}
	}

	return entries
}

func historyEntriesFromArray(raw []interface{}) []PriceEvent {
	var entries []PriceEvent
	for _, item := range raw {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		date, _ := obj["date"].(string)
		event, _ := obj["event"].(string)
		price := normalizePrice(stringOrNumber(obj["price"]))
		if date == "" || price == "" {
			continue
		}
		if event == "" {
			event = "listed"
		}
		entries = append(entries, PriceEvent{Date: date, Price: price, Event: event})
	}
	return entries
}

// priceHistoryFromYearPrices scans text for year/price pairs within the
// plausible year and price ranges.
func priceHistoryFromYearPrices(text, event string) []PriceEvent {
	var entries []PriceEvent

	for _, m := range yearPricePattern.FindAllStringSubmatch(text, -1) {
		year, err := strconv.Atoi(m[1])
		if err != nil || year < minHistoryYear || year > maxHistoryYear {
			continue
		}
		price := normalizePrice(m[2])
		amount, err := strconv.Atoi(price)
		if err != nil || amount < minHistoryPrice || amount > maxHistoryPrice {
			continue
		}
		entries = append(entries, PriceEvent{Date: m[1], Price: price, Event: event})
	}

	return entries
}

// saleSectionBounds locates the "Property sale history" section within page
// text. The section runs from its heading to at most 4000 characters, so an
// unstructured page cannot pull the whole document into it.
func saleSectionBounds(text string) (start, end int) {
	idx := strings.Index(strings.ToLower(text), "property sale history")
	if idx < 0 {
		return -1, -1
	}
	end = idx + 4000
	if end > len(text) {
		end = len(text)
	}
	return idx, end
}

// priceHistoryFromPhrases applies the broader phrase-anchored patterns.
func priceHistoryFromPhrases(text string) []PriceEvent {
	var entries []PriceEvent

	for i, pattern := range phraseAnchoredPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			var date, price, event string
			if i == 0 {
				event, date, price = "sold", m[2], m[3]
			} else {
				event, price, date = strings.ToLower(m[1]), m[2], m[3]
			}
			normalized, ok := normalizeHistoryDate(date)
			if !ok {
				continue
			}
			entries = append(entries, PriceEvent{Date: normalized, Price: normalizePrice(price), Event: event})
		}
	}

	return entries
}

func dedupeAndSort(entries []PriceEvent) []PriceEvent {
	seen := make(map[string]bool, len(entries))
	out := entries[:0]
	for _, e := range entries {
		key := e.Date + "|" + e.Price
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return historySortKey(out[i].Date) > historySortKey(out[j].Date)
	})
	return out
}

// historySortKey maps a history date string (YYYY, YYYY-MM-DD, D Month YYYY
// or D/M/YYYY) to an ISO-ordered key.
func historySortKey(date string) string {
	if normalized, ok := normalizeHistoryDate(date); ok {
		return normalized
	}
	if len(date) == 4 {
		return date + "-00-00"
	}
	return date
}

func normalizeHistoryDate(date string) (string, bool) {
	date = strings.TrimSpace(date)
	if normalized, ok := normalizeDate(date); ok {
		return normalized, true
	}
	if m := monthNamePattern.FindStringSubmatch(date); m != nil {
		month := monthNumbers[strings.ToLower(m[2])]
		candidate := fmt.Sprintf("%s-%s-%s", m[3], month, zeroPad(m[1]))
		if _, err := time.Parse("2006-01-02", candidate); err != nil {
			return "", false
		}
		return candidate, true
	}
	return "", false
}

func normalizePrice(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stringOrNumber(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatInt(int64(val), 10)
	}
	return ""
}

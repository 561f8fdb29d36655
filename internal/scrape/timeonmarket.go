package scrape

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ExtractAddedDate runs the extraction tiers against raw HTML in strict
// priority order (json-ld > jsonModel > text), short-circuiting on the first
// success. The reference time anchors relative free-text phrases. Pure:
// identical input yields identical output.
func ExtractAddedDate(html string, reference time.Time) ExtractionResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ExtractionResult{Source: SourceNone}
	}

	if result := extractJSONLDDate(doc); result.Source != SourceNone {
		return result
	}
	if result := extractEmbeddedModelDate(doc); result.Source != SourceNone {
		return result
	}
	return extractFreeTextDate(doc.Text(), reference)
}

// BuildTimeOnMarketRecord derives the record from an extraction result and
// the fetch timestamp. The day count is the whole-day difference between UTC
// midnights; a future added date is treated as unknown rather than an error,
// since it usually means an unrelated date field was extracted.
func BuildTimeOnMarketRecord(url string, fetchedAt time.Time, result ExtractionResult) TimeOnMarketRecord {
	record := TimeOnMarketRecord{
		URL:        url,
		FetchedAt:  fetchedAt,
		Source:     result.Source,
		RawSnippet: result.RawSnippet,
	}

	if result.Date == "" {
		return record
	}

	added, err := time.Parse("2006-01-02", result.Date)
	if err != nil {
		return record
	}

	record.PortalAddedOn = &result.Date

	days := int(utcMidnight(fetchedAt).Sub(utcMidnight(added)).Hours() / 24)
	if days < 0 {
		log.Printf("[scrape] added date %s after fetch date for %s (source %s); suppressing day count", result.Date, url, result.Source)
		return record
	}
	record.TimeOnMarketDays = &days

	return record
}

// TimeOnMarket fetches a listing page and computes its time-on-market
// record. Fetch failures are fatal to the request; a missing date is the
// valid terminal state {source: none, days: null}.
func TimeOnMarket(ctx context.Context, fetcher Fetcher, url string) (TimeOnMarketRecord, error) {
	if err := ValidateListingURL(url); err != nil {
		return TimeOnMarketRecord{}, err
	}

	doc, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return TimeOnMarketRecord{}, fmt.Errorf("time on market fetch failed: %w", err)
	}
	defer doc.Body.Close()

	html, err := io.ReadAll(doc.Body)
	if err != nil {
		return TimeOnMarketRecord{}, fmt.Errorf("time on market read failed for %s: %w", url, err)
	}

	result := ExtractAddedDate(string(html), doc.FetchedAt)
	return BuildTimeOnMarketRecord(url, doc.FetchedAt, result), nil
}

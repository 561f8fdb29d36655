package scrape

import (
	"context"
	"io"
	"time"
)

// Source identifies which extraction tier produced a date.
type Source string

const (
	SourceJSONLD    Source = "json-ld"
	SourceJSONModel Source = "jsonModel"
	SourceText      Source = "text"
	SourceNone      Source = "none"
)

// ExtractionResult is the outcome of running the date extraction tiers
// against one document. Date is YYYY-MM-DD, or empty when no tier matched.
type ExtractionResult struct {
	Date       string `json:"date,omitempty"`
	Source     Source `json:"source"`
	RawSnippet string `json:"raw_snippet,omitempty"`
}

// TimeOnMarketRecord is derived from an ExtractionResult plus the fetch
// timestamp. TimeOnMarketDays is nil when no added date was found or the
// extracted date lies after the fetch date.
type TimeOnMarketRecord struct {
	URL              string    `json:"url"`
	FetchedAt        time.Time `json:"fetched_at"`
	PortalAddedOn    *string   `json:"portal_added_on"`
	Source           Source    `json:"source"`
	TimeOnMarketDays *int      `json:"time_on_market_days"`
	RawSnippet       string    `json:"raw_snippet,omitempty"`
}

// PriceEvent is one entry in a listing's price history.
type PriceEvent struct {
	Date  string `json:"date"`
	Price string `json:"price"` // digits only
	Event string `json:"event"`
}

// DataQuality distinguishes extracted data from an empty result. There is
// deliberately no placeholder tier: absence is reported as absence.
type DataQuality string

const (
	QualityReal DataQuality = "real"
	QualityNone DataQuality = "none"
)

// PriceHistory is the ordered (newest first) price event list for a listing.
type PriceHistory struct {
	Entries     []PriceEvent `json:"entries"`
	DataQuality DataQuality  `json:"data_quality"`
}

// Document represents the raw result of a fetch operation.
type Document struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Document, error)
}

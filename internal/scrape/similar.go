package scrape

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const portalBase = "https://www.rightmove.co.uk"

// Comparable is a nearby listing card collected from search results.
type Comparable struct {
	URL     string `json:"url"`
	Address string `json:"address"`
	Price   int    `json:"price"`
}

// SimilarFinder discovers comparable listings near an outcode by crawling
// the portal's search results with a polite, single-threaded collector.
type SimilarFinder struct {
	UserAgent   string
	MaxResults  int
	DomainDelay time.Duration
	Timeout     time.Duration
	client      *http.Client
}

func NewSimilarFinder() *SimilarFinder {
	return &SimilarFinder{
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		MaxResults:  12,
		DomainDelay: 1 * time.Second,
		Timeout:     10 * time.Second,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

var cardPricePattern = regexp.MustCompile(`£([\d,]+)`)

// Find crawls the first results page for the outcode and returns up to
// MaxResults comparables. Failures degrade to an empty slice with an error
// for the caller to log; comparables are never required for a report.
func (f *SimilarFinder) Find(outcode string) ([]Comparable, error) {
	locationID, err := f.resolveLocation(outcode)
	if err != nil {
		return nil, err
	}

	parsed, err := url.Parse(portalBase)
	if err != nil {
		return nil, err
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(f.UserAgent),
		colly.DetectCharset(),
	)
	collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       f.DomainDelay,
		RandomDelay: f.DomainDelay / 2,
	})
	collector.SetRequestTimeout(f.Timeout)

	var comparables []Comparable
	collector.OnHTML(".propertyCard", func(e *colly.HTMLElement) {
		if len(comparables) >= f.MaxResults {
			return
		}
		link := e.ChildAttr("a.propertyCard-link", "href")
		address := strings.TrimSpace(e.ChildText("address"))
		priceText := e.ChildText(".propertyCard-priceValue")

		m := cardPricePattern.FindStringSubmatch(priceText)
		if link == "" || m == nil {
			return
		}
		price, _ := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))

		comparables = append(comparables, Comparable{
			URL:     e.Request.AbsoluteURL(link),
			Address: address,
			Price:   price,
		})
	})

	searchURL := fmt.Sprintf(
		"%s/property-for-sale/find.html?locationIdentifier=%s&radius=0.5&sortType=2",
		portalBase, url.QueryEscape(locationID),
	)
	if err := collector.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("comparables crawl failed for %s: %w", outcode, err)
	}
	collector.Wait()

	return comparables, nil
}

// resolveLocation maps an outcode to the portal's location identifier via
// its typeahead endpoint.
func (f *SimilarFinder) resolveLocation(outcode string) (string, error) {
	var payload struct {
		Matches []struct {
			ID string `json:"id"`
		} `json:"matches"`
	}

	resp, err := f.client.Get("https://los.rightmove.co.uk/typeahead?query=" + url.QueryEscape(outcode))
	if err != nil {
		return "", fmt.Errorf("location lookup failed for %s: %w", outcode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("location lookup for %s returned status %d", outcode, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("location lookup decode failed: %w", err)
	}
	if len(payload.Matches) == 0 {
		return "", fmt.Errorf("no location match for %s", outcode)
	}

	return payload.Matches[0].ID, nil
}

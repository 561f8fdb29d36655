package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Listing holds the facts scraped from one listing page.
type Listing struct {
	URL             string  `json:"url"`
	Address         string  `json:"address"`
	Outcode         string  `json:"outcode"`
	PropertyType    string  `json:"property_type"`
	Tenure          string  `json:"tenure"`
	Agent           string  `json:"agent"`
	Price           int     `json:"price"`
	Bedrooms        int     `json:"bedrooms"`
	Bathrooms       int     `json:"bathrooms"`
	FloorAreaSqM    float64 `json:"floor_area_sqm"`
	DescriptionHTML string  `json:"description_html"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	BrochureURL     string  `json:"brochure_url,omitempty"`
}

var (
	descriptionPolicy = bluemonday.UGCPolicy()

	pricePattern   = regexp.MustCompile(`£([\d,]+)`)
	outcodePattern = regexp.MustCompile(`\b([A-Z]{1,2}\d[A-Z\d]?)\s*\d[A-Z]{2}\b`)
	sqmPattern     = regexp.MustCompile(`([\d,]+(?:\.\d+)?)\s*sq\.?\s*m`)
	sqftPattern    = regexp.MustCompile(`([\d,]+(?:\.\d+)?)\s*sq\.?\s*ft`)
)

const sqftPerSqm = 10.7639

// ExtractListing pulls listing facts from raw HTML. The embedded page model
// is preferred; DOM selectors are the fallback for anything it lacks.
func ExtractListing(html, url string) (Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Listing{}, fmt.Errorf("listing parse failed for %s: %w", url, err)
	}

	listing := Listing{URL: url}

	if model := findPageModel(doc); model != nil {
		populateFromModel(&listing, model)
	}
	populateFromDOM(&listing, doc)

	if listing.Outcode == "" {
		if m := outcodePattern.FindStringSubmatch(listing.Address); m != nil {
			listing.Outcode = m[1]
		}
	}
	if listing.FloorAreaSqM == 0 {
		listing.FloorAreaSqM = floorAreaFromText(doc.Text())
	}
	listing.DescriptionHTML = descriptionPolicy.Sanitize(listing.DescriptionHTML)

	return listing, nil
}

// findPageModel locates the application state object serialized into an
// inline script, preferring objects that carry a propertyData section.
func findPageModel(doc *goquery.Document) map[string]interface{} {
	var model map[string]interface{}

	doc.Find("script").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if typ, _ := sel.Attr("type"); strings.EqualFold(typ, "application/ld+json") {
			return true
		}
		body := sel.Text()
		if !strings.Contains(body, "propertyData") {
			return true
		}
		for _, candidate := range scriptObjectCandidates(body) {
			var parsed map[string]interface{}
			if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
				continue
			}
			if _, ok := parsed["propertyData"]; ok {
				model = parsed
				return false
			}
		}
		return true
	})

	return model
}

func populateFromModel(listing *Listing, model map[string]interface{}) {
	property, ok := model["propertyData"].(map[string]interface{})
	if !ok {
		return
	}

	if address, ok := property["address"].(map[string]interface{}); ok {
		listing.Address = strings.TrimSpace(stringField(address, "displayAddress"))
		if outcode := stringField(address, "outcode"); outcode != "" {
			listing.Outcode = outcode
		}
	}
	if prices, ok := property["prices"].(map[string]interface{}); ok {
		if m := pricePattern.FindStringSubmatch(stringField(prices, "primaryPrice")); m != nil {
			listing.Price, _ = strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		}
	}
	listing.Bedrooms = intField(property, "bedrooms")
	listing.Bathrooms = intField(property, "bathrooms")
	listing.PropertyType = stringField(property, "propertySubType")

	if tenure, ok := property["tenure"].(map[string]interface{}); ok {
		listing.Tenure = stringField(tenure, "tenureType")
	}
	if customer, ok := property["customer"].(map[string]interface{}); ok {
		listing.Agent = stringField(customer, "branchDisplayName")
	}
	if location, ok := property["location"].(map[string]interface{}); ok {
		listing.Latitude = floatField(location, "latitude")
		listing.Longitude = floatField(location, "longitude")
	}
	if text, ok := property["text"].(map[string]interface{}); ok {
		listing.DescriptionHTML = stringField(text, "description")
	}
	if sizings, ok := property["sizings"].([]interface{}); ok {
		for _, s := range sizings {
			sizing, ok := s.(map[string]interface{})
			if !ok {
				continue
			}
			if stringField(sizing, "unit") == "sqm" {
				listing.FloorAreaSqM = floatField(sizing, "minimumSize")
				break
			}
		}
	}
	if brochures, ok := property["brochures"].([]interface{}); ok && len(brochures) > 0 {
		if b, ok := brochures[0].(map[string]interface{}); ok {
			listing.BrochureURL = stringField(b, "url")
		}
	}
}

func populateFromDOM(listing *Listing, doc *goquery.Document) {
	if listing.Address == "" {
		listing.Address = strings.TrimSpace(doc.Find(`[itemprop="streetAddress"]`).First().Text())
	}
	if listing.Address == "" {
		listing.Address = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if listing.Price == 0 {
		if m := pricePattern.FindStringSubmatch(doc.Text()); m != nil {
			listing.Price, _ = strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		}
	}
	if listing.DescriptionHTML == "" {
		if html, err := doc.Find(`[itemprop="description"]`).First().Html(); err == nil {
			listing.DescriptionHTML = strings.TrimSpace(html)
		}
	}
}

// floorAreaFromText scans page text for a floor area, preferring square
// metres and converting square feet when that is all the page offers.
func floorAreaFromText(text string) float64 {
	if m := sqmPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			return v
		}
	}
	if m := sqftPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			return v / sqftPerSqm
		}
	}
	return 0
}

// FetchListing fetches a listing page and returns the extracted facts plus
// the raw HTML for the downstream extraction tiers.
func FetchListing(ctx context.Context, fetcher Fetcher, url string) (Listing, string, *Document, error) {
	if err := ValidateListingURL(url); err != nil {
		return Listing{}, "", nil, err
	}

	doc, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return Listing{}, "", nil, err
	}
	defer doc.Body.Close()

	raw, err := io.ReadAll(doc.Body)
	if err != nil {
		return Listing{}, "", nil, fmt.Errorf("listing read failed for %s: %w", url, err)
	}

	listing, err := ExtractListing(string(raw), url)
	if err != nil {
		return Listing{}, "", nil, err
	}
	return listing, string(raw), doc, nil
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}

func intField(obj map[string]interface{}, key string) int {
	if f, ok := obj[key].(float64); ok {
		return int(f)
	}
	return 0
}

func floatField(obj map[string]interface{}, key string) float64 {
	f, _ := obj[key].(float64)
	return f
}

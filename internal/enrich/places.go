package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"
)

// Amenity categories scored for the locality section of a report.
var amenityCategories = []string{
	"education.school",
	"public_transport.train",
	"commercial.supermarket",
	"leisure.park",
}

// AmenityScores holds per-category 0-100 proximity scores.
type AmenityScores struct {
	Schools      int `json:"schools"`
	Stations     int `json:"stations"`
	Supermarkets int `json:"supermarkets"`
	Parks        int `json:"parks"`
}

// PlacesClient scores amenity proximity around a coordinate using a
// places API. Results are cached per rounded lat/lng cell so nearby
// listings share lookups.
type PlacesClient struct {
	baseURL string
	apiKey  string
	cache   *Cache
	client  *http.Client
}

func NewPlacesClient(cfg PlacesConfig, cache *Cache) *PlacesClient {
	return &PlacesClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		cache:   cache,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Score queries each amenity category within 1600m of the coordinate and
// maps the nearest hit per category to a 0-100 score.
func (c *PlacesClient) Score(ctx context.Context, lat, lng float64) (*AmenityScores, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("places: api key not configured")
	}

	key := cellKey(lat, lng)
	if cached, ok := c.cache.Get(key); ok {
		return cached.(*AmenityScores), nil
	}

	scores := &AmenityScores{}
	for _, category := range amenityCategories {
		distance, err := c.nearestDistance(ctx, category, lat, lng)
		if err != nil {
			return nil, err
		}
		score := proximityScore(distance)
		switch category {
		case "education.school":
			scores.Schools = score
		case "public_transport.train":
			scores.Stations = score
		case "commercial.supermarket":
			scores.Supermarkets = score
		case "leisure.park":
			scores.Parks = score
		}
	}

	c.cache.Set(key, scores)
	return scores, nil
}

// nearestDistance returns the metres to the closest feature in the
// category, or -1 when none exists within the search radius.
func (c *PlacesClient) nearestDistance(ctx context.Context, category string, lat, lng float64) (int, error) {
	query := url.Values{}
	query.Set("categories", category)
	query.Set("filter", fmt.Sprintf("circle:%f,%f,1600", lng, lat))
	query.Set("bias", fmt.Sprintf("proximity:%f,%f", lng, lat))
	query.Set("limit", "1")
	query.Set("apiKey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return -1, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return -1, fmt.Errorf("places lookup %s: %w", category, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return -1, fmt.Errorf("places lookup %s returned status %d", category, resp.StatusCode)
	}

	var payload struct {
		Features []struct {
			Properties struct {
				Distance float64 `json:"distance"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return -1, fmt.Errorf("places decode: %w", err)
	}
	if len(payload.Features) == 0 {
		return -1, nil
	}
	return int(payload.Features[0].Properties.Distance), nil
}

// proximityScore buckets a walking distance in metres into a 0-100 score.
func proximityScore(metres int) int {
	switch {
	case metres < 0:
		return 0
	case metres <= 400:
		return 100
	case metres <= 800:
		return 75
	case metres <= 1600:
		return 50
	default:
		return 25
	}
}

// cellKey rounds the coordinate to ~100m so adjacent lookups share a
// cache entry.
func cellKey(lat, lng float64) string {
	return fmt.Sprintf("places:%.3f,%.3f", round3(lat), round3(lng))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

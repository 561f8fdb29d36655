package enrich

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// EPCRating is the energy-performance result for one address.
type EPCRating struct {
	CurrentRating   string `json:"current_rating"`
	PotentialRating string `json:"potential_rating"`
	CurrentScore    int    `json:"current_score"`
	InspectionDate  string `json:"inspection_date,omitempty"`
}

// EPCClient queries the open EPC register. Credentials are the registered
// email and API key, sent as HTTP Basic auth.
type EPCClient struct {
	baseURL string
	email   string
	apiKey  string
	cache   *Cache
	client  *http.Client
}

func NewEPCClient(cfg EPCConfig, cache *Cache) *EPCClient {
	return &EPCClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		email:   cfg.Email,
		apiKey:  cfg.APIKey,
		cache:   cache,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Lookup returns the most recent certificate matching the postcode and
// address fragment, or nil when the register has none.
func (c *EPCClient) Lookup(ctx context.Context, postcode, address string) (*EPCRating, error) {
	if c.email == "" || c.apiKey == "" {
		return nil, fmt.Errorf("epc: credentials not configured")
	}

	key := "epc:" + postcode + ":" + address
	if cached, ok := c.cache.Get(key); ok {
		// A cached nil records a postcode the register has nothing for.
		rating, _ := cached.(*EPCRating)
		return rating, nil
	}

	query := url.Values{}
	query.Set("postcode", postcode)
	query.Set("size", "5")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(c.email + ":" + c.apiKey))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("epc lookup for %s: %w", postcode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		c.cache.Set(key, (*EPCRating)(nil))
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("epc lookup for %s returned status %d", postcode, resp.StatusCode)
	}

	var payload struct {
		Rows []struct {
			Address         string `json:"address"`
			CurrentRating   string `json:"current-energy-rating"`
			PotentialRating string `json:"potential-energy-rating"`
			CurrentScore    string `json:"current-energy-efficiency"`
			InspectionDate  string `json:"inspection-date"`
		} `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("epc decode: %w", err)
	}
	if len(payload.Rows) == 0 {
		c.cache.Set(key, (*EPCRating)(nil))
		return nil, nil
	}

	// Prefer the row whose address contains the house number / first token
	// of the listing address; otherwise take the newest certificate.
	best := payload.Rows[0]
	if token := firstAddressToken(address); token != "" {
		for _, row := range payload.Rows {
			if strings.Contains(strings.ToLower(row.Address), token) {
				best = row
				break
			}
		}
	}

	rating := &EPCRating{
		CurrentRating:   best.CurrentRating,
		PotentialRating: best.PotentialRating,
		InspectionDate:  best.InspectionDate,
	}
	fmt.Sscanf(best.CurrentScore, "%d", &rating.CurrentScore)

	c.cache.Set(key, rating)
	return rating, nil
}

func firstAddressToken(address string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(address)))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

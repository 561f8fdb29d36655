package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/homelens/homelens/internal/enrich"
	"github.com/homelens/homelens/internal/scrape"
	"github.com/homelens/homelens/internal/score"
)

// Report is one analysed listing: the scraped facts, the enrichment data,
// the score breakdown and the advisory AI analysis.
type Report struct {
	ID               uuid.UUID              `json:"id"`
	ListingURL       string                 `json:"listing_url"`
	Address          string                 `json:"address"`
	Outcode          string                 `json:"outcode"`
	PropertyType     string                 `json:"property_type"`
	Tenure           string                 `json:"tenure"`
	Agent            string                 `json:"agent"`
	Price            int                    `json:"price"`
	Bedrooms         int                    `json:"bedrooms"`
	Bathrooms        int                    `json:"bathrooms"`
	FloorAreaSqM     float64                `json:"floor_area_sqm"`
	Description      string                 `json:"description"` // Sanitized HTML
	Latitude         float64                `json:"latitude"`
	Longitude        float64                `json:"longitude"`
	PortalAddedOn    *string                `json:"portal_added_on"`
	AddedDateSource  string                 `json:"added_date_source"`
	TimeOnMarketDays *int                   `json:"time_on_market_days"`
	PriceHistory     []scrape.PriceEvent    `json:"price_history"`
	PriceDataQuality string                 `json:"price_data_quality"`
	AreaStats        *enrich.AreaStats      `json:"area_stats,omitempty"`
	AreaPricePerSqM  float64                `json:"area_price_per_sqm,omitempty"`
	EPC              *enrich.EPCRating      `json:"epc,omitempty"`
	Amenities        *enrich.AmenityScores  `json:"amenities,omitempty"`
	Comparables      []scrape.Comparable    `json:"comparables,omitempty"`
	Scores           score.Breakdown        `json:"scores"`
	Preferences      score.Preferences      `json:"preferences"`
	AISummary        string                 `json:"ai_summary,omitempty"`
	RiskFlags        []string               `json:"risk_flags,omitempty"`
	Tags             []string               `json:"tags,omitempty"`
	EvidenceJSON     map[string]interface{} `json:"evidence_json,omitempty"`
	FetchedAt        time.Time              `json:"fetched_at"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// User is an account that can save reports.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// SavedReport links a user to a report they bookmarked.
type SavedReport struct {
	UserID    uuid.UUID `json:"user_id"`
	ReportID  uuid.UUID `json:"report_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RefreshRun records one land-registry cache refresh for the admin runs view.
type RefreshRun struct {
	ID          uuid.UUID  `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	Status      string     `json:"status"` // "running", "ok", "error"
	Detail      string     `json:"detail,omitempty"`
	Districts   int        `json:"districts"`
	RowsScanned int        `json:"rows_scanned"`
}

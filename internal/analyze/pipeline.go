// Package analyze runs the full report pipeline for one listing URL:
// scrape, enrich, score, and (optionally) AI analysis.
package analyze

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/homelens/homelens/internal/ai"
	"github.com/homelens/homelens/internal/enrich"
	"github.com/homelens/homelens/internal/models"
	"github.com/homelens/homelens/internal/score"
	"github.com/homelens/homelens/internal/scrape"
)

// AreaPriceSource yields a district's asking £/sqm baseline, when enough
// floor areas are known to compute one. The report store implements it.
type AreaPriceSource interface {
	MeanPricePerSqM(ctx context.Context, outcode string) (float64, error)
}

type Pipeline struct {
	Fetcher      scrape.Fetcher
	LandRegistry *enrich.LandRegistry
	EPC          *enrich.EPCClient
	Places       *enrich.PlacesClient
	Similar      *scrape.SimilarFinder
	AI           *ai.OllamaClient
	AreaPrices   AreaPriceSource
}

// NewPipeline wires the default fetcher; enrichment and AI collaborators
// are optional and may be nil, in which case their report sections stay
// empty.
func NewPipeline() *Pipeline {
	return &Pipeline{
		Fetcher: scrape.NewHTTPFetcher(scrape.FetchConfig{}),
		Similar: scrape.NewSimilarFinder(),
	}
}

// Result pairs the report with the embedding computed for it, when AI is
// available.
type Result struct {
	Report    *models.Report
	Embedding []float32
}

// Analyze builds a complete report for the listing URL. Scrape failures
// are fatal; every enrichment and AI failure degrades to an empty section
// with a log line.
func (p *Pipeline) Analyze(ctx context.Context, listingURL string, prefs score.Preferences) (*Result, error) {
	log.Printf("Starting analysis for: %s", listingURL)

	listing, rawHTML, doc, err := scrape.FetchListing(ctx, p.Fetcher, listingURL)
	if err != nil {
		return nil, fmt.Errorf("listing fetch error: %w", err)
	}

	// Time on market and price history come from the same document.
	added := scrape.ExtractAddedDate(rawHTML, doc.FetchedAt)
	record := scrape.BuildTimeOnMarketRecord(listingURL, doc.FetchedAt, added)
	history := scrape.ExtractPriceHistory(rawHTML)

	if listing.FloorAreaSqM == 0 && listing.BrochureURL != "" {
		area, err := scrape.FloorAreaFromBrochure(ctx, p.Fetcher, listing.BrochureURL)
		if err != nil {
			log.Printf("[analyze] brochure floor area failed for %s: %v", listingURL, err)
		} else if area > 0 {
			listing.FloorAreaSqM = area
		}
	}

	report := &models.Report{
		ListingURL:       listingURL,
		Address:          listing.Address,
		Outcode:          listing.Outcode,
		PropertyType:     listing.PropertyType,
		Tenure:           listing.Tenure,
		Agent:            listing.Agent,
		Price:            listing.Price,
		Bedrooms:         listing.Bedrooms,
		Bathrooms:        listing.Bathrooms,
		FloorAreaSqM:     listing.FloorAreaSqM,
		Description:      listing.DescriptionHTML,
		Latitude:         listing.Latitude,
		Longitude:        listing.Longitude,
		PortalAddedOn:    record.PortalAddedOn,
		AddedDateSource:  string(record.Source),
		TimeOnMarketDays: record.TimeOnMarketDays,
		PriceHistory:     history.Entries,
		PriceDataQuality: string(history.DataQuality),
		Preferences:      prefs,
		FetchedAt:        doc.FetchedAt,
		EvidenceJSON: map[string]interface{}{
			"added_date_snippet": record.RawSnippet,
			"status_code":        doc.StatusCode,
		},
	}

	p.enrichReport(ctx, report)
	p.scoreReport(report)

	var embedding []float32
	if p.AI != nil {
		embedding = p.analyzeWithAI(ctx, report)
	}

	log.Printf("Analysis complete for %s: score %d (%s)", listingURL, report.Scores.Overall, report.Scores.Grade)
	return &Result{Report: report, Embedding: embedding}, nil
}

func (p *Pipeline) enrichReport(ctx context.Context, report *models.Report) {
	if p.LandRegistry != nil && report.Outcode != "" {
		stats, err := p.LandRegistry.Analytics(report.Outcode)
		if err != nil {
			log.Printf("[analyze] land registry failed for %s: %v", report.Outcode, err)
		} else {
			report.AreaStats = stats
		}
	}

	if p.AreaPrices != nil && report.Outcode != "" {
		perSqM, err := p.AreaPrices.MeanPricePerSqM(ctx, report.Outcode)
		if err != nil {
			log.Printf("[analyze] area price per sqm failed for %s: %v", report.Outcode, err)
		} else {
			report.AreaPricePerSqM = perSqM
		}
	}

	if p.EPC != nil && report.Outcode != "" {
		rating, err := p.EPC.Lookup(ctx, report.Outcode, report.Address)
		if err != nil {
			log.Printf("[analyze] EPC lookup failed for %s: %v", report.Outcode, err)
		} else {
			report.EPC = rating
		}
	}

	if p.Places != nil && report.Latitude != 0 && report.Longitude != 0 {
		amenities, err := p.Places.Score(ctx, report.Latitude, report.Longitude)
		if err != nil {
			log.Printf("[analyze] places scoring failed: %v", err)
		} else {
			report.Amenities = amenities
		}
	}

	if p.Similar != nil && report.Outcode != "" {
		comparables, err := p.Similar.Find(report.Outcode)
		if err != nil {
			log.Printf("[analyze] comparables crawl failed for %s: %v", report.Outcode, err)
		} else {
			report.Comparables = comparables
		}
	}
}

func (p *Pipeline) scoreReport(report *models.Report) {
	report.Scores = score.Compute(ScoreInput(report))
}

// ScoreInput maps a report to the scorer's input; the rescore job reuses
// it on stored reports.
func ScoreInput(report *models.Report) score.Input {
	in := score.Input{
		Price:            report.Price,
		FloorAreaSqM:     report.FloorAreaSqM,
		Bedrooms:         report.Bedrooms,
		Description:      report.Description,
		AreaPricePerSqM:  report.AreaPricePerSqM,
		TimeOnMarketDays: report.TimeOnMarketDays,
		PriceReductions:  countReductions(report.PriceHistory),
		Preferences:      report.Preferences,
	}
	if report.AreaStats != nil {
		in.AreaMeanPrice = report.AreaStats.MeanPrice
	}
	if report.EPC != nil {
		in.EPCBand = report.EPC.CurrentRating
	}
	if report.Amenities != nil {
		in.AmenitySchools = report.Amenities.Schools
		in.AmenityStations = report.Amenities.Stations
		in.AmenityShops = report.Amenities.Supermarkets
		in.AmenityParks = report.Amenities.Parks
	}
	return in
}

func countReductions(entries []scrape.PriceEvent) int {
	count := 0
	for _, e := range entries {
		event := strings.ToLower(e.Event)
		if strings.Contains(event, "reduced") || strings.Contains(event, "price changed") {
			count++
		}
	}
	return count
}

// analyzeWithAI fills the advisory sections and returns the description
// embedding for similarity search. Scores are already final by the time
// this runs.
func (p *Pipeline) analyzeWithAI(ctx context.Context, report *models.Report) []float32 {
	priceLabel := fmt.Sprintf("£%d", report.Price)

	analysis, err := ai.AnalyzeListing(ctx, p.AI, report.Address, priceLabel, report.Description)
	if err != nil {
		log.Printf("[analyze] AI analysis failed: %v", err)
	} else {
		report.AISummary = analysis.Summary
		report.RiskFlags = analysis.RiskFlags
	}

	classification, err := ai.ClassifyListing(ctx, p.AI, report.Address, report.Description)
	if err != nil {
		log.Printf("[analyze] AI classification failed: %v", err)
	} else {
		report.Tags = classification.Tags
	}

	embedText := report.Address + "\n" + report.Description
	embedding, err := p.AI.GenerateEmbedding(ctx, embedText)
	if err != nil {
		log.Printf("[analyze] embedding generation failed: %v", err)
		return nil
	}
	return embedding
}

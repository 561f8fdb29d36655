// One-shot analysis of a single listing URL, without the database. Useful
// for checking what the extraction tiers and scorers make of a page.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/homelens/homelens/internal/analyze"
	"github.com/homelens/homelens/internal/enrich"
	"github.com/homelens/homelens/internal/score"
)

func main() {
	budget := flag.Int("budget", 0, "max budget preference")
	bedrooms := flag.Int("bedrooms", 0, "min bedrooms preference")
	keywords := flag.String("keywords", "", "comma-separated must-have keywords")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: analyze [flags] <listing-url>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	url := flag.Arg(0)

	if err := godotenv.Load(); err == nil {
		log.Print("Loaded .env")
	}

	prefs := score.Preferences{
		MaxBudget:   *budget,
		MinBedrooms: *bedrooms,
	}
	for _, kw := range strings.Split(*keywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			prefs.MustHaveKeywords = append(prefs.MustHaveKeywords, kw)
		}
	}

	pipeline := analyze.NewPipeline()
	if dataDir := os.Getenv("LAND_REGISTRY_DATA_DIR"); dataDir != "" {
		pipeline.LandRegistry = enrich.NewLandRegistry(dataDir, enrich.NewCache(24*time.Hour))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := pipeline.Analyze(ctx, url, prefs)
	if err != nil {
		log.Fatal(err)
	}
	report := result.Report

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"Address", report.Address})
	t.AppendRow(table.Row{"Price", fmt.Sprintf("£%d", report.Price)})
	t.AppendRow(table.Row{"Type", report.PropertyType})
	t.AppendRow(table.Row{"Beds / Baths", fmt.Sprintf("%d / %d", report.Bedrooms, report.Bathrooms)})
	if report.FloorAreaSqM > 0 {
		t.AppendRow(table.Row{"Floor area", fmt.Sprintf("%.0f sqm", report.FloorAreaSqM)})
	}
	t.AppendSeparator()

	added := "not found"
	if report.PortalAddedOn != nil {
		added = *report.PortalAddedOn
	}
	days := "unknown"
	if report.TimeOnMarketDays != nil {
		days = fmt.Sprintf("%d", *report.TimeOnMarketDays)
	}
	t.AppendRow(table.Row{"Added on", fmt.Sprintf("%s (source: %s)", added, report.AddedDateSource)})
	t.AppendRow(table.Row{"Days on market", days})
	t.AppendRow(table.Row{"Price history", fmt.Sprintf("%d entries (%s)", len(report.PriceHistory), report.PriceDataQuality)})
	t.AppendSeparator()

	t.AppendRow(table.Row{"Value", report.Scores.Value})
	t.AppendRow(table.Row{"Market", report.Scores.Market})
	t.AppendRow(table.Row{"Locality", report.Scores.Locality})
	t.AppendRow(table.Row{"Efficiency", report.Scores.Efficiency})
	t.AppendRow(table.Row{"Fit", report.Scores.Fit})
	t.AppendRow(table.Row{"Overall", fmt.Sprintf("%d (%s)", report.Scores.Overall, report.Scores.Grade)})
	t.Render()

	if len(report.PriceHistory) > 0 {
		h := table.NewWriter()
		h.SetOutputMirror(os.Stdout)
		h.AppendHeader(table.Row{"Date", "Price", "Event"})
		for _, e := range report.PriceHistory {
			h.AppendRow(table.Row{e.Date, "£" + e.Price, e.Event})
		}
		h.Render()
	}
}

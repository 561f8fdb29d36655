package enrich

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Price-paid CSV column layout (HM Land Registry standard export).
const (
	ppColPrice    = 1
	ppColDate     = 2
	ppColPostcode = 3
	ppColType     = 4
	ppColumns     = 16
)

// AreaStats summarises sold prices for one postcode district.
type AreaStats struct {
	District       string             `json:"district"`
	SaleCount      int                `json:"sale_count"`
	MeanPrice      int                `json:"mean_price"`
	MedianPrice    int                `json:"median_price"`
	MeanByType     map[string]int     `json:"mean_by_type"`
	YearMeans      map[int]int        `json:"year_means"`
	TrendPct       *float64           `json:"trend_pct,omitempty"`
	LatestSaleDate string             `json:"latest_sale_date,omitempty"`
}

// propertyTypeNames maps the price-paid single-letter codes.
var propertyTypeNames = map[string]string{
	"D": "detached",
	"S": "semi-detached",
	"T": "terraced",
	"F": "flat",
	"O": "other",
}

// LandRegistry computes sold-price analytics from price-paid CSV exports
// on disk. Results are cached per district.
type LandRegistry struct {
	dataDir string
	cache   *Cache
}

func NewLandRegistry(dataDir string, cache *Cache) *LandRegistry {
	return &LandRegistry{dataDir: dataDir, cache: cache}
}

// Analytics returns aggregate sold-price stats for a postcode district
// such as "SW11". The CSV files under the data dir are streamed row by
// row; a single pass covers every file.
func (lr *LandRegistry) Analytics(district string) (*AreaStats, error) {
	district = strings.ToUpper(strings.TrimSpace(district))
	if district == "" {
		return nil, fmt.Errorf("land registry: empty district")
	}

	if cached, ok := lr.cache.Get("lr:" + district); ok {
		return cached.(*AreaStats), nil
	}

	files, err := filepath.Glob(filepath.Join(lr.dataDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("land registry: listing data dir: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("land registry: no CSV files under %s", lr.dataDir)
	}

	var sales []sale
	for _, file := range files {
		fileSales, err := readSales(file, district)
		if err != nil {
			log.Printf("[enrich] land registry: skipping %s: %v", filepath.Base(file), err)
			continue
		}
		sales = append(sales, fileSales...)
	}

	stats := aggregateSales(district, sales)
	lr.cache.Set("lr:"+district, stats)
	return stats, nil
}

// Refresh drops cached analytics for the given districts and recomputes
// them from disk. It returns how many districts refreshed cleanly and the
// total number of matching sales scanned.
func (lr *LandRegistry) Refresh(districts []string) (refreshed, rowsScanned int) {
	for _, district := range districts {
		district = strings.ToUpper(strings.TrimSpace(district))
		if district == "" {
			continue
		}
		lr.cache.Delete("lr:" + district)

		stats, err := lr.Analytics(district)
		if err != nil {
			log.Printf("[enrich] land registry refresh failed for %s: %v", district, err)
			continue
		}
		refreshed++
		rowsScanned += stats.SaleCount
	}
	return refreshed, rowsScanned
}

type sale struct {
	price        int
	date         time.Time
	propertyType string
}

func readSales(path, district string) ([]sale, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	prefix := district + " "
	var sales []sale
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading rows: %w", err)
		}
		if len(row) < ppColumns {
			continue
		}

		postcode := strings.ToUpper(strings.TrimSpace(row[ppColPostcode]))
		if !strings.HasPrefix(postcode, prefix) {
			continue
		}

		price, err := strconv.Atoi(strings.TrimSpace(row[ppColPrice]))
		if err != nil || price <= 0 {
			continue
		}
		// Dates arrive as "2021-03-12 00:00".
		date, err := time.Parse("2006-01-02", strings.SplitN(row[ppColDate], " ", 2)[0])
		if err != nil {
			continue
		}

		sales = append(sales, sale{
			price:        price,
			date:         date,
			propertyType: strings.TrimSpace(row[ppColType]),
		})
	}

	return sales, nil
}

func aggregateSales(district string, sales []sale) *AreaStats {
	stats := &AreaStats{
		District:   district,
		SaleCount:  len(sales),
		MeanByType: map[string]int{},
		YearMeans:  map[int]int{},
	}
	if len(sales) == 0 {
		return stats
	}

	prices := make([]int, 0, len(sales))
	typeTotals := map[string][]int{}
	yearTotals := map[int][]int{}
	var total int
	var latest time.Time

	for _, s := range sales {
		prices = append(prices, s.price)
		total += s.price
		if name, ok := propertyTypeNames[s.propertyType]; ok {
			typeTotals[name] = append(typeTotals[name], s.price)
		}
		year := s.date.Year()
		yearTotals[year] = append(yearTotals[year], s.price)
		if s.date.After(latest) {
			latest = s.date
		}
	}

	sort.Ints(prices)
	stats.MeanPrice = total / len(prices)
	stats.MedianPrice = median(prices)
	stats.LatestSaleDate = latest.Format("2006-01-02")

	for name, values := range typeTotals {
		stats.MeanByType[name] = mean(values)
	}
	years := make([]int, 0, len(yearTotals))
	for year, values := range yearTotals {
		stats.YearMeans[year] = mean(values)
		years = append(years, year)
	}

	// Year-on-year trend needs means for the two most recent years.
	sort.Ints(years)
	if len(years) >= 2 {
		latestMean := stats.YearMeans[years[len(years)-1]]
		priorMean := stats.YearMeans[years[len(years)-2]]
		if priorMean > 0 {
			pct := (float64(latestMean) - float64(priorMean)) / float64(priorMean) * 100
			stats.TrendPct = &pct
		}
	}

	return stats
}

func mean(values []int) int {
	if len(values) == 0 {
		return 0
	}
	total := 0
	for _, v := range values {
		total += v
	}
	return total / len(values)
}

func median(sorted []int) int {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

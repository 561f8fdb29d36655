// Package score turns listing facts and enrichment data into per-category
// heuristic scores. Every function is pure; the AI analysis never feeds
// into any number here.
package score

import (
	"strings"
)

// Weights for the overall score. They sum to 1.
const (
	weightValue      = 0.30
	weightMarket     = 0.20
	weightLocality   = 0.20
	weightEfficiency = 0.10
	weightFit        = 0.20
)

// Preferences captures what the requesting user cares about.
type Preferences struct {
	MaxBudget        int      `json:"max_budget,omitempty"`
	MinBedrooms      int      `json:"min_bedrooms,omitempty"`
	MustHaveKeywords []string `json:"must_have_keywords,omitempty"`
}

// Input bundles everything the scorers read.
type Input struct {
	Price            int
	FloorAreaSqM     float64
	Bedrooms         int
	Description      string
	AreaMeanPrice    int      // district mean sold price
	AreaPricePerSqM  float64  // district £/sqm when floor areas are known
	TimeOnMarketDays *int     // nil when the portal date was not found
	PriceReductions  int      // count of downward moves in the price history
	EPCBand          string   // "A".."G", empty when unknown
	AmenitySchools   int      // 0-100 proximity scores
	AmenityStations  int
	AmenityShops     int
	AmenityParks     int
	Preferences      Preferences
}

// Breakdown is the scored report section.
type Breakdown struct {
	Value      int    `json:"value"`
	Market     int    `json:"market"`
	Locality   int    `json:"locality"`
	Efficiency int    `json:"efficiency"`
	Fit        int    `json:"fit"`
	Overall    int    `json:"overall"`
	Grade      string `json:"grade"`
}

// Compute runs every category and the weighted overall.
func Compute(in Input) Breakdown {
	b := Breakdown{
		Value:      ValueScore(in),
		Market:     MarketScore(in),
		Locality:   LocalityScore(in),
		Efficiency: EfficiencyScore(in.EPCBand),
		Fit:        FitScore(in),
	}
	overall := weightValue*float64(b.Value) +
		weightMarket*float64(b.Market) +
		weightLocality*float64(b.Locality) +
		weightEfficiency*float64(b.Efficiency) +
		weightFit*float64(b.Fit)
	b.Overall = clamp(int(overall + 0.5))
	b.Grade = Grade(b.Overall)
	return b
}

// ValueScore compares the asking price against the district's sold prices.
// 50 means priced at the area mean; cheaper scores higher.
func ValueScore(in Input) int {
	if in.Price <= 0 {
		return 50
	}

	// Prefer a per-sqm comparison when both sides carry floor area.
	if in.FloorAreaSqM > 0 && in.AreaPricePerSqM > 0 {
		askingPerSqM := float64(in.Price) / in.FloorAreaSqM
		return ratioScore(askingPerSqM / in.AreaPricePerSqM)
	}
	if in.AreaMeanPrice > 0 {
		return ratioScore(float64(in.Price) / float64(in.AreaMeanPrice))
	}
	return 50
}

// ratioScore maps asking/area ratio to 0-100: 1.0 -> 50, each 1% under
// the mean adds a point.
func ratioScore(ratio float64) int {
	return clamp(int(50 + (1-ratio)*100))
}

// MarketScore reads time on market and price-cut history. Fresh listings
// with no cuts score high; stale, repeatedly reduced ones score low.
func MarketScore(in Input) int {
	score := 50
	if in.TimeOnMarketDays != nil {
		switch days := *in.TimeOnMarketDays; {
		case days <= 14:
			score = 85
		case days <= 45:
			score = 70
		case days <= 90:
			score = 50
		case days <= 180:
			score = 35
		default:
			score = 20
		}
	}
	// Each recorded reduction signals softness but also leverage.
	score -= in.PriceReductions * 5
	return clamp(score)
}

// LocalityScore averages the amenity proximity scores.
func LocalityScore(in Input) int {
	return clamp((in.AmenitySchools + in.AmenityStations + in.AmenityShops + in.AmenityParks) / 4)
}

var epcBandScores = map[string]int{
	"A": 100, "B": 90, "C": 75, "D": 55, "E": 40, "F": 25, "G": 10,
}

// EfficiencyScore maps an EPC band to a score; unknown bands sit at the
// neutral midpoint.
func EfficiencyScore(band string) int {
	if s, ok := epcBandScores[strings.ToUpper(strings.TrimSpace(band))]; ok {
		return s
	}
	return 50
}

// FitScore measures the listing against the user's stated preferences.
// With no preferences everything fits.
func FitScore(in Input) int {
	prefs := in.Preferences
	checks, passed := 0, 0

	if prefs.MaxBudget > 0 {
		checks++
		if in.Price > 0 && in.Price <= prefs.MaxBudget {
			passed++
		}
	}
	if prefs.MinBedrooms > 0 {
		checks++
		if in.Bedrooms >= prefs.MinBedrooms {
			passed++
		}
	}
	if len(prefs.MustHaveKeywords) > 0 {
		description := strings.ToLower(in.Description)
		for _, keyword := range prefs.MustHaveKeywords {
			checks++
			if strings.Contains(description, strings.ToLower(strings.TrimSpace(keyword))) {
				passed++
			}
		}
	}

	if checks == 0 {
		return 100
	}
	return clamp(passed * 100 / checks)
}

// Grade maps an overall score to a letter.
func Grade(overall int) string {
	switch {
	case overall >= 80:
		return "A"
	case overall >= 65:
		return "B"
	case overall >= 50:
		return "C"
	case overall >= 35:
		return "D"
	default:
		return "E"
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

package score

import "testing"

func intPtr(v int) *int { return &v }

func TestValueScore(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want int
	}{
		{"priced at area mean", Input{Price: 300000, AreaMeanPrice: 300000}, 50},
		{"20 percent under mean", Input{Price: 240000, AreaMeanPrice: 300000}, 70},
		{"20 percent over mean", Input{Price: 360000, AreaMeanPrice: 300000}, 30},
		{"way over mean clamps to zero", Input{Price: 900000, AreaMeanPrice: 300000}, 0},
		{"per-sqm preferred over mean", Input{
			Price: 400000, FloorAreaSqM: 100, AreaPricePerSqM: 4000,
			AreaMeanPrice: 200000, // would score 0 if used
		}, 50},
		{"no comparison data", Input{Price: 300000}, 50},
		{"no price", Input{AreaMeanPrice: 300000}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValueScore(tt.in); got != tt.want {
				t.Errorf("ValueScore = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMarketScore(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want int
	}{
		{"fresh listing", Input{TimeOnMarketDays: intPtr(7)}, 85},
		{"six weeks", Input{TimeOnMarketDays: intPtr(45)}, 70},
		{"three months", Input{TimeOnMarketDays: intPtr(90)}, 50},
		{"half a year", Input{TimeOnMarketDays: intPtr(180)}, 35},
		{"stale", Input{TimeOnMarketDays: intPtr(300)}, 20},
		{"unknown days stays neutral", Input{}, 50},
		{"reductions subtract", Input{TimeOnMarketDays: intPtr(7), PriceReductions: 3}, 70},
		{"floor at zero", Input{TimeOnMarketDays: intPtr(300), PriceReductions: 10}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MarketScore(tt.in); got != tt.want {
				t.Errorf("MarketScore = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEfficiencyScore(t *testing.T) {
	if got := EfficiencyScore("b"); got != 90 {
		t.Errorf("band b = %d, want 90", got)
	}
	if got := EfficiencyScore(""); got != 50 {
		t.Errorf("unknown band = %d, want 50", got)
	}
	if got := EfficiencyScore(" C "); got != 75 {
		t.Errorf("padded band = %d, want 75", got)
	}
}

func TestFitScore(t *testing.T) {
	in := Input{
		Price:       450000,
		Bedrooms:    3,
		Description: "A bright garden flat with a private GARAGE near the park.",
	}

	tests := []struct {
		name  string
		prefs Preferences
		want  int
	}{
		{"no preferences", Preferences{}, 100},
		{"all pass", Preferences{MaxBudget: 500000, MinBedrooms: 3, MustHaveKeywords: []string{"garden", "garage"}}, 100},
		{"over budget", Preferences{MaxBudget: 400000}, 0},
		{"half the keywords", Preferences{MustHaveKeywords: []string{"garden", "balcony"}}, 50},
		{"mixed checks", Preferences{MaxBudget: 500000, MinBedrooms: 4}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in.Preferences = tt.prefs
			if got := FitScore(in); got != tt.want {
				t.Errorf("FitScore = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestComputeOverallAndGrade(t *testing.T) {
	in := Input{
		Price:            300000,
		AreaMeanPrice:    300000, // value 50
		TimeOnMarketDays: intPtr(7),
		AmenitySchools:   100,
		AmenityStations:  100,
		AmenityShops:     100,
		AmenityParks:     100, // locality 100
		EPCBand:          "C", // efficiency 75
	}

	b := Compute(in)
	// 0.3*50 + 0.2*85 + 0.2*100 + 0.1*75 + 0.2*100 = 79.5 -> 80
	if b.Overall != 80 {
		t.Errorf("overall = %d, want 80", b.Overall)
	}
	if b.Grade != "A" {
		t.Errorf("grade = %s, want A", b.Grade)
	}
}

func TestGradeBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "A"}, {80, "A"}, {79, "B"}, {65, "B"}, {64, "C"},
		{50, "C"}, {49, "D"}, {35, "D"}, {34, "E"}, {0, "E"},
	}
	for _, tt := range tests {
		if got := Grade(tt.score); got != tt.want {
			t.Errorf("Grade(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

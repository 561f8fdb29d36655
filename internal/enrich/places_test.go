package enrich

import "testing"

func TestProximityScore(t *testing.T) {
	tests := []struct {
		metres int
		want   int
	}{
		{-1, 0},
		{0, 100},
		{400, 100},
		{401, 75},
		{800, 75},
		{801, 50},
		{1600, 50},
		{1601, 25},
	}
	for _, tt := range tests {
		if got := proximityScore(tt.metres); got != tt.want {
			t.Errorf("proximityScore(%d) = %d, want %d", tt.metres, got, tt.want)
		}
	}
}

func TestCellKeySharedForNearbyCoordinates(t *testing.T) {
	a := cellKey(51.46420, -0.17010)
	b := cellKey(51.46423, -0.17008)
	if a != b {
		t.Errorf("expected shared cell, got %s vs %s", a, b)
	}

	far := cellKey(51.47, -0.17)
	if a == far {
		t.Error("distinct cells expected for distant coordinates")
	}
}

package enrich

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Rows follow the standard 16-column price-paid export.
const pricePaidFixture = `"{1}","250000","2023-03-12 00:00","SW11 1AA","T","N","F","10","","HIGH STREET","","LONDON","WANDSWORTH","GREATER LONDON","A","A"
"{2}","350000","2023-06-01 00:00","SW11 2BB","F","N","L","12","","PARK ROAD","","LONDON","WANDSWORTH","GREATER LONDON","A","A"
"{3}","200000","2022-01-20 00:00","SW11 3CC","T","N","F","14","","MILL LANE","","LONDON","WANDSWORTH","GREATER LONDON","A","A"
"{4}","999000","2023-02-02 00:00","SW4 9ZZ","D","N","F","1","","OTHER STREET","","LONDON","LAMBETH","GREATER LONDON","A","A"
"{5}","not-a-price","2023-02-02 00:00","SW11 4DD","T","N","F","2","","BAD ROW","","LONDON","WANDSWORTH","GREATER LONDON","A","A"
`

func writeFixture(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "pp-2023.csv"), []byte(pricePaidFixture), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLandRegistryAnalytics(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)

	lr := NewLandRegistry(dir, NewCache(time.Hour))
	stats, err := lr.Analytics("sw11")
	if err != nil {
		t.Fatal(err)
	}

	if stats.SaleCount != 3 {
		t.Errorf("sale count = %d, want 3 (other districts and bad rows excluded)", stats.SaleCount)
	}
	if stats.MeanPrice != (250000+350000+200000)/3 {
		t.Errorf("mean = %d", stats.MeanPrice)
	}
	if stats.MedianPrice != 250000 {
		t.Errorf("median = %d, want 250000", stats.MedianPrice)
	}
	if stats.MeanByType["terraced"] != 225000 {
		t.Errorf("terraced mean = %d, want 225000", stats.MeanByType["terraced"])
	}
	if stats.MeanByType["flat"] != 350000 {
		t.Errorf("flat mean = %d", stats.MeanByType["flat"])
	}
	if stats.LatestSaleDate != "2023-06-01" {
		t.Errorf("latest sale = %s", stats.LatestSaleDate)
	}

	// 2022 mean 200000 -> 2023 mean 300000 is +50%.
	if stats.TrendPct == nil || *stats.TrendPct != 50 {
		t.Errorf("trend = %v, want 50", stats.TrendPct)
	}
}

func TestLandRegistryAnalytics_DistrictPrefixIsExact(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)

	lr := NewLandRegistry(dir, NewCache(time.Hour))
	stats, err := lr.Analytics("SW1")
	if err != nil {
		t.Fatal(err)
	}
	// "SW1" must not swallow SW11 rows.
	if stats.SaleCount != 0 {
		t.Errorf("sale count = %d, want 0", stats.SaleCount)
	}
}

func TestLandRegistryAnalytics_Cached(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)

	lr := NewLandRegistry(dir, NewCache(time.Hour))
	first, err := lr.Analytics("SW11")
	if err != nil {
		t.Fatal(err)
	}

	// Remove the backing file; the cached result must still be served.
	if err := os.Remove(filepath.Join(dir, "pp-2023.csv")); err != nil {
		t.Fatal(err)
	}
	second, err := lr.Analytics("SW11")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("expected the cached *AreaStats to be returned")
	}
}

func TestLandRegistryAnalytics_EmptyDistrict(t *testing.T) {
	lr := NewLandRegistry(t.TempDir(), NewCache(time.Hour))
	if _, err := lr.Analytics("  "); err == nil {
		t.Error("expected error for empty district")
	}
}

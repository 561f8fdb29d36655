package enrich

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistry_EmbeddedFallback(t *testing.T) {
	t.Setenv("LAND_REGISTRY_DATA_DIR", "/srv/price-paid")

	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}

	if reg.LandRegistry.DataDir != "/srv/price-paid" {
		t.Errorf("data_dir = %q, env var not expanded", reg.LandRegistry.DataDir)
	}
	if reg.EPC.BaseURL == "" {
		t.Error("embedded registry should carry the EPC endpoint")
	}
}

func TestLoadRegistry_FileOverridesEmbedded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	override := `
land_registry:
  data_dir: /tmp/override-data
  cache_ttl: 1h
epc:
  base_url: https://epc.override.example/api
`
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}

	if reg.LandRegistry.DataDir != "/tmp/override-data" {
		t.Errorf("data_dir = %q, file should win over the embedded copy", reg.LandRegistry.DataDir)
	}
	if reg.LandRegistry.CacheTTL != "1h" {
		t.Errorf("cache_ttl = %q", reg.LandRegistry.CacheTTL)
	}
	if reg.EPC.BaseURL != "https://epc.override.example/api" {
		t.Errorf("epc base_url = %q", reg.EPC.BaseURL)
	}
}

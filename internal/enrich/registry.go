package enrich

import (
	"embed"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for the external enrichment sources.
type Registry struct {
	LandRegistry LandRegistryConfig `yaml:"land_registry"`
	EPC          EPCConfig          `yaml:"epc"`
	Places       PlacesConfig       `yaml:"places"`
}

type LandRegistryConfig struct {
	DataDir  string `yaml:"data_dir"`
	CacheTTL string `yaml:"cache_ttl,omitempty"` // Default: 24h
}

type EPCConfig struct {
	BaseURL  string `yaml:"base_url"`
	Email    string `yaml:"email,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	CacheTTL string `yaml:"cache_ttl,omitempty"` // Default: 6h
}

type PlacesConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key,omitempty"`
	CacheTTL string `yaml:"cache_ttl,omitempty"`
}

// LoadRegistry reads the sources file at path when one exists, so a local
// copy overrides the embedded sources.yaml. Environment variables in the
// YAML content (e.g. ${EPC_API_KEY}) are expanded before parsing.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
		if err != nil {
			return nil, err
		}
	}

	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, err
	}

	return &reg, nil
}

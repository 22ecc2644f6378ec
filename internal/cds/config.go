package cds

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultURL is the endpoint of the Climate Data Store.
const DefaultURL = "https://cds.climate.copernicus.eu/api"

// Config holds the endpoint and personal access token of the archive.
type Config struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

// DefaultConfigPath returns ~/.cdsapirc.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cdsapirc"
	}
	return filepath.Join(home, ".cdsapirc")
}

// LoadConfig reads the credentials file at path if it exists and applies
// the CDSAPI_URL and CDSAPI_KEY environment variables on top of it.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}
	if v := os.Getenv("CDSAPI_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("CDSAPI_KEY"); v != "" {
		cfg.Key = v
	}
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	cfg.Key = strings.TrimSpace(cfg.Key)
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Key == "" {
		return cfg, fmt.Errorf("no API key: set CDSAPI_KEY or add \"key:\" to %s", path)
	}
	return cfg, nil
}

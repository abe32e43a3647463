// Package config defines service configuration and its loading order:
// defaults, then an optional YAML file (SKYGLOW_CONFIG), then SKYGLOW_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/nocturna/skyglow-etl/internal/analysis"
	"github.com/nocturna/skyglow-etl/internal/domain"
)

// Config holds all service settings. Domain constants (clamp bounds,
// airmass exponent, thresholds) are configuration defaults to be validated
// empirically, not physical exactness baked into code.
type Config struct {
	DatabasePath string `koanf:"database_path"`
	HTTPAddr     string `koanf:"http_addr"`
	LogLevel     string `koanf:"log_level"`
	LogFormat    string `koanf:"log_format"`

	ShutdownTimeoutSeconds int `koanf:"shutdown_timeout_seconds"`

	// NASA CMR catalog access. The token is an explicit credential handed to
	// the catalog client, never a process-wide singleton.
	CMRToken          string `koanf:"cmr_token"`
	CMRTimeoutSeconds int    `koanf:"cmr_timeout_seconds"`
	CatalogCacheSize  int    `koanf:"catalog_cache_size"`

	// Optional Kafka publishing of ingested samples.
	KafkaBrokers   []string `koanf:"kafka_brokers"`
	KafkaSinkTopic string   `koanf:"kafka_sink_topic"`
	KafkaEnabled   bool     `koanf:"kafka_enabled"`

	// Analysis targets.
	Regions []domain.Region `koanf:"regions"`

	// Backfill orchestration.
	WindowMonths        int     `koanf:"window_months"`
	SearchPadDays       int     `koanf:"search_pad_days"`
	CloudCeilingPercent float64 `koanf:"cloud_ceiling_percent"`
	SyntheticFallback   bool    `koanf:"synthetic_fallback"`

	// Signal correction and conversion.
	Correction               domain.CorrectionConfig `koanf:"correction"`
	BrightnessVariant        string                  `koanf:"brightness_variant"` // "visual" or "calibrated"
	CloudConfidenceThreshold uint16                  `koanf:"cloud_confidence_threshold"`
	RadianceMin              float64                 `koanf:"radiance_min"`
	RadianceMax              float64                 `koanf:"radiance_max"`

	// Statistics.
	Trend  analysis.TrendConfig  `koanf:"trend"`
	Change analysis.ChangeConfig `koanf:"change"`

	GeoJSONSampleRate int `koanf:"geojson_sample_rate"`
}

// New returns the configuration defaults.
func New() *Config {
	return &Config{
		DatabasePath: "skyglow.db",
		HTTPAddr:     ":8080",
		LogLevel:     "info",
		LogFormat:    "json",

		ShutdownTimeoutSeconds: 10,

		CMRTimeoutSeconds: 30,
		CatalogCacheSize:  1000,

		KafkaBrokers:   []string{"localhost:9092"},
		KafkaSinkTopic: "brightness-samples",
		KafkaEnabled:   false,

		Regions: []domain.Region{
			{Name: "Lahore", Bounds: domain.BoundingBox{West: 73.5, South: 31.0, East: 75.0, North: 32.0}},
			{Name: "New York", Bounds: domain.BoundingBox{West: -74.3, South: 40.5, East: -73.5, North: 41.0}},
			{Name: "London", Bounds: domain.BoundingBox{West: -0.5, South: 51.3, East: 0.3, North: 51.7}},
			{Name: "Tokyo", Bounds: domain.BoundingBox{West: 139.3, South: 35.5, East: 140.0, North: 35.9}},
		},

		WindowMonths:        12,
		SearchPadDays:       7,
		CloudCeilingPercent: domain.DefaultCloudCoverCeilingPercent,
		SyntheticFallback:   true,

		Correction:               domain.DefaultCorrectionConfig(),
		BrightnessVariant:        "calibrated",
		CloudConfidenceThreshold: domain.DefaultCloudConfidenceThreshold,
		RadianceMin:              domain.DefaultRadianceBand.Min,
		RadianceMax:              domain.DefaultRadianceBand.Max,

		Trend:  analysis.DefaultTrendConfig(),
		Change: analysis.DefaultChangeConfig(),

		GeoJSONSampleRate: 1,
	}
}

// Load builds a Config by layering defaults, an optional YAML file, and
// environment variables. Precedence (low to high):
//  1. defaults (New)
//  2. YAML file named by SKYGLOW_CONFIG
//  3. env (prefix SKYGLOW_, e.g. SKYGLOW_DATABASE_PATH)
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv("SKYGLOW_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// SKYGLOW_WINDOW_MONTHS -> window_months. Underscores are preserved to
	// match the flat koanf tags; nested sections (correction, trend, change)
	// are file-only.
	envProvider := env.Provider("SKYGLOW_", ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), "skyglow_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading env: %w", err)
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabasePath == "" {
		return errors.New("database_path must not be empty")
	}
	if c.WindowMonths < 1 {
		return errors.New("window_months must be at least 1")
	}
	if len(c.Regions) == 0 {
		return errors.New("at least one region is required")
	}
	if c.BrightnessVariant != "visual" && c.BrightnessVariant != "calibrated" {
		return fmt.Errorf("unknown brightness_variant %q", c.BrightnessVariant)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("kafka_enabled is true but kafka_brokers is empty")
	}
	return nil
}

// ShutdownTimeout returns the graceful-shutdown budget.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// CMRTimeout returns the catalog request timeout. A timed-out search fails
// that month only, never the whole run.
func (c *Config) CMRTimeout() time.Duration {
	return time.Duration(c.CMRTimeoutSeconds) * time.Second
}

// Brightness resolves the configured conversion variant.
func (c *Config) Brightness() domain.BrightnessConfig {
	if c.BrightnessVariant == "visual" {
		return domain.VisualBrightness()
	}
	return domain.CalibratedBrightness()
}

// RadianceBand returns the plausibility band for quality filtering.
func (c *Config) RadianceBand() domain.RadianceBand {
	return domain.RadianceBand{Min: c.RadianceMin, Max: c.RadianceMax}
}

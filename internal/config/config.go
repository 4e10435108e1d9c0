package config

import (
	"fmt"
	"path/filepath"
	"time"

	"gdp-growth-pipeline/internal/model"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "GDP"

// Config is built once at startup and passed by value to every stage.
type Config struct {
	Analysis AnalysisConfig `ignored:"true"`
	RuntimeConfig
	Logging LoggingConfig `envconfig:"LOG"`
}

// AnalysisConfig describes what is analysed. It is compiled in and never
// read from the environment.
type AnalysisConfig struct {
	Indicator   string
	StartYear   int
	EndYear     int
	Economies   []model.Economy
	Seed        uint64
	CrisisYears []int
}

// RuntimeConfig holds where and how a run executes.
type RuntimeConfig struct {
	OutputDir    string        `envconfig:"OUTPUT_DIR" default:"output"`
	DatabasePath string        `envconfig:"DB_PATH"`
	SourceURL    string        `envconfig:"SOURCE_URL" default:"https://api.worldbank.org/v2"`
	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	Workbook     bool          `envconfig:"WORKBOOK" default:"true"`
	APIAddr      string        `envconfig:"API_ADDR" default:":8080"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"text"`
}

// DefaultAnalysis returns the ten major economies over 2000-2023.
func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		Indicator: "NY.GDP.MKTP.KD.ZG",
		StartYear: 2000,
		EndYear:   2023,
		Economies: []model.Economy{
			{Code: "USA", Name: "United States"},
			{Code: "CHN", Name: "China"},
			{Code: "JPN", Name: "Japan"},
			{Code: "DEU", Name: "Germany"},
			{Code: "IND", Name: "India"},
			{Code: "GBR", Name: "United Kingdom"},
			{Code: "FRA", Name: "France"},
			{Code: "BRA", Name: "Brazil"},
			{Code: "ITA", Name: "Italy"},
			{Code: "CAN", Name: "Canada"},
		},
		Seed:        42,
		CrisisYears: []int{2009, 2020},
	}
}

// Load reads runtime and logging settings from the environment on top of
// the compiled-in analysis.
func Load() (Config, error) {
	cfg := Config{Analysis: DefaultAnalysis()}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config from env: %w", err)
	}
	// run history lives next to the artifacts unless placed elsewhere
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.OutputDir, "runs.db")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	a := c.Analysis
	if a.Indicator == "" {
		return fmt.Errorf("indicator is required")
	}
	if a.StartYear > a.EndYear {
		return fmt.Errorf("start year %d is after end year %d", a.StartYear, a.EndYear)
	}
	if len(a.Economies) == 0 {
		return fmt.Errorf("at least one economy is required")
	}
	codes := make(map[string]bool, len(a.Economies))
	names := make(map[string]bool, len(a.Economies))
	for _, e := range a.Economies {
		if e.Code == "" || e.Name == "" {
			return fmt.Errorf("economy %+v needs both a code and a name", e)
		}
		if codes[e.Code] {
			return fmt.Errorf("duplicate economy code %s", e.Code)
		}
		if names[e.Name] {
			return fmt.Errorf("duplicate economy name %s", e.Name)
		}
		codes[e.Code] = true
		names[e.Name] = true
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %v", c.FetchTimeout)
	}
	return nil
}

// Years returns the inclusive analysis window.
func (a AnalysisConfig) Years() []int {
	return model.YearRange(a.StartYear, a.EndYear)
}

// CountryCodes returns the registry codes in configured order.
func (a AnalysisConfig) CountryCodes() []string {
	codes := make([]string, len(a.Economies))
	for i, e := range a.Economies {
		codes[i] = e.Code
	}
	return codes
}

// CountryNames returns the registry display names in configured order.
func (a AnalysisConfig) CountryNames() []string {
	names := make([]string, len(a.Economies))
	for i, e := range a.Economies {
		names[i] = e.Name
	}
	return names
}

package storage

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the non-secret part of the configuration, read from a YAML file.
type Settings struct {
	LogLevel string           `yaml:"log_level"`
	HTTPAddr string           `yaml:"http_addr"`
	Database DatabaseSettings `yaml:"database"`
	Venues   []VenueSettings  `yaml:"venues"`
}

type DatabaseSettings struct {
	// Driver is "postgres" or "sqlite".
	Driver string `yaml:"driver"`
}

// VenueSettings configures one engine instance for one market family.
type VenueSettings struct {
	Name          string        `yaml:"name"`
	QuoteURL      string        `yaml:"quote_url"`
	WebsocketURL  string        `yaml:"websocket_url"`
	GatewayURL    string        `yaml:"gateway_url"`
	DryRun        bool          `yaml:"dry_run"`
	TradeInterval time.Duration `yaml:"trade_interval"`
	AlertInterval time.Duration `yaml:"alert_interval"`
	MaxRetries    int           `yaml:"max_retries"`
	BaseDelay     time.Duration `yaml:"base_delay"`
	MinAmount     float64       `yaml:"min_amount"`
	QuoteTimeout  time.Duration `yaml:"quote_timeout"`
	TradeTimeout  time.Duration `yaml:"trade_timeout"`
	PriceMaxAge   time.Duration `yaml:"price_max_age"`
	PaperMaxFill  float64       `yaml:"paper_max_fill"` // dry-run fill cap, zero fills everything
}

const VenuePolymarket = "polymarket"

func DefaultSettings() Settings {
	return Settings{
		LogLevel: "info",
		HTTPAddr: ":5000",
		Database: DatabaseSettings{Driver: "postgres"},
		Venues:   []VenueSettings{DefaultVenueSettings(VenuePolymarket)},
	}
}

func DefaultVenueSettings(name string) VenueSettings {
	return VenueSettings{
		Name:          name,
		QuoteURL:      "https://clob.polymarket.com",
		DryRun:        true,
		TradeInterval: 10 * time.Second,
		AlertInterval: 30 * time.Second,
		MaxRetries:    3,
		BaseDelay:     3 * time.Second,
		MinAmount:     1,
		QuoteTimeout:  10 * time.Second,
		TradeTimeout:  30 * time.Second,
		PriceMaxAge:   time.Minute,
	}
}

// LoadSettings reads the YAML file at path. A missing file yields the defaults.
// Environment overrides are applied last.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Settings{}, fmt.Errorf("read settings: %w", err)
	default:
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return Settings{}, fmt.Errorf("parse settings: %w", err)
		}
	}

	for i := range settings.Venues {
		settings.Venues[i] = settings.Venues[i].withDefaults()
	}
	settings.applyEnvOverrides()

	return settings, settings.Validate()
}

func (settings *Settings) applyEnvOverrides() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		settings.LogLevel = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		settings.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("DRY_RUN")); v != "" {
		dryRun := strings.EqualFold(v, "1") || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
		for i := range settings.Venues {
			settings.Venues[i].DryRun = dryRun
		}
	}
}

func (venue VenueSettings) withDefaults() VenueSettings {
	defaults := DefaultVenueSettings(venue.Name)
	if venue.QuoteURL == "" {
		venue.QuoteURL = defaults.QuoteURL
	}
	if venue.TradeInterval == 0 {
		venue.TradeInterval = defaults.TradeInterval
	}
	if venue.AlertInterval == 0 {
		venue.AlertInterval = defaults.AlertInterval
	}
	if venue.MaxRetries == 0 {
		venue.MaxRetries = defaults.MaxRetries
	}
	if venue.BaseDelay == 0 {
		venue.BaseDelay = defaults.BaseDelay
	}
	if venue.MinAmount == 0 {
		venue.MinAmount = defaults.MinAmount
	}
	if venue.QuoteTimeout == 0 {
		venue.QuoteTimeout = defaults.QuoteTimeout
	}
	if venue.TradeTimeout == 0 {
		venue.TradeTimeout = defaults.TradeTimeout
	}
	if venue.PriceMaxAge == 0 {
		venue.PriceMaxAge = defaults.PriceMaxAge
	}
	return venue
}

func (settings Settings) Validate() error {
	if settings.Database.Driver != "postgres" && settings.Database.Driver != "sqlite" {
		return fmt.Errorf("unknown database driver %q", settings.Database.Driver)
	}
	if len(settings.Venues) == 0 {
		return fmt.Errorf("at least one venue must be configured")
	}

	seen := make(map[string]bool)
	for _, venue := range settings.Venues {
		if venue.Name == "" {
			return fmt.Errorf("venue name must be set")
		}
		if seen[venue.Name] {
			return fmt.Errorf("venue %s configured twice", venue.Name)
		}
		seen[venue.Name] = true

		if venue.TradeInterval <= 0 || venue.AlertInterval <= 0 {
			return fmt.Errorf("venue %s: intervals must be > 0", venue.Name)
		}
		if venue.MaxRetries <= 0 {
			return fmt.Errorf("venue %s: max retries must be > 0", venue.Name)
		}
		if venue.BaseDelay < 0 {
			return fmt.Errorf("venue %s: base delay must be >= 0", venue.Name)
		}
		if venue.MinAmount <= 0 {
			return fmt.Errorf("venue %s: min amount must be > 0", venue.Name)
		}
		if venue.PaperMaxFill < 0 {
			return fmt.Errorf("venue %s: paper max fill must be >= 0", venue.Name)
		}
		if !venue.DryRun && venue.GatewayURL == "" {
			return fmt.Errorf("venue %s: gateway url is required unless dry run", venue.Name)
		}
	}
	return nil
}

package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("DRY_RUN", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("HTTP_ADDR", "")
	settings, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultSettings(), settings)
}

func TestLoadSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `
log_level: debug
database:
  driver: sqlite
venues:
  - name: polymarket
    gateway_url: http://gateway.local
    dry_run: false
    paper_max_fill: 2.5
    trade_interval: 5s
    max_retries: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("DRY_RUN", "")
	t.Setenv("LOG_LEVEL", "")

	settings, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", settings.LogLevel)
	assert.Equal(t, ":8080", settings.HTTPAddr)
	assert.Equal(t, "sqlite", settings.Database.Driver)
	require.Len(t, settings.Venues, 1)

	venue := settings.Venues[0]
	assert.Equal(t, 5*time.Second, venue.TradeInterval)
	assert.Equal(t, 30*time.Second, venue.AlertInterval)
	assert.Equal(t, 4, venue.MaxRetries)
	assert.Equal(t, 3*time.Second, venue.BaseDelay)
	assert.Equal(t, 1.0, venue.MinAmount)
	assert.False(t, venue.DryRun)
	assert.Equal(t, 2.5, venue.PaperMaxFill)
}

func TestSettingsValidate(t *testing.T) {
	settings := DefaultSettings()
	settings.Venues[0].DryRun = false
	assert.Error(t, settings.Validate())

	settings = DefaultSettings()
	settings.Venues[0].PaperMaxFill = -1
	assert.Error(t, settings.Validate())

	settings = DefaultSettings()
	settings.Database.Driver = "mysql"
	assert.Error(t, settings.Validate())

	settings = DefaultSettings()
	settings.Venues = append(settings.Venues, DefaultVenueSettings(VenuePolymarket))
	assert.Error(t, settings.Validate())

	assert.NoError(t, DefaultSettings().Validate())
}

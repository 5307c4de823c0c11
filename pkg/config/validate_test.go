package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	cfg := &AppConfig{}
	cfg.DB.Name = "realestate"

	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.NotEmpty(t, warnings) // seed_file and checkpoint_file warnings

	assert.Equal(t, "freguesias_list.txt", cfg.Crawl.SeedFile)
	assert.Equal(t, "state/progress.json", cfg.Crawl.CheckpointFile)
	assert.Equal(t, 72, cfg.Crawl.PageSize)
	assert.Equal(t, 2*time.Second, cfg.Crawl.MinDelay)
	assert.Equal(t, 5*time.Second, cfg.Crawl.MaxDelay)
	assert.Equal(t, 3*time.Minute, cfg.Crawl.RetryDelay)
	assert.Equal(t, 100, cfg.Crawl.CooldownInterval)
	assert.Equal(t, 5, cfg.Crawl.LowYieldThreshold)
	assert.Equal(t, defaultListingPrefix, cfg.Crawl.ListingURLPrefix)
	assert.Contains(t, cfg.Crawl.AcceptLanguage, "pt-PT")
	assert.Equal(t, 20*time.Second, cfg.HTTPClientSettings.Timeout)
}

func TestValidate_DelayBoundsSwapped(t *testing.T) {
	cfg := &AppConfig{}
	cfg.DB.Name = "realestate"
	cfg.Crawl.MinDelay = 10 * time.Second
	cfg.Crawl.MaxDelay = 3 * time.Second

	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, cfg.Crawl.MinDelay, cfg.Crawl.MaxDelay)

	found := false
	for _, w := range warnings {
		if strings.Contains(w, "max_delay") {
			found = true
		}
	}
	assert.True(t, found, "expected a max_delay warning, got: %v", warnings)
}

func TestValidate_MissingDBName(t *testing.T) {
	cfg := &AppConfig{}

	_, err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_NAME")
}

func TestLoad_EnvOverlay(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "props")
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := Load("does-not-exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, "props", cfg.DB.Name)
	assert.Equal(t, "secret", cfg.DB.Password)
	assert.Equal(t, "5432", cfg.DB.Port)
	assert.Equal(t, "disable", cfg.DB.SSLMode)
}

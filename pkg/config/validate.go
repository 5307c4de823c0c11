package config

import (
	"fmt"
	"time"
)

const (
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	defaultAcceptLanguage = "pt-PT,pt;q=0.9,en-US;q=0.8,en;q=0.7"
	defaultReferer        = "https://www.imovirtual.com/"
	defaultListingPrefix  = "https://www.imovirtual.com/pt/anuncio/"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// Crawl workload files
	if c.Crawl.SeedFile == "" {
		warnings = append(warnings, "crawl.seed_file is empty, defaulting to 'freguesias_list.txt'")
		c.Crawl.SeedFile = "freguesias_list.txt"
	}
	if c.Crawl.CheckpointFile == "" {
		warnings = append(warnings, "crawl.checkpoint_file is empty, defaulting to 'state/progress.json'")
		c.Crawl.CheckpointFile = "state/progress.json"
	}

	// Request signature
	if c.Crawl.UserAgent == "" {
		c.Crawl.UserAgent = defaultUserAgent
	}
	if c.Crawl.AcceptLanguage == "" {
		c.Crawl.AcceptLanguage = defaultAcceptLanguage
	}
	if c.Crawl.Referer == "" {
		c.Crawl.Referer = defaultReferer
	}
	if c.Crawl.ListingURLPrefix == "" {
		c.Crawl.ListingURLPrefix = defaultListingPrefix
	}
	if c.Crawl.PageSize <= 0 {
		c.Crawl.PageSize = 72
	}

	// Pacing
	if c.Crawl.MinDelay <= 0 {
		c.Crawl.MinDelay = 2 * time.Second
	}
	if c.Crawl.MaxDelay <= 0 {
		c.Crawl.MaxDelay = 5 * time.Second
	}
	if c.Crawl.MaxDelay < c.Crawl.MinDelay {
		warnings = append(warnings, fmt.Sprintf(
			"crawl.max_delay (%v) < crawl.min_delay (%v), using min_delay for both",
			c.Crawl.MaxDelay, c.Crawl.MinDelay))
		c.Crawl.MaxDelay = c.Crawl.MinDelay
	}
	if c.Crawl.RetryDelay <= 0 {
		c.Crawl.RetryDelay = 3 * time.Minute
	}
	if c.Crawl.CooldownInterval <= 0 {
		c.Crawl.CooldownInterval = 100
	}
	if c.Crawl.CooldownDuration <= 0 {
		c.Crawl.CooldownDuration = 3 * time.Minute
	}
	if c.Crawl.LowYieldThreshold <= 0 {
		c.Crawl.LowYieldThreshold = 5
	}

	// HTTP client
	if c.HTTPClientSettings.Timeout <= 0 {
		c.HTTPClientSettings.Timeout = 20 * time.Second
	}
	if c.HTTPClientSettings.MaxIdleConns <= 0 {
		c.HTTPClientSettings.MaxIdleConns = 10
	}
	if c.HTTPClientSettings.MaxIdleConnsPerHost <= 0 {
		c.HTTPClientSettings.MaxIdleConnsPerHost = 2
	}
	if c.HTTPClientSettings.IdleConnTimeout <= 0 {
		c.HTTPClientSettings.IdleConnTimeout = 90 * time.Second
	}
	if c.HTTPClientSettings.TLSHandshakeTimeout <= 0 {
		c.HTTPClientSettings.TLSHandshakeTimeout = 10 * time.Second
	}
	if c.HTTPClientSettings.DialerTimeout <= 0 {
		c.HTTPClientSettings.DialerTimeout = 15 * time.Second
	}
	if c.HTTPClientSettings.DialerKeepAlive <= 0 {
		c.HTTPClientSettings.DialerKeepAlive = 30 * time.Second
	}

	// Database
	if c.DB.Host == "" {
		c.DB.Host = "localhost"
	}
	if c.DB.Port == "" {
		c.DB.Port = "5432"
	}
	if c.DB.Name == "" {
		return warnings, fmt.Errorf("database name is empty (set DB_NAME)")
	}

	return warnings, nil
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CrawlConfig holds the tunables of the crawl loop and the fixed request
// signature sent to the target site.
type CrawlConfig struct {
	SeedFile       string `yaml:"seed_file"`
	CheckpointFile string `yaml:"checkpoint_file"`

	UserAgent        string `yaml:"user_agent,omitempty"`
	AcceptLanguage   string `yaml:"accept_language,omitempty"`
	Referer          string `yaml:"referer,omitempty"`
	PageSize         int    `yaml:"page_size,omitempty"`
	ListingURLPrefix string `yaml:"listing_url_prefix,omitempty"` // canonical ad URL built from each item's slug

	MinDelay          time.Duration `yaml:"min_delay,omitempty"`          // lower bound of the randomized inter-page delay
	MaxDelay          time.Duration `yaml:"max_delay,omitempty"`          // upper bound (exclusive)
	RetryDelay        time.Duration `yaml:"retry_delay,omitempty"`        // fixed wait between retries of the same page
	CooldownInterval  int           `yaml:"cooldown_interval,omitempty"`  // pages between long cooldowns
	CooldownDuration  time.Duration `yaml:"cooldown_duration,omitempty"`  // length of the long cooldown
	LowYieldThreshold int           `yaml:"low_yield_threshold,omitempty"` // record count below which a page>1 looks like a recommendations page
}

// DBConfig holds Postgres connection settings. These come from the
// environment, never from the config file, so credentials stay out of
// checked-in YAML.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// HTTPClientConfig holds settings for the shared HTTP client.
type HTTPClientConfig struct {
	Timeout             time.Duration `yaml:"timeout,omitempty"` // overall request timeout
	MaxIdleConns        int           `yaml:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host,omitempty"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	DialerTimeout       time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive     time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// AppConfig is the root application configuration.
type AppConfig struct {
	Crawl              CrawlConfig      `yaml:"crawl"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	DB                 DBConfig         `yaml:"-"`
}

// Load reads the YAML config file and overlays the database settings from
// the environment. A missing file is not an error: every field has a
// default applied by Validate, so a bare deployment can run on env vars
// alone.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.DB = dbFromEnv()
	return &cfg, nil
}

// dbFromEnv reads Postgres settings, defaulting to a local instance.
func dbFromEnv() DBConfig {
	return DBConfig{
		Host:     envOr("DB_HOST", "localhost"),
		Port:     envOr("DB_PORT", "5432"),
		User:     envOr("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     os.Getenv("DB_NAME"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"imoscraper/pkg/config"
	"imoscraper/pkg/models"
	"imoscraper/pkg/utils"
)

// PostgresSink stores listings in a Postgres table keyed by listing URL.
type PostgresSink struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewPostgresSink opens a connection pool and verifies it with a ping.
func NewPostgresSink(ctx context.Context, cfg config.DBConfig, log *logrus.Logger) (*PostgresSink, error) {
	dsn := buildDSN(cfg)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: creating pool: %v", utils.ErrDatabase, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: connecting: %v", utils.ErrDatabase, err)
	}

	return &PostgresSink{pool: pool, log: log}, nil
}

// buildDSN assembles the pool DSN, escaping credentials.
func buildDSN(cfg config.DBConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		cfg.Name,
		cfg.SSLMode,
	)
}

// EnsureSchema creates the properties table and its indexes if absent.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	sql := `
	CREATE TABLE IF NOT EXISTS properties (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		price BIGINT NOT NULL DEFAULT 0,
		raw_location TEXT,
		district TEXT,
		municipality TEXT,
		parish TEXT,
		area_m2 DOUBLE PRECISION,
		room_count INT,
		url TEXT NOT NULL UNIQUE,
		scraped_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_properties_price ON properties(price);
	CREATE INDEX IF NOT EXISTS idx_properties_location ON properties(district, municipality, parish);
	`

	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("%w: ensuring schema: %v", utils.ErrDatabase, err)
	}
	return nil
}

const upsertSQL = `
INSERT INTO properties (title, price, raw_location, district, municipality, parish, area_m2, room_count, url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (url) DO UPDATE
SET price = EXCLUDED.price,
    scraped_at = NOW();
`

// UpsertBatch stores one page's listings in a single batched round trip.
// On URL conflict only price and scraped_at move: attribution fields keep
// their first-seen values.
func (s *PostgresSink) UpsertBatch(ctx context.Context, listings []models.Listing, task models.CrawlTask) error {
	valid := filterValid(listings)
	if len(valid) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	batch := &pgx.Batch{}
	for _, l := range valid {
		batch.Queue(upsertSQL,
			l.Title,
			l.Price,
			l.RawLocation,
			task.District,
			task.Municipality,
			task.Parish,
			l.AreaM2,
			l.Rooms,
			l.URL,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(valid); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("%w: upsert failed at row %d: %v", utils.ErrDatabase, i, err)
		}
	}
	return nil
}

// Close releases the pool.
func (s *PostgresSink) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// filterValid drops listings that cannot be keyed: without a URL there is
// nothing to upsert against.
func filterValid(listings []models.Listing) []models.Listing {
	valid := listings[:0:0]
	for _, l := range listings {
		if strings.TrimSpace(l.URL) == "" {
			continue
		}
		valid = append(valid, l)
	}
	return valid
}

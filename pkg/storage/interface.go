package storage

import (
	"context"

	"imoscraper/pkg/models"
)

// ListingSink durably stores extracted listings keyed by listing URL.
// Upserts are last-write-wins on price and scrape timestamp; geographic
// attribution is written on first insert and left untouched on conflict.
type ListingSink interface {
	// EnsureSchema creates the backing table and indexes if absent.
	EnsureSchema(ctx context.Context) error

	// UpsertBatch stores one page's listings with the task's location
	// context. Listings without a URL are skipped. The whole batch shares
	// one round trip; an error means the page's records may not be stored.
	UpsertBatch(ctx context.Context, listings []models.Listing, task models.CrawlTask) error

	// Close releases the underlying connections.
	Close()
}

// Factory opens a fresh sink. The crawl loop closes and reopens its sink
// on the periodic cooldown, so construction has to be repeatable.
type Factory func(ctx context.Context) (ListingSink, error)

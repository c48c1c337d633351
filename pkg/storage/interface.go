package storage

import (
	"context"
	"time"

	"content-loader/pkg/models"
)

// PageStore handles per-slug build records
type PageStore interface {
	// GetPageRecord retrieves the status and record stored for a slug.
	// Returns PageStatusNotFound with a nil record when the slug was never built,
	// and PageStatusDBError together with the error when the lookup failed.
	GetPageRecord(slug string) (status models.PageStatus, record *models.PageRecord, err error)

	// UpdatePageRecord stores the record for a slug, replacing any previous one
	UpdatePageRecord(slug string, record *models.PageRecord) error

	// GetPageContentHash returns the hash of the last exported content for a slug
	GetPageContentHash(slug string) (hash string, exists bool, err error)

	// DeletePageRecord removes the record of a slug; a missing slug is not an error
	DeletePageRecord(slug string) error
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// GetPageCount returns the number of slugs held in the store
	GetPageCount() (int, error)

	// ListSlugs returns every stored slug in key order
	ListSlugs(ctx context.Context) ([]string, error)

	// WriteSlugLog writes all stored slugs, one per line, to filePath
	WriteSlugLog(ctx context.Context, filePath string) error

	// RunGC runs periodic value log garbage collection until ctx is done
	RunGC(ctx context.Context, interval time.Duration)

	Close() error
}

// BuildStore combines both interfaces for the exporter
type BuildStore interface {
	PageStore
	StoreAdmin
}

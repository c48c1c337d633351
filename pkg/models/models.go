package models

import (
	"time"

	"content-loader/pkg/toc"
)

// PageRecord stores the result of exporting a page slug in the build database
type PageRecord struct {
	Status      PageStatus `json:"status"`                 // "exported", "unchanged" or "failure"
	ContentHash string     `json:"content_hash,omitempty"` // SHA-256 of front matter and body
	Title       string     `json:"title,omitempty"`
	TokenCount  int        `json:"token_count,omitempty"`
	ErrorType   string     `json:"error_type,omitempty"`   // Error category (on failure)
	ProcessedAt time.Time  `json:"processed_at,omitempty"` // Timestamp of the last successful export
	LastAttempt time.Time  `json:"last_attempt"`           // Timestamp of the last export attempt
}

// BuildMetadata holds all metadata for a single build of a collection.
type BuildMetadata struct {
	RunID                   string                 `yaml:"run_id"`
	CollectionKey           string                 `yaml:"collection_key"`
	ContentRoot             string                 `yaml:"content_root"`
	BuildStartTime          time.Time              `yaml:"build_start_time"`
	BuildEndTime            time.Time              `yaml:"build_end_time"`
	TotalPages              int                    `yaml:"total_pages"`
	PagesExported           int                    `yaml:"pages_exported"`
	PagesUnchanged          int                    `yaml:"pages_unchanged"`
	PagesRemoved            int                    `yaml:"pages_removed,omitempty"`            // Stale slugs dropped from the build store
	CollectionConfiguration map[string]interface{} `yaml:"collection_configuration,omitempty"` // For a flexible dump of CollectionConfig
	Pages                   []PageMetadata         `yaml:"pages"`
}

// PageMetadata holds metadata for a single loaded page.
type PageMetadata struct {
	Slug        string    `yaml:"slug"`
	Title       string    `yaml:"title,omitempty"`
	Status      string    `yaml:"status"`
	ProcessedAt time.Time `yaml:"processed_at"`
	ContentHash string    `yaml:"content_hash,omitempty"`
	TocEntries  int       `yaml:"toc_entries"`
	TokenCount  int       `yaml:"token_count,omitempty"`
}

// PageJSONL is one line of the JSONL page export
type PageJSONL struct {
	Slug        string         `json:"slug"`
	Title       string         `json:"title,omitempty"`
	FrontMatter map[string]any `json:"frontmatter"`
	Content     string         `json:"content"`
	TocItems    []toc.Item     `json:"tocItems"`
	ContentHash string         `json:"content_hash"`
	ExportedAt  string         `json:"exported_at"`
	TokenCount  int            `json:"token_count,omitempty"`
}

// ChunkJSONL is one line of the RAG chunk export
type ChunkJSONL struct {
	Slug             string   `json:"slug"`
	ChunkIndex       int      `json:"chunk_index"`
	Content          string   `json:"content"`
	HeadingHierarchy []string `json:"heading_hierarchy,omitempty"`
	Anchor           string   `json:"anchor,omitempty"` // TOC id of the closest heading
	TokenCount       int      `json:"token_count"`
	PageTitle        string   `json:"page_title,omitempty"`
	ExportedAt       string   `json:"exported_at"`
}

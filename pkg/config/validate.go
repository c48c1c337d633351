package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"content-loader/pkg/content"
	"content-loader/pkg/process"
	"content-loader/pkg/toc"
	"content-loader/pkg/utils"
)

// Load reads and parses a YAML config file without validating it.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w: %w", utils.ErrParsing, err)
	}

	return &cfg, nil
}

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// OutputBaseDir
	if c.OutputBaseDir == "" {
		warnings = append(warnings, "output_base_dir is empty, defaulting to './build'")
		c.OutputBaseDir = "./build"
	}

	// StateDir
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './build_state'")
		c.StateDir = "./build_state"
	}

	// MaxParallelCollections
	if c.MaxParallelCollections <= 0 {
		c.MaxParallelCollections = 2
	}

	// BuildTimeout
	if c.BuildTimeout < 0 {
		warnings = append(warnings, "build_timeout cannot be negative, disabling timeout")
		c.BuildTimeout = 0
	}

	// StoreGCInterval
	if c.StoreGCInterval <= 0 {
		c.StoreGCInterval = 10 * time.Minute
	}

	// Token encoding
	if !process.IsSupportedEncoding(c.TokenEncoding) {
		warnings = append(warnings, fmt.Sprintf("unknown token_encoding '%s' (supported: %v), using '%s'",
			c.TokenEncoding, process.SupportedEncodings(), process.DefaultEncoding))
		c.TokenEncoding = ""
	}
	if c.TokenEncoding == "" {
		c.TokenEncoding = process.DefaultEncoding
	}

	// JSONL filename
	if c.EnableJSONLOutput && c.JSONLOutputFilename == "" {
		warnings = append(warnings,
			"Global 'enable_jsonl_output' is true but 'jsonl_output_filename' is empty. "+
				"Defaulting to 'pages.jsonl'")
		c.JSONLOutputFilename = "pages.jsonl"
	}

	// Metadata YAML filename
	if c.EnableMetadataYAML && c.MetadataYAMLFilename == "" {
		warnings = append(warnings,
			"Global 'enable_metadata_yaml' is true but 'metadata_yaml_filename' is empty. "+
				"Defaulting to 'metadata.yaml'")
		c.MetadataYAMLFilename = "metadata.yaml"
	}

	// Chunking defaults
	ch := &c.Chunking
	if ch.MaxChunkSize <= 0 {
		ch.MaxChunkSize = 512
	}
	if ch.ChunkOverlap < 0 {
		warnings = append(warnings, "chunking.chunk_overlap cannot be negative, setting to 0")
		ch.ChunkOverlap = 0
	}
	if ch.ChunkOverlap >= ch.MaxChunkSize {
		warnings = append(warnings, fmt.Sprintf(
			"chunking.chunk_overlap (%d) >= max_chunk_size (%d), using max_chunk_size/10",
			ch.ChunkOverlap, ch.MaxChunkSize))
		ch.ChunkOverlap = ch.MaxChunkSize / 10
	}
	if ch.OutputFilename == "" {
		ch.OutputFilename = "chunks.jsonl"
	}

	if len(c.Collections) == 0 {
		warnings = append(warnings, "no collections configured")
	}

	return warnings, nil // AppConfig validation never fails fatally
}

// Validate checks CollectionConfig fields and applies defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place (e.g., allow-list normalization).
func (c *CollectionConfig) Validate() (warnings []string, err error) {
	// Required: ContentDir
	if strings.TrimSpace(c.ContentDir) == "" {
		return nil, fmt.Errorf("%w: collection needs content_dir", utils.ErrConfigValidation)
	}

	// Required: at least one allowed page
	if len(c.AllowedPages) == 0 && !c.UseDefaultAllowList {
		return nil, fmt.Errorf("%w: collection needs allowed_pages or use_default_allow_list", utils.ErrConfigValidation)
	}

	// AllowedPages normalization
	normalized := make([]string, 0, len(c.AllowedPages))
	for _, p := range c.AllowedPages {
		p = strings.TrimSpace(p)
		if p == "" {
			warnings = append(warnings, "empty allowed_pages entry ignored")
			continue
		}
		if p[0] != '/' {
			p = "/" + p
		}
		normalized = append(normalized, p)
	}
	c.AllowedPages = normalized

	// MatchMode
	if !content.MatchMode(c.MatchMode).Valid() {
		return nil, fmt.Errorf("%w: unknown match_mode '%s' (supported: substring, prefix)",
			utils.ErrConfigValidation, c.MatchMode)
	}
	if c.MatchMode == "" {
		c.MatchMode = string(content.MatchSubstring)
	}

	// Extension
	if c.Extension == "" {
		c.Extension = content.DefaultExtension
	} else if !strings.HasPrefix(c.Extension, ".") {
		c.Extension = "." + c.Extension
	}

	if c.LocaleDir == "" {
		c.LocaleDir = content.DefaultLocaleDir
	}
	if c.IndexFile == "" {
		c.IndexFile = content.DefaultIndexFile
	}

	// TOC depth range
	if c.TocMinDepth == 0 {
		c.TocMinDepth = toc.DefaultMinDepth
	}
	if c.TocMaxDepth == 0 {
		c.TocMaxDepth = toc.DefaultMaxDepth
	}
	if c.TocMinDepth < 1 || c.TocMaxDepth > 6 || c.TocMinDepth > c.TocMaxDepth {
		return nil, fmt.Errorf("%w: invalid toc depth range %d..%d (must be within 1..6)",
			utils.ErrConfigValidation, c.TocMinDepth, c.TocMaxDepth)
	}

	return warnings, nil
}

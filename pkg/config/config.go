package config

import (
	"time"

	"content-loader/pkg/content"
	"content-loader/pkg/toc"
)

// DefaultAllowedPages is the built-in list of published content pages.
// When a page is migrated it is added here; collections opt in with use_default_allow_list.
var DefaultAllowedPages = []string{
	"/about",
	"/bridges",
	"/community/code-of-conduct",
	"/community/events",
	"/community/support",
	"/energy-consumption",
	"/glossary",
	"/governance",
	"/guides/how-to-swap-tokens",
	"/history/",
	"/smart-contracts",
	"/whitepaper",
	"/defi",
	"/nft",
	"/dao",
	"/desci",
	"/refi",
	"/social-networks",
	"/decentralized-identity",
	"/roadmap",
	"/roadmap/future-proofing",
	"/roadmap/scaling",
	"/roadmap/security",
	"/roadmap/user-experience",
	"/roadmap/merge",
	"/roadmap/beacon-chain",
	"/roadmap/danksharding",
	"/roadmap/account-abstraction",
	"/roadmap/pbs",
	"/roadmap/single-slot-finality",
	"/roadmap/statelessness",
	"/roadmap/verkle-trees",
	"/developers/tutorials/all-you-can-cache",
}

// CollectionConfig holds configuration specific to a single content tree
type CollectionConfig struct {
	ContentDir           string   `yaml:"content_dir"`
	AllowedPages         []string `yaml:"allowed_pages,omitempty"`
	UseDefaultAllowList  bool     `yaml:"use_default_allow_list,omitempty"`
	LocaleDir            string   `yaml:"locale_dir,omitempty"`
	IndexFile            string   `yaml:"index_file,omitempty"`
	Extension            string   `yaml:"extension,omitempty"`
	MatchMode            string   `yaml:"match_mode,omitempty"` // "substring" (default) or "prefix"
	TocMinDepth          int      `yaml:"toc_min_depth,omitempty"`
	TocMaxDepth          int      `yaml:"toc_max_depth,omitempty"`
	EnableJSONLOutput    *bool    `yaml:"enable_jsonl_output,omitempty"`
	JSONLOutputFilename  string   `yaml:"jsonl_output_filename,omitempty"`
	EnableMetadataYAML   *bool    `yaml:"enable_metadata_yaml,omitempty"`
	MetadataYAMLFilename string   `yaml:"metadata_yaml_filename,omitempty"`
	EnableChunking       *bool    `yaml:"enable_chunking,omitempty"`
}

// ChunkingConfig controls RAG chunk export
type ChunkingConfig struct {
	Enabled        bool   `yaml:"enabled,omitempty"`
	MaxChunkSize   int    `yaml:"max_chunk_size,omitempty"` // In tokens
	ChunkOverlap   int    `yaml:"chunk_overlap,omitempty"`  // In tokens
	OutputFilename string `yaml:"output_filename,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	OutputBaseDir          string                       `yaml:"output_base_dir"`
	StateDir               string                       `yaml:"state_dir"`
	MaxParallelCollections int                          `yaml:"max_parallel_collections,omitempty"`
	BuildTimeout           time.Duration                `yaml:"build_timeout,omitempty"` // 0 = no timeout
	StoreGCInterval        time.Duration                `yaml:"store_gc_interval,omitempty"`
	TokenEncoding          string                       `yaml:"token_encoding,omitempty"`
	EnableTokenCounting    bool                         `yaml:"enable_token_counting,omitempty"`
	EnableJSONLOutput      bool                         `yaml:"enable_jsonl_output,omitempty"`
	JSONLOutputFilename    string                       `yaml:"jsonl_output_filename,omitempty"`
	EnableMetadataYAML     bool                         `yaml:"enable_metadata_yaml,omitempty"`
	MetadataYAMLFilename   string                       `yaml:"metadata_yaml_filename,omitempty"`
	EnableSlugTree         bool                         `yaml:"enable_slug_tree,omitempty"`
	Chunking               ChunkingConfig               `yaml:"chunking,omitempty"`
	Collections            map[string]*CollectionConfig `yaml:"collections"`
}

// LoaderConfig converts the collection settings into a content.Config.
func (c *CollectionConfig) LoaderConfig() content.Config {
	allowed := c.AllowedPages
	if c.UseDefaultAllowList {
		allowed = append(append([]string(nil), DefaultAllowedPages...), c.AllowedPages...)
	}
	return content.Config{
		Root:      c.ContentDir,
		AllowList: content.NewAllowList(allowed...),
		LocaleDir: c.LocaleDir,
		IndexFile: c.IndexFile,
		Extension: c.Extension,
		MatchMode: content.MatchMode(c.MatchMode),
		TOC:       toc.Options{MinDepth: c.TocMinDepth, MaxDepth: c.TocMaxDepth},
	}
}

// GetEffectiveEnableJSONLOutput determines if pages should be exported as JSONL
func GetEffectiveEnableJSONLOutput(colCfg *CollectionConfig, appCfg *AppConfig) bool {
	if colCfg.EnableJSONLOutput != nil {
		return *colCfg.EnableJSONLOutput
	}
	return appCfg.EnableJSONLOutput
}

// GetEffectiveJSONLOutputFilename determines the JSONL filename
// Collection config (if non-empty) overrides global
func GetEffectiveJSONLOutputFilename(colCfg *CollectionConfig, appCfg *AppConfig) string {
	if colCfg.JSONLOutputFilename != "" {
		return colCfg.JSONLOutputFilename
	}
	if appCfg.JSONLOutputFilename != "" {
		return appCfg.JSONLOutputFilename
	}
	return "pages.jsonl"
}

// GetEffectiveEnableMetadataYAML determines if YAML metadata should be generated.
func GetEffectiveEnableMetadataYAML(colCfg *CollectionConfig, appCfg *AppConfig) bool {
	if colCfg.EnableMetadataYAML != nil {
		return *colCfg.EnableMetadataYAML
	}
	return appCfg.EnableMetadataYAML
}

// GetEffectiveMetadataYAMLFilename determines the filename for the YAML metadata.
func GetEffectiveMetadataYAMLFilename(colCfg *CollectionConfig, appCfg *AppConfig) string {
	if colCfg.MetadataYAMLFilename != "" {
		return colCfg.MetadataYAMLFilename
	}
	if appCfg.MetadataYAMLFilename != "" {
		return appCfg.MetadataYAMLFilename
	}
	return "metadata.yaml"
}

// GetEffectiveChunkingEnabled determines if chunk export is on for a collection
func GetEffectiveChunkingEnabled(colCfg *CollectionConfig, appCfg *AppConfig) bool {
	if colCfg.EnableChunking != nil {
		return *colCfg.EnableChunking
	}
	return appCfg.Chunking.Enabled
}

// GetEffectiveChunksFilename returns the chunks output filename
func GetEffectiveChunksFilename(appCfg *AppConfig) string {
	if appCfg.Chunking.OutputFilename != "" {
		return appCfg.Chunking.OutputFilename
	}
	return "chunks.jsonl"
}

package content

import (
	"fmt"
	"strings"

	"content-loader/pkg/toc"
	"content-loader/pkg/utils"
)

const (
	DefaultLocaleDir = "translations"
	DefaultIndexFile = "index.md"
	DefaultExtension = ".md"
)

// MatchMode selects how allow-list entries are compared with file paths.
type MatchMode string

const (
	// MatchSubstring accepts a file when its full path contains root+entry anywhere.
	MatchSubstring MatchMode = "substring"
	// MatchPrefix accepts a file only when its root-relative path is the entry
	// or lies below it at a path-segment boundary.
	MatchPrefix MatchMode = "prefix"
)

// Valid reports whether m is a known mode. The empty mode is treated as MatchSubstring.
func (m MatchMode) Valid() bool {
	switch m {
	case "", MatchSubstring, MatchPrefix:
		return true
	}
	return false
}

// AllowList is an immutable set of published path prefixes such as "/about" or "/history/".
type AllowList struct {
	entries []string
}

// NewAllowList copies entries, dropping blanks. Order is preserved.
func NewAllowList(entries ...string) AllowList {
	kept := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e) == "" {
			continue
		}
		kept = append(kept, e)
	}
	return AllowList{entries: kept}
}

// Entries returns a copy of the allow-list entries.
func (a AllowList) Entries() []string {
	return append([]string(nil), a.entries...)
}

// Len returns the number of entries.
func (a AllowList) Len() int {
	return len(a.entries)
}

// Config is everything a Loader needs. It is copied into the Loader on construction.
type Config struct {
	Root      string      // Content root directory
	AllowList AllowList   // Published path prefixes
	LocaleDir string      // Directory name whose subtrees are never listed
	IndexFile string      // File name backing a slug directory
	Extension string      // Extension marking a markdown file
	MatchMode MatchMode   // How allow-list entries are matched
	TOC       toc.Options // Heading depth range for table-of-contents extraction
}

// withDefaults fills empty fields and checks the rest.
func (c Config) withDefaults() (Config, error) {
	if strings.TrimSpace(c.Root) == "" {
		return c, utils.WrapErrorf(utils.ErrConfigValidation, "content root is empty")
	}
	if !c.MatchMode.Valid() {
		return c, utils.WrapErrorf(utils.ErrConfigValidation, "unknown match mode '%s'", c.MatchMode)
	}
	if c.MatchMode == "" {
		c.MatchMode = MatchSubstring
	}
	if c.LocaleDir == "" {
		c.LocaleDir = DefaultLocaleDir
	}
	if c.IndexFile == "" {
		c.IndexFile = DefaultIndexFile
	}
	if c.Extension == "" {
		c.Extension = DefaultExtension
	} else if !strings.HasPrefix(c.Extension, ".") {
		c.Extension = "." + c.Extension
	}
	if c.TOC.MinDepth > 0 && c.TOC.MaxDepth > 0 && c.TOC.MinDepth > c.TOC.MaxDepth {
		return c, fmt.Errorf("%w: toc min depth %d > max depth %d",
			utils.ErrConfigValidation, c.TOC.MinDepth, c.TOC.MaxDepth)
	}
	return c, nil
}

package toc

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	whitespaceRun    = regexp.MustCompile(`\s+`)                  // Runs of whitespace collapse into one hyphen
	invalidSlugChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_-]`) // Anything but letters, marks, digits, '_' and '-' is dropped
)

// fallbackSlug is used when a heading produces no anchor-safe characters at all.
const fallbackSlug = "section"

// Slugify converts heading text into a URL-fragment-safe identifier.
// Letters of any script are kept lowercased, as GitHub heading anchors do;
// punctuation and symbols are dropped.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = whitespaceRun.ReplaceAllString(s, "-")
	return invalidSlugChars.ReplaceAllString(s, "")
}

// Slugger hands out identifiers that are unique within one document.
// A Slugger is not safe for concurrent use; create one per document.
type Slugger struct {
	seen map[string]struct{}
}

// NewSlugger returns an empty Slugger.
func NewSlugger() *Slugger {
	return &Slugger{seen: make(map[string]struct{})}
}

// Slug derives an identifier from title and reserves it.
// Collisions get a numeric suffix: "setup", "setup-1", "setup-2", ...
func (s *Slugger) Slug(title string) string {
	base := Slugify(title)
	if base == "" {
		base = fallbackSlug
	}

	id := base
	for n := 1; ; n++ {
		if _, taken := s.seen[id]; !taken {
			break
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
	s.seen[id] = struct{}{}
	return id
}

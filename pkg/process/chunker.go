package process

import (
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"content-loader/pkg/content"
	"content-loader/pkg/toc"
)

// Chunk represents a single chunk of a page body with its metadata.
type Chunk struct {
	Content          string   // The chunk content (includes heading context when HeadingHierarchy is enabled)
	HeadingHierarchy []string // Headings found in the chunk, outermost first
	Anchor           string   // TOC id of the innermost heading, if it is in the outline
	TokenCount       int      // -1 when the tokenizer is not initialized
}

// ChunkerConfig holds configuration for the chunker.
type ChunkerConfig struct {
	MaxChunkSize int // Maximum chunk size in tokens (triggers recursive split if exceeded)
	ChunkOverlap int // Overlap between chunks in tokens (for recursive fallback)
}

// DefaultChunkerConfig returns defaults for RAG chunking.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxChunkSize: 512,
		ChunkOverlap: 50,
	}
}

var (
	headingRegex  = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	headingAttrRe = regexp.MustCompile(`\s*\{#([^}\s]+)\}\s*$`)
	closingHashRe = regexp.MustCompile(`\s+#+\s*$`)
)

// ChunkMarkdown splits markdown content into chunks:
// 1. Primary: Split by markdown headers, preserving heading hierarchy
// 2. Fallback: If any chunk exceeds MaxChunkSize, apply recursive character splitting
//
// Chunk sizes are measured in tokens, estimated when no tokenizer is initialized.
func ChunkMarkdown(markdown string, cfg ChunkerConfig) ([]Chunk, error) {
	if strings.TrimSpace(markdown) == "" {
		return nil, nil
	}

	recursiveSplitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.MaxChunkSize),
		textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		textsplitter.WithLenFunc(EstimateTokens),
	)

	splitter := textsplitter.NewMarkdownTextSplitter(
		textsplitter.WithHeadingHierarchy(true),
		textsplitter.WithChunkSize(cfg.MaxChunkSize),
		textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		textsplitter.WithSecondSplitter(recursiveSplitter),
		textsplitter.WithLenFunc(EstimateTokens),
	)

	parts, err := splitter.SplitText(markdown)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Content:          part,
			HeadingHierarchy: extractHeadingHierarchy(part),
			TokenCount:       CountTokens(part),
		})
	}

	return chunks, nil
}

// ChunkPage chunks the body of page and links every chunk to the TOC entry
// of its innermost heading.
func ChunkPage(page content.PageContent, cfg ChunkerConfig) ([]Chunk, error) {
	chunks, err := ChunkMarkdown(page.Content, cfg)
	if err != nil {
		return nil, err
	}
	index := newAnchorIndex(page.TocItems)
	for i := range chunks {
		if h := chunks[i].HeadingHierarchy; len(h) > 0 {
			chunks[i].Anchor = index.lookup(h[len(h)-1])
		}
	}
	return chunks, nil
}

// extractHeadingHierarchy extracts the heading texts of a chunk in document order.
// Explicit {#id} anchors and closing hash sequences are removed.
func extractHeadingHierarchy(content string) []string {
	matches := headingRegex.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	hierarchy := make([]string, 0, len(matches))
	for _, match := range matches {
		heading := closingHashRe.ReplaceAllString(match[2], "")
		heading = strings.TrimSpace(headingAttrRe.ReplaceAllString(heading, ""))
		if heading != "" {
			hierarchy = append(hierarchy, heading)
		}
	}
	return hierarchy
}

type anchorIndex struct {
	byTitle map[string]string
	ids     map[string]bool
}

func newAnchorIndex(items []toc.Item) anchorIndex {
	idx := anchorIndex{byTitle: map[string]string{}, ids: map[string]bool{}}
	for _, item := range toc.Flatten(items) {
		if _, seen := idx.byTitle[item.Title]; !seen {
			idx.byTitle[item.Title] = item.ID
		}
		idx.ids[item.ID] = true
	}
	return idx
}

// lookup resolves a heading text to a TOC id: exact title first, then
// its derived slug. Headings outside the outline's depth range resolve to "".
func (idx anchorIndex) lookup(heading string) string {
	if id, ok := idx.byTitle[heading]; ok {
		return id
	}
	if id := toc.Slugify(heading); idx.ids[id] {
		return id
	}
	return ""
}

package process

import (
	"strings"
	"testing"

	"content-loader/pkg/content"
	"content-loader/pkg/toc"
)

func TestChunkMarkdown_Empty(t *testing.T) {
	for _, input := range []string{"", "  \n\n"} {
		chunks, err := ChunkMarkdown(input, DefaultChunkerConfig())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chunks) != 0 {
			t.Errorf("expected 0 chunks for %q, got %d", input, len(chunks))
		}
	}
}

func TestChunkMarkdown_SingleSmallChunk(t *testing.T) {
	markdown := `## Hello

This is a small document.`

	chunks, err := ChunkMarkdown(markdown, DefaultChunkerConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for small document, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "Hello") {
		t.Errorf("expected chunk to contain 'Hello', got: %s", chunks[0].Content)
	}
}

func TestChunkMarkdown_HeaderHierarchy(t *testing.T) {
	markdown := `# Main Title

Introduction paragraph.

## Section One

Content for section one.

### Subsection 1.1

More detailed content here.

## Section Two

Content for section two.
`

	chunks, err := ChunkMarkdown(markdown, ChunkerConfig{MaxChunkSize: 100, ChunkOverlap: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Errorf("expected multiple chunks, got %d", len(chunks))
	}

	foundWithHierarchy := false
	for _, chunk := range chunks {
		if len(chunk.HeadingHierarchy) > 0 {
			foundWithHierarchy = true
			break
		}
	}
	if !foundWithHierarchy {
		t.Error("expected at least one chunk with heading hierarchy")
	}
}

func TestChunkMarkdown_TokenCount(t *testing.T) {
	resetTokenizer()
	if err := InitTokenizer("cl100k_base"); err != nil {
		t.Fatalf("failed to initialize tokenizer: %v", err)
	}

	chunks, err := ChunkMarkdown("## Staking\n\nValidators stake 32 ETH to participate.\n", DefaultChunkerConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least 1 chunk")
	}
	if chunks[0].TokenCount <= 0 {
		t.Errorf("expected positive token count, got %d", chunks[0].TokenCount)
	}
}

func TestChunkMarkdown_LargeDocument(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("# Large Document\n\n")
	for i := range 50 {
		sb.WriteString("## Section ")
		sb.WriteString(string(rune('A' + i%26)))
		sb.WriteString("\n\n")
		sb.WriteString("This is paragraph content that adds up to create a larger document. ")
		sb.WriteString("We need enough text to trigger the chunking logic and split into multiple chunks. ")
		sb.WriteString("The quick brown fox jumps over the lazy dog repeatedly.\n\n")
	}

	chunks, err := ChunkMarkdown(sb.String(), ChunkerConfig{MaxChunkSize: 100, ChunkOverlap: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 5 {
		t.Errorf("expected many chunks for large document, got %d", len(chunks))
	}
}

func TestChunkPage_Anchors(t *testing.T) {
	body := "## Proof of stake {#pos}\n\nValidators.\n\n## Sharding\n\nData availability.\n"
	page := content.PageContent{
		Slug:     "/roadmap",
		Content:  body,
		TocItems: toc.Generate([]byte(body), toc.DefaultOptions()),
	}

	chunks, err := ChunkPage(page, ChunkerConfig{MaxChunkSize: 100, ChunkOverlap: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	anchors := map[string]bool{}
	for _, c := range chunks {
		if c.Anchor != "" {
			anchors[c.Anchor] = true
		}
	}
	for _, want := range []string{"pos", "sharding"} {
		if !anchors[want] {
			t.Errorf("expected a chunk anchored at %q, got anchors %v", want, anchors)
		}
	}
}

func TestAnchorIndex_Lookup(t *testing.T) {
	items := []toc.Item{
		{Title: "Overview", ID: "overview", Depth: 2, Children: []toc.Item{
			{Title: "Using eth_call", ID: "using-eth_call", Depth: 3},
		}},
		{Title: "Overview", ID: "overview-1", Depth: 2},
	}
	idx := newAnchorIndex(items)

	tests := []struct {
		heading string
		want    string
	}{
		{"Overview", "overview"},
		{"Using eth_call", "using-eth_call"},
		{"Using `eth_call`", "using-eth_call"},
		{"Page Title", ""},
	}
	for _, tt := range tests {
		if got := idx.lookup(tt.heading); got != tt.want {
			t.Errorf("lookup(%q) = %q, want %q", tt.heading, got, tt.want)
		}
	}
}

func TestExtractHeadingHierarchy(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []string
	}{
		{
			name:     "no headings",
			content:  "Just some text without headings.",
			expected: nil,
		},
		{
			name:     "multiple headings",
			content:  "# Title\n## Section\n### Subsection\nContent",
			expected: []string{"Title", "Section", "Subsection"},
		},
		{
			name:     "heading with special chars",
			content:  "# Hello, World!\n## API Reference: v2.0",
			expected: []string{"Hello, World!", "API Reference: v2.0"},
		},
		{
			name:     "explicit anchor and closing hashes",
			content:  "## Proof of stake {#pos}\n### Slashing ###",
			expected: []string{"Proof of stake", "Slashing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractHeadingHierarchy(tt.content)
			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d headings, got %d: %v", len(tt.expected), len(result), result)
			}
			for i, heading := range result {
				if heading != tt.expected[i] {
					t.Errorf("heading %d: expected %q, got %q", i, tt.expected[i], heading)
				}
			}
		})
	}
}

func TestDefaultChunkerConfig(t *testing.T) {
	cfg := DefaultChunkerConfig()
	if cfg.MaxChunkSize != 512 {
		t.Errorf("expected MaxChunkSize 512, got %d", cfg.MaxChunkSize)
	}
	if cfg.ChunkOverlap != 50 {
		t.Errorf("expected ChunkOverlap 50, got %d", cfg.ChunkOverlap)
	}
}

package content

import "content-loader/pkg/toc"

// PageContent is one loaded content page.
type PageContent struct {
	Slug        string         `json:"slug"`
	Content     string         `json:"content"`
	FrontMatter map[string]any `json:"frontmatter"`
	TocItems    []toc.Item     `json:"tocItems"`
}

// Title returns the front-matter title, or "" when absent or not a string.
func (p PageContent) Title() string {
	if title, ok := p.FrontMatter["title"].(string); ok {
		return title
	}
	return ""
}

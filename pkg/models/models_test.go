package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content-loader/pkg/toc"
)

func TestPageJSONL_FieldNames(t *testing.T) {
	page := PageJSONL{
		Slug:        "/about",
		FrontMatter: map[string]any{"title": "About"},
		Content:     "## Mission",
		TocItems:    []toc.Item{{Title: "Mission", ID: "mission", Depth: 2}},
		ContentHash: "abc",
		ExportedAt:  "2024-01-01T00:00:00Z",
	}

	data, err := json.Marshal(page)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "tocItems")
	assert.Contains(t, raw, "frontmatter")
	assert.NotContains(t, raw, "title", "empty title is omitted")
	assert.NotContains(t, raw, "token_count", "zero token count is omitted")

	items := raw["tocItems"].([]any)
	first := items[0].(map[string]any)
	assert.Equal(t, "mission", first["id"])
	assert.NotContains(t, first, "children", "leaf items carry no children key")
}

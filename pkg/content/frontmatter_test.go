package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content-loader/pkg/utils"
)

func TestParseFrontMatter(t *testing.T) {
	source := []byte(`---
title: Ethereum roadmap
lang: en
sidebarDepth: 2
tags:
  - scaling
  - security
image:
  src: /images/roadmap.png
  alt: roadmap
---

## Heading
`)

	meta, body, err := ParseFrontMatter(source)
	require.NoError(t, err)

	assert.Equal(t, "Ethereum roadmap", meta["title"])
	assert.Equal(t, "en", meta["lang"])
	assert.Equal(t, 2, meta["sidebarDepth"])
	assert.Equal(t, []any{"scaling", "security"}, meta["tags"])
	assert.Equal(t, map[string]any{"src": "/images/roadmap.png", "alt": "roadmap"}, meta["image"])
	assert.Contains(t, body, "## Heading")
	assert.NotContains(t, body, "---")
}

func TestParseFrontMatter_NoBlock(t *testing.T) {
	meta, body, err := ParseFrontMatter([]byte("## Just a body\n"))
	require.NoError(t, err)

	assert.NotNil(t, meta)
	assert.Empty(t, meta)
	assert.Equal(t, "## Just a body\n", body)
}

func TestParseFrontMatter_Malformed(t *testing.T) {
	_, _, err := ParseFrontMatter([]byte("---\n: : :\n  - [\n---\nbody"))
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrFrontMatter)
}

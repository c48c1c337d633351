package toc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple", input: "Overview", expected: "overview"},
		{name: "spaces become hyphens", input: "How it works", expected: "how-it-works"},
		{name: "whitespace runs collapse", input: "a \t  b", expected: "a-b"},
		{name: "punctuation stripped", input: "What is Ether?", expected: "what-is-ether"},
		{name: "underscores kept", input: "eth_call usage", expected: "eth_call-usage"},
		{name: "hyphens kept", input: "proof-of-stake", expected: "proof-of-stake"},
		{name: "accented letters kept", input: "Café ✨ 2", expected: "café--2"},
		{name: "german", input: "Über Straße", expected: "über-straße"},
		{name: "cjk", input: "日本語", expected: "日本語"},
		{name: "cyrillic lowercased", input: "Привет Мир", expected: "привет-мир"},
		{name: "surrounding space trimmed", input: "  Padded  ", expected: "padded"},
		{name: "nothing left", input: "!!!", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.input))
		})
	}
}

func TestSlugger_Unique(t *testing.T) {
	s := NewSlugger()

	assert.Equal(t, "intro", s.Slug("Intro"))
	assert.Equal(t, "intro-1", s.Slug("Intro"))
	assert.Equal(t, "intro-2", s.Slug("intro"))
	assert.Equal(t, "section", s.Slug("???"))
	assert.Equal(t, "section-1", s.Slug("%%%"))
}

func TestSlugger_SuffixCollision(t *testing.T) {
	s := NewSlugger()

	assert.Equal(t, "a-1", s.Slug("a-1"))
	assert.Equal(t, "a", s.Slug("a"))
	// "a-1" is already taken by a literal heading, so the next "a" skips it.
	assert.Equal(t, "a-2", s.Slug("a"))
}

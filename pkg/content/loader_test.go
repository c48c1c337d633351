package content

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content-loader/pkg/toc"
	"content-loader/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// writeTree creates files (slash-separated relative paths) under a fresh temp root.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0644))
	}
	return root
}

func newTestLoader(t *testing.T, root string, mode MatchMode, allowed ...string) *Loader {
	t.Helper()
	l, err := NewLoader(Config{
		Root:      root,
		AllowList: NewAllowList(allowed...),
		MatchMode: mode,
	}, testLogger())
	require.NoError(t, err)
	return l
}

const page = "---\ntitle: Page\n---\n\n## Heading\n"

func sampleTree(t *testing.T) string {
	return writeTree(t, map[string]string{
		"about/index.md":                         page,
		"about/team/index.md":                    page,
		"bridges/index.md":                       page,
		"developers/docs/index.md":               page,
		"history/index.md":                       page,
		"history/frontier/index.md":              page,
		"roadmap/index.md":                       page,
		"roadmap/scaling/index.md":               page,
		"roadmap/scaling/diagram.png":            "png",
		"translations/de/about/index.md":         page,
		"translations/es/roadmap/index.md":       page,
		"nft/index.md":                           page,
		"nft-marketplaces/index.md":              page,
		"community/support/index.md":             page,
		"community/support/notes.txt":            "not markdown",
		"community/events/translations/index.md": page,
	})
}

func TestListEligibleSlugs_AllowList(t *testing.T) {
	root := sampleTree(t)
	l := newTestLoader(t, root, MatchSubstring, "/about", "/history/", "/roadmap", "/roadmap/scaling", "/community/support")

	slugs, err := l.ListEligibleSlugs("/")
	require.NoError(t, err)

	sort.Strings(slugs)
	assert.Equal(t, []string{
		"/about",
		"/about/team",
		"/community/support",
		"/history",
		"/history/frontier",
		"/roadmap",
		"/roadmap/scaling",
	}, slugs)
}

func TestListEligibleSlugs_EveryResultContainsAnEntry(t *testing.T) {
	root := sampleTree(t)
	allowed := []string{"/about", "/nft", "/roadmap/scaling"}
	l := newTestLoader(t, root, MatchSubstring, allowed...)

	slugs, err := l.ListEligibleSlugs("")
	require.NoError(t, err)
	require.NotEmpty(t, slugs)

	for _, slug := range slugs {
		matched := false
		for _, entry := range allowed {
			if strings.Contains(slug, entry) {
				matched = true
			}
		}
		assert.True(t, matched, "slug %q matches no allow-list entry", slug)
	}
}

func TestListEligibleSlugs_SubstringVersusPrefix(t *testing.T) {
	root := sampleTree(t)

	substring := newTestLoader(t, root, MatchSubstring, "/nft")
	slugs, err := substring.ListEligibleSlugs("/")
	require.NoError(t, err)
	sort.Strings(slugs)
	assert.Equal(t, []string{"/nft", "/nft-marketplaces"}, slugs)

	prefix := newTestLoader(t, root, MatchPrefix, "/nft")
	slugs, err = prefix.ListEligibleSlugs("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/nft"}, slugs)
}

func TestListEligibleSlugs_SkipsLocaleDirectory(t *testing.T) {
	root := sampleTree(t)
	l := newTestLoader(t, root, MatchSubstring, "/about", "/roadmap", "/community", "/translations")

	slugs, err := l.ListEligibleSlugs("/")
	require.NoError(t, err)
	for _, slug := range slugs {
		assert.NotContains(t, slug, "translations")
	}

	inside, err := l.ListEligibleSlugs("/translations/de")
	require.NoError(t, err)
	assert.NotNil(t, inside)
	assert.Empty(t, inside)
}

func TestListEligibleSlugs_EntryListedOnceWhenSeveralEntriesMatch(t *testing.T) {
	root := sampleTree(t)
	l := newTestLoader(t, root, MatchSubstring, "/roadmap", "/roadmap/scaling")

	slugs, err := l.ListEligibleSlugs("/roadmap")
	require.NoError(t, err)
	assert.Equal(t, []string{"/roadmap", "/roadmap/scaling"}, slugs)
}

func TestListEligibleSlugs_Subdirectory(t *testing.T) {
	root := sampleTree(t)
	l := newTestLoader(t, root, MatchSubstring, "/history/")

	slugs, err := l.ListEligibleSlugs("history")
	require.NoError(t, err)
	// Directory-listing order: "frontier" sorts before "index.md".
	assert.Equal(t, []string{"/history/frontier", "/history"}, slugs)
}

func TestListEligibleSlugs_NonIndexMarkdownKeepsExtension(t *testing.T) {
	root := writeTree(t, map[string]string{
		"glossary/index.md": page,
		"glossary/extra.md": page,
	})
	l := newTestLoader(t, root, MatchSubstring, "/glossary")

	slugs, err := l.ListEligibleSlugs("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/glossary/extra.md", "/glossary"}, slugs)

	p, err := l.LoadBySlug("/glossary/extra.md")
	require.NoError(t, err)
	assert.Equal(t, "Page", p.Title())
}

func TestListEligibleSlugs_MissingDirectory(t *testing.T) {
	l := newTestLoader(t, t.TempDir(), MatchSubstring, "/about")

	_, err := l.ListEligibleSlugs("/does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrFilesystem)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestListEligibleSlugs_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for this user")
	}
	root := writeTree(t, map[string]string{"about/index.md": page})
	locked := filepath.Join(root, "about")
	require.NoError(t, os.Chmod(locked, 0000))
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	l := newTestLoader(t, root, MatchSubstring, "/about")
	_, err := l.ListEligibleSlugs("/")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.Equal(t, "Filesystem_Permission", utils.CategorizeError(err))
}

func TestLoadBySlug_RoundTrip(t *testing.T) {
	root := writeTree(t, map[string]string{
		"x/index.md": "---\ntitle: \"X\"\n---\n## A\n### B",
	})
	l := newTestLoader(t, root, MatchSubstring, "/x")

	p, err := l.LoadBySlug("/x")
	require.NoError(t, err)

	assert.Equal(t, "/x", p.Slug)
	assert.Equal(t, "X", p.FrontMatter["title"])
	assert.Contains(t, p.Content, "## A")
	assert.NotContains(t, p.Content, "title:")
	require.Len(t, p.TocItems, 1)
	assert.Equal(t, "A", p.TocItems[0].Title)
	require.Len(t, p.TocItems[0].Children, 1)
	assert.Equal(t, toc.Item{Title: "B", ID: "b", Depth: 3}, p.TocItems[0].Children[0])
}

func TestLoadBySlug_NotFound(t *testing.T) {
	l := newTestLoader(t, t.TempDir(), MatchSubstring, "/about")

	p, err := l.LoadBySlug("/about")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrNotFound)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Empty(t, p.Slug)
	assert.Nil(t, p.FrontMatter)
}

func TestLoadBySlug_RejectsEscapingSlug(t *testing.T) {
	l := newTestLoader(t, t.TempDir(), MatchSubstring, "/about")

	_, err := l.LoadBySlug("/../../etc")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrInvalidSlug)
}

func TestListEligibleSlugs_RejectsEscapingDirectory(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "content")
	require.NoError(t, os.MkdirAll(filepath.Join(base, "outside"), 0755))
	require.NoError(t, os.MkdirAll(root, 0755))
	l := newTestLoader(t, root, MatchSubstring, "/")

	for _, dir := range []string{"../outside", "/roadmap/../../outside", ".."} {
		_, err := l.ListEligibleSlugs(dir)
		require.Error(t, err, dir)
		assert.ErrorIs(t, err, utils.ErrInvalidSlug, dir)
	}

	_, err := l.LoadAll("../outside")
	assert.ErrorIs(t, err, utils.ErrInvalidSlug)
}

func TestMatch_FilesystemRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("slash root only exists on unix")
	}

	for _, mode := range []MatchMode{MatchSubstring, MatchPrefix} {
		l := newTestLoader(t, "/", mode, "/tmp")
		assert.True(t, l.Match("/tmp/x/index.md"), mode)
		assert.False(t, l.Match("/var/x/index.md"), mode)
		assert.Equal(t, "/tmp/x", l.slugFor("/tmp/x/index.md"), mode)
	}
}

func TestMatch_TrailingSlashEntry(t *testing.T) {
	root := t.TempDir()
	l := newTestLoader(t, root, MatchSubstring, "/roadmap/")

	assert.True(t, l.Match(filepath.Join(root, "roadmap", "merge", "index.md")))
	assert.False(t, l.Match(filepath.Join(root, "roadmap", "index.md")))
}

func TestLoadBySlug_MalformedFrontMatter(t *testing.T) {
	root := writeTree(t, map[string]string{
		"broken/index.md": "---\ntitle: [unclosed\n---\nbody\n",
	})
	l := newTestLoader(t, root, MatchSubstring, "/broken")

	_, err := l.LoadBySlug("/broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrFrontMatter)
	assert.Equal(t, "Content_FrontMatter", utils.CategorizeError(err))
}

func TestLoadBySlug_UsesConfiguredTOCRange(t *testing.T) {
	root := writeTree(t, map[string]string{
		"deep/index.md": "## Two\n### Three\n#### Four\n",
	})
	l, err := NewLoader(Config{
		Root:      root,
		AllowList: NewAllowList("/deep"),
		TOC:       toc.Options{MinDepth: 2, MaxDepth: 3},
	}, testLogger())
	require.NoError(t, err)

	p, err := l.LoadBySlug("/deep")
	require.NoError(t, err)
	assert.Equal(t, 2, toc.Count(p.TocItems))
}

func TestLoadAll(t *testing.T) {
	root := writeTree(t, map[string]string{
		"about/index.md":        "---\ntitle: About\n---\n## Mission\n",
		"roadmap/index.md":      "---\ntitle: Roadmap\n---\n## Scaling\n### Rollups\n",
		"roadmap/pbs/index.md":  "---\ntitle: PBS\n---\nNo headings here.\n",
		"unlisted/index.md":     "---\ntitle: Hidden\n---\n",
		"translations/index.md": "---\ntitle: Übersetzung\n---\n",
	})
	l := newTestLoader(t, root, MatchSubstring, "/about", "/roadmap")

	slugs, err := l.ListEligibleSlugs("/")
	require.NoError(t, err)

	pages, err := l.LoadAll("/")
	require.NoError(t, err)
	require.Len(t, pages, len(slugs))

	for i, p := range pages {
		assert.Equal(t, slugs[i], p.Slug, "load order follows enumeration order")
		assert.NotNil(t, p.TocItems)
	}

	titles := make([]string, 0, len(pages))
	for _, p := range pages {
		titles = append(titles, p.Title())
	}
	sort.Strings(titles)
	assert.Equal(t, []string{"About", "PBS", "Roadmap"}, titles)
}

func TestLoadAll_AbortsOnFirstFailure(t *testing.T) {
	root := writeTree(t, map[string]string{
		"about/index.md":   "---\ntitle: About\n---\n",
		"roadmap/index.md": "---\ntitle: [broken\n---\n",
	})
	l := newTestLoader(t, root, MatchSubstring, "/about", "/roadmap")

	pages, err := l.LoadAll("/")
	require.Error(t, err)
	assert.Nil(t, pages)
	assert.True(t, errors.Is(err, utils.ErrFrontMatter))
}

func TestNewLoader_Validation(t *testing.T) {
	_, err := NewLoader(Config{}, testLogger())
	assert.ErrorIs(t, err, utils.ErrConfigValidation)

	_, err = NewLoader(Config{Root: t.TempDir(), MatchMode: "glob"}, testLogger())
	assert.ErrorIs(t, err, utils.ErrConfigValidation)

	_, err = NewLoader(Config{Root: t.TempDir(), TOC: toc.Options{MinDepth: 4, MaxDepth: 2}}, testLogger())
	assert.ErrorIs(t, err, utils.ErrConfigValidation)

	l, err := NewLoader(Config{Root: t.TempDir(), Extension: "markdown"}, nil)
	require.NoError(t, err)
	cfg := l.Config()
	assert.Equal(t, ".markdown", cfg.Extension)
	assert.Equal(t, DefaultIndexFile, cfg.IndexFile)
	assert.Equal(t, DefaultLocaleDir, cfg.LocaleDir)
	assert.Equal(t, MatchSubstring, cfg.MatchMode)
	assert.True(t, filepath.IsAbs(l.Root()))
}

func TestAllowList_Immutable(t *testing.T) {
	source := []string{"/about", "", "  ", "/roadmap"}
	a := NewAllowList(source...)
	source[0] = "/mutated"

	assert.Equal(t, []string{"/about", "/roadmap"}, a.Entries())

	entries := a.Entries()
	entries[0] = "/changed"
	assert.Equal(t, "/about", a.Entries()[0])
	assert.Equal(t, 2, a.Len())
}

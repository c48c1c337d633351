// Package content discovers published markdown pages under a content root and
// loads them into PageContent records with front-matter and a table of contents.
package content

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"content-loader/pkg/toc"
	"content-loader/pkg/utils"
)

// Loader resolves slugs against one content root. All methods are synchronous
// and keep no state between calls.
type Loader struct {
	cfg  Config
	root string // absolute, slash-separated
	log  *logrus.Entry
}

// NewLoader validates cfg and returns a Loader rooted at cfg.Root.
func NewLoader(cfg Config, log *logrus.Entry) (*Loader, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	absRoot, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve content root '%s': %w", utils.ErrFilesystem, cfg.Root, err)
	}
	cfg.Root = absRoot
	cfg.AllowList = NewAllowList(cfg.AllowList.entries...)

	return &Loader{
		cfg:  cfg,
		root: filepath.ToSlash(absRoot),
		log:  log.WithField("content_root", absRoot),
	}, nil
}

// Root returns the absolute content root.
func (l *Loader) Root() string {
	return l.cfg.Root
}

// Config returns the effective configuration, defaults applied.
func (l *Loader) Config() Config {
	cfg := l.cfg
	cfg.AllowList = NewAllowList(l.cfg.AllowList.entries...)
	return cfg
}

// ListEligibleSlugs walks dir (relative to the content root) depth-first and
// returns the slugs of every published markdown file, in directory-listing order.
// Subtrees named after the locale directory are skipped. Any filesystem error aborts the walk.
func (l *Loader) ListEligibleSlugs(dir string) ([]string, error) {
	if escapesRoot(dir) {
		return nil, utils.WrapErrorf(utils.ErrInvalidSlug, "directory '%s' escapes the content root", dir)
	}
	start := filepath.Join(l.cfg.Root, filepath.FromSlash(strings.TrimPrefix(dir, "/")))

	if l.underLocaleDir(start) {
		l.log.Debugf("Directory '%s' is inside locale directory '%s', skipping", dir, l.cfg.LocaleDir)
		return []string{}, nil
	}

	slugs, err := l.collectSlugs(start)
	if err != nil {
		return nil, err
	}
	if slugs == nil {
		slugs = []string{}
	}

	l.log.Debugf("Found %d eligible pages under '%s'", len(slugs), dir)
	return slugs, nil
}

// collectSlugs returns the eligible slugs below dirPath. Each call builds its own slice.
func (l *Loader) collectSlugs(dirPath string) ([]string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read directory '%s': %w", utils.ErrFilesystem, dirPath, err)
	}

	var slugs []string
	for _, entry := range entries {
		fullPath := filepath.Join(dirPath, entry.Name())

		isDir := entry.IsDir()
		if entry.Type()&fs.ModeSymlink != 0 {
			info, statErr := os.Stat(fullPath)
			if statErr != nil {
				return nil, fmt.Errorf("%w: stat '%s': %w", utils.ErrFilesystem, fullPath, statErr)
			}
			isDir = info.IsDir()
		}

		if isDir {
			if entry.Name() == l.cfg.LocaleDir {
				l.log.Debugf("Skipping locale directory: %s", fullPath)
				continue
			}
			nested, err := l.collectSlugs(fullPath)
			if err != nil {
				return nil, err
			}
			slugs = append(slugs, nested...)
			continue
		}

		if filepath.Ext(entry.Name()) != l.cfg.Extension {
			continue
		}
		if !l.Match(fullPath) {
			l.log.Debugf("Not in allow-list: %s", fullPath)
			continue
		}
		slugs = append(slugs, l.slugFor(fullPath))
	}

	return slugs, nil
}

// Match reports whether the file at fullPath is covered by the allow-list.
func (l *Loader) Match(fullPath string) bool {
	p := filepath.ToSlash(fullPath)

	if l.cfg.MatchMode == MatchPrefix {
		rel, ok := l.relative(p)
		if !ok {
			return false
		}
		for _, entry := range l.cfg.AllowList.entries {
			prefix := "/" + strings.Trim(entry, "/")
			if prefix == "/" || rel == prefix || strings.HasPrefix(rel, prefix+"/") {
				return true
			}
		}
		return false
	}

	for _, entry := range l.cfg.AllowList.entries {
		needle := path.Join(l.root, entry)
		if strings.HasSuffix(entry, "/") && needle != "/" {
			needle += "/"
		}
		if strings.Contains(p, needle) {
			return true
		}
	}
	return false
}

// relative returns p below the content root, with a leading slash.
func (l *Loader) relative(p string) (string, bool) {
	if l.root == "/" {
		return p, strings.HasPrefix(p, "/")
	}
	rel := strings.TrimPrefix(p, l.root)
	if rel == p || (rel != "" && !strings.HasPrefix(rel, "/")) {
		return "", false
	}
	return rel, true
}

// slugFor strips the content root and the trailing "/index.md" from fullPath.
func (l *Loader) slugFor(fullPath string) string {
	rel, _ := l.relative(filepath.ToSlash(fullPath))
	return strings.TrimSuffix(rel, "/"+l.cfg.IndexFile)
}

// underLocaleDir reports whether any segment of p below the root is the locale directory.
func (l *Loader) underLocaleDir(p string) bool {
	rel, _ := l.relative(filepath.ToSlash(p))
	for _, segment := range strings.Split(rel, "/") {
		if segment == l.cfg.LocaleDir {
			return true
		}
	}
	return false
}

// LoadBySlug reads the file backing slug and parses it into a PageContent.
// A slug normally names a directory holding the index file; a slug ending in the
// markdown extension names the file itself.
func (l *Loader) LoadBySlug(slug string) (PageContent, error) {
	filePath, err := l.resolveSlug(slug)
	if err != nil {
		return PageContent{}, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return PageContent{}, fmt.Errorf("%w: slug '%s' (%s): %w", utils.ErrNotFound, slug, filePath, err)
		}
		return PageContent{}, fmt.Errorf("%w: read '%s': %w", utils.ErrFilesystem, filePath, err)
	}

	frontMatter, body, err := ParseFrontMatter(data)
	if err != nil {
		return PageContent{}, fmt.Errorf("slug '%s': %w", slug, err)
	}

	l.log.Debugf("Loaded slug '%s' from %s (%d bytes)", slug, filePath, len(data))
	return PageContent{
		Slug:        slug,
		Content:     body,
		FrontMatter: frontMatter,
		TocItems:    toc.Generate([]byte(body), l.cfg.TOC),
	}, nil
}

// resolveSlug maps slug to an absolute file path inside the content root.
func (l *Loader) resolveSlug(slug string) (string, error) {
	if escapesRoot(slug) {
		return "", utils.WrapErrorf(utils.ErrInvalidSlug, "slug '%s' escapes the content root", slug)
	}

	clean := path.Clean("/" + filepath.ToSlash(slug))
	if path.Ext(clean) == l.cfg.Extension {
		return filepath.Join(l.cfg.Root, filepath.FromSlash(clean)), nil
	}
	return filepath.Join(l.cfg.Root, filepath.FromSlash(clean), l.cfg.IndexFile), nil
}

// escapesRoot reports whether p has a ".." segment
func escapesRoot(p string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(p), "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}

// LoadAll lists the eligible slugs under dir and loads each of them.
// The first failure aborts the whole batch.
func (l *Loader) LoadAll(dir string) ([]PageContent, error) {
	slugs, err := l.ListEligibleSlugs(dir)
	if err != nil {
		return nil, err
	}

	pages := make([]PageContent, 0, len(slugs))
	for _, slug := range slugs {
		page, err := l.LoadBySlug(slug)
		if err != nil {
			l.log.WithField("slug", slug).Errorf("Aborting batch load: %v", err)
			return nil, err
		}
		pages = append(pages, page)
	}

	l.log.Infof("Loaded %d pages from '%s'", len(pages), dir)
	return pages, nil
}

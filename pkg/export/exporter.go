package export

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"content-loader/pkg/config"
	"content-loader/pkg/content"
	"content-loader/pkg/models"
	"content-loader/pkg/process"
	"content-loader/pkg/storage"
	"content-loader/pkg/toc"
	"content-loader/pkg/utils"
)

// SlugTreeFilename is written next to the other outputs when enable_slug_tree is set
const SlugTreeFilename = "slug_tree.txt"

// Stats summarizes one build of a collection
type Stats struct {
	RunID        string
	OutputDir    string
	ManifestPath string
	TotalPages   int
	Exported     int
	Unchanged    int
	Removed      int // Slugs no longer eligible, dropped from the build store
	Chunks       int
	StoredPages  int // Records held by the build store after the run
}

// Exporter builds the outputs of a single collection.
type Exporter struct {
	key         string
	appCfg      *config.AppConfig
	colCfg      *config.CollectionConfig
	loader      *content.Loader
	store       storage.BuildStore
	outputDir   string
	incremental bool
	log         *logrus.Entry
}

// OutputDir returns the directory a collection's outputs are written to
func OutputDir(appCfg *config.AppConfig, collectionKey string) string {
	return filepath.Join(appCfg.OutputBaseDir, utils.SanitizeFilename(collectionKey))
}

// NewExporter creates an Exporter for the collection with the given key.
// colCfg must already be validated.
func NewExporter(key string, appCfg *config.AppConfig, colCfg *config.CollectionConfig, store storage.BuildStore, incremental bool, log *logrus.Entry) (*Exporter, error) {
	loader, err := content.NewLoader(colCfg.LoaderConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("collection '%s': %w", key, err)
	}
	return &Exporter{
		key:         key,
		appCfg:      appCfg,
		colCfg:      colCfg,
		loader:      loader,
		store:       store,
		outputDir:   OutputDir(appCfg, key),
		incremental: incremental,
		log:         log,
	}, nil
}

// Run loads every eligible page and writes the enabled outputs.
// A page that fails to load aborts the build before any output is written.
func (e *Exporter) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	stats := Stats{RunID: uuid.NewString(), OutputDir: e.outputDir}
	log := e.log.WithField("run_id", stats.RunID)

	pages, err := e.loadPages(ctx)
	if err != nil {
		return stats, err
	}
	stats.TotalPages = len(pages)
	log.Infof("Loaded %d pages from %s", len(pages), e.loader.Root())

	om := NewOutputManager(log, e.appCfg, e.colCfg, e.key, e.outputDir)
	if err := om.OpenFiles(e.incremental); err != nil {
		return stats, err
	}

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			om.Close()
			return stats, err
		}
		status, chunkCount, err := e.exportPage(om, page)
		if err != nil {
			om.Close()
			return stats, fmt.Errorf("export '%s': %w", page.Slug, err)
		}
		switch status {
		case models.PageStatusExported:
			stats.Exported++
		case models.PageStatusUnchanged:
			stats.Unchanged++
		}
		stats.Chunks += chunkCount
	}

	if err := om.Close(); err != nil {
		return stats, err
	}

	if stats.Removed, err = e.pruneStale(ctx, pages); err != nil {
		return stats, err
	}
	if stats.StoredPages, err = e.store.GetPageCount(); err != nil {
		return stats, err
	}

	manifest := models.BuildMetadata{
		RunID:          stats.RunID,
		ContentRoot:    e.loader.Root(),
		BuildStartTime: start,
		BuildEndTime:   time.Now(),
		TotalPages:     stats.TotalPages,
		PagesExported:  stats.Exported,
		PagesUnchanged: stats.Unchanged,
		PagesRemoved:   stats.Removed,
	}
	if stats.ManifestPath, err = om.WriteManifest(manifest); err != nil {
		return stats, err
	}

	if e.appCfg.EnableSlugTree {
		slugs := make([]string, len(pages))
		for i, p := range pages {
			slugs[i] = p.Slug
		}
		treePath := filepath.Join(e.outputDir, SlugTreeFilename)
		if err := utils.GenerateSlugTree(e.loader.Root(), slugs, treePath, log); err != nil {
			return stats, err
		}
	}

	log.Infof("Build finished in %v: %d pages (%d exported, %d unchanged, %d removed, %d chunks)",
		time.Since(start).Round(time.Millisecond), stats.TotalPages, stats.Exported, stats.Unchanged, stats.Removed, stats.Chunks)
	return stats, nil
}

// loadPages loads every eligible slug. The first failure is recorded
// against its slug in the build store and ends the build.
func (e *Exporter) loadPages(ctx context.Context) ([]content.PageContent, error) {
	slugs, err := e.loader.ListEligibleSlugs("")
	if err != nil {
		return nil, fmt.Errorf("list pages of '%s': %w", e.key, err)
	}

	pages := make([]content.PageContent, 0, len(slugs))
	for _, slug := range slugs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := e.loader.LoadBySlug(slug)
		if err != nil {
			e.recordFailure(slug, err)
			return nil, fmt.Errorf("load '%s': %w", slug, err)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func (e *Exporter) recordFailure(slug string, cause error) {
	rec := &models.PageRecord{
		Status:      models.PageStatusFailure,
		ErrorType:   utils.CategorizeError(cause),
		LastAttempt: time.Now(),
	}
	// The failed build writes no outputs, so the previous lines and their hash stay current
	if _, prev, err := e.store.GetPageRecord(slug); err == nil && prev != nil {
		rec.ContentHash = prev.ContentHash
		rec.Title = prev.Title
		rec.TokenCount = prev.TokenCount
		rec.ProcessedAt = prev.ProcessedAt
	}
	if err := e.store.UpdatePageRecord(slug, rec); err != nil {
		e.log.Warnf("Could not record failure of '%s': %v", slug, err)
	}
	e.log.WithField("error_type", rec.ErrorType).Errorf("Failed to load '%s': %v", slug, cause)
}

// pruneStale drops store records of slugs that were not part of this build
func (e *Exporter) pruneStale(ctx context.Context, pages []content.PageContent) (int, error) {
	current := make(map[string]struct{}, len(pages))
	for _, p := range pages {
		current[p.Slug] = struct{}{}
	}

	stored, err := e.store.ListSlugs(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, slug := range stored {
		if _, ok := current[slug]; ok {
			continue
		}
		if err := e.store.DeletePageRecord(slug); err != nil {
			return removed, err
		}
		e.log.Infof("Removed stale page '%s'", slug)
		removed++
	}
	return removed, nil
}

// pageHash covers the front matter as well as the body.
// encoding/json writes map keys in sorted order, so equal front matter hashes equally.
func pageHash(page content.PageContent) (string, error) {
	fm, err := json.Marshal(page.FrontMatter)
	if err != nil {
		return "", fmt.Errorf("%w: encode front matter of '%s': %w", utils.ErrParsing, page.Slug, err)
	}
	return utils.CalculateStringSHA256(string(fm) + "\n" + page.Content), nil
}

func (e *Exporter) exportPage(om *OutputManager, page content.PageContent) (models.PageStatus, int, error) {
	now := time.Now()
	hash, err := pageHash(page)
	if err != nil {
		return models.PageStatusFailure, 0, err
	}

	status := models.PageStatusExported
	if e.incremental {
		prevHash, ok, err := e.store.GetPageContentHash(page.Slug)
		if err != nil {
			return models.PageStatusDBError, 0, err
		}
		if ok && prevHash == hash {
			status = models.PageStatusUnchanged
		}
	}

	exportedAt := now.UTC().Format(time.RFC3339)
	tokenCount := 0
	prevLine, reuse := om.PreviousPage(page.Slug)
	reuse = reuse && status == models.PageStatusUnchanged
	if reuse {
		exportedAt = prevLine.ExportedAt
	}
	if e.appCfg.EnableTokenCounting {
		if reuse {
			tokenCount = prevLine.TokenCount
		} else {
			tokenCount = process.CountTokens(page.Content)
		}
	}

	if err := om.WritePage(models.PageJSONL{
		Slug:        page.Slug,
		Title:       page.Title(),
		FrontMatter: page.FrontMatter,
		Content:     page.Content,
		TocItems:    page.TocItems,
		ContentHash: hash,
		ExportedAt:  exportedAt,
		TokenCount:  tokenCount,
	}); err != nil {
		return status, 0, err
	}

	chunkCount := 0
	if om.ChunksEnabled() {
		chunks, ok := om.PreviousChunks(page.Slug)
		if !ok || status != models.PageStatusUnchanged {
			if chunks, err = e.chunkPage(page, exportedAt); err != nil {
				return status, 0, err
			}
		}
		if err := om.WriteChunks(chunks); err != nil {
			return status, 0, err
		}
		chunkCount = len(chunks)
	}

	om.RecordPage(models.PageMetadata{
		Slug:        page.Slug,
		Title:       page.Title(),
		Status:      status.String(),
		ProcessedAt: now,
		ContentHash: hash,
		TocEntries:  toc.Count(page.TocItems),
		TokenCount:  tokenCount,
	})

	err = e.store.UpdatePageRecord(page.Slug, &models.PageRecord{
		Status:      status,
		ContentHash: hash,
		Title:       page.Title(),
		TokenCount:  tokenCount,
		ProcessedAt: now,
		LastAttempt: now,
	})
	return status, chunkCount, err
}

func (e *Exporter) chunkPage(page content.PageContent, exportedAt string) ([]models.ChunkJSONL, error) {
	chunks, err := process.ChunkPage(page, process.ChunkerConfig{
		MaxChunkSize: e.appCfg.Chunking.MaxChunkSize,
		ChunkOverlap: e.appCfg.Chunking.ChunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: chunking: %w", utils.ErrParsing, err)
	}
	out := make([]models.ChunkJSONL, len(chunks))
	for i, c := range chunks {
		out[i] = models.ChunkJSONL{
			Slug:             page.Slug,
			ChunkIndex:       i,
			Content:          c.Content,
			HeadingHierarchy: c.HeadingHierarchy,
			Anchor:           c.Anchor,
			TokenCount:       c.TokenCount,
			PageTitle:        page.Title(),
			ExportedAt:       exportedAt,
		}
	}
	return out, nil
}

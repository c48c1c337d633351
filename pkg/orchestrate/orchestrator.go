package orchestrate

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"content-loader/pkg/config"
	"content-loader/pkg/export"
	"content-loader/pkg/process"
	"content-loader/pkg/storage"
	"content-loader/pkg/utils"
)

// CollectionResult contains the result of building a single collection
type CollectionResult struct {
	CollectionKey string
	Success       bool
	Error         error
	Stats         export.Stats
	Duration      time.Duration
}

// Orchestrator builds several collections in parallel
type Orchestrator struct {
	appCfg         *config.AppConfig
	log            *logrus.Entry
	collectionKeys []string
	incremental    bool
}

// NewOrchestrator creates an orchestrator for the given collections.
// appCfg must already be validated.
func NewOrchestrator(appCfg *config.AppConfig, collectionKeys []string, incremental bool, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		appCfg:         appCfg,
		log:            log,
		collectionKeys: collectionKeys,
		incremental:    incremental,
	}
}

// Run builds all collections, at most max_parallel_collections at a time, and
// returns one result per collection in the order the keys were given.
// A failing collection does not stop the others.
func (o *Orchestrator) Run(ctx context.Context) []CollectionResult {
	startTime := time.Now()
	o.log.Infof("Building %d collections: %v", len(o.collectionKeys), o.collectionKeys)

	if o.needsTokenizer() {
		if err := process.InitTokenizer(o.appCfg.TokenEncoding); err != nil {
			o.log.Warnf("Tokenizer unavailable (%v); token counts will be reported as -1", err)
		}
	}

	results := make([]CollectionResult, len(o.collectionKeys))
	g := new(errgroup.Group)
	g.SetLimit(max(o.appCfg.MaxParallelCollections, 1))

	for i, key := range o.collectionKeys {
		g.Go(func() error {
			results[i] = o.buildCollection(ctx, key)
			return nil
		})
	}
	_ = g.Wait()

	o.logSummary(results, time.Since(startTime))
	return results
}

func (o *Orchestrator) needsTokenizer() bool {
	if o.appCfg.EnableTokenCounting {
		return true
	}
	for _, colCfg := range o.appCfg.Collections {
		if config.GetEffectiveChunkingEnabled(colCfg, o.appCfg) {
			return true
		}
	}
	return false
}

// buildCollection builds one collection with its own store and exporter
func (o *Orchestrator) buildCollection(ctx context.Context, key string) CollectionResult {
	startTime := time.Now()
	result := CollectionResult{CollectionKey: key}
	colLog := o.log.WithField("collection", key)

	fail := func(err error) CollectionResult {
		result.Error = err
		result.Duration = time.Since(startTime)
		colLog.WithField("error_type", utils.CategorizeError(err)).Errorf("Build failed: %v", err)
		return result
	}

	colCfg, exists := o.appCfg.Collections[key]
	if !exists {
		return fail(fmt.Errorf("collection '%s' not found in configuration", key))
	}
	warnings, err := colCfg.Validate()
	if err != nil {
		return fail(fmt.Errorf("collection '%s': %w", key, err))
	}
	for _, w := range warnings {
		colLog.Warn(w)
	}

	if o.appCfg.BuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.appCfg.BuildTimeout)
		defer cancel()
	}

	store, err := storage.NewBadgerStore(o.appCfg.StateDir, key, o.incremental, colLog.WithField("component", "store"))
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	gcCtx, stopGC := context.WithCancel(ctx)
	defer stopGC()
	go store.RunGC(gcCtx, o.appCfg.StoreGCInterval)

	exp, err := export.NewExporter(key, o.appCfg, colCfg, store, o.incremental, colLog.WithField("component", "export"))
	if err != nil {
		return fail(err)
	}

	result.Stats, err = exp.Run(ctx)
	if err != nil {
		return fail(err)
	}

	if err := store.WriteSlugLog(ctx, SlugLogPath(o.appCfg, key)); err != nil {
		colLog.Warnf("Could not write slug log: %v", err)
	}

	result.Success = true
	result.Duration = time.Since(startTime)
	return result
}

// SlugLogPath returns where the list of built slugs of a collection is written
func SlugLogPath(appCfg *config.AppConfig, key string) string {
	return filepath.Join(appCfg.StateDir, utils.SanitizeFilename(key)+"_slugs.log")
}

// logSummary logs a summary of all build results
func (o *Orchestrator) logSummary(results []CollectionResult, totalDuration time.Duration) {
	o.log.Info("============================================")
	o.log.Infof("Build completed in %v", totalDuration.Round(time.Millisecond))
	o.log.Info("Collection Results:")

	totalPages := 0
	successCount := 0
	failCount := 0

	for _, r := range results {
		status := "SUCCESS"
		if !r.Success {
			status = "FAILED"
			failCount++
		} else {
			successCount++
		}
		totalPages += r.Stats.TotalPages

		o.log.Infof("  %s: %s - %d pages (%d exported, %d unchanged, %d removed, %d stored) in %v",
			r.CollectionKey, status, r.Stats.TotalPages, r.Stats.Exported, r.Stats.Unchanged, r.Stats.Removed,
			r.Stats.StoredPages, r.Duration.Round(time.Millisecond))
		if r.Error != nil {
			o.log.Infof("    Error: %v", r.Error)
		}
	}

	o.log.Info("--------------------------------------------")
	o.log.Infof("Total: %d collections (%d success, %d failed), %d pages",
		len(results), successCount, failCount, totalPages)
	o.log.Info("============================================")
}

// ValidateCollectionKeys checks that all provided collection keys exist in the config
func ValidateCollectionKeys(appCfg *config.AppConfig, keys []string) error {
	for _, key := range keys {
		if _, exists := appCfg.Collections[key]; !exists {
			return fmt.Errorf("%w: collection '%s' not found. Available collections: %v",
				utils.ErrConfigValidation, key, GetAllCollectionKeys(appCfg))
		}
	}
	return nil
}

// GetAllCollectionKeys returns all collection keys from the config, sorted
func GetAllCollectionKeys(appCfg *config.AppConfig) []string {
	keys := make([]string, 0, len(appCfg.Collections))
	for k := range appCfg.Collections {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"content-loader/pkg/config"
	"content-loader/pkg/content"
	"content-loader/pkg/export"
	"content-loader/pkg/models"
	"content-loader/pkg/orchestrate"
	"content-loader/pkg/toc"
	"content-loader/pkg/utils"
)

const snippetLength = 150

// loaderFor returns the loader of a collection or a tool error result
func (s *Server) loaderFor(key string) (*content.Loader, *mcp.CallToolResult) {
	if key == "" {
		return nil, mcp.NewToolResultError("collection parameter is required")
	}
	if err, bad := s.loaderErrs[key]; bad {
		return nil, mcp.NewToolResultError(fmt.Sprintf("collection '%s' is misconfigured: %v", key, err))
	}
	loader, ok := s.loaders[key]
	if !ok {
		return nil, mcp.NewToolResultError(fmt.Sprintf("collection '%s' not found. Available collections: %v",
			key, orchestrate.GetAllCollectionKeys(s.cfg.AppConfig)))
	}
	return loader, nil
}

// handleListCollections handles the list_collections tool
func (s *Server) handleListCollections(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys := orchestrate.GetAllCollectionKeys(s.cfg.AppConfig)
	collections := make([]map[string]interface{}, 0, len(keys))

	for _, key := range keys {
		colCfg := s.cfg.AppConfig.Collections[key]
		info := map[string]interface{}{
			"key":          key,
			"content_dir":  colCfg.ContentDir,
			"allow_list":   len(colCfg.AllowedPages),
			"default_list": colCfg.UseDefaultAllowList,
		}
		if err, bad := s.loaderErrs[key]; bad {
			info["error"] = err.Error()
		}
		if lastBuilt := s.getLastBuiltTime(key, colCfg); !lastBuilt.IsZero() {
			info["last_built"] = lastBuilt.Format(time.RFC3339)
		}
		if s.jobManager.IsRunning(key) {
			info["status"] = "building"
		}
		collections = append(collections, info)
	}

	result := map[string]interface{}{
		"collections":       collections,
		"config_path":       s.cfg.ConfigPath,
		"total_collections": len(collections),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListPages handles the list_pages tool
func (s *Server) handleListPages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := request.GetString("collection", "")
	loader, errResult := s.loaderFor(key)
	if errResult != nil {
		return errResult, nil
	}

	dir := request.GetString("dir", "")
	slugs, err := loader.ListEligibleSlugs(dir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list pages: %v", err)), nil
	}

	result := map[string]interface{}{
		"collection":  key,
		"slugs":       slugs,
		"total_pages": len(slugs),
	}
	if dir != "" {
		result["dir"] = dir
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetPage handles the get_page tool
func (s *Server) handleGetPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	loader, errResult := s.loaderFor(request.GetString("collection", ""))
	if errResult != nil {
		return errResult, nil
	}

	page, errResult := loadPage(loader, request.GetString("slug", ""))
	if errResult != nil {
		return errResult, nil
	}

	b, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode page: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// handleGetTOC handles the get_toc tool
func (s *Server) handleGetTOC(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	loader, errResult := s.loaderFor(request.GetString("collection", ""))
	if errResult != nil {
		return errResult, nil
	}

	page, errResult := loadPage(loader, request.GetString("slug", ""))
	if errResult != nil {
		return errResult, nil
	}

	items := page.TocItems
	opts := loader.Config().TOC
	minDepth := request.GetInt("min_depth", opts.MinDepth)
	maxDepth := request.GetInt("max_depth", opts.MaxDepth)
	if minDepth != opts.MinDepth || maxDepth != opts.MaxDepth {
		if minDepth < 1 || maxDepth > 6 || minDepth > maxDepth {
			return mcp.NewToolResultError(fmt.Sprintf("invalid depth range %d..%d (must be within 1..6)", minDepth, maxDepth)), nil
		}
		items = toc.Generate([]byte(page.Content), toc.Options{MinDepth: minDepth, MaxDepth: maxDepth})
	}

	result := map[string]interface{}{
		"slug":    page.Slug,
		"title":   page.Title(),
		"entries": toc.Count(items),
	}
	if request.GetBool("flat", false) {
		flat := toc.Flatten(items)
		for i := range flat {
			flat[i].Children = nil
		}
		result["items"] = flat
	} else {
		result["items"] = items
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

func loadPage(loader *content.Loader, slug string) (content.PageContent, *mcp.CallToolResult) {
	if slug == "" {
		return content.PageContent{}, mcp.NewToolResultError("slug parameter is required")
	}
	page, err := loader.LoadBySlug(slug)
	switch {
	case errors.Is(err, utils.ErrNotFound):
		return page, mcp.NewToolResultError(fmt.Sprintf("page '%s' not found", slug))
	case err != nil:
		return page, mcp.NewToolResultError(fmt.Sprintf("failed to load page '%s': %v", slug, err))
	}
	return page, nil
}

// handleSearchPages handles the search_pages tool
func (s *Server) handleSearchPages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(request.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	maxResults := request.GetInt("max_results", 10)
	if maxResults <= 0 {
		maxResults = 10
	}
	if maxResults > 100 {
		maxResults = 100
	}

	key := request.GetString("collection", "")
	keys := orchestrate.GetAllCollectionKeys(s.cfg.AppConfig)
	if key != "" {
		if _, errResult := s.loaderFor(key); errResult != nil {
			return errResult, nil
		}
		keys = []string{key}
	}

	results := make([]map[string]interface{}, 0)
	for _, k := range keys {
		loader, ok := s.loaders[k]
		if !ok {
			continue
		}
		found, err := s.searchCollection(ctx, k, loader, query, maxResults-len(results))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search interrupted: %v", err)), nil
		}
		results = append(results, found...)
		if len(results) >= maxResults {
			break
		}
	}

	response := map[string]interface{}{
		"query":         query,
		"results":       results,
		"total_matches": len(results),
	}
	if key != "" {
		response["collection"] = key
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// searchCollection loads every eligible page and matches query against the
// title, then the headings, then the body. Pages that fail to load are skipped.
func (s *Server) searchCollection(ctx context.Context, key string, loader *content.Loader, query string, limit int) ([]map[string]interface{}, error) {
	slugs, err := loader.ListEligibleSlugs("")
	if err != nil {
		s.log.Warnf("Search: cannot list collection '%s': %v", key, err)
		return nil, nil
	}

	queryLower := strings.ToLower(query)
	results := make([]map[string]interface{}, 0)
	for _, slug := range slugs {
		if len(results) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := loader.LoadBySlug(slug)
		if err != nil {
			s.log.Debugf("Search: skipping '%s': %v", slug, err)
			continue
		}

		matchLocation, anchor := matchPage(page, queryLower)
		if matchLocation == "" {
			continue
		}
		result := map[string]interface{}{
			"collection":     key,
			"slug":           page.Slug,
			"title":          page.Title(),
			"snippet":        extractSnippet(page.Content, query, snippetLength),
			"match_location": matchLocation,
		}
		if anchor != "" {
			result["anchor"] = anchor
		}
		results = append(results, result)
	}
	return results, nil
}

// matchPage returns where queryLower occurs in page and, for a heading
// match, the anchor of that heading.
func matchPage(page content.PageContent, queryLower string) (location, anchor string) {
	if strings.Contains(strings.ToLower(page.Title()), queryLower) {
		return "title", ""
	}
	for _, item := range toc.Flatten(page.TocItems) {
		if strings.Contains(strings.ToLower(item.Title), queryLower) {
			return "headings", item.ID
		}
	}
	if strings.Contains(strings.ToLower(page.Content), queryLower) {
		return "content", ""
	}
	return "", ""
}

// handleBuildCollection handles the build_collection tool
func (s *Server) handleBuildCollection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := request.GetString("collection", "")
	if _, errResult := s.loaderFor(key); errResult != nil {
		return errResult, nil
	}
	incremental := request.GetBool("incremental", false)

	job, created := s.jobManager.CreateJob(key, incremental)
	if !created {
		result := map[string]interface{}{
			"status":     "already_running",
			"message":    "A build is already in progress for this collection",
			"job_id":     job.ID,
			"collection": key,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	go s.runBuildJob(job.ID, key, incremental)

	result := map[string]interface{}{
		"status":      "started",
		"message":     "Build started successfully",
		"job_id":      job.ID,
		"collection":  key,
		"incremental": incremental,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runBuildJob builds one collection in the background on a private copy of its config
func (s *Server) runBuildJob(jobID, key string, incremental bool) {
	s.jobManager.UpdateStatus(jobID, JobStatusRunning, "")

	appCfgCopy := *s.cfg.AppConfig
	colCfgCopy := *s.cfg.AppConfig.Collections[key]
	appCfgCopy.Collections = map[string]*config.CollectionConfig{key: &colCfgCopy}

	jobCtx := s.jobManager.GetContext(jobID)
	results := orchestrate.NewOrchestrator(&appCfgCopy, []string{key}, incremental, s.log.WithField("job_id", jobID)).Run(jobCtx)
	r := results[0]
	s.jobManager.UpdateProgress(jobID, r.Stats.TotalPages, r.Stats.Exported, r.Stats.Unchanged)

	switch {
	case r.Success:
		s.jobManager.UpdateStatus(jobID, JobStatusCompleted, "")
	case errors.Is(r.Error, context.Canceled):
		s.jobManager.UpdateStatus(jobID, JobStatusCancelled, "")
	case r.Error != nil:
		s.jobManager.UpdateStatus(jobID, JobStatusFailed, r.Error.Error())
	default:
		s.jobManager.UpdateStatus(jobID, JobStatusFailed, "build did not complete")
	}
}

// handleGetBuildStatus handles the get_build_status tool
func (s *Server) handleGetBuildStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, ok := s.jobManager.GetJob(jobID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":          job.ID,
		"collection":      job.CollectionKey,
		"status":          job.Status,
		"started_at":      job.StartedAt.Format(time.RFC3339),
		"total_pages":     job.TotalPages,
		"pages_exported":  job.PagesExported,
		"pages_unchanged": job.PagesUnchanged,
		"incremental":     job.Incremental,
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// getLastBuiltTime reads the end time of the last build from its YAML manifest
func (s *Server) getLastBuiltTime(key string, colCfg *config.CollectionConfig) time.Time {
	manifestPath := filepath.Join(export.OutputDir(s.cfg.AppConfig, key),
		config.GetEffectiveMetadataYAMLFilename(colCfg, s.cfg.AppConfig))

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return time.Time{}
	}
	var metadata models.BuildMetadata
	if err := yaml.Unmarshal(data, &metadata); err != nil {
		return time.Time{}
	}
	return metadata.BuildEndTime
}

// extractSnippet extracts a snippet around the query match, slicing on rune
// boundaries so multi-byte UTF-8 characters are never split.
func extractSnippet(content, query string, maxLen int) string {
	runes := []rune(content)
	queryRunes := []rune(strings.ToLower(query))
	contentLowerRunes := []rune(strings.ToLower(content))

	idx := -1
	if len(contentLowerRunes) == len(runes) {
		for i := 0; i <= len(contentLowerRunes)-len(queryRunes); i++ {
			if string(contentLowerRunes[i:i+len(queryRunes)]) == string(queryRunes) {
				idx = i
				break
			}
		}
	}

	if idx == -1 {
		if len(runes) > maxLen {
			return string(runes[:maxLen]) + "..."
		}
		return content
	}

	start := max(idx-maxLen/2, 0)
	end := min(idx+len(queryRunes)+maxLen/2, len(runes))

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(runes) {
		snippet = snippet + "..."
	}
	return snippet
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}

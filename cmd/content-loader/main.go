package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"content-loader/pkg/config"
	"content-loader/pkg/content"
	"content-loader/pkg/orchestrate"
	"content-loader/pkg/utils"
	"content-loader/pkg/watch"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		runList(os.Args[2:])
	case "load":
		runLoad(os.Args[2:])
	case "build":
		runBuild(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "tree":
		runTree(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "list-collections":
		runListCollections(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("content-loader %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `content-loader - Markdown content tree loader

Usage:
  content-loader <command> [options]

Commands:
  list              List the published page slugs of a collection
  load              Load pages (front-matter, body, table of contents) as JSON
  build             Export collections to JSONL, chunks and a YAML manifest
  watch             Rebuild collections incrementally on a schedule
  tree              Print the slug tree of a collection
  validate          Validate configuration file
  list-collections  List available collection keys
  mcp-server        Start MCP server for AI tool integration
  version           Show version info

Run 'content-loader <command> -h' for command-specific help.`)
}

// setupLogger creates a configured logrus.Logger writing to out.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}

	return log
}

// loadAndValidateConfig loads the config file, validates it, and logs warnings.
func loadAndValidateConfig(configPath string, log *logrus.Logger) (*config.AppConfig, error) {
	log.Debugf("Loading configuration from %s", configPath)
	appCfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	appWarnings, _ := appCfg.Validate()
	for _, w := range appWarnings {
		log.Warn(w)
	}
	return appCfg, nil
}

// openCollection validates one collection and builds its loader.
func openCollection(appCfg *config.AppConfig, key string, log *logrus.Logger) (*content.Loader, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: -collection is required", utils.ErrConfigValidation)
	}
	if err := orchestrate.ValidateCollectionKeys(appCfg, []string{key}); err != nil {
		return nil, err
	}

	colCfg := appCfg.Collections[key]
	warnings, err := colCfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("collection '%s': %w", key, err)
	}
	for _, w := range warnings {
		log.Warnf("[%s] %s", key, w)
	}

	return content.NewLoader(colCfg.LoaderConfig(), log.WithFields(logrus.Fields{
		"component":  "loader",
		"collection": key,
	}))
}

// runList handles the list subcommand
func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	collection := fs.String("collection", "", "Collection key from config (required)")
	dir := fs.String("dir", "/", "Directory to list, relative to the content root")
	logLevel := fs.String("loglevel", "warn", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: content-loader list [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doList(*configFile, *collection, *dir, *logLevel, os.Stdout, os.Stderr))
}

// doList prints one eligible slug per line.
// Returns exit code (0 = success, 1 = error).
func doList(configPath, key, dir, logLevel string, stdout, stderr io.Writer) int {
	log := setupLogger(logLevel, stderr)
	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	loader, err := openCollection(appCfg, key, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	slugs, err := loader.ListEligibleSlugs(dir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for _, slug := range slugs {
		fmt.Fprintln(stdout, slug)
	}
	return 0
}

// runLoad handles the load subcommand
func runLoad(args []string) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	collection := fs.String("collection", "", "Collection key from config (required)")
	slug := fs.String("slug", "", "Page slug to load (loads every page under -dir if empty)")
	dir := fs.String("dir", "/", "Directory to load when -slug is empty")
	logLevel := fs.String("loglevel", "warn", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: content-loader load [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  content-loader load -collection docs -slug /roadmap/merge\n")
		fmt.Fprintf(os.Stderr, "  content-loader load -collection docs -dir /roadmap\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doLoad(*configFile, *collection, *slug, *dir, *logLevel, os.Stdout, os.Stderr))
}

// doLoad writes a single page, or every page under dir, as indented JSON.
// Any load failure fails the whole command.
func doLoad(configPath, key, slug, dir, logLevel string, stdout, stderr io.Writer) int {
	log := setupLogger(logLevel, stderr)
	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	loader, err := openCollection(appCfg, key, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	var out interface{}
	if slug != "" {
		out, err = loader.LoadBySlug(slug)
	} else {
		out, err = loader.LoadAll(dir)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error [%s]: %v\n", utils.CategorizeError(err), err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runBuild handles the build subcommand
func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	collection := fs.String("collection", "", "Collection key from config (single collection)")
	collections := fs.String("collections", "", "Comma-separated collection keys for parallel builds")
	all := fs.Bool("all", false, "Build all configured collections in parallel")
	incremental := fs.Bool("incremental", false, "Reuse the build state and skip unchanged pages")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: content-loader build [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  content-loader build -collection docs\n")
		fmt.Fprintf(os.Stderr, "  content-loader build -collections docs,tutorials -incremental\n")
		fmt.Fprintf(os.Stderr, "  content-loader build --all\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	keys := parseCollectionKeys(*collection, *collections)
	if !*all && len(keys) == 0 {
		fmt.Fprintln(os.Stderr, "Error: one of -collection, -collections, or --all is required")
		fs.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "Received signal %v, initiating graceful shutdown...\n", sig)
		cancel()

		select {
		case <-sigChan:
			os.Exit(1)
		case <-time.After(30 * time.Second):
			os.Exit(1)
		}
	}()

	code := doBuild(ctx, *configFile, keys, *all, *incremental, *logLevel, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// parseCollectionKeys merges -collection and the comma-separated -collections list.
func parseCollectionKeys(single, list string) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, k := range append([]string{single}, strings.Split(list, ",")...) {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

// doBuild runs the orchestrator over the selected collections and prints one
// summary line per collection. Any failed collection yields exit code 1.
func doBuild(ctx context.Context, configPath string, keys []string, all, incremental bool, logLevel string, stdout, stderr io.Writer) int {
	log := setupLogger(logLevel, stderr)
	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if all {
		keys = orchestrate.GetAllCollectionKeys(appCfg)
		log.Infof("All collections mode: found %d collections", len(keys))
	}
	if len(keys) == 0 {
		fmt.Fprintln(stderr, "Error: no collections to build")
		return 1
	}
	if err := orchestrate.ValidateCollectionKeys(appCfg, keys); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logAppConfig(appCfg, log)

	orch := orchestrate.NewOrchestrator(appCfg, keys, incremental, log.WithField("component", "build"))
	results := orch.Run(ctx)

	exitCode := 0
	for _, r := range results {
		if r.Success {
			fmt.Fprintf(stdout, "OK: [%s] %d pages (%d exported, %d unchanged, %d removed, %d chunks) in %s\n",
				r.CollectionKey, r.Stats.TotalPages, r.Stats.Exported, r.Stats.Unchanged, r.Stats.Removed, r.Stats.Chunks,
				r.Duration.Round(time.Millisecond))
			continue
		}
		exitCode = 1
		switch {
		case errors.Is(r.Error, context.Canceled):
			fmt.Fprintf(stderr, "CANCELLED: [%s]\n", r.CollectionKey)
		case errors.Is(r.Error, context.DeadlineExceeded):
			fmt.Fprintf(stderr, "TIMEOUT: [%s] build exceeded %v\n", r.CollectionKey, appCfg.BuildTimeout)
		default:
			fmt.Fprintf(stderr, "FAILED: [%s] %s: %v\n", r.CollectionKey, utils.CategorizeError(r.Error), r.Error)
		}
	}
	return exitCode
}

// runWatch handles the watch subcommand
func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	collection := fs.String("collection", "", "Collection key from config (single collection)")
	collections := fs.String("collections", "", "Comma-separated collection keys")
	all := fs.Bool("all", false, "Watch all configured collections")
	interval := fs.String("interval", "1h", "Rebuild interval (e.g. 30m, 6h, 1d)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: content-loader watch [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	keys := parseCollectionKeys(*collection, *collections)
	if !*all && len(keys) == 0 {
		fmt.Fprintln(os.Stderr, "Error: one of -collection, -collections, or --all is required")
		fs.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := doWatch(ctx, *configFile, keys, *all, *interval, *logLevel, os.Stderr)
	stop()
	os.Exit(code)
}

// doWatch rebuilds the selected collections every interval until ctx is cancelled.
func doWatch(ctx context.Context, configPath string, keys []string, all bool, intervalStr, logLevel string, stderr io.Writer) int {
	interval, err := watch.ParseInterval(intervalStr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	log := setupLogger(logLevel, stderr)
	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if all {
		keys = orchestrate.GetAllCollectionKeys(appCfg)
	}
	if err := orchestrate.ValidateCollectionKeys(appCfg, keys); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	scheduler := watch.NewScheduler(appCfg, keys, interval, logrus.NewEntry(log))
	if err := scheduler.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runTree handles the tree subcommand
func runTree(args []string) {
	fs := flag.NewFlagSet("tree", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	collection := fs.String("collection", "", "Collection key from config (required)")
	output := fs.String("output", "", "Write the tree to this file instead of stdout")
	logLevel := fs.String("loglevel", "warn", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: content-loader tree [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doTree(*configFile, *collection, *output, *logLevel, os.Stdout, os.Stderr))
}

// doTree renders the slug tree of a collection to stdout or to outputPath.
func doTree(configPath, key, outputPath, logLevel string, stdout, stderr io.Writer) int {
	log := setupLogger(logLevel, stderr)
	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	loader, err := openCollection(appCfg, key, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	slugs, err := loader.ListEligibleSlugs("/")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if outputPath == "" {
		err = utils.WriteSlugTree(stdout, loader.Root(), slugs)
	} else {
		err = utils.GenerateSlugTree(loader.Root(), slugs, outputPath, log.WithField("component", "tree"))
		if err == nil {
			fmt.Fprintf(stdout, "Slug tree written to %s\n", outputPath)
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	collection := fs.String("collection", "", "Collection key to validate (optional, validates all if empty)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: content-loader validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, *collection, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath, key string, stdout, stderr io.Writer) int {
	appCfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, _ := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}

	if key != "" {
		colCfg, ok := appCfg.Collections[key]
		if !ok {
			fmt.Fprintf(stderr, "Error: collection '%s' not found in config\n", key)
			return 1
		}
		colWarnings, err := colCfg.Validate()
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			return 1
		}
		for _, w := range colWarnings {
			fmt.Fprintf(stdout, "WARN: [%s] %s\n", key, w)
		}
		fmt.Fprintf(stdout, "OK: Collection '%s' configuration is valid\n", key)
	} else {
		hasError := false
		for _, k := range orchestrate.GetAllCollectionKeys(appCfg) {
			colWarnings, err := appCfg.Collections[k].Validate()
			if err != nil {
				fmt.Fprintf(stderr, "ERROR: [%s] %v\n", k, err)
				hasError = true
				continue
			}
			for _, w := range colWarnings {
				fmt.Fprintf(stdout, "WARN: [%s] %s\n", k, w)
			}
			fmt.Fprintf(stdout, "OK: [%s]\n", k)
		}
		if hasError {
			return 1
		}
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// runListCollections handles the list-collections subcommand
func runListCollections(args []string) {
	fs := flag.NewFlagSet("list-collections", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: content-loader list-collections [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doListCollections(*configFile, os.Stdout, os.Stderr))
}

// doListCollections lists collections and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doListCollections(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Collections in %s:\n\n", configPath)
	for _, key := range orchestrate.GetAllCollectionKeys(appCfg) {
		col := appCfg.Collections[key]
		fmt.Fprintf(stdout, "  %s\n", key)
		fmt.Fprintf(stdout, "    Content Dir: %s\n", col.ContentDir)
		fmt.Fprintf(stdout, "    Allowed Pages: %d\n", len(col.AllowedPages))
		if col.UseDefaultAllowList {
			fmt.Fprintf(stdout, "    Default Allow-List: %d pages\n", len(config.DefaultAllowedPages))
		}
		if col.MatchMode != "" {
			fmt.Fprintf(stdout, "    Match Mode: %s\n", col.MatchMode)
		}
		fmt.Fprintln(stdout)
	}
	return 0
}

// logAppConfig logs the effective global configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Global Config: OutputDir:%s, StateDir:%s, MaxParallel:%d, BuildTimeout:%v",
		appCfg.OutputBaseDir, appCfg.StateDir, appCfg.MaxParallelCollections, appCfg.BuildTimeout)
	log.Infof("Global Config Outputs: JSONL:%t ('%s'), MetadataYAML:%t ('%s'), SlugTree:%t",
		appCfg.EnableJSONLOutput, appCfg.JSONLOutputFilename,
		appCfg.EnableMetadataYAML, appCfg.MetadataYAMLFilename, appCfg.EnableSlugTree)
	log.Infof("Global Config Tokens: Counting:%t, Encoding:%s, Chunking:%t (max %d, overlap %d)",
		appCfg.EnableTokenCounting, appCfg.TokenEncoding,
		appCfg.Chunking.Enabled, appCfg.Chunking.MaxChunkSize, appCfg.Chunking.ChunkOverlap)
}

package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"content-loader/pkg/config"
	"content-loader/pkg/models"
	"content-loader/pkg/utils"
)

// OutputManager owns the output file handles and manifest entries of one build.
type OutputManager struct {
	log           *logrus.Entry
	appCfg        *config.AppConfig
	colCfg        *config.CollectionConfig
	collectionKey string
	outputDir     string

	jsonlFile     *os.File
	jsonlFilePath string

	chunksFile     *os.File
	chunksFilePath string

	pages []models.PageMetadata

	// Lines of the previous build, reused for unchanged pages
	prevPages  map[string]models.PageJSONL
	prevChunks map[string][]models.ChunkJSONL
}

// NewOutputManager creates an OutputManager without opening files.
func NewOutputManager(log *logrus.Entry, appCfg *config.AppConfig, colCfg *config.CollectionConfig, collectionKey, outputDir string) *OutputManager {
	return &OutputManager{
		log:           log,
		appCfg:        appCfg,
		colCfg:        colCfg,
		collectionKey: collectionKey,
		outputDir:     outputDir,
		pages:         make([]models.PageMetadata, 0),
	}
}

// OpenFiles truncates and opens the enabled JSONL outputs.
// Incremental builds first read the lines of the previous build so unchanged pages can reuse them.
func (om *OutputManager) OpenFiles(incremental bool) error {
	if err := os.MkdirAll(om.outputDir, 0755); err != nil {
		return fmt.Errorf("%w: create output directory '%s': %w", utils.ErrOutput, om.outputDir, err)
	}

	var err error
	if config.GetEffectiveEnableJSONLOutput(om.colCfg, om.appCfg) {
		om.jsonlFilePath = filepath.Join(om.outputDir, config.GetEffectiveJSONLOutputFilename(om.colCfg, om.appCfg))
		if incremental {
			if om.prevPages, err = readPreviousPages(om.log, om.jsonlFilePath); err != nil {
				return err
			}
		}
		if om.jsonlFile, err = openOutputFile(om.log, om.jsonlFilePath, "JSONL"); err != nil {
			return err
		}
	} else {
		om.log.Debug("JSONL output is disabled.")
	}

	if config.GetEffectiveChunkingEnabled(om.colCfg, om.appCfg) {
		om.chunksFilePath = filepath.Join(om.outputDir, config.GetEffectiveChunksFilename(om.appCfg))
		if incremental {
			if om.prevChunks, err = readPreviousChunks(om.log, om.chunksFilePath); err != nil {
				om.closeFiles()
				return err
			}
		}
		if om.chunksFile, err = openOutputFile(om.log, om.chunksFilePath, "chunks"); err != nil {
			om.closeFiles()
			return err
		}
	} else {
		om.log.Debug("Chunking output is disabled.")
	}
	return nil
}

func openOutputFile(log *logrus.Entry, path, label string) (*os.File, error) {
	log.Infof("Writing %s file: %s", label, path)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s file '%s': %w", utils.ErrOutput, label, path, err)
	}
	return file, nil
}

// slugLine is any JSONL line keyed by its page slug
type slugLine interface {
	models.PageJSONL | models.ChunkJSONL
}

// scanPrevious decodes each line of a JSONL file written by an earlier build.
// A missing file yields nothing; undecodable lines are skipped.
func scanPrevious[T slugLine](log *logrus.Entry, path string, fn func(line T)) error {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: open previous output '%s': %w", utils.ErrOutput, path, err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	for lineNo := 1; ; lineNo++ {
		raw, readErr := reader.ReadBytes('\n')
		if len(raw) > 0 {
			var line T
			if err := json.Unmarshal(raw, &line); err != nil {
				log.Warnf("Skipping unreadable line %d of %s: %v", lineNo, path, err)
			} else {
				fn(line)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("%w: read previous output '%s': %w", utils.ErrOutput, path, readErr)
		}
	}
}

func readPreviousPages(log *logrus.Entry, path string) (map[string]models.PageJSONL, error) {
	prev := make(map[string]models.PageJSONL)
	err := scanPrevious(log, path, func(line models.PageJSONL) {
		prev[line.Slug] = line
	})
	return prev, err
}

func readPreviousChunks(log *logrus.Entry, path string) (map[string][]models.ChunkJSONL, error) {
	prev := make(map[string][]models.ChunkJSONL)
	err := scanPrevious(log, path, func(line models.ChunkJSONL) {
		prev[line.Slug] = append(prev[line.Slug], line)
	})
	return prev, err
}

// PreviousPage returns the line written for slug by the previous build
func (om *OutputManager) PreviousPage(slug string) (models.PageJSONL, bool) {
	line, ok := om.prevPages[slug]
	return line, ok
}

// PreviousChunks returns the chunk lines written for slug by the previous build
func (om *OutputManager) PreviousChunks(slug string) ([]models.ChunkJSONL, bool) {
	chunks, ok := om.prevChunks[slug]
	return chunks, ok
}

// ChunksEnabled reports whether chunk lines are written
func (om *OutputManager) ChunksEnabled() bool { return om.chunksFile != nil }

// RecordPage adds a page entry to the manifest
func (om *OutputManager) RecordPage(meta models.PageMetadata) {
	om.pages = append(om.pages, meta)
}

// WritePage writes one page line to the JSONL file
func (om *OutputManager) WritePage(page models.PageJSONL) error {
	if om.jsonlFile == nil {
		return nil
	}
	return writeJSONLine(om.jsonlFile, om.jsonlFilePath, page)
}

// WriteChunks writes the chunk lines of one page
func (om *OutputManager) WriteChunks(chunks []models.ChunkJSONL) error {
	if om.chunksFile == nil {
		return nil
	}
	for _, chunk := range chunks {
		if err := writeJSONLine(om.chunksFile, om.chunksFilePath, chunk); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONLine(file *os.File, path string, v any) error {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: marshal line for '%s': %w", utils.ErrParsing, path, err)
	}
	if _, err := file.Write(append(jsonBytes, '\n')); err != nil {
		return fmt.Errorf("%w: write '%s': %w", utils.ErrOutput, path, err)
	}
	return nil
}

// Close syncs and closes the JSONL files.
func (om *OutputManager) Close() error {
	return om.closeFiles()
}

func (om *OutputManager) closeFiles() error {
	var firstErr error
	for _, f := range []struct {
		file **os.File
		path string
	}{
		{&om.jsonlFile, om.jsonlFilePath},
		{&om.chunksFile, om.chunksFilePath},
	} {
		if *f.file == nil {
			continue
		}
		if err := (*f.file).Sync(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: sync '%s': %w", utils.ErrOutput, f.path, err)
		}
		if err := (*f.file).Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: close '%s': %w", utils.ErrOutput, f.path, err)
		}
		*f.file = nil
	}
	return firstErr
}

// WriteManifest writes the collected page metadata as a YAML build manifest.
func (om *OutputManager) WriteManifest(meta models.BuildMetadata) (string, error) {
	if !config.GetEffectiveEnableMetadataYAML(om.colCfg, om.appCfg) {
		om.log.Debug("YAML metadata output is disabled.")
		return "", nil
	}

	yamlFilePath := filepath.Join(om.outputDir, config.GetEffectiveMetadataYAMLFilename(om.colCfg, om.appCfg))

	var colConfigMap map[string]interface{}
	colConfigBytes, errCfgMarshal := yaml.Marshal(om.colCfg)
	if errCfgMarshal != nil {
		om.log.Warnf("Could not marshal collection_configuration for YAML metadata: %v", errCfgMarshal)
	} else if errCfgUnmarshal := yaml.Unmarshal(colConfigBytes, &colConfigMap); errCfgUnmarshal != nil {
		om.log.Warnf("Could not unmarshal collection_configuration into map for YAML metadata: %v", errCfgUnmarshal)
		colConfigMap = nil
	}

	meta.CollectionKey = om.collectionKey
	meta.CollectionConfiguration = colConfigMap
	meta.Pages = om.pages
	if meta.BuildEndTime.IsZero() {
		meta.BuildEndTime = time.Now()
	}

	yamlData, err := yaml.Marshal(&meta)
	if err != nil {
		return "", fmt.Errorf("%w: marshal build metadata for '%s': %w", utils.ErrParsing, om.collectionKey, err)
	}
	if err := os.WriteFile(yamlFilePath, yamlData, 0644); err != nil {
		return "", fmt.Errorf("%w: write metadata YAML file '%s': %w", utils.ErrOutput, yamlFilePath, err)
	}

	om.log.Infof("Wrote build metadata (%d pages) to %s", len(om.pages), yamlFilePath)
	return yamlFilePath, nil
}

package utils

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrNotFound         = errors.New("content not found")              // Wraps fs.ErrNotExist for missing slugs
	ErrFilesystem       = errors.New("filesystem error")               // Wraps os errors
	ErrFrontMatter      = errors.New("malformed front-matter")         // Wraps YAML decoding errors
	ErrInvalidSlug      = errors.New("invalid slug")                   // Slug escapes the content root or is empty
	ErrParsing          = errors.New("parsing error")                  // Wraps other parse errors (config, JSON)
	ErrConfigValidation = errors.New("configuration validation error") // Config is unusable
	ErrDatabase         = errors.New("database error")                 // Wraps badger errors
	ErrOutput           = errors.New("output error")                   // Writing build artifacts failed
)

// WrapErrorf wraps sentinel with a formatted message so errors.Is keeps matching it.
// A nil sentinel yields nil.
func WrapErrorf(sentinel error, format string, args ...interface{}) error {
	if sentinel == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// CategorizeError maps an error to a predefined category string for logging and build records.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return "Content_NotFound"
	case errors.Is(err, ErrFrontMatter):
		return "Content_FrontMatter"
	case errors.Is(err, ErrInvalidSlug):
		return "Content_InvalidSlug"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, fs.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, fs.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrParsing):
		return "Parsing_Other"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrOutput):
		return "Output_Write"
	}

	// --- Fallback checks for unwrapped errors ---
	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}
	if errors.Is(err, fs.ErrPermission) {
		return "Filesystem_Permission"
	}
	if errors.Is(err, fs.ErrNotExist) {
		return "Filesystem_NotExist"
	}

	return "Unknown"
}

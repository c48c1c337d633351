package utils

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"testing"
)

// --- CategorizeError Tests ---

func TestCategorizeError_NilError(t *testing.T) {
	result := CategorizeError(nil)
	if result != "None" {
		t.Errorf("CategorizeError(nil) = %q, want %q", result, "None")
	}
}

func TestCategorizeError_SentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"NotFound", ErrNotFound, "Content_NotFound"},
		{"FrontMatter", ErrFrontMatter, "Content_FrontMatter"},
		{"InvalidSlug", ErrInvalidSlug, "Content_InvalidSlug"},
		{"Filesystem", ErrFilesystem, "Filesystem_Other"},
		{"Parsing", ErrParsing, "Parsing_Other"},
		{"ConfigValidation", ErrConfigValidation, "Config_Validation"},
		{"Database", ErrDatabase, "Database_Other"},
		{"Output", ErrOutput, "Output_Write"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_WrappedErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "MissingSlug",
			err:      fmt.Errorf("%w: slug '/about': %w", ErrNotFound, fs.ErrNotExist),
			expected: "Content_NotFound",
		},
		{
			name:     "FilesystemPermission",
			err:      fmt.Errorf("%w: read dir: %w", ErrFilesystem, fs.ErrPermission),
			expected: "Filesystem_Permission",
		},
		{
			name:     "FilesystemNotExist",
			err:      fmt.Errorf("%w: read dir: %w", ErrFilesystem, fs.ErrNotExist),
			expected: "Filesystem_NotExist",
		},
		{
			name:     "DoubleWrappedFrontMatter",
			err:      fmt.Errorf("load /about: %w", fmt.Errorf("%w: yaml: line 2", ErrFrontMatter)),
			expected: "Content_FrontMatter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_ContextErrors(t *testing.T) {
	if got := CategorizeError(context.Canceled); got != "System_ContextCanceled" {
		t.Errorf("CategorizeError(Canceled) = %q", got)
	}
	if got := CategorizeError(fmt.Errorf("build: %w", context.DeadlineExceeded)); got != "System_ContextDeadlineExceeded" {
		t.Errorf("CategorizeError(DeadlineExceeded) = %q", got)
	}
}

func TestCategorizeError_BareFilesystemErrors(t *testing.T) {
	_, err := os.Open("/nonexistent/path/file.md")
	if got := CategorizeError(err); got != "Filesystem_NotExist" {
		t.Errorf("CategorizeError(%v) = %q, want %q", err, got, "Filesystem_NotExist")
	}
}

func TestCategorizeError_Unknown(t *testing.T) {
	err := errors.New("something unexpected")
	if result := CategorizeError(err); result != "Unknown" {
		t.Errorf("CategorizeError(%v) = %q, want %q", err, result, "Unknown")
	}
}

// --- WrapErrorf Tests ---

func TestWrapErrorf_NilError(t *testing.T) {
	if result := WrapErrorf(nil, "some context"); result != nil {
		t.Errorf("WrapErrorf(nil, ...) = %v, want nil", result)
	}
}

func TestWrapErrorf_WrapsSentinel(t *testing.T) {
	wrapped := WrapErrorf(ErrInvalidSlug, "slug '%s' escapes the content root", "../etc")

	if !errors.Is(wrapped, ErrInvalidSlug) {
		t.Error("WrapErrorf() result should wrap the sentinel")
	}
	expectedMsg := "invalid slug: slug '../etc' escapes the content root"
	if wrapped.Error() != expectedMsg {
		t.Errorf("WrapErrorf() message = %q, want %q", wrapped.Error(), expectedMsg)
	}
}

// --- SanitizeFilename Tests ---

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Simple", "docs", "docs"},
		{"WithSlash", "eth/docs", "eth_docs"},
		{"WithBackslash", "eth\\docs", "eth_docs"},
		{"WithColon", "site:docs", "site_docs"},
		{"ConsecutiveUnderscores", "a___b", "a_b"},
		{"LeadingTrailing", " _docs_ ", "docs"},
		{"Empty", "", "untitled"},
		{"OnlyInvalidChars", "<>:", "untitled"},
		{"ControlChars", "docs\x01\x02v2", "docs_v2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := SanitizeFilename(tt.input); result != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename_LongNames(t *testing.T) {
	result := SanitizeFilename(strings.Repeat("a", 150))
	if len(result) > 100 {
		t.Errorf("SanitizeFilename(long) length = %d, want <= 100", len(result))
	}
}

// --- CalculateStringSHA256 Tests ---

func TestCalculateStringSHA256(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"EmptyString", "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"HelloWorld", "hello world", "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
		{"SimpleText", "test", "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := CalculateStringSHA256(tt.input); result != tt.expected {
				t.Errorf("CalculateStringSHA256(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

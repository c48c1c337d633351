package process

import (
	"fmt"
	"slices"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// DefaultEncoding is used when no token encoding is configured
const DefaultEncoding = "cl100k_base"

var encodings = map[string]tokenizer.Encoding{
	"cl100k_base": tokenizer.Cl100kBase,
	"o200k_base":  tokenizer.O200kBase,
	"p50k_base":   tokenizer.P50kBase,
	"p50k_edit":   tokenizer.P50kEdit,
	"r50k_base":   tokenizer.R50kBase,
}

// Process-wide codec shared by every collection build.
var (
	codecMu sync.RWMutex
	codec   tokenizer.Codec
)

// SupportedEncodings lists the accepted token_encoding values, sorted
func SupportedEncodings() []string {
	names := make([]string, 0, len(encodings))
	for name := range encodings {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsSupportedEncoding reports whether name is a known encoding ("" counts as the default)
func IsSupportedEncoding(name string) bool {
	if name == "" {
		return true
	}
	_, ok := encodings[name]
	return ok
}

// InitTokenizer loads the codec for encoding ("" means DefaultEncoding).
// An unknown encoding leaves the previous codec in place.
func InitTokenizer(encoding string) error {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, ok := encodings[encoding]
	if !ok {
		return fmt.Errorf("unsupported token encoding '%s' (supported: %v)", encoding, SupportedEncodings())
	}

	c, err := tokenizer.Get(enc)
	if err != nil {
		return fmt.Errorf("load token encoding '%s': %w", encoding, err)
	}

	codecMu.Lock()
	codec = c
	codecMu.Unlock()
	return nil
}

// CountTokens returns the number of tokens in text, or -1 when no codec is
// loaded or encoding fails. -1 keeps "unknown" apart from an empty text.
func CountTokens(text string) int {
	codecMu.RLock()
	c := codec
	codecMu.RUnlock()

	if c == nil {
		return -1
	}
	ids, _, err := c.Encode(text)
	if err != nil {
		return -1
	}
	return len(ids)
}

// EstimateTokens counts tokens when a codec is loaded and otherwise
// approximates one token per four bytes.
func EstimateTokens(text string) int {
	if n := CountTokens(text); n >= 0 {
		return n
	}
	return len(text) / 4
}

// IsInitialized reports whether a codec is loaded
func IsInitialized() bool {
	codecMu.RLock()
	defer codecMu.RUnlock()
	return codec != nil
}

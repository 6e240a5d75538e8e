package tokenizer

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE used by current OpenAI chat models.
const DefaultEncoding = "cl100k_base"

// Counter counts model tokens in text.
type Counter interface {
	Count(text string) int
}

// Tokenizer counts tokens with tiktoken. When the encoding cannot be loaded (for example
// offline, since tiktoken fetches BPE ranks on first use) it falls back to an estimate.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New loads the named encoding, falling back to Estimate on failure.
func New(encoding string, logger *slog.Logger) *Tokenizer {
	if strings.TrimSpace(encoding) == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		if logger != nil {
			logger.Warn("tiktoken encoding unavailable, estimating tokens", "encoding", encoding, "error", err)
		}
		return &Tokenizer{}
	}
	return &Tokenizer{enc: enc}
}

// Count returns the token count of text.
func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	if t == nil || t.enc == nil {
		return Estimate(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Exact reports whether counts come from a real encoding.
func (t *Tokenizer) Exact() bool {
	return t != nil && t.enc != nil
}

// Estimate approximates tokens as the larger of the word count and a quarter of the
// rune count.
func Estimate(text string) int {
	words := len(strings.Fields(text))
	runes := (utf8.RuneCountInString(text) + 3) / 4
	if words > runes {
		return words
	}
	return runes
}

var _ Counter = (*Tokenizer)(nil)

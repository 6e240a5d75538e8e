package chunker

import (
	"strings"

	"github.com/yanqian/brainybinder/internal/infra/tokenizer"
)

// TokenChunker splits long topic text into pieces that fit a token budget.
type TokenChunker struct {
	counter   tokenizer.Counter
	maxTokens int
}

// NewTokenChunker constructs a chunker. A non-positive budget keeps 3000 tokens.
func NewTokenChunker(counter tokenizer.Counter, maxTokens int) *TokenChunker {
	if maxTokens <= 0 {
		maxTokens = 3000
	}
	return &TokenChunker{counter: counter, maxTokens: maxTokens}
}

// Count reports the token count of text.
func (c *TokenChunker) Count(text string) int {
	return c.counter.Count(text)
}

// Budget returns the per-chunk token limit.
func (c *TokenChunker) Budget() int {
	return c.maxTokens
}

// Chunk packs paragraphs into chunks under the budget. A paragraph larger than the
// budget is split on word boundaries.
func (c *TokenChunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		out     []string
		current []string
		used    int
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		out = append(out, strings.Join(current, "\n\n"))
		current = current[:0]
		used = 0
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		cost := c.counter.Count(para)
		if cost > c.maxTokens {
			flush()
			out = append(out, c.splitWords(para)...)
			continue
		}
		if used+cost > c.maxTokens {
			flush()
		}
		current = append(current, para)
		used += cost
	}
	flush()
	return out
}

func (c *TokenChunker) splitWords(para string) []string {
	var (
		out     []string
		builder strings.Builder
		used    int
	)
	for _, word := range strings.Fields(para) {
		cost := c.counter.Count(word + " ")
		if used+cost > c.maxTokens && builder.Len() > 0 {
			out = append(out, strings.TrimSpace(builder.String()))
			builder.Reset()
			used = 0
		}
		builder.WriteString(word)
		builder.WriteString(" ")
		used += cost
	}
	if builder.Len() > 0 {
		out = append(out, strings.TrimSpace(builder.String()))
	}
	return out
}

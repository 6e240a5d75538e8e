package segmenter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	domain "github.com/yanqian/brainybinder/internal/domain/deck"
	"github.com/yanqian/brainybinder/internal/infra/llm"
)

const (
	pageExcerptRunes = 600

	segmentPrompt = `You split slide decks into topics.
You receive the text of every slide, in order. Consecutive slides that cover the same subject belong to the same topic.
Return ONLY a JSON array of strings with exactly one short topic label per slide, in slide order.
Slides of the same topic must carry exactly the same label. Labels are at most 6 words.`
)

// LLMSegmenter asks the chat model for topic labels and falls back to headings when the
// answer cannot be used.
type LLMSegmenter struct {
	client   llm.Client
	fallback domain.Segmenter
	logger   *slog.Logger
}

// NewLLMSegmenter constructs the segmenter.
func NewLLMSegmenter(client llm.Client, fallback domain.Segmenter, logger *slog.Logger) *LLMSegmenter {
	if fallback == nil {
		fallback = NewHeadingSegmenter()
	}
	return &LLMSegmenter{
		client:   client,
		fallback: fallback,
		logger:   logger.With("component", "deck.segmenter.llm"),
	}
}

func (s *LLMSegmenter) Segment(ctx context.Context, pages []string) ([]string, error) {
	if len(pages) == 0 {
		return []string{}, nil
	}
	reply, err := s.client.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: segmentPrompt},
		{Role: llm.RoleUser, Content: buildSlidesPrompt(pages)},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		s.logger.Warn("llm segmentation failed, using headings", "error", err)
		return s.fallback.Segment(ctx, pages)
	}
	labels, err := parseLabels(reply, len(pages))
	if err != nil {
		s.logger.Warn("llm segmentation unusable, using headings", "error", err, "pages", len(pages))
		return s.fallback.Segment(ctx, pages)
	}
	return labels, nil
}

func buildSlidesPrompt(pages []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The deck has %d slides.\n", len(pages))
	for i, page := range pages {
		text := strings.Join(strings.Fields(page), " ")
		if text == "" {
			text = "(no text)"
		}
		fmt.Fprintf(&b, "\n--- Slide %d ---\n%s\n", i+1, capRunes(text, pageExcerptRunes))
	}
	return b.String()
}

// parseLabels pulls the JSON array out of the reply, tolerating code fences and prose.
func parseLabels(reply string, want int) ([]string, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start == -1 || end <= start {
		return nil, errors.New("reply has no json array")
	}
	var labels []string
	if err := json.Unmarshal([]byte(reply[start:end+1]), &labels); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	if len(labels) != want {
		return nil, fmt.Errorf("got %d labels for %d slides", len(labels), want)
	}
	for i := range labels {
		labels[i] = capRunes(strings.TrimSpace(labels[i]), maxLabelRunes)
	}
	return labels, nil
}

var _ domain.Segmenter = (*LLMSegmenter)(nil)

package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/yanqian/brainybinder/internal/domain/deck"
	"github.com/yanqian/brainybinder/internal/infra/llm"
	apperrors "github.com/yanqian/brainybinder/pkg/errors"
	"github.com/yanqian/brainybinder/pkg/metrics"
)

const (
	focusedSystemPrompt = `You are an expert presentation analyst. Answer the user's question using only the slide text provided.
If the slide does not contain the answer, say so briefly. Reply in plain text in this format:
SUMMARY:
<answer>`

	tldrSystemPrompt = `You write one-sentence TL;DRs of presentation slides. Capture the single most important point.
Reply in plain text in this format:
TLDR:
<one sentence>`

	topicSystemPrompt = `You summarize a topic that spans several consecutive presentation slides.
Combine the slides into one coherent summary that follows the order of the slides and keeps key figures.
Reply in plain text in this format:
SUMMARY:
<summary>`

	partialSystemPrompt = `You summarize one part of a longer presentation topic. Keep every figure, name and conclusion.
Reply in plain text in this format:
SUMMARY:
<summary>`
)

// Service produces the three kinds of deck summaries through an llm.Client.
type Service struct {
	cfg     Config
	client  llm.Client
	chunker TopicChunker
	logger  *slog.Logger
}

// NewService is a wire provider for the summarizer domain. chunker may be nil, in
// which case topics are always summarized in one call.
func NewService(cfg Config, client llm.Client, chunker TopicChunker, logger *slog.Logger) *Service {
	if cfg.MaxParallelChunks <= 0 {
		cfg.MaxParallelChunks = 4
	}
	return &Service{
		cfg:     cfg,
		client:  client,
		chunker: chunker,
		logger:  logger.With("component", "summarizer.service"),
	}
}

// FocusedSummary answers prompt from the text of a single slide.
func (s *Service) FocusedSummary(ctx context.Context, pageText, prompt string) (string, error) {
	text := normalize(pageText)
	if text == "" {
		return EmptyPageSummary, nil
	}
	user := fmt.Sprintf("Question:\n%s\n\nSlide text:\n%s\n\nConstraints:\n- Answer in at most %d characters.",
		strings.TrimSpace(prompt), text, s.cfg.MaxSummaryLen)
	out, err := s.complete(ctx, "focused", focusedSystemPrompt, user, "SUMMARY:")
	if err != nil {
		return "", err
	}
	return truncate(out, s.cfg.MaxSummaryLen), nil
}

// TLDR summarizes a slide in one sentence, independent of any question.
func (s *Service) TLDR(ctx context.Context, pageText string) (string, error) {
	text := normalize(pageText)
	if text == "" {
		return EmptyPageTLDR, nil
	}
	user := fmt.Sprintf("Slide text:\n%s\n\nConstraints:\n- At most %d characters.", text, s.cfg.MaxTldrLen)
	out, err := s.complete(ctx, "tldr", tldrSystemPrompt, user, "TLDR:")
	if err != nil {
		return "", err
	}
	return truncate(out, s.cfg.MaxTldrLen), nil
}

// TopicSummary summarizes every slide of a topic. Text over the chunker's budget is
// summarized in parts first and the parts are then combined.
func (s *Service) TopicSummary(ctx context.Context, label, text string) (string, error) {
	text = normalize(text)
	if !hasContent(text) {
		return EmptyTopicSummary, nil
	}

	if s.chunker != nil && s.chunker.Count(text) > s.chunker.Budget() {
		partials, err := s.summarizeChunks(ctx, label, s.chunker.Chunk(text))
		if err != nil {
			return "", err
		}
		s.logger.Info("long topic summarized in parts", "topic", label, "parts", len(partials))
		text = joinPartials(partials)
	}

	user := fmt.Sprintf("Topic: %s\n\nSlides:\n%s\n\nConstraints:\n- At most %d characters.", label, text, s.cfg.MaxSummaryLen)
	out, err := s.complete(ctx, "topic", topicSystemPrompt, user, "SUMMARY:")
	if err != nil {
		return "", err
	}
	return truncate(out, s.cfg.MaxSummaryLen), nil
}

func (s *Service) summarizeChunks(ctx context.Context, label string, chunks []string) ([]string, error) {
	partials := make([]string, len(chunks))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.MaxParallelChunks)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		group.Go(func() error {
			user := fmt.Sprintf("Topic: %s (part %d of %d)\n\n%s", label, i+1, len(chunks), chunk)
			out, err := s.complete(groupCtx, "topic_part", partialSystemPrompt, user, "SUMMARY:")
			if err != nil {
				return err
			}
			partials[i] = out
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return partials, nil
}

func (s *Service) complete(ctx context.Context, kind, system, user, marker string) (string, error) {
	content, err := s.client.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUpstreamFailure, "summarization model call failed", err)
	}
	out, err := extractSection(content, marker)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUpstreamFailure, "summarization model response malformed", err)
	}
	if s.chunker != nil {
		usage := metrics.NewTokenUsage(s.chunker.Count(system)+s.chunker.Count(user), s.chunker.Count(content))
		s.logger.Debug("model call completed", "kind", kind, "prompt_tokens", usage.PromptTokens, "completion_tokens", usage.CompletionTokens)
	}
	return out, nil
}

// extractSection returns the text after marker, or the whole reply when the model
// ignored the format.
func extractSection(content, marker string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", errors.New("empty llm response")
	}
	if idx := findMarker(content, marker); idx != -1 {
		content = strings.TrimSpace(content[idx+len(marker):])
	}
	if content == "" {
		return "", fmt.Errorf("%s section empty", strings.TrimSuffix(marker, ":"))
	}
	return content, nil
}

func joinPartials(partials []string) string {
	var b strings.Builder
	for i, part := range partials {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Part %d summary:\n%s", i+1, part)
	}
	return b.String()
}

// hasContent ignores the slide separators a topic text is built with.
func hasContent(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || (strings.HasPrefix(line, "--- Slide ") && strings.HasSuffix(line, "---")) {
			continue
		}
		return true
	}
	return false
}

// findMarker returns the byte offset of marker in content, ignoring case. Offsets are
// taken from content itself so the caller can slice it.
func findMarker(content, marker string) int {
	if marker == "" {
		return -1
	}
	for i := range content {
		if len(content)-i < len(marker) {
			break
		}
		if strings.EqualFold(content[i:i+len(marker)], marker) {
			return i
		}
	}
	return -1
}

func normalize(text string) string {
	text = strings.TrimSpace(text)
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, text)
}

func truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	if limit <= 3 {
		return string(runes[:limit])
	}
	return strings.TrimSpace(string(runes[:limit-3])) + "..."
}

var _ deck.Summarizer = (*Service)(nil)

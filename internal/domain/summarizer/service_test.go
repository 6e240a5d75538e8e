package summarizer_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/brainybinder/internal/domain/summarizer"
	"github.com/yanqian/brainybinder/internal/infra/deck/chunker"
	"github.com/yanqian/brainybinder/internal/infra/llm"
	apperrors "github.com/yanqian/brainybinder/pkg/errors"
	"github.com/yanqian/brainybinder/pkg/logger"
)

type stubChatClient struct {
	mu       sync.Mutex
	reply    func(messages []llm.Message) (string, error)
	requests [][]llm.Message
}

func (s *stubChatClient) Chat(_ context.Context, messages []llm.Message) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, messages)
	s.mu.Unlock()
	return s.reply(messages)
}

func (s *stubChatClient) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func fixedReply(content string) func([]llm.Message) (string, error) {
	return func([]llm.Message) (string, error) { return content, nil }
}

func testConfig() summarizer.Config {
	return summarizer.Config{MaxSummaryLen: 200, MaxTldrLen: 60}
}

type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func TestFocusedSummaryUsesPromptAndSlide(t *testing.T) {
	t.Parallel()

	client := &stubChatClient{reply: fixedReply("SUMMARY:\nMargins rose to 40%.")}
	svc := summarizer.NewService(testConfig(), client, nil, logger.Discard())

	out, err := svc.FocusedSummary(context.Background(), "Gross margin 40%", "What happened to margins?")
	require.NoError(t, err)
	require.Equal(t, "Margins rose to 40%.", out)

	require.Equal(t, 1, client.calls())
	msgs := client.requests[0]
	require.Equal(t, llm.RoleSystem, msgs[0].Role)
	require.Contains(t, msgs[1].Content, "What happened to margins?")
	require.Contains(t, msgs[1].Content, "Gross margin 40%")
}

func TestTLDRIsTruncated(t *testing.T) {
	t.Parallel()

	client := &stubChatClient{reply: fixedReply("TLDR: " + strings.Repeat("long ", 40))}
	svc := summarizer.NewService(testConfig(), client, nil, logger.Discard())

	out, err := svc.TLDR(context.Background(), "slide text")
	require.NoError(t, err)
	require.LessOrEqual(t, len([]rune(out)), 60)
	require.True(t, strings.HasSuffix(out, "..."))
	require.NotContains(t, client.requests[0][1].Content, "Question")
}

func TestEmptyTextSkipsModel(t *testing.T) {
	t.Parallel()

	client := &stubChatClient{reply: fixedReply("unused")}
	svc := summarizer.NewService(testConfig(), client, nil, logger.Discard())

	out, err := svc.FocusedSummary(context.Background(), "  ", "anything")
	require.NoError(t, err)
	require.Equal(t, summarizer.EmptyPageSummary, out)

	out, err = svc.TLDR(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, summarizer.EmptyPageTLDR, out)

	out, err = svc.TopicSummary(context.Background(), "Intro", "--- Slide 1 ---\n\n\n--- Slide 2 ---\n")
	require.NoError(t, err)
	require.Equal(t, summarizer.EmptyTopicSummary, out)

	require.Zero(t, client.calls())
}

func TestModelFailureIsUpstreamFailure(t *testing.T) {
	t.Parallel()

	client := &stubChatClient{reply: func([]llm.Message) (string, error) { return "", errors.New("timeout") }}
	svc := summarizer.NewService(testConfig(), client, nil, logger.Discard())

	_, err := svc.TopicSummary(context.Background(), "Intro", "--- Slide 1 ---\nhello")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeUpstreamFailure))
}

func TestTopicSummarySingleCallWithinBudget(t *testing.T) {
	t.Parallel()

	client := &stubChatClient{reply: fixedReply("SUMMARY:\nGrowth across both slides.")}
	svc := summarizer.NewService(testConfig(), client, chunker.NewTokenChunker(wordCounter{}, 100), logger.Discard())

	out, err := svc.TopicSummary(context.Background(), "Growth", "--- Slide 2 ---\nusers up\n\n--- Slide 3 ---\nrevenue up")
	require.NoError(t, err)
	require.Equal(t, "Growth across both slides.", out)
	require.Equal(t, 1, client.calls())
	require.Contains(t, client.requests[0][1].Content, "Topic: Growth")
}

func TestTopicSummaryMapReduceOverBudget(t *testing.T) {
	t.Parallel()

	client := &stubChatClient{reply: func(messages []llm.Message) (string, error) {
		if strings.Contains(messages[1].Content, "(part ") {
			return "SUMMARY:\npartial", nil
		}
		return "SUMMARY:\ncombined", nil
	}}
	svc := summarizer.NewService(testConfig(), client, chunker.NewTokenChunker(wordCounter{}, 7), logger.Discard())

	text := "--- Slide 1 ---\none two three\n\n--- Slide 2 ---\nfour five six\n\n--- Slide 3 ---\nseven eight nine"
	out, err := svc.TopicSummary(context.Background(), "Numbers", text)
	require.NoError(t, err)
	require.Equal(t, "combined", out)
	require.Equal(t, 4, client.calls())

	final := client.requests[len(client.requests)-1][1].Content
	require.Contains(t, final, "Part 1 summary:\npartial")
	require.Contains(t, final, "Part 3 summary:\npartial")
}

package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/yanqian/brainybinder/internal/infra/llm/chatgpt"
)

// ChatGPT adapts the in-repo chat completions client.
type ChatGPT struct {
	client      *chatgpt.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

// NewChatGPT constructs the adapter.
func NewChatGPT(client *chatgpt.Client, model string, temperature float32, maxTokens int, logger *slog.Logger) *ChatGPT {
	return &ChatGPT{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger.With("component", "llm.chatgpt"),
	}
}

func (c *ChatGPT) Chat(ctx context.Context, messages []Message) (string, error) {
	req := chatgpt.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages:    make([]chatgpt.Message, 0, len(messages)),
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, chatgpt.Message{Role: msg.Role, Content: msg.Content})
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	c.logger.Debug("chat completion received",
		"model", c.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason,
	)
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

var _ Client = (*ChatGPT)(nil)

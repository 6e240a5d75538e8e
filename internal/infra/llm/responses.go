package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

const defaultMaxOutputTokens int64 = 1024

// OpenAIResponses calls OpenAI's Responses API through the official SDK.
type OpenAIResponses struct {
	client          openai.Client
	model           string
	temperature     float64
	maxOutputTokens int64
}

// NewOpenAIResponses builds the client. The SDK's own retries are disabled; a failed
// call surfaces to the caller as is.
func NewOpenAIResponses(apiKey, baseURL, model string, temperature float32, maxOutputTokens int) (*OpenAIResponses, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key cannot be empty")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	limit := int64(maxOutputTokens)
	if limit <= 0 {
		limit = defaultMaxOutputTokens
	}
	return &OpenAIResponses{
		client:          openai.NewClient(opts...),
		model:           model,
		temperature:     float64(temperature),
		maxOutputTokens: limit,
	}, nil
}

func (c *OpenAIResponses) Chat(ctx context.Context, messages []Message) (string, error) {
	system, rest := splitSystem(messages)

	var input strings.Builder
	for _, msg := range rest {
		if input.Len() > 0 {
			input.WriteString("\n\n")
		}
		input.WriteString(msg.Content)
	}

	params := responses.ResponseNewParams{
		Model:           shared.ResponsesModel(c.model),
		MaxOutputTokens: openai.Int(c.maxOutputTokens),
		Temperature:     openai.Float(c.temperature),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(input.String()),
		},
	}
	if system != "" {
		params.Instructions = openai.String(system)
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai responses request: %w", err)
	}
	if resp.Status == "incomplete" {
		return "", fmt.Errorf("openai response is incomplete (reason = %s)", resp.IncompleteDetails.Reason)
	}
	out := strings.TrimSpace(resp.OutputText())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

var _ Client = (*OpenAIResponses)(nil)

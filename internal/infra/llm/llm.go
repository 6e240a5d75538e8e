package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yanqian/brainybinder/pkg/metrics"
)

// Chat roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// Message is a provider-neutral chat message.
type Message struct {
	Role    string
	Content string
}

// Client is the single call every summarization and segmentation path goes through.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// TimedClient records every call into rolling latency stats.
type TimedClient struct {
	next  Client
	stats *metrics.LatencyStats
}

// NewTimedClient wraps next so its calls show up in stats.
func NewTimedClient(next Client, stats *metrics.LatencyStats) *TimedClient {
	return &TimedClient{next: next, stats: stats}
}

func (c *TimedClient) Chat(ctx context.Context, messages []Message) (string, error) {
	start := time.Now()
	out, err := c.next.Chat(ctx, messages)
	c.stats.Observe(time.Since(start), err)
	return out, err
}

// splitSystem joins the system messages into one instruction block and returns the
// remaining conversation.
func splitSystem(messages []Message) (string, []Message) {
	var (
		system []string
		rest   = make([]Message, 0, len(messages))
	)
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if text := strings.TrimSpace(msg.Content); text != "" {
				system = append(system, text)
			}
			continue
		}
		rest = append(rest, msg)
	}
	return strings.Join(system, "\n\n"), rest
}

var _ Client = (*TimedClient)(nil)

package llm

import (
	"context"
	"strings"
	"unicode/utf8"
)

const echoLimit = 280

// Echo answers without any network call by condensing the last user message. It keeps
// the service usable when no provider is configured.
type Echo struct{}

func (Echo) Chat(_ context.Context, messages []Message) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleSystem {
			continue
		}
		text := strings.Join(strings.Fields(messages[i].Content), " ")
		if text == "" {
			break
		}
		if utf8.RuneCountInString(text) > echoLimit {
			runes := []rune(text)
			text = strings.TrimSpace(string(runes[:echoLimit])) + "..."
		}
		return text, nil
	}
	return "", ErrEmptyResponse
}

var _ Client = Echo{}

package store

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	domain "github.com/yanqian/brainybinder/internal/domain/deck"
)

func TestValkeySlotKeys(t *testing.T) {
	t.Parallel()

	s := NewValkeyStore(nil, "", 0, 32)
	docID := uuid.MustParse("7b0f7c52-8f47-4c5e-9b0e-8f7a2d9c1e11")

	require.Equal(t, "deck:7b0f7c52-8f47-4c5e-9b0e-8f7a2d9c1e11:page:3:tldr",
		s.slotKey(domain.SlotKey{DocumentID: docID, Kind: domain.SlotTLDR, PageIndex: 3}))

	focused := s.slotKey(domain.SlotKey{DocumentID: docID, Kind: domain.SlotFocused, PageIndex: 3, Prompt: "what about margins?"})
	require.True(t, strings.HasPrefix(focused, "deck:7b0f7c52-8f47-4c5e-9b0e-8f7a2d9c1e11:page:3:focused:"))
	require.NotContains(t, focused, "margins")

	other := s.slotKey(domain.SlotKey{DocumentID: docID, Kind: domain.SlotFocused, PageIndex: 3, Prompt: "what about revenue?"})
	require.NotEqual(t, focused, other)

	index := s.promptIndexKey(domain.SlotKey{DocumentID: docID, Kind: domain.SlotFocused, PageIndex: 3, Prompt: "what about margins?"})
	require.Equal(t, "deck:7b0f7c52-8f47-4c5e-9b0e-8f7a2d9c1e11:page:3:prompts", index)
	require.Equal(t, focused, s.focusedKey(domain.SlotKey{DocumentID: docID, PageIndex: 3}, digest("what about margins?")))

	topic := s.slotKey(domain.SlotKey{DocumentID: docID, Kind: domain.SlotTopic, TopicID: "Pricing (2)"})
	require.True(t, strings.HasPrefix(topic, "deck:7b0f7c52-8f47-4c5e-9b0e-8f7a2d9c1e11:topic:"))
}

func TestValkeyStoreClampsShortTTL(t *testing.T) {
	t.Parallel()

	s := NewValkeyStore(nil, "custom", 10*time.Millisecond, 4)
	require.Equal(t, time.Second, s.ttl)
	require.Equal(t, "custom", s.prefix)
	require.Equal(t, 4, s.maxPrompts)
}

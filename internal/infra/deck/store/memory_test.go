package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	domain "github.com/yanqian/brainybinder/internal/domain/deck"
)

func TestMemoryStoreFirstWriteWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(4)
	docID := uuid.New()

	keys := []domain.SlotKey{
		{DocumentID: docID, Kind: domain.SlotTLDR, PageIndex: 0},
		{DocumentID: docID, Kind: domain.SlotFocused, PageIndex: 0, Prompt: "why?"},
		{DocumentID: docID, Kind: domain.SlotTopic, TopicID: "A"},
	}
	for _, key := range keys {
		_, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.False(t, ok)

		stored, err := s.PutIfAbsent(ctx, key, "first")
		require.NoError(t, err)
		require.Equal(t, "first", stored)

		stored, err = s.PutIfAbsent(ctx, key, "second")
		require.NoError(t, err)
		require.Equal(t, "first", stored)

		value, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "first", value)
	}
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(4)
	docID := uuid.New()

	_, err := s.PutIfAbsent(ctx, domain.SlotKey{DocumentID: docID, Kind: domain.SlotFocused, PageIndex: 1, Prompt: "a"}, "page1-a")
	require.NoError(t, err)

	for _, key := range []domain.SlotKey{
		{DocumentID: docID, Kind: domain.SlotFocused, PageIndex: 1, Prompt: "b"},
		{DocumentID: docID, Kind: domain.SlotFocused, PageIndex: 2, Prompt: "a"},
		{DocumentID: uuid.New(), Kind: domain.SlotFocused, PageIndex: 1, Prompt: "a"},
		{DocumentID: docID, Kind: domain.SlotTLDR, PageIndex: 1},
	} {
		_, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.False(t, ok, key.String())
	}
}

func TestMemoryStoreEvictsLeastRecentlyUsedPrompt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(2)
	docID := uuid.New()
	key := func(prompt string) domain.SlotKey {
		return domain.SlotKey{DocumentID: docID, Kind: domain.SlotFocused, PageIndex: 0, Prompt: prompt}
	}

	_, err := s.PutIfAbsent(ctx, key("p1"), "v1")
	require.NoError(t, err)
	_, err = s.PutIfAbsent(ctx, key("p2"), "v2")
	require.NoError(t, err)
	_, ok, _ := s.Get(ctx, key("p1"))
	require.True(t, ok)
	_, err = s.PutIfAbsent(ctx, key("p3"), "v3")
	require.NoError(t, err)

	_, ok, _ = s.Get(ctx, key("p2"))
	require.False(t, ok)
	_, ok, _ = s.Get(ctx, key("p1"))
	require.True(t, ok)
	_, ok, _ = s.Get(ctx, key("p3"))
	require.True(t, ok)
}

func TestMemoryStoreNeverEvictsTLDROrTopic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(1)
	docID := uuid.New()
	tldr := domain.SlotKey{DocumentID: docID, Kind: domain.SlotTLDR, PageIndex: 0}
	topic := domain.SlotKey{DocumentID: docID, Kind: domain.SlotTopic, TopicID: "A"}
	_, _ = s.PutIfAbsent(ctx, tldr, "tldr")
	_, _ = s.PutIfAbsent(ctx, topic, "topic")

	for i := 0; i < 10; i++ {
		_, err := s.PutIfAbsent(ctx, domain.SlotKey{DocumentID: docID, Kind: domain.SlotFocused, PageIndex: 0, Prompt: fmt.Sprint(i)}, "x")
		require.NoError(t, err)
	}

	value, ok, _ := s.Get(ctx, tldr)
	require.True(t, ok)
	require.Equal(t, "tldr", value)
	value, ok, _ = s.Get(ctx, topic)
	require.True(t, ok)
	require.Equal(t, "topic", value)
}

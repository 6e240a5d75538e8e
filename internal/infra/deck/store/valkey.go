package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	domain "github.com/yanqian/brainybinder/internal/domain/deck"
)

// ValkeyStore shares cache slots between replicas through a Valkey-compatible server.
// Focused summaries are bounded per page: each page keeps a sorted set of prompt
// digests scored by last use, and the oldest are deleted past maxPrompts.
type ValkeyStore struct {
	client     valkey.Client
	prefix     string
	ttl        time.Duration
	maxPrompts int
	now        func() time.Time
}

// NewValkeyStore constructs a store backed by Valkey. A zero ttl keeps slots forever and
// a non-positive maxPrompts leaves focused summaries unbounded.
func NewValkeyStore(client valkey.Client, prefix string, ttl time.Duration, maxPrompts int) *ValkeyStore {
	if prefix == "" {
		prefix = "deck"
	}
	if ttl > 0 && ttl < time.Second {
		ttl = time.Second
	}
	return &ValkeyStore{client: client, prefix: prefix, ttl: ttl, maxPrompts: maxPrompts, now: time.Now}
}

func (s *ValkeyStore) Get(ctx context.Context, key domain.SlotKey) (string, bool, error) {
	value, err := s.client.Do(ctx, s.client.B().Get().Key(s.slotKey(key)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if key.Kind == domain.SlotFocused && s.maxPrompts > 0 {
		// A failed touch only makes this prompt an earlier eviction candidate.
		_ = s.touch(ctx, key)
	}
	return value, true, nil
}

// PutIfAbsent uses SET NX; when another writer won, the stored value is read back.
func (s *ValkeyStore) PutIfAbsent(ctx context.Context, key domain.SlotKey, value string) (string, error) {
	k := s.slotKey(key)
	builder := s.client.B().Set().Key(k).Value(value).Nx()
	var cmd valkey.Completed
	if s.ttl > 0 {
		cmd = builder.Ex(s.ttl).Build()
	} else {
		cmd = builder.Build()
	}
	err := s.client.Do(ctx, cmd).Error()
	if err == nil {
		if key.Kind == domain.SlotFocused && s.maxPrompts > 0 {
			if err := s.admit(ctx, key); err != nil {
				return "", fmt.Errorf("bound page prompts: %w", err)
			}
		}
		return value, nil
	}
	if !valkey.IsValkeyNil(err) {
		return "", err
	}
	stored, ok, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		// Winner expired between the two commands.
		return value, nil
	}
	return stored, nil
}

// admit records a new focused slot in its page index and deletes the least recently
// used slots beyond the bound.
func (s *ValkeyStore) admit(ctx context.Context, key domain.SlotKey) error {
	if err := s.touch(ctx, key); err != nil {
		return err
	}
	index := s.promptIndexKey(key)
	if s.ttl > 0 {
		if err := s.client.Do(ctx, s.client.B().Expire().Key(index).Seconds(int64(s.ttl/time.Second)).Build()).Error(); err != nil {
			return err
		}
	}
	count, err := s.client.Do(ctx, s.client.B().Zcard().Key(index).Build()).AsInt64()
	if err != nil {
		return err
	}
	excess := count - int64(s.maxPrompts)
	if excess <= 0 {
		return nil
	}
	evicted, err := s.client.Do(ctx, s.client.B().Zpopmin().Key(index).Count(excess).Build()).AsZScores()
	if err != nil {
		return err
	}
	if len(evicted) == 0 {
		return nil
	}
	keys := make([]string, 0, len(evicted))
	for _, entry := range evicted {
		keys = append(keys, s.focusedKey(key, entry.Member))
	}
	return s.client.Do(ctx, s.client.B().Del().Key(keys...).Build()).Error()
}

func (s *ValkeyStore) touch(ctx context.Context, key domain.SlotKey) error {
	score := float64(s.now().UnixMicro())
	cmd := s.client.B().Zadd().Key(s.promptIndexKey(key)).ScoreMember().ScoreMember(score, digest(key.Prompt)).Build()
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) promptIndexKey(key domain.SlotKey) string {
	return fmt.Sprintf("%s:%s:page:%d:prompts", s.prefix, key.DocumentID, key.PageIndex)
}

func (s *ValkeyStore) focusedKey(key domain.SlotKey, promptDigest string) string {
	return fmt.Sprintf("%s:%s:page:%d:focused:%s", s.prefix, key.DocumentID, key.PageIndex, promptDigest)
}

func (s *ValkeyStore) slotKey(key domain.SlotKey) string {
	switch key.Kind {
	case domain.SlotTLDR:
		return fmt.Sprintf("%s:%s:page:%d:tldr", s.prefix, key.DocumentID, key.PageIndex)
	case domain.SlotFocused:
		return s.focusedKey(key, digest(key.Prompt))
	default:
		return fmt.Sprintf("%s:%s:topic:%s", s.prefix, key.DocumentID, digest(key.TopicID))
	}
}

func digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

var _ domain.SummaryStore = (*ValkeyStore)(nil)

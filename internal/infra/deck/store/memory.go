package store

import (
	"container/list"
	"context"
	"sync"

	"github.com/google/uuid"

	domain "github.com/yanqian/brainybinder/internal/domain/deck"
)

const defaultPromptsPerPage = 32

type pageKey struct {
	doc  uuid.UUID
	page int
}

type promptEntry struct {
	prompt string
	value  string
}

// promptLRU holds the focused summaries of one page, most recently used first.
type promptLRU struct {
	order *list.List
	items map[string]*list.Element
}

// MemoryStore keeps cache slots in process memory. TL;DR and topic slots are never
// evicted; focused summaries are bounded per page and evicted least recently used.
type MemoryStore struct {
	mu             sync.Mutex
	promptsPerPage int
	fixed          map[string]string
	focused        map[pageKey]*promptLRU
}

// NewMemoryStore constructs a store keeping at most promptsPerPage focused summaries
// per page. A non-positive value keeps 32.
func NewMemoryStore(promptsPerPage int) *MemoryStore {
	if promptsPerPage <= 0 {
		promptsPerPage = defaultPromptsPerPage
	}
	return &MemoryStore{
		promptsPerPage: promptsPerPage,
		fixed:          make(map[string]string),
		focused:        make(map[pageKey]*promptLRU),
	}
}

func (s *MemoryStore) Get(_ context.Context, key domain.SlotKey) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key.Kind != domain.SlotFocused {
		value, ok := s.fixed[key.String()]
		return value, ok, nil
	}
	lru, ok := s.focused[pageKey{doc: key.DocumentID, page: key.PageIndex}]
	if !ok {
		return "", false, nil
	}
	elem, ok := lru.items[key.Prompt]
	if !ok {
		return "", false, nil
	}
	lru.order.MoveToFront(elem)
	return elem.Value.(*promptEntry).value, true, nil
}

// PutIfAbsent stores value unless the slot is already filled, and returns whatever the
// slot holds afterwards.
func (s *MemoryStore) PutIfAbsent(_ context.Context, key domain.SlotKey, value string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key.Kind != domain.SlotFocused {
		k := key.String()
		if existing, ok := s.fixed[k]; ok {
			return existing, nil
		}
		s.fixed[k] = value
		return value, nil
	}

	pk := pageKey{doc: key.DocumentID, page: key.PageIndex}
	lru, ok := s.focused[pk]
	if !ok {
		lru = &promptLRU{order: list.New(), items: make(map[string]*list.Element)}
		s.focused[pk] = lru
	}
	if elem, ok := lru.items[key.Prompt]; ok {
		lru.order.MoveToFront(elem)
		return elem.Value.(*promptEntry).value, nil
	}
	lru.items[key.Prompt] = lru.order.PushFront(&promptEntry{prompt: key.Prompt, value: value})
	for lru.order.Len() > s.promptsPerPage {
		oldest := lru.order.Back()
		lru.order.Remove(oldest)
		delete(lru.items, oldest.Value.(*promptEntry).prompt)
	}
	return value, nil
}

var _ domain.SummaryStore = (*MemoryStore)(nil)

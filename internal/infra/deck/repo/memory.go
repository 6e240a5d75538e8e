package repo

import (
	"context"
	"sync"

	"github.com/google/uuid"

	domain "github.com/yanqian/brainybinder/internal/domain/deck"
)

// MemoryDocumentRepository keeps ingested documents in process memory.
type MemoryDocumentRepository struct {
	mu   sync.RWMutex
	data map[uuid.UUID]domain.Document
}

// NewMemoryDocumentRepository constructs a document repository.
func NewMemoryDocumentRepository() *MemoryDocumentRepository {
	return &MemoryDocumentRepository{
		data: make(map[uuid.UUID]domain.Document),
	}
}

// Create publishes a fully built document. Readers never see a partial one.
func (r *MemoryDocumentRepository) Create(_ context.Context, doc domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[doc.ID] = doc
	return nil
}

func (r *MemoryDocumentRepository) Get(_ context.Context, id uuid.UUID) (domain.Document, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[id]
	return doc, ok, nil
}

// Len reports how many documents are stored.
func (r *MemoryDocumentRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

var _ domain.DocumentRepository = (*MemoryDocumentRepository)(nil)

// MemoryQueryLogRepository keeps the most recent query logs per document.
type MemoryQueryLogRepository struct {
	mu       sync.RWMutex
	capacity int
	logs     map[uuid.UUID][]domain.QueryLog
}

// NewMemoryQueryLogRepository constructs a query log repository that keeps at most
// capacity entries per document. A non-positive capacity keeps 100.
func NewMemoryQueryLogRepository(capacity int) *MemoryQueryLogRepository {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryQueryLogRepository{
		capacity: capacity,
		logs:     make(map[uuid.UUID][]domain.QueryLog),
	}
}

func (r *MemoryQueryLogRepository) Append(_ context.Context, log domain.QueryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := append(r.logs[log.DocumentID], log)
	if len(entries) > r.capacity {
		entries = append([]domain.QueryLog(nil), entries[len(entries)-r.capacity:]...)
	}
	r.logs[log.DocumentID] = entries
	return nil
}

// ListByDocument returns up to limit entries, newest first.
func (r *MemoryQueryLogRepository) ListByDocument(_ context.Context, docID uuid.UUID, limit int) ([]domain.QueryLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.logs[docID]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]domain.QueryLog, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

var _ domain.QueryLogRepository = (*MemoryQueryLogRepository)(nil)

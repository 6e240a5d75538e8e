package deck

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
)

// ErrUnsupportedFormat is returned by extractors for payloads they cannot parse.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Extractor turns an uploaded binary into ordered page text.
type Extractor interface {
	ExtractPages(ctx context.Context, data []byte) ([]string, error)
}

// Segmenter assigns one topic label per page. The result must have one entry per page.
type Segmenter interface {
	Segment(ctx context.Context, pages []string) ([]string, error)
}

// Summarizer produces the three kinds of summaries.
type Summarizer interface {
	FocusedSummary(ctx context.Context, pageText, prompt string) (string, error)
	TLDR(ctx context.Context, pageText string) (string, error)
	TopicSummary(ctx context.Context, label, text string) (string, error)
}

// DocumentRepository holds ingested documents.
type DocumentRepository interface {
	Create(ctx context.Context, doc Document) error
	Get(ctx context.Context, id uuid.UUID) (Document, bool, error)
}

// SummaryStore holds cache slots. PutIfAbsent is first-write-wins and returns the
// value that ended up in the slot.
type SummaryStore interface {
	Get(ctx context.Context, key SlotKey) (string, bool, error)
	PutIfAbsent(ctx context.Context, key SlotKey, value string) (string, error)
}

// ObjectStorage abstracts blob storage (R2/S3/local).
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// StoredObject captures persisted blob metadata.
type StoredObject struct {
	Key      string
	Size     int64
	MimeType string
	ETag     string
}

// QueryLogRepository records answered queries.
type QueryLogRepository interface {
	Append(ctx context.Context, log QueryLog) error
	ListByDocument(ctx context.Context, docID uuid.UUID, limit int) ([]QueryLog, error)
}

package deck

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Page is one slide of an ingested deck.
type Page struct {
	Index   int
	Text    string
	TopicID string
}

// TopicRun is a maximal contiguous range of pages sharing one topic label.
// StartPage and EndPage are 0-indexed and inclusive.
type TopicRun struct {
	TopicID   string `json:"topic_id"`
	Label     string `json:"label"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
}

// Contains reports whether the page index falls inside the run.
func (r TopicRun) Contains(pageIndex int) bool {
	return pageIndex >= r.StartPage && pageIndex <= r.EndPage
}

// ContinuesAfter reports whether the run goes on past the given page.
func (r TopicRun) ContinuesAfter(pageIndex int) bool {
	return r.EndPage > pageIndex
}

// Document is an ingested deck. It is immutable once published to the repository.
type Document struct {
	ID        uuid.UUID
	Title     string
	Filename  string
	SizeBytes int64
	Pages     []Page
	Topics    []TopicRun
	CreatedAt time.Time
}

// PagesCount returns the number of pages in the deck.
func (d Document) PagesCount() int {
	return len(d.Pages)
}

// RunForPage returns the topic run containing the page.
func (d Document) RunForPage(pageIndex int) (TopicRun, bool) {
	lo, hi := 0, len(d.Topics)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		run := d.Topics[mid]
		switch {
		case pageIndex < run.StartPage:
			hi = mid - 1
		case pageIndex > run.EndPage:
			lo = mid + 1
		default:
			return run, true
		}
	}
	return TopicRun{}, false
}

// Topic looks a run up by its identifier.
func (d Document) Topic(topicID string) (TopicRun, bool) {
	for _, run := range d.Topics {
		if run.TopicID == topicID {
			return run, true
		}
	}
	return TopicRun{}, false
}

// TopicText concatenates the text of every page in the run, in page order.
func (d Document) TopicText(run TopicRun) string {
	var builder strings.Builder
	for i := run.StartPage; i <= run.EndPage && i < len(d.Pages); i++ {
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(fmt.Sprintf("--- Slide %d ---\n", i+1))
		builder.WriteString(strings.TrimSpace(d.Pages[i].Text))
	}
	return builder.String()
}

// SlotKind names the three kinds of cached summaries.
type SlotKind string

const (
	SlotTLDR    SlotKind = "tldr"
	SlotFocused SlotKind = "focused"
	SlotTopic   SlotKind = "topic"
)

// SlotKey addresses one cache slot. PageIndex and Prompt are used by page slots,
// TopicID by topic slots.
type SlotKey struct {
	DocumentID uuid.UUID
	Kind       SlotKind
	PageIndex  int
	Prompt     string
	TopicID    string
}

// String renders a key unique across kinds; it doubles as the single-flight key.
func (k SlotKey) String() string {
	switch k.Kind {
	case SlotTLDR:
		return fmt.Sprintf("%s/page/%d/tldr", k.DocumentID, k.PageIndex)
	case SlotFocused:
		return fmt.Sprintf("%s/page/%d/focused/%q", k.DocumentID, k.PageIndex, k.Prompt)
	default:
		return fmt.Sprintf("%s/topic/%q", k.DocumentID, k.TopicID)
	}
}

// QueryKind distinguishes the logged query operations.
type QueryKind string

const (
	QueryKindPage  QueryKind = "page"
	QueryKindTopic QueryKind = "topic"
)

// QueryLog records one answered query against a document.
type QueryLog struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"doc_id"`
	Kind       QueryKind `json:"kind"`
	PageIndex  *int      `json:"page_index,omitempty"`
	TopicID    string    `json:"topic_id,omitempty"`
	Prompt     string    `json:"prompt,omitempty"`
	CacheHit   bool      `json:"cache_hit"`
	LatencyMs  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

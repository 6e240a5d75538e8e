package deck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/yanqian/brainybinder/pkg/errors"
	"github.com/yanqian/brainybinder/pkg/util"
)

const (
	defaultSlidePrompt   = "Summarize this slide."
	defaultQueryLogLimit = 50
)

// Config drives upload limits and query behaviour.
type Config struct {
	MaxFileBytes    int64
	DefaultPrompt   string
	UpstreamTimeout time.Duration
	QueryLogLimit   int
}

// Service orchestrates ingest and the on-demand summary queries.
type Service struct {
	cfg        Config
	docs       DocumentRepository
	slots      SummaryStore
	extractor  Extractor
	segmenter  Segmenter
	summarizer Summarizer
	storage    ObjectStorage
	queries    QueryLogRepository
	flights    singleflight.Group
	logger     *slog.Logger
}

// NewService constructs a Service. storage and queries may be nil.
func NewService(cfg Config, docs DocumentRepository, slots SummaryStore, extractor Extractor, segmenter Segmenter, summarizer Summarizer, storage ObjectStorage, queries QueryLogRepository, logger *slog.Logger) *Service {
	if strings.TrimSpace(cfg.DefaultPrompt) == "" {
		cfg.DefaultPrompt = defaultSlidePrompt
	}
	if cfg.QueryLogLimit <= 0 {
		cfg.QueryLogLimit = defaultQueryLogLimit
	}
	return &Service{
		cfg:        cfg,
		docs:       docs,
		slots:      slots,
		extractor:  extractor,
		segmenter:  segmenter,
		summarizer: summarizer,
		storage:    storage,
		queries:    queries,
		logger:     logger.With("component", "deck.service"),
	}
}

// IngestRequest carries an uploaded deck.
type IngestRequest struct {
	Filename string
	Title    string
	MimeType string
	Content  []byte
}

// IngestResult is returned once the document is queryable.
type IngestResult struct {
	DocID                string `json:"doc_id"`
	PagesCount           int    `json:"pages_count"`
	FirstTopic           string `json:"first_topic"`
	FirstTopicRunsToPage int    `json:"first_topic_runs_to_page"`
}

// PageSummaryRequest asks a question about one page.
type PageSummaryRequest struct {
	DocID      string `json:"doc_id"`
	PageIndex  int    `json:"page_index"`
	UserPrompt string `json:"user_prompt"`
}

// PageSummaryResult answers a PageSummaryRequest.
type PageSummaryResult struct {
	FocusedSummary string `json:"focused_summary"`
	TLDR           string `json:"tldr"`
	TopicContinues bool   `json:"topic_continues"`
	TopicID        string `json:"topic_id"`
}

// TopicSummaryRequest asks for the roll-up of one topic run.
type TopicSummaryRequest struct {
	DocID   string `json:"doc_id"`
	TopicID string `json:"topic_id"`
}

// TopicSummaryResult answers a TopicSummaryRequest.
type TopicSummaryResult struct {
	Summary string `json:"summary"`
}

// Outline lists the topic runs of a document.
type Outline struct {
	DocID      string     `json:"doc_id"`
	Title      string     `json:"title"`
	PagesCount int        `json:"pages_count"`
	Topics     []TopicRun `json:"topics"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Ingest extracts and segments the deck, then publishes it. Nothing is published
// unless every step succeeds.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if len(req.Content) == 0 {
		return IngestResult{}, apperrors.Wrap(apperrors.CodeInvalidInput, "file content cannot be empty", nil)
	}
	if s.cfg.MaxFileBytes > 0 && int64(len(req.Content)) > s.cfg.MaxFileBytes {
		return IngestResult{}, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("file exceeds maximum allowed size of %d bytes", s.cfg.MaxFileBytes), nil)
	}

	pages, err := s.extractor.ExtractPages(ctx, req.Content)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			return IngestResult{}, apperrors.Wrap(apperrors.CodeUnsupportedFormat, "file is not a readable PDF", err)
		}
		return IngestResult{}, apperrors.Wrap(apperrors.CodeUpstreamFailure, "text extraction failed", err)
	}
	if len(pages) == 0 {
		return IngestResult{}, apperrors.Wrap(apperrors.CodeEmptyDocument, "document has no pages", nil)
	}

	labels, err := s.segmenter.Segment(ctx, pages)
	if err != nil {
		return IngestResult{}, apperrors.Wrap(apperrors.CodeUpstreamFailure, "topic segmentation failed", err)
	}
	if len(labels) != len(pages) {
		return IngestResult{}, apperrors.Wrap(apperrors.CodeUpstreamFailure, fmt.Sprintf("topic segmentation returned %d labels for %d pages", len(labels), len(pages)), nil)
	}

	runs := BuildTopicRuns(labels)
	doc := Document{
		ID:        uuid.New(),
		Title:     documentTitle(req),
		Filename:  strings.TrimSpace(req.Filename),
		SizeBytes: int64(len(req.Content)),
		Pages:     make([]Page, len(pages)),
		Topics:    runs,
		CreatedAt: util.NowUTC(),
	}
	for _, run := range runs {
		for i := run.StartPage; i <= run.EndPage; i++ {
			doc.Pages[i] = Page{Index: i, Text: pages[i], TopicID: run.TopicID}
		}
	}

	s.archive(ctx, doc, req)

	if err := s.docs.Create(ctx, doc); err != nil {
		return IngestResult{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to store document", err)
	}

	first := runs[0]
	s.logger.Info("document ingested", "doc_id", doc.ID, "pages", len(pages), "topics", len(runs), "first_topic", first.Label)
	return IngestResult{
		DocID:                doc.ID.String(),
		PagesCount:           len(pages),
		FirstTopic:           first.Label,
		FirstTopicRunsToPage: first.EndPage + 1,
	}, nil
}

// PageSummary returns the focused answer and TL;DR for one page.
func (s *Service) PageSummary(ctx context.Context, req PageSummaryRequest) (PageSummaryResult, error) {
	start := time.Now()
	doc, err := s.loadDocument(ctx, req.DocID)
	if err != nil {
		return PageSummaryResult{}, err
	}
	if req.PageIndex < 0 || req.PageIndex >= doc.PagesCount() {
		return PageSummaryResult{}, apperrors.Wrap(apperrors.CodePageOutOfRange, fmt.Sprintf("page index %d is out of range: document has %d pages", req.PageIndex, doc.PagesCount()), nil)
	}
	page := doc.Pages[req.PageIndex]
	run, ok := doc.RunForPage(req.PageIndex)
	if !ok {
		return PageSummaryResult{}, apperrors.Wrap(apperrors.CodeStorageError, "document topic index is inconsistent", nil)
	}
	prompt := s.effectivePrompt(req.UserPrompt)

	var (
		tldr, focused     string
		tldrHit, focusHit bool
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		key := SlotKey{DocumentID: doc.ID, Kind: SlotTLDR, PageIndex: page.Index}
		value, hit, err := s.resolve(groupCtx, key, func(ctx context.Context) (string, error) {
			return s.summarizer.TLDR(ctx, page.Text)
		})
		tldr, tldrHit = value, hit
		return err
	})
	group.Go(func() error {
		key := SlotKey{DocumentID: doc.ID, Kind: SlotFocused, PageIndex: page.Index, Prompt: prompt}
		value, hit, err := s.resolve(groupCtx, key, func(ctx context.Context) (string, error) {
			return s.summarizer.FocusedSummary(ctx, page.Text, prompt)
		})
		focused, focusHit = value, hit
		return err
	})
	if err := group.Wait(); err != nil {
		return PageSummaryResult{}, err
	}

	pageIndex := page.Index
	s.recordQuery(ctx, QueryLog{
		DocumentID: doc.ID,
		Kind:       QueryKindPage,
		PageIndex:  &pageIndex,
		TopicID:    run.TopicID,
		Prompt:     prompt,
		CacheHit:   tldrHit && focusHit,
		LatencyMs:  time.Since(start).Milliseconds(),
	})

	return PageSummaryResult{
		FocusedSummary: focused,
		TLDR:           tldr,
		TopicContinues: run.ContinuesAfter(page.Index),
		TopicID:        run.TopicID,
	}, nil
}

// TopicSummary returns the roll-up summary of a whole topic run.
func (s *Service) TopicSummary(ctx context.Context, req TopicSummaryRequest) (TopicSummaryResult, error) {
	start := time.Now()
	doc, err := s.loadDocument(ctx, req.DocID)
	if err != nil {
		return TopicSummaryResult{}, err
	}
	run, ok := doc.Topic(req.TopicID)
	if !ok {
		return TopicSummaryResult{}, apperrors.Wrap(apperrors.CodeTopicNotFound, fmt.Sprintf("topic %q not found in document", req.TopicID), nil)
	}

	key := SlotKey{DocumentID: doc.ID, Kind: SlotTopic, TopicID: run.TopicID}
	summary, hit, err := s.resolve(ctx, key, func(ctx context.Context) (string, error) {
		return s.summarizer.TopicSummary(ctx, run.Label, doc.TopicText(run))
	})
	if err != nil {
		return TopicSummaryResult{}, err
	}

	s.recordQuery(ctx, QueryLog{
		DocumentID: doc.ID,
		Kind:       QueryKindTopic,
		TopicID:    run.TopicID,
		CacheHit:   hit,
		LatencyMs:  time.Since(start).Milliseconds(),
	})
	return TopicSummaryResult{Summary: summary}, nil
}

// DocumentOutline lists the topic runs of a document without calling any model.
func (s *Service) DocumentOutline(ctx context.Context, docID string) (Outline, error) {
	doc, err := s.loadDocument(ctx, docID)
	if err != nil {
		return Outline{}, err
	}
	topics := make([]TopicRun, len(doc.Topics))
	copy(topics, doc.Topics)
	return Outline{
		DocID:      doc.ID.String(),
		Title:      doc.Title,
		PagesCount: doc.PagesCount(),
		Topics:     topics,
		CreatedAt:  doc.CreatedAt,
	}, nil
}

// QueryHistory returns the most recent queries answered for a document.
func (s *Service) QueryHistory(ctx context.Context, docID string, limit int) ([]QueryLog, error) {
	doc, err := s.loadDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if s.queries == nil {
		return []QueryLog{}, nil
	}
	if limit <= 0 || limit > s.cfg.QueryLogLimit {
		limit = s.cfg.QueryLogLimit
	}
	logs, err := s.queries.ListByDocument(ctx, doc.ID, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to load query history", err)
	}
	return logs, nil
}

func (s *Service) loadDocument(ctx context.Context, raw string) (Document, error) {
	raw = strings.TrimSpace(raw)
	id, err := uuid.Parse(raw)
	if err != nil {
		return Document{}, apperrors.Wrap(apperrors.CodeDocumentNotFound, fmt.Sprintf("document %q not found", raw), nil)
	}
	doc, found, err := s.docs.Get(ctx, id)
	if err != nil {
		return Document{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to load document", err)
	}
	if !found {
		return Document{}, apperrors.Wrap(apperrors.CodeDocumentNotFound, fmt.Sprintf("document %q not found", raw), nil)
	}
	return doc, nil
}

func (s *Service) effectivePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return s.cfg.DefaultPrompt
	}
	return prompt
}

func (s *Service) archive(ctx context.Context, doc Document, req IngestRequest) {
	if s.storage == nil {
		return
	}
	mime := strings.TrimSpace(req.MimeType)
	if mime == "" || mime == "application/octet-stream" {
		mime = mimetype.Detect(req.Content).String()
	}
	key := fmt.Sprintf("decks/%s/%s", doc.ID, sanitizeFilename(doc.Filename))
	if _, err := s.storage.Put(ctx, key, req.Content, mime); err != nil {
		s.logger.Warn("archiving source deck failed", "doc_id", doc.ID, "key", key, "error", err)
	}
}

func (s *Service) recordQuery(ctx context.Context, log QueryLog) {
	if s.queries == nil {
		return
	}
	log.ID = uuid.New()
	log.CreatedAt = util.NowUTC()
	if err := s.queries.Append(ctx, log); err != nil {
		s.logger.Warn("query log append failed", "doc_id", log.DocumentID, "kind", log.Kind, "error", err)
	}
}

func documentTitle(req IngestRequest) string {
	if title := strings.TrimSpace(req.Title); title != "" {
		return title
	}
	name := strings.TrimSpace(req.Filename)
	if name == "" {
		return "Untitled deck"
	}
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	return name
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "/", "_")
	if name == "" {
		return "deck.pdf"
	}
	return name
}

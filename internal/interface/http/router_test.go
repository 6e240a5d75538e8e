package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/brainybinder/internal/domain/deck"
	"github.com/yanqian/brainybinder/internal/infra/config"
	apperrors "github.com/yanqian/brainybinder/pkg/errors"
	"github.com/yanqian/brainybinder/pkg/logger"
	"github.com/yanqian/brainybinder/pkg/metrics"
)

func TestRouter_UploadSuccess(t *testing.T) {
	svc := &stubDeckService{
		ingestFn: func(ctx context.Context, req deck.IngestRequest) (deck.IngestResult, error) {
			require.Equal(t, "q3.pdf", req.Filename)
			require.Equal(t, []byte("%PDF-1.4 fake"), req.Content)
			return deck.IngestResult{DocID: "abc", PagesCount: 5, FirstTopic: "Intro", FirstTopicRunsToPage: 2}, nil
		},
	}

	recorder := performUpload(t, "/upload", "q3.pdf", []byte("%PDF-1.4 fake"), newRouterUnderTest(t, svc, config.RateLimitConfig{}))
	require.Equal(t, http.StatusOK, recorder.Code)

	var got deck.IngestResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, deck.IngestResult{DocID: "abc", PagesCount: 5, FirstTopic: "Intro", FirstTopicRunsToPage: 2}, got)
}

func TestRouter_UploadMissingFile(t *testing.T) {
	recorder := performRequest(http.MethodPost, "/upload", `{}`, newRouterUnderTest(t, &stubDeckService{}, config.RateLimitConfig{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "file is required", recorder.Body.String())
}

func TestRouter_PageSummarySuccessUnderAPIPrefix(t *testing.T) {
	svc := &stubDeckService{
		pageSummaryFn: func(ctx context.Context, req deck.PageSummaryRequest) (deck.PageSummaryResult, error) {
			require.Equal(t, deck.PageSummaryRequest{DocID: "doc", PageIndex: 0, UserPrompt: "why?"}, req)
			return deck.PageSummaryResult{FocusedSummary: "because", TLDR: "short", TopicContinues: true, TopicID: "Intro"}, nil
		},
	}

	server := newRouterUnderTest(t, svc, config.RateLimitConfig{})
	for _, path := range []string{"/page_summary", "/api/v1/page_summary"} {
		recorder := performRequest(http.MethodPost, path, `{"doc_id":"doc","page_index":0,"user_prompt":"why?"}`, server)
		require.Equal(t, http.StatusOK, recorder.Code, path)

		var got map[string]any
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
		require.Equal(t, "because", got["focused_summary"])
		require.Equal(t, "short", got["tldr"])
		require.Equal(t, true, got["topic_continues"])
		require.Equal(t, "Intro", got["topic_id"])
	}
}

func TestRouter_PageSummaryMissingIndex(t *testing.T) {
	recorder := performRequest(http.MethodPost, "/page_summary", `{"doc_id":"doc"}`, newRouterUnderTest(t, &stubDeckService{}, config.RateLimitConfig{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "page_index is required", recorder.Body.String())
}

func TestRouter_MalformedJSON(t *testing.T) {
	recorder := performRequest(http.MethodPost, "/topic_summary", `{"doc_id":`, newRouterUnderTest(t, &stubDeckService{}, config.RateLimitConfig{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "malformed request body", recorder.Body.String())
}

func TestRouter_DomainErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{name: "out of range", err: apperrors.Wrap(apperrors.CodePageOutOfRange, "page_index 9 out of range [0, 5)", nil), status: http.StatusBadRequest, body: "page_index 9 out of range [0, 5)"},
		{name: "invalid input", err: apperrors.Wrap(apperrors.CodeInvalidInput, "doc_id is required", nil), status: http.StatusBadRequest, body: "doc_id is required"},
		{name: "document missing", err: apperrors.Wrap(apperrors.CodeDocumentNotFound, "document not found", nil), status: http.StatusNotFound, body: "document not found"},
		{name: "topic missing", err: apperrors.Wrap(apperrors.CodeTopicNotFound, "topic not found", nil), status: http.StatusNotFound, body: "topic not found"},
		{name: "unsupported", err: apperrors.Wrap(apperrors.CodeUnsupportedFormat, "only PDF decks are supported", nil), status: http.StatusUnsupportedMediaType, body: "only PDF decks are supported"},
		{name: "empty", err: apperrors.Wrap(apperrors.CodeEmptyDocument, "document has no pages", nil), status: http.StatusUnprocessableEntity, body: "document has no pages"},
		{name: "upstream", err: apperrors.Wrap(apperrors.CodeUpstreamFailure, "summary generation failed", errors.New("timeout")), status: http.StatusBadGateway, body: "summary generation failed"},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError, body: "boom"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubDeckService{
				topicSummaryFn: func(ctx context.Context, req deck.TopicSummaryRequest) (deck.TopicSummaryResult, error) {
					return deck.TopicSummaryResult{}, tt.err
				},
			}
			recorder := performRequest(http.MethodPost, "/topic_summary", `{"doc_id":"doc","topic_id":"Intro"}`, newRouterUnderTest(t, svc, config.RateLimitConfig{}))
			require.Equal(t, tt.status, recorder.Code)
			require.Equal(t, tt.body, recorder.Body.String())
			require.Contains(t, recorder.Header().Get("Content-Type"), "text/plain")
		})
	}
}

func TestRouter_OutlineAndQueries(t *testing.T) {
	docID := uuid.New()
	page := 1
	svc := &stubDeckService{
		outlineFn: func(ctx context.Context, id string) (deck.Outline, error) {
			require.Equal(t, docID.String(), id)
			return deck.Outline{DocID: id, Title: "Q3", PagesCount: 2, Topics: []deck.TopicRun{{TopicID: "Intro", Label: "Intro", StartPage: 0, EndPage: 1}}}, nil
		},
		historyFn: func(ctx context.Context, id string, limit int) ([]deck.QueryLog, error) {
			require.Equal(t, 5, limit)
			return []deck.QueryLog{{DocumentID: docID, Kind: deck.QueryKindPage, PageIndex: &page, CacheHit: true}}, nil
		},
	}
	server := newRouterUnderTest(t, svc, config.RateLimitConfig{})

	recorder := performRequest(http.MethodGet, "/api/v1/documents/"+docID.String(), "", server)
	require.Equal(t, http.StatusOK, recorder.Code)
	var outline deck.Outline
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &outline))
	require.Equal(t, "Q3", outline.Title)
	require.Len(t, outline.Topics, 1)

	recorder = performRequest(http.MethodGet, "/documents/"+docID.String()+"/queries?limit=5", "", server)
	require.Equal(t, http.StatusOK, recorder.Code)
	var body struct {
		Queries []deck.QueryLog `json:"queries"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Queries, 1)
	require.True(t, body.Queries[0].CacheHit)

	recorder = performRequest(http.MethodGet, "/documents/"+docID.String()+"/queries?limit=zero", "", server)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_HealthAndStats(t *testing.T) {
	stats := metrics.NewLatencyStats(time.Minute)
	stats.Observe(20*time.Millisecond, nil)
	handler := NewHandler(testConfig(config.RateLimitConfig{}), &stubDeckService{}, stats, logger.Discard())
	server := NewRouter(testConfig(config.RateLimitConfig{}), handler)

	recorder := performRequest(http.MethodGet, "/healthz", "", server)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())

	recorder = performRequest(http.MethodGet, "/stats/llm", "", server)
	require.Equal(t, http.StatusOK, recorder.Code)
	var snap metrics.LatencySnapshot
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &snap))
	require.Equal(t, 1, snap.Count)
}

func TestRouter_RateLimited(t *testing.T) {
	server := newRouterUnderTest(t, &stubDeckService{}, config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 2})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, performRequest(http.MethodGet, "/healthz", "", server).Code)
	}
	recorder := performRequest(http.MethodGet, "/healthz", "", server)
	require.Equal(t, http.StatusTooManyRequests, recorder.Code)
	require.Equal(t, "too many requests, slow down", recorder.Body.String())
}

func TestRouter_CORSPreflight(t *testing.T) {
	cfg := testConfig(config.RateLimitConfig{})
	cfg.HTTP.AllowOrigins = []string{"https://reader.example"}
	server := NewRouter(cfg, NewHandler(cfg, &stubDeckService{}, nil, logger.Discard()))

	req := httptest.NewRequest(http.MethodOptions, "/page_summary", nil)
	req.Header.Set("Origin", "https://reader.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://reader.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNormalizeOrigins(t *testing.T) {
	t.Parallel()

	require.Empty(t, normalizeOrigins(nil))
	require.Empty(t, normalizeOrigins([]string{"https://a.example", "*"}))
	require.Equal(t, []string{"https://a.example"}, normalizeOrigins([]string{" https://a.example/ ", ""}))
	require.True(t, originAllowed("https://A.example", []string{"https://a.example"}))
	require.False(t, originAllowed("https://c.example", []string{"https://a.example"}))
}

func performRequest(method, path, body string, server *http.Server) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func performUpload(t *testing.T, path, filename string, content []byte, server *http.Server) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func testConfig(limit config.RateLimitConfig) *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			RateLimit:    limit,
		},
		Deck: config.DeckConfig{MaxFileBytes: 1 << 20},
	}
}

func newRouterUnderTest(t *testing.T, svc DeckService, limit config.RateLimitConfig) *http.Server {
	t.Helper()
	cfg := testConfig(limit)
	return NewRouter(cfg, NewHandler(cfg, svc, nil, logger.Discard()))
}

type stubDeckService struct {
	ingestFn       func(ctx context.Context, req deck.IngestRequest) (deck.IngestResult, error)
	pageSummaryFn  func(ctx context.Context, req deck.PageSummaryRequest) (deck.PageSummaryResult, error)
	topicSummaryFn func(ctx context.Context, req deck.TopicSummaryRequest) (deck.TopicSummaryResult, error)
	outlineFn      func(ctx context.Context, docID string) (deck.Outline, error)
	historyFn      func(ctx context.Context, docID string, limit int) ([]deck.QueryLog, error)
}

func (s *stubDeckService) Ingest(ctx context.Context, req deck.IngestRequest) (deck.IngestResult, error) {
	if s.ingestFn != nil {
		return s.ingestFn(ctx, req)
	}
	return deck.IngestResult{}, nil
}

func (s *stubDeckService) PageSummary(ctx context.Context, req deck.PageSummaryRequest) (deck.PageSummaryResult, error) {
	if s.pageSummaryFn != nil {
		return s.pageSummaryFn(ctx, req)
	}
	return deck.PageSummaryResult{}, nil
}

func (s *stubDeckService) TopicSummary(ctx context.Context, req deck.TopicSummaryRequest) (deck.TopicSummaryResult, error) {
	if s.topicSummaryFn != nil {
		return s.topicSummaryFn(ctx, req)
	}
	return deck.TopicSummaryResult{}, nil
}

func (s *stubDeckService) DocumentOutline(ctx context.Context, docID string) (deck.Outline, error) {
	if s.outlineFn != nil {
		return s.outlineFn(ctx, docID)
	}
	return deck.Outline{}, nil
}

func (s *stubDeckService) QueryHistory(ctx context.Context, docID string, limit int) ([]deck.QueryLog, error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, docID, limit)
	}
	return nil, nil
}

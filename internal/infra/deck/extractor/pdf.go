package extractor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	pdflib "github.com/ledongthuc/pdf"

	domain "github.com/yanqian/brainybinder/internal/domain/deck"
)

// PDFExtractor reads page text with ledongthuc/pdf and optionally falls back to
// poppler's pdftotext for pages the library cannot decode.
type PDFExtractor struct {
	fallbackPdftotext bool
	logger            *slog.Logger
}

// NewPDFExtractor constructs the extractor.
func NewPDFExtractor(fallbackPdftotext bool, logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{
		fallbackPdftotext: fallbackPdftotext,
		logger:            logger.With("component", "deck.extractor.pdf"),
	}
}

// ExtractPages returns one string per page in deck order. Pages without text are kept
// as empty strings so indices line up with the slides.
func (e *PDFExtractor) ExtractPages(ctx context.Context, data []byte) ([]string, error) {
	if !mimetype.Detect(data).Is("application/pdf") {
		return nil, domain.ErrUnsupportedFormat
	}

	reader, err := openPDF(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedFormat, err)
	}

	total := reader.NumPage()
	pages := make([]string, total)
	var failed []int
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := pageText(reader, i)
		if err != nil {
			failed = append(failed, i)
			continue
		}
		pages[i-1] = normalizeText(text)
	}

	if len(failed) > 0 {
		e.logger.Warn("pdf pages could not be decoded", "pages", failed, "fallback", e.fallbackPdftotext)
		if e.fallbackPdftotext {
			if err := e.fillWithPdftotext(ctx, data, pages, failed); err != nil {
				e.logger.Warn("pdftotext fallback failed", "error", err)
			}
		}
	}
	return pages, nil
}

// openPDF guards against the parser panicking on malformed input.
func openPDF(data []byte) (reader *pdflib.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			reader, err = nil, fmt.Errorf("parse pdf: %v", r)
		}
	}()
	return pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
}

func pageText(reader *pdflib.Reader, index int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("decode page %d: %v", index, r)
		}
	}()
	page := reader.Page(index)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// fillWithPdftotext needs a file on disk; the uploaded bytes are written to a temp file.
func (e *PDFExtractor) fillWithPdftotext(ctx context.Context, data []byte, pages []string, failed []int) error {
	tmp, err := os.CreateTemp("", "brainybinder-*.pdf")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	for _, page := range failed {
		out, err := exec.CommandContext(ctx,
			"pdftotext",
			"-f", strconv.Itoa(page),
			"-l", strconv.Itoa(page),
			"-layout",
			path,
			"-",
		).Output()
		if err != nil {
			return fmt.Errorf("pdftotext page %d: %w", page, err)
		}
		pages[page-1] = normalizeText(string(out))
	}
	return nil
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\f", "\n")
	lines := strings.Split(text, "\n")
	out := lines[:0]
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

var _ domain.Extractor = (*PDFExtractor)(nil)

package segmenter

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	domain "github.com/yanqian/brainybinder/internal/domain/deck"
)

const maxLabelRunes = 80

var (
	numberingPrefix  = regexp.MustCompile(`(?i)^(?:\d+(?:\.\d+)*[.)]|\d+(?:\.\d+)+|[ivxlc]+[.)]|[a-z][.)]|[-*•·▪►])\s+`)
	contMarker       = regexp.MustCompile(`(?i)(?:\(\s*(?:cont\.?|cont'd|continued)\s*\)|\bcont'd\b|\s+continued\s*$)`)
	trailingEllipsis = regexp.MustCompile(`(?:\.\.\.|…)\s*$`)
	pageCounter      = regexp.MustCompile(`\s*\(?\b(\d{1,3})\s*/\s*(\d{1,3})\)?\s*$`)
)

// HeadingSegmenter labels each page with its first meaningful line. It needs no model
// and always returns one label per page.
type HeadingSegmenter struct{}

// NewHeadingSegmenter constructs the segmenter.
func NewHeadingSegmenter() *HeadingSegmenter {
	return &HeadingSegmenter{}
}

// Segment never fails; the error is part of the Segmenter contract.
func (HeadingSegmenter) Segment(_ context.Context, pages []string) ([]string, error) {
	labels := make([]string, len(pages))
	previous := ""
	for i, page := range pages {
		heading := firstHeading(page)
		base := baseHeading(heading)
		switch {
		case heading == "":
			labels[i] = previous
		case previous != "" && base == "":
			labels[i] = previous
		case previous != "" && strings.EqualFold(base, previous):
			labels[i] = previous
		case base != "":
			labels[i] = base
		default:
			labels[i] = heading
		}
		previous = labels[i]
	}
	return labels, nil
}

// firstHeading returns the cleaned first line that carries at least one letter.
func firstHeading(page string) string {
	for _, line := range strings.Split(page, "\n") {
		line = numberingPrefix.ReplaceAllString(strings.TrimSpace(line), "")
		if !hasLetter(line) {
			continue
		}
		return capRunes(strings.Join(strings.Fields(line), " "), maxLabelRunes)
	}
	return ""
}

// baseHeading strips continuation markers so "Pricing (cont.)" compares as "Pricing".
// A marker only continues a topic when what is left matches the previous label.
func baseHeading(heading string) string {
	heading = contMarker.ReplaceAllString(heading, "")
	heading = trailingEllipsis.ReplaceAllString(heading, "")
	if loc := pageCounter.FindStringSubmatchIndex(heading); loc != nil && isPageCounter(heading[loc[2]:loc[3]], heading[loc[4]:loc[5]]) {
		heading = heading[:loc[0]]
	}
	return strings.TrimRight(strings.TrimSpace(heading), " -–:")
}

// isPageCounter accepts "k/n" with 1 <= k <= n, which rules out ranges like "2024/25".
func isPageCounter(k, n string) bool {
	current, err := strconv.Atoi(k)
	if err != nil {
		return false
	}
	total, err := strconv.Atoi(n)
	if err != nil {
		return false
	}
	return current >= 1 && current <= total
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func capRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:limit]))
}

var _ domain.Segmenter = (*HeadingSegmenter)(nil)

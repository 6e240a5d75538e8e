package deck

import (
	"fmt"
	"strings"
)

// UntitledTopic labels pages the segmenter left blank.
const UntitledTopic = "Untitled"

// BuildTopicRuns scans labels in page order and closes a run whenever the label
// changes. A label that comes back after a different one starts a new topic whose
// id gets a numeric suffix, so every run has its own id.
func BuildTopicRuns(labels []string) []TopicRun {
	runs := make([]TopicRun, 0, len(labels))
	taken := make(map[string]bool, len(labels))
	occurrences := make(map[string]int, len(labels))

	for i, raw := range labels {
		label := strings.TrimSpace(raw)
		if label == "" {
			label = UntitledTopic
		}
		if n := len(runs); n > 0 && runs[n-1].Label == label {
			runs[n-1].EndPage = i
			continue
		}

		occurrences[label]++
		id := label
		if occurrences[label] > 1 {
			id = fmt.Sprintf("%s (%d)", label, occurrences[label])
		}
		for taken[id] {
			occurrences[label]++
			id = fmt.Sprintf("%s (%d)", label, occurrences[label])
		}
		taken[id] = true
		runs = append(runs, TopicRun{TopicID: id, Label: label, StartPage: i, EndPage: i})
	}
	return runs
}

package summarizer

// Config configures prompts and output limits.
type Config struct {
	MaxSummaryLen int
	MaxTldrLen    int
	// MaxParallelChunks bounds concurrent partial summaries of a long topic.
	MaxParallelChunks int
}

// Placeholders returned for pages or topics without extractable text. No model call is
// made for them.
const (
	EmptyPageSummary  = "This slide has no extractable text."
	EmptyPageTLDR     = "No text on this slide."
	EmptyTopicSummary = "This topic has no extractable text."
)

// TopicChunker splits topic text that exceeds the model's token budget.
type TopicChunker interface {
	Count(text string) int
	Budget() int
	Chunk(text string) []string
}

// File path: internal/context/types.go
package context

import "github.com/nexa-ai/nexa/internal/tabular"

// NoRelevantContext is returned whenever assembly cannot produce any usable
// evidence: blank question, no entries, an unreachable embedding backend, or
// every candidate source failing. Callers pass it to the model verbatim so
// the model knows to answer from its own knowledge.
const NoRelevantContext = "no relevant context found"

// Config bounds one assembler instance.
type Config struct {
	// TopN caps the text pool and the tabular pool independently; the two
	// caps never compete for slots.
	TopN int
	// TableCacheSize bounds the reconstructed-table cache.
	TableCacheSize int
	// Summarizer optionally condenses tabular evidence blocks. Nil disables
	// summarization.
	Summarizer tabular.Summarizer
}

// DefaultConfig returns the assembler defaults.
func DefaultConfig() Config {
	return Config{
		TopN:           3,
		TableCacheSize: tabular.DefaultCacheSize,
	}
}

// Block is one ranked piece of assembled context.
type Block struct {
	// Source identifies where the block came from: a file key or entry ID.
	Source string
	Text   string
	Score  float64
	// Tabular marks blocks produced by table evidence rather than chunk
	// similarity.
	Tabular bool
}

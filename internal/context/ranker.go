// File path: internal/context/ranker.go
package context

import (
	"context"
	"sort"
	"strings"

	"github.com/nexa-ai/nexa/internal/common"
	"github.com/nexa-ai/nexa/internal/embed"
	"github.com/nexa-ai/nexa/internal/kb"
)

type scoredChunk struct {
	source string
	text   string
	score  float64
}

// rankText scores every non-blank chunk across the text sources against the
// question vector and returns the topN highest, ties resolved by input order.
// Chunks carrying a precomputed embedding are scored directly; the rest are
// embedded in one batch. A batch failure drops only the unembedded chunks.
func rankText(ctx context.Context, client *embed.Client, questionVec []float32, sources []kb.TextSource, topN int) []Block {
	var ready []scoredChunk
	var pendingText []string
	var pending []scoredChunk
	for _, src := range sources {
		label := src.FileKey
		if label == "" {
			label = src.EntryID
		}
		for _, chunk := range src.Chunks {
			if strings.TrimSpace(chunk.Text) == "" {
				continue
			}
			if len(chunk.Embedding) > 0 {
				ready = append(ready, scoredChunk{
					source: label,
					text:   chunk.Text,
					score:  embed.Cosine(questionVec, chunk.Embedding),
				})
				continue
			}
			pending = append(pending, scoredChunk{source: label, text: chunk.Text})
			pendingText = append(pendingText, chunk.Text)
		}
	}
	if len(pending) > 0 {
		vectors, err := client.EmbedBatch(ctx, pendingText)
		if err != nil {
			common.Logger().Warn("context: chunk embedding failed, ranking precomputed chunks only",
				"dropped", len(pending), "error", err)
		} else {
			for i := range pending {
				pending[i].score = embed.Cosine(questionVec, vectors[i])
			}
			ready = append(ready, pending...)
		}
	}
	sort.SliceStable(ready, func(a, b int) bool {
		return ready[a].score > ready[b].score
	})
	if topN > 0 && len(ready) > topN {
		ready = ready[:topN]
	}
	blocks := make([]Block, len(ready))
	for i, c := range ready {
		blocks[i] = Block{Source: c.source, Text: c.text, Score: c.score}
	}
	return blocks
}

// File path: internal/tabular/rowembed.go
package tabular

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nexa-ai/nexa/internal/embed"
)

// RowEmbedLimit caps how many rows the embedding fallback will serialize.
// Larger tables skip the fallback instead of flooding the embedding backend.
const RowEmbedLimit = 200

// BuildByRowEmbedding ranks individual rows by embedding similarity to the
// question and renders the top rows as evidence. It is the fallback for
// questions no classification rule understood, and only applies to tables
// small enough to embed row by row.
func BuildByRowEmbedding(ctx context.Context, client *embed.Client, questionVec []float32, t *Table, topK int) (Evidence, error) {
	if len(t.Rows) == 0 || len(t.Rows) > RowEmbedLimit {
		return Evidence{}, fmt.Errorf("table %s has %d rows, outside the row embedding window", t.FileKey, len(t.Rows))
	}
	rendered := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		rendered[i] = renderRow(t.Columns, row)
	}
	vectors, err := client.EmbedBatch(ctx, rendered)
	if err != nil {
		return Evidence{}, err
	}

	type scoredRow struct {
		index int
		score float64
	}
	scored := make([]scoredRow, len(vectors))
	for i, vec := range vectors {
		scored[i] = scoredRow{index: i, score: embed.Cosine(questionVec, vec)}
	}
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].score > scored[b].score
	})
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}

	var b strings.Builder
	writeHeader(&b, t)
	b.WriteString(fmt.Sprintf("Selection: top %d of %d rows by similarity to the question\n", len(scored), len(t.Rows)))
	for _, s := range scored {
		b.WriteString(rendered[s.index] + "\n")
	}
	best := 0.0
	if len(scored) > 0 {
		best = scored[0].score
	}
	return Evidence{FileKey: t.FileKey, Text: strings.TrimRight(b.String(), "\n"), Score: best}, nil
}

// renderRow serializes one row as "column: value | column: value" so the
// embedding sees column context alongside each cell.
func renderRow(columns []string, row []string) string {
	parts := make([]string, len(columns))
	for j, col := range columns {
		parts[j] = col + ": " + row[j]
	}
	return strings.Join(parts, " | ")
}

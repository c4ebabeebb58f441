// File path: internal/tabular/evidence.go
package tabular

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nexa-ai/nexa/internal/common"
	"github.com/nexa-ai/nexa/internal/lexical"
)

// ClassifiedScore is the relevance score carried by evidence produced from a
// classified table query. A structured answer is more authoritative than a
// generic similarity score, so classified evidence always outranks
// embedding-scored candidates within the tabular pool.
const ClassifiedScore = 1000.0

const (
	// listAllRowCap bounds list_all output.
	listAllRowCap = 20
	// sampleRowCap bounds the serialized sample inside one evidence block.
	sampleRowCap = 5
)

// Evidence is one bounded, human-readable block of tabular context.
type Evidence struct {
	FileKey string
	Text    string
	Score   float64
	Exact   bool
}

// Summarizer condenses an evidence block through a single-turn completion.
type Summarizer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Build executes a classified query against a table and renders the bounded
// evidence block: file name, schema, a description of the selection, sample
// rows, and statistics over the result set.
func Build(t *Table, query Query) Evidence {
	var rows [][]string
	var desc string
	exact := false
	stats := true
	limit := sampleRowCap

	switch query.Intent {
	case IntentListAll:
		rows = headRows(t.Rows, listAllRowCap)
		limit = listAllRowCap
		desc = fmt.Sprintf("showing first %d of %d rows", len(rows), len(t.Rows))
	case IntentFilterExact, IntentFullRow:
		rows, exact, desc = filterRows(t, query)
	case IntentFilterPattern:
		j := t.ColumnIndex(query.Column)
		if j < 0 {
			rows = headRows(t.Rows, sampleRowCap)
			desc = fmt.Sprintf("column %q not found; showing a sample of %d rows", query.Column, len(rows))
			break
		}
		rows = t.Select(patternMask(j, query))
		if len(rows) == 0 {
			rows = headRows(t.Rows, sampleRowCap)
			desc = fmt.Sprintf("no %s value matching pattern %q; showing a sample of %d rows", query.Column, query.Pattern, len(rows))
		} else {
			exact = true
			desc = fmt.Sprintf("rows where %s %s %q (%d of %d rows)", query.Column, query.Mode, query.Pattern, len(rows), len(t.Rows))
		}
	case IntentAggregate:
		return buildAggregate(t, query)
	default:
		rows = headRows(t.Rows, sampleRowCap)
		desc = fmt.Sprintf("query not understood; showing a sample of %d rows", len(rows))
		stats = false
	}

	var b strings.Builder
	writeHeader(&b, t)
	b.WriteString("Selection: " + desc + "\n")
	writeRows(&b, t.Columns, rows, limit)
	if stats && len(rows) > 1 {
		writeStats(&b, t, rows)
	}
	return Evidence{FileKey: t.FileKey, Text: strings.TrimRight(b.String(), "\n"), Score: ClassifiedScore, Exact: exact}
}

// filterRows applies the exact-match policy shared by filter_exact and
// full_row: normalized equality first, then a fuzzy retry against the
// column's values, then a bounded sample with an explicit no-match note.
func filterRows(t *Table, query Query) ([][]string, bool, string) {
	column := query.Column
	value := query.Value
	if column == "" {
		rows := headRows(t.Rows, sampleRowCap)
		return rows, false, fmt.Sprintf("no matching column for %q; showing a sample of %d rows", value, len(rows))
	}
	j := t.ColumnIndex(column)
	if j < 0 {
		rows := headRows(t.Rows, sampleRowCap)
		return rows, false, fmt.Sprintf("column %q not found; showing a sample of %d rows", column, len(rows))
	}
	target := lexical.Normalize(value)
	rows := t.Select(func(row []string) bool {
		return lexical.Normalize(row[j]) == target
	})
	if len(rows) == 0 && !query.ValueResolved {
		if fuzzy, ok := lexical.BestValueMatch(value, t.DistinctValues(column)); ok {
			target = lexical.Normalize(fuzzy)
			value = fuzzy
			rows = t.Select(func(row []string) bool {
				return lexical.Normalize(row[j]) == target
			})
		}
	}
	if len(rows) == 0 {
		sample := headRows(t.Rows, sampleRowCap)
		return sample, false, fmt.Sprintf("no row where %s matches %q; showing a sample of %d rows", column, query.Value, len(sample))
	}
	return rows, true, fmt.Sprintf("rows where %s = %q (%d of %d rows)", column, value, len(rows), len(t.Rows))
}

func patternMask(j int, query Query) func(row []string) bool {
	pattern := lexical.Normalize(query.Pattern)
	return func(row []string) bool {
		cell := lexical.Normalize(row[j])
		switch query.Mode {
		case PatternPrefix:
			return strings.HasPrefix(cell, pattern)
		case PatternSuffix:
			return strings.HasSuffix(cell, pattern)
		default:
			return strings.Contains(cell, pattern)
		}
	}
}

func buildAggregate(t *Table, query Query) Evidence {
	var b strings.Builder
	writeHeader(&b, t)
	if query.Column == "" || t.ColumnIndex(query.Column) < 0 {
		// Extraction could not settle on a column; degrade to a descriptive
		// summary of the whole table.
		b.WriteString("Selection: summary statistics for all columns\n")
		writeStats(&b, t, t.Rows)
		return Evidence{FileKey: t.FileKey, Text: strings.TrimRight(b.String(), "\n"), Score: ClassifiedScore}
	}
	name := fmt.Sprintf("%s_%s", query.Func, query.Column)
	var value string
	switch query.Func {
	case AggCount:
		value = fmt.Sprintf("%d", countNonNull(t, query.Column))
	default:
		nums := t.NumericColumn(query.Column)
		if len(nums) == 0 {
			b.WriteString(fmt.Sprintf("Selection: %s of %s requested, but the column has no numeric values\n", query.Func, query.Column))
			writeStats(&b, t, t.Rows)
			return Evidence{FileKey: t.FileKey, Text: strings.TrimRight(b.String(), "\n"), Score: ClassifiedScore}
		}
		value = formatFloat(reduce(query.Func, nums))
	}
	b.WriteString(fmt.Sprintf("Selection: %s of %s over %d rows\n", query.Func, query.Column, len(t.Rows)))
	b.WriteString(name + "\n")
	b.WriteString(value + "\n")
	return Evidence{FileKey: t.FileKey, Text: strings.TrimRight(b.String(), "\n"), Score: ClassifiedScore, Exact: true}
}

// countNonNull counts cells in the column carrying a value. Duplicates count
// individually; only empty cells are skipped.
func countNonNull(t *Table, column string) int {
	j := t.ColumnIndex(column)
	if j < 0 {
		return 0
	}
	n := 0
	for _, row := range t.Rows {
		if strings.TrimSpace(row[j]) != "" {
			n++
		}
	}
	return n
}

func reduce(fn AggFunc, nums []float64) float64 {
	switch fn {
	case AggSum:
		var sum float64
		for _, v := range nums {
			sum += v
		}
		return sum
	case AggMean:
		var sum float64
		for _, v := range nums {
			sum += v
		}
		return sum / float64(len(nums))
	case AggMin:
		min := nums[0]
		for _, v := range nums[1:] {
			if v < min {
				min = v
			}
		}
		return min
	default:
		max := nums[0]
		for _, v := range nums[1:] {
			if v > max {
				max = v
			}
		}
		return max
	}
}

func writeHeader(b *strings.Builder, t *Table) {
	b.WriteString("Table: " + t.FileKey + "\n")
	parts := make([]string, len(t.Columns))
	for j, col := range t.Columns {
		parts[j] = fmt.Sprintf("%s (%s)", col, t.dtypes[j])
	}
	b.WriteString("Columns: " + strings.Join(parts, ", ") + "\n")
}

func writeRows(b *strings.Builder, columns []string, rows [][]string, limit int) {
	b.WriteString(strings.Join(columns, " | ") + "\n")
	for i, row := range rows {
		if i >= limit {
			b.WriteString(fmt.Sprintf("... (%d more rows)\n", len(rows)-limit))
			break
		}
		b.WriteString(strings.Join(row, " | ") + "\n")
	}
}

// writeStats renders per-column statistics over the selected result set,
// mirroring a describe() summary: numeric columns get count/mean/min/max,
// string columns get count/unique/top.
func writeStats(b *strings.Builder, t *Table, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	b.WriteString("Stats:\n")
	for j, col := range t.Columns {
		cells := make([]string, 0, len(rows))
		for _, row := range rows {
			if cell := strings.TrimSpace(row[j]); cell != "" {
				cells = append(cells, cell)
			}
		}
		if t.dtypes[j] == DtypeNumber {
			nums := parseFloats(cells)
			if len(nums) == 0 {
				continue
			}
			b.WriteString(fmt.Sprintf("  %s: count=%d mean=%s min=%s max=%s\n",
				col, len(nums), formatFloat(reduce(AggMean, nums)), formatFloat(reduce(AggMin, nums)), formatFloat(reduce(AggMax, nums))))
			continue
		}
		counts := make(map[string]int)
		for _, cell := range cells {
			counts[cell]++
		}
		top := ""
		topCount := 0
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if counts[k] > topCount {
				top = k
				topCount = counts[k]
			}
		}
		b.WriteString(fmt.Sprintf("  %s: count=%d unique=%d top=%q\n", col, len(cells), len(counts), top))
	}
}

// Summarize condenses an evidence block through the provided completion
// service. Failures degrade to the original block; summarization is an
// optional refinement, never a gate.
func Summarize(ctx context.Context, s Summarizer, ev Evidence, question string) Evidence {
	if s == nil || ev.Text == "" {
		return ev
	}
	prompt := fmt.Sprintf("Summarize the following table extract as evidence for the question %q. Keep every figure exact.\n\n%s", question, ev.Text)
	summary, err := s.Complete(ctx, prompt)
	if err != nil || strings.TrimSpace(summary) == "" {
		common.Logger().Warn("tabular: evidence summarization failed", "file_key", ev.FileKey, "error", err)
		return ev
	}
	ev.Text = strings.TrimSpace(summary)
	return ev
}

func headRows(rows [][]string, limit int) [][]string {
	if len(rows) <= limit {
		return rows
	}
	return rows[:limit]
}

func parseFloats(cells []string) []float64 {
	var out []float64
	for _, cell := range cells {
		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

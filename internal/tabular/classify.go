// File path: internal/tabular/classify.go
package tabular

import (
	"strings"

	"github.com/nexa-ai/nexa/internal/lexical"
)

// Intent is the classified shape of a natural-language question against a
// table.
type Intent string

const (
	IntentListAll       Intent = "list_all"
	IntentFilterExact   Intent = "filter_exact"
	IntentFilterPattern Intent = "filter_pattern"
	IntentAggregate     Intent = "aggregate"
	IntentFullRow       Intent = "full_row"
	IntentUnknown       Intent = "unknown"
)

// AggFunc is a numeric reduction requested by an aggregate question.
type AggFunc string

const (
	AggMean  AggFunc = "mean"
	AggSum   AggFunc = "sum"
	AggCount AggFunc = "count"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
)

// PatternMode selects how a pattern filter compares values.
type PatternMode string

const (
	PatternContains PatternMode = "contains"
	PatternPrefix   PatternMode = "prefix"
	PatternSuffix   PatternMode = "suffix"
)

// Query is a classified question: the intent plus whichever parameters the
// matching rule extracted.
type Query struct {
	Intent  Intent
	Column  string
	Value   string
	Pattern string
	Mode    PatternMode
	Func    AggFunc

	// ValueResolved is set when the filter value was resolved against the
	// table's actual cell values rather than taken literally from the
	// question.
	ValueResolved bool
}

// rule pairs a recognizer with its parameter extractor. Rules are evaluated
// in declaration order and the first match wins, which keeps the precedence
// policy explicit and each rule independently testable.
type rule struct {
	name  string
	apply func(q questionTokens, t *Table) (Query, bool)
}

var rules = []rule{
	{name: "list_all", apply: matchListAll},
	{name: "filter_exact", apply: matchFilterExact},
	{name: "filter_pattern", apply: matchFilterPattern},
	{name: "aggregate", apply: matchAggregate},
	{name: "full_row", apply: matchFullRow},
}

// Classify maps a question onto a Query for the given table. Classification
// is heuristic and conservative: when no rule extracts confidently the
// result is IntentUnknown, which downstream degrades to a bounded sample.
func Classify(question string, t *Table) Query {
	q := tokenizeQuestion(question)
	if len(q.tokens) == 0 {
		return Query{Intent: IntentUnknown}
	}
	for _, r := range rules {
		if query, ok := r.apply(q, t); ok {
			return query
		}
	}
	return Query{Intent: IntentUnknown}
}

type questionTokens struct {
	normalized string
	tokens     []string
}

func tokenizeQuestion(question string) questionTokens {
	normalized := lexical.Normalize(question)
	return questionTokens{normalized: normalized, tokens: strings.Fields(normalized)}
}

var copulaWords = map[string]struct{}{
	"is": {}, "equals": {}, "named": {}, "with": {}, "of": {}, "to": {},
	"are": {}, "be": {}, "the": {}, "a": {}, "an": {},
}

func matchListAll(q questionTokens, t *Table) (Query, bool) {
	if strings.HasPrefix(q.normalized, "list all") || strings.HasPrefix(q.normalized, "show all") {
		return Query{Intent: IntentListAll}, true
	}
	return Query{}, false
}

// matchFilterExact looks for a column name mentioned in the question with a
// value token following it across copula words. The value is resolved
// against the named column's distinct values; when that fails, against every
// other column, so "age of Ann" filters on the name column while still
// returning the full matching row.
func matchFilterExact(q questionTokens, t *Table) (Query, bool) {
	column, after := findColumnMention(q.tokens, t.Columns)
	if column == "" || len(after) == 0 {
		return Query{}, false
	}
	if _, ok := copulaWords[after[0]]; !ok && !isNumericToken(after[0]) {
		// The column mention must be adjacent to a copula word (or a bare
		// numeric literal, since normalization strips "="); otherwise a
		// pattern or aggregate phrasing gets a chance to claim the question.
		return Query{}, false
	}
	value := firstValueToken(after)
	if value == "" {
		return Query{}, false
	}
	if resolved, ok := lexical.BestValueMatch(value, t.DistinctValues(column)); ok {
		return Query{Intent: IntentFilterExact, Column: column, Value: resolved, ValueResolved: true}, true
	}
	if col, resolved, ok := locateValueColumn(value, t, column); ok {
		return Query{Intent: IntentFilterExact, Column: col, Value: resolved, ValueResolved: true}, true
	}
	return Query{Intent: IntentFilterExact, Column: column, Value: value}, true
}

var patternKeywords = []struct {
	phrase string
	mode   PatternMode
}{
	{"starts with", PatternPrefix},
	{"ends with", PatternSuffix},
	{"contains", PatternContains},
	{"pattern", PatternContains},
}

func matchFilterPattern(q questionTokens, t *Table) (Query, bool) {
	for _, kw := range patternKeywords {
		idx := strings.Index(q.normalized, kw.phrase)
		if idx < 0 {
			continue
		}
		rest := strings.Fields(q.normalized[idx+len(kw.phrase):])
		pattern := firstValueToken(rest)
		if pattern == "" {
			continue
		}
		column, _ := findColumnMention(q.tokens, t.Columns)
		if column == "" {
			column = fuzzyColumnFromTokens(q.tokens, t.Columns)
		}
		if column == "" {
			continue
		}
		return Query{Intent: IntentFilterPattern, Column: column, Pattern: pattern, Mode: kw.mode}, true
	}
	return Query{}, false
}

var aggregateKeywords = map[string]AggFunc{
	"average": AggMean,
	"mean":    AggMean,
	"sum":     AggSum,
	"total":   AggSum,
	"count":   AggCount,
	"min":     AggMin,
	"minimum": AggMin,
	"max":     AggMax,
	"maximum": AggMax,
}

func matchAggregate(q questionTokens, t *Table) (Query, bool) {
	for i, token := range q.tokens {
		fn, ok := aggregateKeywords[token]
		if !ok {
			continue
		}
		column := ""
		for _, candidate := range q.tokens[i+1:] {
			if _, skip := copulaWords[candidate]; skip {
				continue
			}
			if match, ok := lexical.BestColumnMatch(candidate, t.Columns); ok {
				column = match
			}
			break
		}
		// A recognized aggregate with no resolvable column still counts:
		// downstream falls back to a full descriptive summary.
		return Query{Intent: IntentAggregate, Func: fn, Column: column}, true
	}
	return Query{}, false
}

var fullRowMarkers = []string{"info for", "details for", "row for", "record for"}

func matchFullRow(q questionTokens, t *Table) (Query, bool) {
	for _, marker := range fullRowMarkers {
		idx := strings.Index(q.normalized, marker)
		if idx < 0 {
			continue
		}
		value := strings.TrimSpace(q.normalized[idx+len(marker):])
		if value == "" {
			continue
		}
		if col, resolved, ok := locateValueColumn(value, t, ""); ok {
			return Query{Intent: IntentFullRow, Column: col, Value: resolved, ValueResolved: true}, true
		}
		return Query{Intent: IntentFullRow, Value: value}, true
	}
	return Query{}, false
}

// findColumnMention scans the question tokens for a column name (including
// multi-word names) and returns the matched column plus the tokens that
// follow the mention.
func findColumnMention(tokens []string, columns []string) (string, []string) {
	for i := range tokens {
		for _, col := range columns {
			colTokens := strings.Fields(lexical.Normalize(col))
			if len(colTokens) == 0 || i+len(colTokens) > len(tokens) {
				continue
			}
			matched := true
			for j, ct := range colTokens {
				if tokens[i+j] != ct {
					matched = false
					break
				}
			}
			if matched {
				return col, tokens[i+len(colTokens):]
			}
		}
	}
	// No exact mention; retry each token as a misspelling of a column name.
	for i, token := range tokens {
		if _, skip := copulaWords[token]; skip {
			continue
		}
		if match, ok := lexical.BestColumnMatch(token, columns); ok {
			return match, tokens[i+1:]
		}
	}
	return "", nil
}

func isNumericToken(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// firstValueToken returns the first token that is not a copula or article.
func firstValueToken(tokens []string) string {
	for _, token := range tokens {
		if _, skip := copulaWords[token]; skip {
			continue
		}
		return token
	}
	return ""
}

// fuzzyColumnFromTokens tries every question token against the column list
// and returns the first fuzzy hit.
func fuzzyColumnFromTokens(tokens []string, columns []string) string {
	for _, token := range tokens {
		if _, skip := copulaWords[token]; skip {
			continue
		}
		if match, ok := lexical.BestColumnMatch(token, columns); ok {
			return match
		}
	}
	return ""
}

// locateValueColumn searches every column's distinct values for the best
// match to the token, skipping the excluded column.
func locateValueColumn(token string, t *Table, exclude string) (string, string, bool) {
	bestColumn := ""
	bestValue := ""
	bestRatio := 0.0
	for _, col := range t.Columns {
		if col == exclude {
			continue
		}
		for _, value := range t.DistinctValues(col) {
			r := lexical.Ratio(token, value)
			if r >= lexical.FuzzyThreshold && r > bestRatio {
				bestColumn = col
				bestValue = value
				bestRatio = r
			}
		}
	}
	if bestColumn == "" {
		return "", "", false
	}
	return bestColumn, bestValue, true
}

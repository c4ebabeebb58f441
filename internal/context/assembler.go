// File path: internal/context/assembler.go
package context

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nexa-ai/nexa/internal/common"
	"github.com/nexa-ai/nexa/internal/common/telemetry"
	"github.com/nexa-ai/nexa/internal/embed"
	"github.com/nexa-ai/nexa/internal/kb"
	"github.com/nexa-ai/nexa/internal/tabular"
)

// Assembler ranks an organization's knowledge entries against a question and
// renders the winning evidence into one prompt-ready context string.
type Assembler struct {
	config Config
	embed  *embed.Client
	tables *tabular.Cache
}

// NewAssembler wires an embedding client into an assembler. Zero-valued
// config fields fall back to defaults.
func NewAssembler(cfg Config, client *embed.Client) *Assembler {
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultConfig().TopN
	}
	if cfg.TableCacheSize <= 0 {
		cfg.TableCacheSize = DefaultConfig().TableCacheSize
	}
	return &Assembler{
		config: cfg,
		embed:  client,
		tables: tabular.NewCache(cfg.TableCacheSize),
	}
}

// Assemble produces the context string for a question over a set of entries.
// Text chunks and tables are ranked in independent pools, each capped at
// topN, and the surviving blocks are joined with blank lines: text first,
// then tabular evidence. It never fails: any outcome that yields no usable
// evidence returns the NoRelevantContext sentinel instead.
func (a *Assembler) Assemble(ctx context.Context, question string, entries []kb.KnowledgeEntry, topN int) string {
	start := time.Now()
	result := a.assemble(ctx, question, entries, topN)
	telemetry.RecordAssembly(time.Since(start), result != NoRelevantContext)
	return result
}

func (a *Assembler) assemble(ctx context.Context, question string, entries []kb.KnowledgeEntry, topN int) string {
	question = strings.TrimSpace(question)
	if question == "" || len(entries) == 0 {
		return NoRelevantContext
	}
	if topN <= 0 {
		topN = a.config.TopN
	}
	logger := common.Logger()

	questionVec, err := a.embed.Embed(ctx, question)
	if err != nil {
		logger.Warn("context: question embedding failed", "error", err)
		return NoRelevantContext
	}

	texts, groups := kb.Partition(entries)

	var blocks []Block
	var blocksMu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ranked := rankText(ctx, a.embed, questionVec, texts, topN)
		if len(ranked) == 0 {
			return
		}
		blocksMu.Lock()
		blocks = append(blocks, ranked...)
		blocksMu.Unlock()
	}()

	tabularBlocks := make([]Block, len(groups))
	for i, group := range groups {
		wg.Add(1)
		go func(i int, group kb.TableGroup) {
			defer wg.Done()
			block, ok := a.tableEvidence(ctx, question, questionVec, group, topN)
			if ok {
				tabularBlocks[i] = block
			}
		}(i, group)
	}
	wg.Wait()

	var tables []Block
	for _, block := range tabularBlocks {
		if block.Text != "" {
			tables = append(tables, block)
		}
	}
	sort.SliceStable(tables, func(i, j int) bool {
		return tables[i].Score > tables[j].Score
	})
	if len(tables) > topN {
		tables = tables[:topN]
	}

	blocksMu.Lock()
	blocks = append(blocks, tables...)
	blocksMu.Unlock()
	if len(blocks) == 0 {
		return NoRelevantContext
	}

	parts := make([]string, len(blocks))
	for i, block := range blocks {
		parts[i] = block.Text
	}
	return strings.Join(parts, "\n\n")
}

// tableEvidence reconstructs one table and builds its evidence block.
// Failures are logged and skipped so one malformed table never poisons the
// rest of the assembly.
func (a *Assembler) tableEvidence(ctx context.Context, question string, questionVec []float32, group kb.TableGroup, topN int) (Block, bool) {
	logger := common.Logger()
	table, err := a.tables.Reconstruct(group)
	if err != nil {
		logger.Warn("context: skipping table", "file_key", group.FileKey, "org_id", group.OrgID, "error", err)
		return Block{}, false
	}
	query := tabular.Classify(question, table)

	var ev tabular.Evidence
	if query.Intent == tabular.IntentUnknown {
		ev, err = tabular.BuildByRowEmbedding(ctx, a.embed, questionVec, table, topN)
		if err != nil {
			logger.Warn("context: row embedding fallback failed, sampling instead",
				"file_key", group.FileKey, "error", err)
			ev = tabular.Build(table, query)
		}
	} else {
		ev = tabular.Build(table, query)
	}
	if a.config.Summarizer != nil {
		ev = tabular.Summarize(ctx, a.config.Summarizer, ev, question)
	}
	if ev.Text == "" {
		return Block{}, false
	}
	return Block{Source: ev.FileKey, Text: ev.Text, Score: ev.Score, Tabular: true}, true
}

// PurgeTables drops every cached table reconstruction.
func (a *Assembler) PurgeTables() {
	a.tables.Purge()
}

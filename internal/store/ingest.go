// File path: internal/store/ingest.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/nexa-ai/nexa/internal/common"
	"github.com/nexa-ai/nexa/internal/embed"
	"github.com/nexa-ai/nexa/internal/kb"
	"github.com/nexa-ai/nexa/internal/tabular"
)

const (
	ingestChunkSize    = 1000
	ingestChunkOverlap = 200
)

// Ingestor turns uploaded documents into persisted knowledge entries: text
// is chunked and embedded up front, tables are validated before they enter
// the catalog.
type Ingestor struct {
	store    *Store
	embed    *embed.Client
	splitter textsplitter.RecursiveCharacter
}

func NewIngestor(store *Store, client *embed.Client) *Ingestor {
	return &Ingestor{
		store: store,
		embed: client,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(ingestChunkSize),
			textsplitter.WithChunkOverlap(ingestChunkOverlap),
		),
	}
}

// IngestText chunks a document, embeds the chunks, and persists the entry.
// An embedding failure is logged and the chunks are stored unembedded; the
// ranker embeds them on demand instead.
func (i *Ingestor) IngestText(ctx context.Context, orgID, fileKey, text string) (kb.KnowledgeEntry, error) {
	if strings.TrimSpace(text) == "" {
		return kb.KnowledgeEntry{}, errors.New("document text required")
	}
	pieces, err := i.splitter.SplitText(text)
	if err != nil {
		return kb.KnowledgeEntry{}, fmt.Errorf("split document: %w", err)
	}
	chunks := make([]kb.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		chunks = append(chunks, kb.Chunk{Text: piece})
	}
	if len(chunks) == 0 {
		return kb.KnowledgeEntry{}, errors.New("document produced no chunks")
	}
	texts := make([]string, len(chunks))
	for j, chunk := range chunks {
		texts[j] = chunk.Text
	}
	if vectors, err := i.embed.EmbedBatch(ctx, texts); err != nil {
		common.Logger().Warn("store: chunk embedding failed, persisting unembedded",
			"org_id", orgID, "file_key", fileKey, "error", err)
	} else {
		for j := range chunks {
			chunks[j].Embedding = vectors[j]
		}
	}
	entry := kb.KnowledgeEntry{
		ID:      uuid.NewString(),
		OrgID:   orgID,
		FileKey: fileKey,
		Chunks:  chunks,
	}
	if err := i.store.SaveEntry(ctx, entry); err != nil {
		return kb.KnowledgeEntry{}, err
	}
	return entry, nil
}

// IngestTableJSON persists a whole serialized table after verifying it
// reconstructs, so malformed uploads are rejected at the door rather than
// discovered at query time.
func (i *Ingestor) IngestTableJSON(ctx context.Context, orgID, fileKey string, data json.RawMessage) (kb.KnowledgeEntry, error) {
	entry := kb.KnowledgeEntry{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		FileKey:   fileKey,
		IsTabular: true,
		DataJSON:  data,
	}
	if _, err := tabular.Reconstruct(kb.TableGroup{OrgID: orgID, FileKey: fileKey, Entries: []kb.KnowledgeEntry{entry}}); err != nil {
		return kb.KnowledgeEntry{}, err
	}
	if err := i.store.SaveEntry(ctx, entry); err != nil {
		return kb.KnowledgeEntry{}, err
	}
	return entry, nil
}

// IngestRows persists a table uploaded row by row. The first entry carries
// the header so reconstruction keeps the declared column order.
func (i *Ingestor) IngestRows(ctx context.Context, orgID, fileKey string, header []string, rows []map[string]interface{}) ([]kb.KnowledgeEntry, error) {
	if len(rows) == 0 {
		return nil, errors.New("at least one row required")
	}
	entries := make([]kb.KnowledgeEntry, 0, len(rows))
	for j, row := range rows {
		entry := kb.KnowledgeEntry{
			ID:        uuid.NewString(),
			OrgID:     orgID,
			FileKey:   fileKey,
			IsTabular: true,
			Row:       row,
		}
		if j == 0 {
			entry.Header = header
		}
		entries = append(entries, entry)
	}
	if _, err := tabular.Reconstruct(kb.TableGroup{OrgID: orgID, FileKey: fileKey, Entries: entries}); err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if err := i.store.SaveEntry(ctx, entry); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

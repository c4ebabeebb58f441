// File path: internal/store/store_test.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nexa-ai/nexa/internal/embed"
	"github.com/nexa-ai/nexa/internal/kb"
	"github.com/nexa-ai/nexa/internal/tabular"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenWithConfig(Config{Path: filepath.Join(t.TempDir(), "catalog.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetEntryRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	entry := kb.KnowledgeEntry{
		ID:      "e1",
		OrgID:   "org-a",
		FileKey: "notes.md",
		Chunks: []kb.Chunk{
			{Text: "first chunk", Embedding: []float32{0.1, 0.2}},
			{Text: "second chunk"},
		},
	}
	if err := s.SaveEntry(ctx, entry); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.GetEntry(ctx, "org-a", "e1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FileKey != "notes.md" || len(got.Chunks) != 2 {
		t.Fatalf("unexpected entry %+v", got)
	}
	if got.Chunks[0].Text != "first chunk" || len(got.Chunks[0].Embedding) != 2 {
		t.Fatalf("chunk 0 did not roundtrip: %+v", got.Chunks[0])
	}
	if got.Chunks[1].Embedding != nil {
		t.Fatalf("unembedded chunk should stay unembedded: %+v", got.Chunks[1])
	}
}

func TestSaveEntryTabularShapes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	entry := kb.KnowledgeEntry{
		ID:        "r1",
		OrgID:     "org-a",
		FileKey:   "people.csv",
		IsTabular: true,
		Header:    []string{"name", "age"},
		Row:       map[string]interface{}{"name": "Ann", "age": float64(30)},
	}
	if err := s.SaveEntry(ctx, entry); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.GetEntry(ctx, "org-a", "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsTabular || got.Header[0] != "name" || got.Row["name"] != "Ann" {
		t.Fatalf("tabular fields did not roundtrip: %+v", got)
	}
}

func TestSaveEntryReplacesChunks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	entry := kb.KnowledgeEntry{ID: "e1", OrgID: "org-a", Chunks: []kb.Chunk{{Text: "old"}}}
	if err := s.SaveEntry(ctx, entry); err != nil {
		t.Fatalf("save: %v", err)
	}
	entry.Chunks = []kb.Chunk{{Text: "new one"}, {Text: "new two"}}
	if err := s.SaveEntry(ctx, entry); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, err := s.GetEntry(ctx, "org-a", "e1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Chunks) != 2 || got.Chunks[0].Text != "new one" {
		t.Fatalf("chunks should be replaced, got %+v", got.Chunks)
	}
}

func TestListEntriesScopedToOrg(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, entry := range []kb.KnowledgeEntry{
		{ID: "a1", OrgID: "org-a", Chunks: []kb.Chunk{{Text: "a"}}},
		{ID: "a2", OrgID: "org-a", Chunks: []kb.Chunk{{Text: "b"}}},
		{ID: "b1", OrgID: "org-b", Chunks: []kb.Chunk{{Text: "c"}}},
	} {
		if err := s.SaveEntry(ctx, entry); err != nil {
			t.Fatalf("save %s: %v", entry.ID, err)
		}
	}
	entries, err := s.ListEntries(ctx, "org-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("org-a should see two entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.OrgID != "org-a" {
			t.Fatalf("foreign entry leaked: %+v", entry)
		}
	}
	if _, err := s.GetEntry(ctx, "org-a", "b1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-org get should be ErrNotFound, got %v", err)
	}
}

func TestDeleteEntry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	entry := kb.KnowledgeEntry{ID: "e1", OrgID: "org-a", Chunks: []kb.Chunk{{Text: "x"}}}
	if err := s.SaveEntry(ctx, entry); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.DeleteEntry(ctx, "org-a", "e1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetEntry(ctx, "org-a", "e1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted entry should be gone, got %v", err)
	}
	if err := s.DeleteEntry(ctx, "org-a", "e1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete should be ErrNotFound, got %v", err)
	}
}

type fakeEmbedBackend struct {
	fail bool
}

func (f fakeEmbedBackend) Embed(ctx context.Context, input []string) ([][]float32, error) {
	if f.fail {
		return nil, errors.New("backend down")
	}
	out := make([][]float32, len(input))
	for i := range input {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestIngestTextChunksAndEmbeds(t *testing.T) {
	s := openTestStore(t)
	ing := NewIngestor(s, embed.NewClient(fakeEmbedBackend{}, embed.DefaultConfig()))
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 80)
	entry, err := ing.IngestText(context.Background(), "org-a", "fox.md", text)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(entry.Chunks) < 2 {
		t.Fatalf("long document should split into multiple chunks, got %d", len(entry.Chunks))
	}
	for i, chunk := range entry.Chunks {
		if len(chunk.Text) > ingestChunkSize {
			t.Fatalf("chunk %d exceeds the chunk size: %d runes", i, len(chunk.Text))
		}
		if len(chunk.Embedding) == 0 {
			t.Fatalf("chunk %d should be embedded at ingestion", i)
		}
	}
	stored, err := s.GetEntry(context.Background(), "org-a", entry.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(stored.Chunks) != len(entry.Chunks) {
		t.Fatalf("persisted chunk count mismatch: %d vs %d", len(stored.Chunks), len(entry.Chunks))
	}
}

func TestIngestTextSurvivesEmbeddingOutage(t *testing.T) {
	s := openTestStore(t)
	ing := NewIngestor(s, embed.NewClient(fakeEmbedBackend{fail: true}, embed.DefaultConfig()))
	entry, err := ing.IngestText(context.Background(), "org-a", "note.md", "a short note")
	if err != nil {
		t.Fatalf("ingest should not fail on embedding outage: %v", err)
	}
	if len(entry.Chunks) == 0 || entry.Chunks[0].Embedding != nil {
		t.Fatalf("chunks should persist unembedded, got %+v", entry.Chunks)
	}
}

func TestIngestTableJSONRejectsMalformed(t *testing.T) {
	s := openTestStore(t)
	ing := NewIngestor(s, embed.NewClient(fakeEmbedBackend{}, embed.DefaultConfig()))
	_, err := ing.IngestTableJSON(context.Background(), "org-a", "bad.csv", json.RawMessage(`"nope"`))
	if !errors.Is(err, tabular.ErrMalformedSource) {
		t.Fatalf("want ErrMalformedSource, got %v", err)
	}
	entries, err := s.ListEntries(context.Background(), "org-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatal("rejected tables must not be persisted")
	}
}

func TestIngestRowsKeepsHeaderOrder(t *testing.T) {
	s := openTestStore(t)
	ing := NewIngestor(s, embed.NewClient(fakeEmbedBackend{}, embed.DefaultConfig()))
	entries, err := ing.IngestRows(context.Background(), "org-a", "people.csv",
		[]string{"name", "age"},
		[]map[string]interface{}{
			{"name": "Ann", "age": 30},
			{"name": "Bob", "age": 20},
		})
	if err != nil {
		t.Fatalf("ingest rows: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	if len(entries[0].Header) != 2 || entries[1].Header != nil {
		t.Fatal("only the first entry should carry the header")
	}
	stored, err := s.ListEntries(context.Background(), "org-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	_, groups := kb.Partition(stored)
	if len(groups) != 1 {
		t.Fatalf("rows should group into one table, got %d", len(groups))
	}
	table, err := tabular.Reconstruct(groups[0])
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if table.Columns[0] != "name" || table.Columns[1] != "age" {
		t.Fatalf("header order should survive storage, got %v", table.Columns)
	}
}

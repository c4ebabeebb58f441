// File path: internal/store/entries.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nexa-ai/nexa/internal/kb"
)

type entryRow struct {
	ID         string         `db:"id"`
	OrgID      string         `db:"org_id"`
	FileKey    string         `db:"file_key"`
	IsTabular  bool           `db:"is_tabular"`
	DataJSON   sql.NullString `db:"data_json"`
	RowJSON    sql.NullString `db:"row_json"`
	RowText    string         `db:"row_text"`
	HeaderJSON sql.NullString `db:"header_json"`
	CreatedAt  sql.NullTime   `db:"created_at"`
}

type chunkRow struct {
	EntryID       string         `db:"entry_id"`
	Seq           int            `db:"seq"`
	Content       string         `db:"content"`
	EmbeddingJSON sql.NullString `db:"embedding_json"`
}

// SaveEntry persists an entry and its chunks in one transaction, replacing
// any previous version with the same ID.
func (s *Store) SaveEntry(ctx context.Context, entry kb.KnowledgeEntry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return errors.New("entry id required")
	}
	if strings.TrimSpace(entry.OrgID) == "" {
		return errors.New("org id required")
	}
	row, err := toEntryRow(entry)
	if err != nil {
		return err
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `
                        INSERT INTO entries (id, org_id, file_key, is_tabular, data_json, row_json, row_text, header_json)
                        VALUES (:id, :org_id, :file_key, :is_tabular, :data_json, :row_json, :row_text, :header_json)
                        ON CONFLICT(id) DO UPDATE SET
                                org_id = excluded.org_id,
                                file_key = excluded.file_key,
                                is_tabular = excluded.is_tabular,
                                data_json = excluded.data_json,
                                row_json = excluded.row_json,
                                row_text = excluded.row_text,
                                header_json = excluded.header_json`, row); err != nil {
			return fmt.Errorf("upsert entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE entry_id = ?`, entry.ID); err != nil {
			return fmt.Errorf("clear chunks: %w", err)
		}
		for seq, chunk := range entry.Chunks {
			embedding := sql.NullString{}
			if len(chunk.Embedding) > 0 {
				blob, err := json.Marshal(chunk.Embedding)
				if err != nil {
					return fmt.Errorf("encode embedding: %w", err)
				}
				embedding = sql.NullString{String: string(blob), Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO chunks (entry_id, seq, content, embedding_json) VALUES (?, ?, ?, ?)`,
				entry.ID, seq, chunk.Text, embedding); err != nil {
				return fmt.Errorf("insert chunk %d: %w", seq, err)
			}
		}
		return nil
	})
}

// ListEntries returns every entry for an organization with chunks attached,
// ordered by creation time then ID.
func (s *Store) ListEntries(ctx context.Context, orgID string) ([]kb.KnowledgeEntry, error) {
	rows := []entryRow{}
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM entries WHERE org_id = ? ORDER BY created_at, id`, orgID); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	entries := make([]kb.KnowledgeEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := s.hydrate(ctx, row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetEntry returns one entry scoped to an organization.
func (s *Store) GetEntry(ctx context.Context, orgID, id string) (kb.KnowledgeEntry, error) {
	var row entryRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM entries WHERE org_id = ? AND id = ?`, orgID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return kb.KnowledgeEntry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return kb.KnowledgeEntry{}, fmt.Errorf("select entry: %w", err)
	}
	return s.hydrate(ctx, row)
}

// DeleteEntry removes one entry and its chunks.
func (s *Store) DeleteEntry(ctx context.Context, orgID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE org_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *Store) hydrate(ctx context.Context, row entryRow) (kb.KnowledgeEntry, error) {
	entry := kb.KnowledgeEntry{
		ID:        row.ID,
		OrgID:     row.OrgID,
		FileKey:   row.FileKey,
		IsTabular: row.IsTabular,
		Text:      row.RowText,
	}
	if row.DataJSON.Valid && row.DataJSON.String != "" {
		entry.DataJSON = json.RawMessage(row.DataJSON.String)
	}
	if row.RowJSON.Valid && row.RowJSON.String != "" {
		if err := json.Unmarshal([]byte(row.RowJSON.String), &entry.Row); err != nil {
			return kb.KnowledgeEntry{}, fmt.Errorf("decode row of %s: %w", row.ID, err)
		}
	}
	if row.HeaderJSON.Valid && row.HeaderJSON.String != "" {
		if err := json.Unmarshal([]byte(row.HeaderJSON.String), &entry.Header); err != nil {
			return kb.KnowledgeEntry{}, fmt.Errorf("decode header of %s: %w", row.ID, err)
		}
	}
	chunks := []chunkRow{}
	if err := s.db.SelectContext(ctx, &chunks, `SELECT entry_id, seq, content, embedding_json FROM chunks WHERE entry_id = ? ORDER BY seq`, row.ID); err != nil {
		return kb.KnowledgeEntry{}, fmt.Errorf("select chunks of %s: %w", row.ID, err)
	}
	for _, c := range chunks {
		chunk := kb.Chunk{Text: c.Content}
		if c.EmbeddingJSON.Valid && c.EmbeddingJSON.String != "" {
			if err := json.Unmarshal([]byte(c.EmbeddingJSON.String), &chunk.Embedding); err != nil {
				return kb.KnowledgeEntry{}, fmt.Errorf("decode embedding of %s: %w", row.ID, err)
			}
		}
		entry.Chunks = append(entry.Chunks, chunk)
	}
	return entry, nil
}

func toEntryRow(entry kb.KnowledgeEntry) (entryRow, error) {
	row := entryRow{
		ID:        entry.ID,
		OrgID:     entry.OrgID,
		FileKey:   entry.FileKey,
		IsTabular: entry.IsTabular,
		RowText:   entry.Text,
	}
	if len(entry.DataJSON) > 0 {
		row.DataJSON = sql.NullString{String: string(entry.DataJSON), Valid: true}
	}
	if len(entry.Row) > 0 {
		blob, err := json.Marshal(entry.Row)
		if err != nil {
			return entryRow{}, fmt.Errorf("encode row: %w", err)
		}
		row.RowJSON = sql.NullString{String: string(blob), Valid: true}
	}
	if len(entry.Header) > 0 {
		blob, err := json.Marshal(entry.Header)
		if err != nil {
			return entryRow{}, fmt.Errorf("encode header: %w", err)
		}
		row.HeaderJSON = sql.NullString{String: string(blob), Valid: true}
	}
	return row, nil
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

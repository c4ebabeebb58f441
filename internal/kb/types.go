// File path: internal/kb/types.go
package kb

import (
	"encoding/json"
	"strings"
)

// Chunk is a bounded span of text from a source document. The embedding is
// optional; chunks without one are embedded on demand during ranking.
type Chunk struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// KnowledgeEntry is one uploaded source document belonging to an
// organization. IsTabular is fixed at ingestion; an entry is never partially
// tabular and partially text. Entries are read-only to the retrieval core.
type KnowledgeEntry struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	FileKey   string `json:"file_key,omitempty"`
	IsTabular bool   `json:"is_tabular"`

	// Text shape: ordered chunks in original document order.
	Chunks []Chunk `json:"chunks,omitempty"`

	// Tabular shapes. DataJSON carries a whole serialized table; Row carries
	// one reconstructed row; Text plus Header carry one delimited row. Tables
	// ingested row-by-row span many entries sharing a FileKey.
	DataJSON json.RawMessage        `json:"data_json,omitempty"`
	Row      map[string]interface{} `json:"row,omitempty"`
	Text     string                 `json:"text,omitempty"`
	Header   []string               `json:"header,omitempty"`
}

// TextSource is a resolved text-shaped entry.
type TextSource struct {
	EntryID string
	FileKey string
	Chunks  []Chunk
}

// TableGroup collects every entry contributing rows to one table. Grouping
// happens once at the assembler boundary so downstream code never inspects
// raw entry shape again.
type TableGroup struct {
	OrgID   string
	FileKey string
	Entries []KnowledgeEntry
}

// Partition splits entries into text sources and tabular groups. Tabular
// entries are grouped by file key (falling back to the entry ID for synthetic
// entries without one); group order follows first appearance in the input.
func Partition(entries []KnowledgeEntry) ([]TextSource, []TableGroup) {
	var texts []TextSource
	var groups []TableGroup
	index := make(map[string]int)
	for _, entry := range entries {
		if !entry.IsTabular {
			if len(entry.Chunks) == 0 {
				continue
			}
			texts = append(texts, TextSource{
				EntryID: entry.ID,
				FileKey: entry.FileKey,
				Chunks:  entry.Chunks,
			})
			continue
		}
		key := strings.TrimSpace(entry.FileKey)
		if key == "" {
			key = entry.ID
		}
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, TableGroup{OrgID: entry.OrgID, FileKey: key})
		}
		groups[pos].Entries = append(groups[pos].Entries, entry)
	}
	return texts, groups
}

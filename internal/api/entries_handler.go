// File path: internal/api/entries_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/nexa-ai/nexa/internal/common"
	"github.com/nexa-ai/nexa/internal/kb"
)

type createEntryRequest struct {
	OrgID   string `json:"org_id"`
	FileKey string `json:"file_key"`
	Kind    string `json:"kind"`

	// Kind "text": the raw document.
	Text string `json:"text,omitempty"`
	// Kind "table": a whole serialized table.
	Data json.RawMessage `json:"data,omitempty"`
	// Kind "rows": row records with an optional declared column order.
	Header []string                 `json:"header,omitempty"`
	Rows   []map[string]interface{} `json:"rows,omitempty"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.OrgID) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("org_id required"))
		return
	}
	var entries []kb.KnowledgeEntry
	var err error
	switch req.Kind {
	case "text":
		var entry kb.KnowledgeEntry
		entry, err = s.ingestor.IngestText(r.Context(), req.OrgID, req.FileKey, req.Text)
		entries = []kb.KnowledgeEntry{entry}
	case "table":
		var entry kb.KnowledgeEntry
		entry, err = s.ingestor.IngestTableJSON(r.Context(), req.OrgID, req.FileKey, req.Data)
		entries = []kb.KnowledgeEntry{entry}
	case "rows":
		entries, err = s.ingestor.IngestRows(r.Context(), req.OrgID, req.FileKey, req.Header, req.Rows)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown entry kind %q", req.Kind))
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	common.Logger().Info("api: entries created", "org_id", req.OrgID, "kind", req.Kind, "count", len(ids))
	writeJSON(w, http.StatusCreated, map[string]interface{}{"ids": ids})
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(r.URL.Query().Get("org_id"))
	if orgID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("org_id required"))
		return
	}
	entries, err := s.store.ListEntries(r.Context(), orgID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(r.URL.Query().Get("org_id"))
	if orgID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("org_id required"))
		return
	}
	entry, err := s.store.GetEntry(r.Context(), orgID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(r.URL.Query().Get("org_id"))
	if orgID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("org_id required"))
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteEntry(r.Context(), orgID, id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

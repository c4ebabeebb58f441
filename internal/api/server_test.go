// File path: internal/api/server_test.go
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	ctxbuilder "github.com/nexa-ai/nexa/internal/context"
	"github.com/nexa-ai/nexa/internal/embed"
	"github.com/nexa-ai/nexa/internal/llm/providers"
	"github.com/nexa-ai/nexa/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	catalog, err := store.OpenWithConfig(store.Config{Path: filepath.Join(t.TempDir(), "catalog.db")})
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })
	provider := providers.NewLocalProvider()
	client := embed.NewClient(provider, embed.DefaultConfig())
	assembler := ctxbuilder.NewAssembler(ctxbuilder.DefaultConfig(), client)
	server, err := NewServer(catalog, store.NewIngestor(catalog, client), assembler, provider)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(blob)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestEntryLifecycle(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/v1/entries", map[string]interface{}{
		"org_id":   "org-a",
		"file_key": "notes.md",
		"kind":     "text",
		"text":     "refunds are accepted within 30 days of purchase",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil || len(created.IDs) != 1 {
		t.Fatalf("unexpected create response %s", rec.Body.String())
	}
	id := created.IDs[0]

	rec = doJSON(t, server, http.MethodGet, "/v1/entries?org_id=org-a", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), id) {
		t.Fatalf("list = %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, server, http.MethodGet, fmt.Sprintf("/v1/entries/%s?org_id=org-b", id), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-org get = %d, want 404", rec.Code)
	}

	rec = doJSON(t, server, http.MethodDelete, fmt.Sprintf("/v1/entries/%s?org_id=org-a", id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete = %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, server, http.MethodGet, fmt.Sprintf("/v1/entries/%s?org_id=org-a", id), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", rec.Code)
	}
}

func TestCreateEntryRejectsMalformedTable(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodPost, "/v1/entries", map[string]interface{}{
		"org_id":   "org-a",
		"file_key": "bad.csv",
		"kind":     "table",
		"data":     "not a table",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed table = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestAssembleEndToEnd(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodPost, "/v1/entries", map[string]interface{}{
		"org_id":   "org-a",
		"file_key": "people.csv",
		"kind":     "rows",
		"header":   []string{"name", "age"},
		"rows": []map[string]interface{}{
			{"name": "Ann", "age": 30},
			{"name": "Bob", "age": 20},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create rows = %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, server, http.MethodPost, "/v1/context/assemble", map[string]interface{}{
		"org_id":   "org-a",
		"question": "what is the age of Ann",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("assemble = %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Context  string `json:"context"`
		Relevant bool   `json:"relevant"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Relevant || !strings.Contains(resp.Context, "Ann | 30") {
		t.Fatalf("expected Ann's row in the context: %+v", resp)
	}
}

func TestAssembleNoEntries(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodPost, "/v1/context/assemble", map[string]interface{}{
		"org_id":   "org-empty",
		"question": "anything at all",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("assemble = %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Context  string `json:"context"`
		Relevant bool   `json:"relevant"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Relevant || resp.Context != ctxbuilder.NoRelevantContext {
		t.Fatalf("expected the sentinel, got %+v", resp)
	}
}

func TestChatUsesAssembledContext(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodPost, "/v1/entries", map[string]interface{}{
		"org_id":   "org-a",
		"file_key": "payroll.csv",
		"kind":     "rows",
		"header":   []string{"employee", "salary"},
		"rows": []map[string]interface{}{
			{"employee": "Bob", "salary": 60000},
			{"employee": "Carol", "salary": 52000},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create rows = %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, server, http.MethodPost, "/v1/chat", map[string]interface{}{
		"org_id":   "org-a",
		"question": "what is the salary of Bob",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat = %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Answer  string `json:"answer"`
		Context string `json:"context"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.Context, "60000") {
		t.Fatalf("chat context should carry the salary: %+v", resp)
	}
	if resp.Answer == "" {
		t.Fatal("chat should return an answer")
	}
}

func TestLogsEndpoint(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/v1/logs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logs = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "logs") {
		t.Fatalf("unexpected logs payload: %s", rec.Body.String())
	}
}

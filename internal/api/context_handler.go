// File path: internal/api/context_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nexa-ai/nexa/internal/common"
	ctxbuilder "github.com/nexa-ai/nexa/internal/context"
	"github.com/nexa-ai/nexa/internal/llm"
)

type assembleRequest struct {
	OrgID    string `json:"org_id"`
	Question string `json:"question"`
	TopN     int    `json:"top_n,omitempty"`
}

type assembleResponse struct {
	Context  string `json:"context"`
	Relevant bool   `json:"relevant"`
}

func (s *Server) handleAssemble(w http.ResponseWriter, r *http.Request) {
	var req assembleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.OrgID) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("org_id required"))
		return
	}
	entries, err := s.store.ListEntries(r.Context(), req.OrgID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	assembled := s.assembler.Assemble(r.Context(), req.Question, entries, req.TopN)
	writeJSON(w, http.StatusOK, assembleResponse{
		Context:  assembled,
		Relevant: assembled != ctxbuilder.NoRelevantContext,
	})
}

type chatRequest struct {
	OrgID    string `json:"org_id"`
	Question string `json:"question"`
	TopN     int    `json:"top_n,omitempty"`
}

type chatResponse struct {
	Answer  string `json:"answer"`
	Context string `json:"context"`
}

const chatSystemPrompt = "You are a careful assistant. Answer using the provided context when it is relevant; " +
	"when the context says no relevant context was found, say you do not know rather than guessing."

// handleChat assembles context for the question and asks the configured
// model to answer grounded on it.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("no model provider configured"))
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.OrgID) == "" || strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("org_id and question required"))
		return
	}
	entries, err := s.store.ListEntries(r.Context(), req.OrgID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	assembled := s.assembler.Assemble(r.Context(), req.Question, entries, req.TopN)
	messages := []llm.Message{
		{Role: "system", Content: chatSystemPrompt},
		{Role: "system", Content: "Context:\n" + assembled},
		{Role: "user", Content: req.Question},
	}
	answer, err := s.provider.Chat(r.Context(), messages)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Errorf("chat completion: %w", err))
		return
	}
	common.Logger().Info("api: chat answered", "org_id", req.OrgID, "context_len", len(assembled))
	writeJSON(w, http.StatusOK, chatResponse{Answer: answer, Context: assembled})
}

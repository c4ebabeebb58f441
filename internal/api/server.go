// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/nexa-ai/nexa/internal/common"
	ctxbuilder "github.com/nexa-ai/nexa/internal/context"
	"github.com/nexa-ai/nexa/internal/embed"
	"github.com/nexa-ai/nexa/internal/llm"
	"github.com/nexa-ai/nexa/internal/store"
	"github.com/nexa-ai/nexa/internal/tabular"
)

type Server struct {
	router    chi.Router
	store     *store.Store
	ingestor  *store.Ingestor
	assembler *ctxbuilder.Assembler
	provider  llm.Provider
}

func NewServer(catalog *store.Store, ingestor *store.Ingestor, assembler *ctxbuilder.Assembler, provider llm.Provider) (*Server, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog store required")
	}
	if ingestor == nil {
		return nil, fmt.Errorf("ingestor required")
	}
	if assembler == nil {
		return nil, fmt.Errorf("assembler required")
	}
	server := &Server{
		router:    chi.NewRouter(),
		store:     catalog,
		ingestor:  ingestor,
		assembler: assembler,
		provider:  provider,
	}
	server.routes()
	return server, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	logger.Info("api: configuring routes")
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Post("/v1/context/assemble", s.handleAssemble)
	s.router.Post("/v1/chat", s.handleChat)
	s.router.Post("/v1/entries", s.handleCreateEntry)
	s.router.Get("/v1/entries", s.handleListEntries)
	s.router.Get("/v1/entries/{id}", s.handleGetEntry)
	s.router.Delete("/v1/entries/{id}", s.handleDeleteEntry)
	s.router.Get("/v1/logs", s.handleLogs)
	s.router.Get("/debug/vars", expvar.Handler().ServeHTTP)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := append([]common.LogEntry(nil), common.LogEntries()...)
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": entries})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tabular.ErrMalformedSource):
		return http.StatusBadRequest
	case errors.Is(err, embed.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

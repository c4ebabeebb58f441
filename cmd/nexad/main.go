// File path: cmd/nexad/main.go
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/nexa-ai/nexa/internal/api"
	"github.com/nexa-ai/nexa/internal/common"
	ctxbuilder "github.com/nexa-ai/nexa/internal/context"
	"github.com/nexa-ai/nexa/internal/embed"
	"github.com/nexa-ai/nexa/internal/llm"
	"github.com/nexa-ai/nexa/internal/store"
	"github.com/nexa-ai/nexa/internal/tabular"
)

func main() {
	logger := common.Logger()

	if err := godotenv.Load(); err != nil {
		logger.Warn("nexa: .env file not loaded", "error", err)
	} else {
		logger.Info("nexa: environment loaded from .env")
	}

	addr := flag.String("addr", ":8081", "listen address")
	catalogPath := flag.String("catalog", defaultCatalogPath(), "path to the SQLite catalog database")
	topN := flag.Int("top-n", 0, "blocks kept per evidence pool (0 uses the default)")
	tableCache := flag.Int("table-cache", 0, "reconstructed tables kept in memory (0 uses the default)")
	summarizeDefault := false
	if env := strings.TrimSpace(os.Getenv("NEXA_SUMMARIZE_TABLES")); env != "" {
		if parsed, err := strconv.ParseBool(env); err == nil {
			summarizeDefault = parsed
		}
	}
	summarize := flag.Bool("summarize-tables", summarizeDefault, "condense table evidence through the chat model")
	flag.Parse()

	logger.Info("nexa: startup initiated", "addr", *addr, "catalog", *catalogPath)

	catalog, err := store.Open(*catalogPath)
	if err != nil {
		logger.Error("nexa: catalog open failed", "error", err)
		fmt.Println("catalog error:", err)
		os.Exit(1)
	}
	defer catalog.Close()

	provider := llm.NewProvider()
	logger.Info("nexa: llm provider ready", "provider", provider.Name())

	client := embed.NewClient(provider, embed.DefaultConfig())

	cfg := ctxbuilder.DefaultConfig()
	if *topN > 0 {
		cfg.TopN = *topN
	}
	if *tableCache > 0 {
		cfg.TableCacheSize = *tableCache
	}
	if *summarize {
		cfg.Summarizer = chatSummarizer{provider: provider}
	}
	assembler := ctxbuilder.NewAssembler(cfg, client)

	server, err := api.NewServer(catalog, store.NewIngestor(catalog, client), assembler, provider)
	if err != nil {
		logger.Error("nexa: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	logger.Info("nexa: server listening", "addr", *addr, "health", "/healthz")
	fmt.Printf("Serving on %s\n", *addr)
	reachable := *addr
	if strings.HasPrefix(reachable, ":") {
		reachable = "localhost" + reachable
	}
	logger.Info("nexa: verify reachability", "suggestion", fmt.Sprintf("curl http://%s/healthz", reachable))
	if err := http.ListenAndServe(*addr, server); err != nil {
		logger.Error("nexa: server stopped", "error", err)
		fmt.Println("server stopped:", err)
	}
}

func defaultCatalogPath() string {
	return filepath.Join("data", "catalog.db")
}

var _ tabular.Summarizer = chatSummarizer{}

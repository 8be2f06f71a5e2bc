package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/agenthands/sage/internal/config"
	"github.com/agenthands/sage/internal/extraction"
	"github.com/agenthands/sage/internal/graph"
	"github.com/agenthands/sage/internal/llm"
	"github.com/agenthands/sage/internal/logger"
	"github.com/agenthands/sage/internal/server"
	"github.com/agenthands/sage/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("config/config.toml")
	if err != nil {
		cfg = config.Default()
	}
	cfg.ApplyEnv()

	log, err := logger.New(cfg.Server.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	st, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("store init failed", "backend", cfg.Storage.Backend, "error", err)
	}
	defer st.Close(ctx)

	if err := st.BuildIndices(ctx); err != nil {
		log.Fatal("index setup failed", "error", err)
	}

	engine := graph.NewEngine(st, log)
	engine.SetMaxDepth(cfg.Traversal.MaxDepth)

	var extractor *extraction.Extractor
	if cfg.LLM.Provider != "" {
		client, err := llm.NewClient(ctx, cfg.LLM)
		if err != nil {
			log.Fatal("llm init failed", "provider", cfg.LLM.Provider, "error", err)
		}
		extractor = extraction.NewExtractor(client, engine, cfg.Extraction, log)
	}

	srv := server.NewServer(engine, extractor, log)
	router := srv.SetupRouter()

	addr := ":" + cfg.Server.Port
	log.Info("listening", "addr", addr, "backend", cfg.Storage.Backend)
	if err := router.Run(addr); err != nil {
		log.Fatal("server exited", "error", err)
	}
}

func openStore(cfg *config.Config, log *logger.Logger) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return store.NewSQLiteStore(cfg.Storage.Path, log)
	case "memgraph":
		return store.NewMemgraphStore(cfg.Storage.URI, cfg.Storage.User, cfg.Storage.Password, log)
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

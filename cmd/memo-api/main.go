package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/yourorg/officeadmin/apps/api/internal/attachment"
	"github.com/yourorg/officeadmin/apps/api/internal/directory"
	"github.com/yourorg/officeadmin/apps/api/internal/memo"
)

func main() {
	_ = godotenv.Load()

	cfg := memo.LoadConfig()
	logger := slog.Default()

	var repo memo.Repository
	var events memo.EventRecorder
	if cfg.DBPath != "" {
		sqlRepo, sqlEvents, err := memo.OpenSQLite(cfg.DBPath)
		if err != nil {
			logger.Error("sqlite open failed", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		repo, events = sqlRepo, sqlEvents
		logger.Info("using sqlite repository", "path", cfg.DBPath)
	} else {
		repo = memo.NewInMemoryRepository()
		events = memo.NewMemoryEventRecorder()
		logger.Info("using in-memory repository")
	}

	users := directory.NewInMemoryDirectory()
	if seed := os.Getenv("DIRECTORY_SEED_FILE"); seed != "" {
		if err := users.LoadSeedFile(seed); err != nil {
			logger.Warn("directory seed load failed", "path", seed, "error", err)
		}
	}
	files := attachment.NewInMemoryStore()

	engine := memo.NewEngine(cfg, repo, users, files, events, logger)
	svc := memo.NewService(cfg, engine, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Mount("/memos", svc.Routes())

	addr := ":8080"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	logger.Info("memo api listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Error("server stopped", "error", err)
	}
}

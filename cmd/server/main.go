package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/krabiTim/knownothing-creative-rag/internal/config"
	"github.com/krabiTim/knownothing-creative-rag/internal/db"
	"github.com/krabiTim/knownothing-creative-rag/internal/extractor"
	"github.com/krabiTim/knownothing-creative-rag/internal/repository"
	"github.com/krabiTim/knownothing-creative-rag/internal/router"
	"github.com/krabiTim/knownothing-creative-rag/internal/services"
	"github.com/krabiTim/knownothing-creative-rag/internal/storage"
	"github.com/krabiTim/knownothing-creative-rag/internal/utils"
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.NewLogger(cfg.LogLevel)

	database, err := db.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	var store storage.Store
	switch cfg.StorageBackend {
	case "s3":
		store, err = storage.NewS3Store(cfg)
	default:
		store, err = storage.NewLocalStore(cfg.UploadDir)
	}
	if err != nil {
		logger.Fatal("Failed to initialize content store", "error", err, "backend", cfg.StorageBackend)
	}

	repo := repository.NewRepository(database)
	engine := extractor.NewEngine(logger.Component("extractor"))
	locks := utils.NewKeyedMutex()

	docService := services.NewDocumentService(repo, store, locks, cfg, logger.Component("documents"))
	textService := services.NewTextService(repo, store, engine, locks, cfg, logger.Component("text"))

	handler := router.NewRouter(docService, textService, cfg, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "storage_backend", cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

package router

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/krabiTim/knownothing-creative-rag/internal/config"
	"github.com/krabiTim/knownothing-creative-rag/internal/handlers"
	"github.com/krabiTim/knownothing-creative-rag/internal/middleware"
	"github.com/krabiTim/knownothing-creative-rag/internal/services"
	"github.com/krabiTim/knownothing-creative-rag/internal/utils"
)

// NewRouter assembles the HTTP surface. Routes with fixed-literal
// segments must stay registered before the parameterized {id} routes:
// mux matches in registration order, and "/stats" must never be read
// as a document id.
func NewRouter(docService services.DocumentService, textService services.TextService, cfg *config.Config, logger *utils.Logger) http.Handler {
	r := mux.NewRouter()

	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS())
	r.Use(middleware.Recovery(logger))

	docHandler := handlers.NewDocumentHandler(docService, cfg.MaxFileSize, logger)
	textHandler := handlers.NewTextHandler(textService, logger)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	// Documents
	api.HandleFunc("/documents/upload", docHandler.Upload).Methods(http.MethodPost)
	api.HandleFunc("/documents/stats", docHandler.Stats).Methods(http.MethodGet)
	api.HandleFunc("/documents", docHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", docHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", docHandler.Delete).Methods(http.MethodDelete)

	// Extracted text
	api.HandleFunc("/text/extract/{id}", textHandler.Extract).Methods(http.MethodPost)
	api.HandleFunc("/text/stats", textHandler.Stats).Methods(http.MethodGet)
	api.HandleFunc("/text/{id}/search", textHandler.Search).Methods(http.MethodPost)
	api.HandleFunc("/text/{id}/chunks", textHandler.ChunkDocument).Methods(http.MethodPost)
	api.HandleFunc("/text/{id}", textHandler.GetText).Methods(http.MethodGet)

	// Chunking of raw text (no stored document involved)
	api.HandleFunc("/chunks", textHandler.ChunkRaw).Methods(http.MethodPost)

	return r
}

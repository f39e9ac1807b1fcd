package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/krabiTim/knownothing-creative-rag/internal/models"
	"github.com/krabiTim/knownothing-creative-rag/internal/services"
	"github.com/krabiTim/knownothing-creative-rag/internal/utils"
)

const (
	extractPreviewLength = 500
	textPreviewLength    = 1000
)

type TextHandler struct {
	service services.TextService
	logger  *utils.Logger
}

func NewTextHandler(service services.TextService, logger *utils.Logger) *TextHandler {
	return &TextHandler{
		service: service,
		logger:  logger,
	}
}

type extractResponse struct {
	DocumentID  string         `json:"document_id"`
	Method      string         `json:"method"`
	Cached      bool           `json:"cached"`
	TextPreview string         `json:"text_preview"`
	Statistics  textStatistics `json:"statistics"`
	Notes       []string       `json:"notes"`
	ExtractedAt time.Time      `json:"extracted_at"`
}

type textStatistics struct {
	WordCount int    `json:"word_count"`
	CharCount int    `json:"char_count"`
	PageCount *int   `json:"page_count,omitempty"`
	Quality   string `json:"quality"`
}

func (h *TextHandler) Extract(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	force := r.URL.Query().Get("force") == "true"

	result, err := h.service.Extract(r.Context(), id, force)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, extractResponse{
		DocumentID:  result.DocumentID,
		Method:      result.Method,
		Cached:      result.Cached,
		TextPreview: preview(result.Text, extractPreviewLength),
		Statistics: textStatistics{
			WordCount: result.WordCount,
			CharCount: result.CharCount,
			PageCount: result.PageCount,
			Quality:   result.Quality,
		},
		Notes:       result.Notes,
		ExtractedAt: result.ExtractedAt,
	})
}

func (h *TextHandler) GetText(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "preview"
	}

	row, err := h.service.GetText(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	switch format {
	case "metadata":
		respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
			"document_id": row.DocumentID,
			"metadata": map[string]interface{}{
				"method":       row.Method,
				"word_count":   row.WordCount,
				"char_count":   row.CharCount,
				"page_count":   row.PageCount,
				"quality":      row.Quality,
				"notes":        row.Notes,
				"extracted_at": row.ExtractedAt,
			},
		})
	case "full":
		respondJSON(w, h.logger, http.StatusOK, row)
	case "preview":
		truncated := len([]rune(row.Text)) > textPreviewLength
		respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
			"document_id":  row.DocumentID,
			"text_preview": preview(row.Text, textPreviewLength),
			"is_truncated": truncated,
			"char_count":   row.CharCount,
			"word_count":   row.WordCount,
			"method":       row.Method,
		})
	default:
		respondError(w, h.logger, utils.NewInvalidInputError("format must be preview, full or metadata"))
	}
}

func (h *TextHandler) Search(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	query := r.URL.Query()

	req := &models.SearchRequest{
		Query:         query.Get("query"),
		CaseSensitive: query.Get("case_sensitive") == "true",
		WholeWords:    query.Get("whole_words") == "true",
	}

	resp, err := h.service.Search(r.Context(), id, req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, resp)
}

func (h *TextHandler) ChunkDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	chunkSize := queryInt(r, "chunk_size", 0)
	overlap := queryInt(r, "overlap", -1)

	resp, err := h.service.ChunkDocument(r.Context(), id, chunkSize, overlap)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, resp)
}

func (h *TextHandler) ChunkRaw(w http.ResponseWriter, r *http.Request) {
	var req models.ChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, utils.NewInvalidInputError("Invalid JSON body"))
		return
	}
	if req.Text == "" {
		respondError(w, h.logger, utils.NewInvalidInputError("Text is required"))
		return
	}

	overlap := -1
	if req.Overlap != nil {
		overlap = *req.Overlap
	}

	respondJSON(w, h.logger, http.StatusOK, h.service.ChunkText(req.Text, req.ChunkSize, overlap))
}

func (h *TextHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, stats)
}

func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

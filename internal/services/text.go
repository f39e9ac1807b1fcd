package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/krabiTim/knownothing-creative-rag/internal/chunker"
	"github.com/krabiTim/knownothing-creative-rag/internal/config"
	"github.com/krabiTim/knownothing-creative-rag/internal/extractor"
	"github.com/krabiTim/knownothing-creative-rag/internal/models"
	"github.com/krabiTim/knownothing-creative-rag/internal/repository"
	"github.com/krabiTim/knownothing-creative-rag/internal/storage"
	"github.com/krabiTim/knownothing-creative-rag/internal/textsearch"
	"github.com/krabiTim/knownothing-creative-rag/internal/utils"
)

type TextService interface {
	Extract(ctx context.Context, id string, force bool) (*models.ExtractionResult, error)
	GetText(ctx context.Context, id string) (*models.ExtractedText, error)
	Search(ctx context.Context, id string, req *models.SearchRequest) (*models.SearchResponse, error)
	ChunkDocument(ctx context.Context, id string, chunkSize, overlap int) (*models.ChunksResponse, error)
	ChunkText(text string, chunkSize, overlap int) *models.ChunksResponse
	Stats(ctx context.Context) (*models.ExtractionStats, error)
}

type textService struct {
	repo   repository.Repository
	store  storage.Store
	engine *extractor.Engine
	locks  *utils.KeyedMutex
	group  singleflight.Group
	cfg    *config.Config
	logger *utils.Logger
}

// NewTextService wires the extraction engine to the ledger and the
// content store. locks must be the same instance the document service
// uses, so extraction never interleaves with a delete of the same id.
func NewTextService(repo repository.Repository, store storage.Store, engine *extractor.Engine, locks *utils.KeyedMutex, cfg *config.Config, logger *utils.Logger) TextService {
	return &textService{
		repo:   repo,
		store:  store,
		engine: engine,
		locks:  locks,
		cfg:    cfg,
		logger: logger,
	}
}

// Extract returns the existing extracted-text row when one exists,
// unless force is set, in which case the row is replaced in full.
// Concurrent calls for the same id coalesce into one extraction pass.
func (s *textService) Extract(ctx context.Context, id string, force bool) (*models.ExtractionResult, error) {
	if !force {
		row, err := s.repo.GetExtractedText(ctx, id)
		if err != nil {
			s.logger.Error("Failed to read extracted text", "error", err, "id", id)
			return nil, utils.NewInternalError("Failed to read extracted text")
		}
		if row != nil {
			return &models.ExtractionResult{ExtractedText: *row, Cached: true}, nil
		}
	}

	// The extraction itself runs detached from the caller's context:
	// an abandoned request either completes and is cached for the next
	// caller, or fails cleanly.
	v, err, _ := s.group.Do(id, func() (interface{}, error) {
		return s.runExtraction(context.WithoutCancel(ctx), id, force)
	})
	if err != nil {
		return nil, err
	}

	return v.(*models.ExtractionResult), nil
}

func (s *textService) runExtraction(ctx context.Context, id string, force bool) (*models.ExtractionResult, error) {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	// Re-check under the lock: another caller may have finished while
	// this one queued.
	if !force {
		row, err := s.repo.GetExtractedText(ctx, id)
		if err != nil {
			s.logger.Error("Failed to read extracted text", "error", err, "id", id)
			return nil, utils.NewInternalError("Failed to read extracted text")
		}
		if row != nil {
			return &models.ExtractionResult{ExtractedText: *row, Cached: true}, nil
		}
	}

	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get document", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to retrieve document")
	}
	if doc == nil {
		return nil, utils.NewNotFoundError("Document not found")
	}

	data, err := s.store.Read(ctx, doc.StoredName)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, utils.NewStorageError("Document file is missing from storage")
	}
	if err != nil {
		s.logger.Error("Failed to read document file", "error", err, "id", id)
		return nil, utils.NewStorageError("Failed to read document file")
	}

	start := time.Now()
	result, err := s.engine.Extract(doc.Extension, data)
	if err != nil {
		if errors.Is(err, extractor.ErrUnsupported) {
			return nil, utils.NewUnsupportedError(fmt.Sprintf("No extraction backend is available for %q files", doc.Extension))
		}

		var exErr *extractor.Error
		if errors.As(err, &exErr) {
			s.logger.Warn("Extraction failed", "id", id, "extension", doc.Extension, "error", exErr.Message)
			if statusErr := s.repo.SetDocumentStatus(ctx, id, models.StatusFailed); statusErr != nil {
				s.logger.Error("Failed to mark document failed", "error", statusErr, "id", id)
			}
			return nil, utils.NewExtractionError(exErr.Message, exErr.Notes)
		}

		s.logger.Error("Extraction failed unexpectedly", "error", err, "id", id)
		return nil, utils.NewInternalError("Text extraction failed")
	}

	notes := result.Notes
	if notes == nil {
		notes = []string{}
	}

	row := &models.ExtractedText{
		DocumentID:  id,
		Text:        result.Text,
		Method:      result.Method,
		WordCount:   result.WordCount,
		CharCount:   result.CharCount,
		PageCount:   result.PageCount,
		Quality:     result.Quality,
		Notes:       notes,
		ExtractedAt: time.Now().UTC(),
	}

	if err := s.repo.UpsertExtractedText(ctx, row); err != nil {
		s.logger.Error("Failed to save extracted text", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to save extracted text")
	}

	if err := s.repo.SetDocumentStatus(ctx, id, models.StatusExtracted); err != nil {
		// The text row is complete; a failed status update is an
		// inconsistency worth logging, not a failed extraction.
		s.logger.Error("Failed to mark document extracted", "error", err, "id", id)
	}

	s.logger.Info("Text extracted",
		"id", id,
		"method", row.Method,
		"word_count", row.WordCount,
		"quality", row.Quality,
		"duration", time.Since(start))

	return &models.ExtractionResult{ExtractedText: *row, Cached: false}, nil
}

func (s *textService) GetText(ctx context.Context, id string) (*models.ExtractedText, error) {
	row, err := s.repo.GetExtractedText(ctx, id)
	if err != nil {
		s.logger.Error("Failed to read extracted text", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to read extracted text")
	}
	if row == nil {
		return nil, utils.NewNotFoundError("No extracted text found for document. Extract it first.")
	}
	return row, nil
}

func (s *textService) Search(ctx context.Context, id string, req *models.SearchRequest) (*models.SearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, utils.NewInvalidInputError("Search query is required")
	}

	row, err := s.GetText(ctx, id)
	if err != nil {
		return nil, err
	}

	matches, total := textsearch.Find(row.Text, req.Query, textsearch.Options{
		CaseSensitive: req.CaseSensitive,
		WholeWords:    req.WholeWords,
	})
	if matches == nil {
		matches = []models.Match{}
	}

	return &models.SearchResponse{
		DocumentID:   id,
		Query:        req.Query,
		Matches:      matches,
		TotalMatches: total,
	}, nil
}

func (s *textService) ChunkDocument(ctx context.Context, id string, chunkSize, overlap int) (*models.ChunksResponse, error) {
	row, err := s.GetText(ctx, id)
	if err != nil {
		return nil, err
	}

	chunkSize, overlap = s.chunkParams(chunkSize, overlap)

	chunks := chunker.Split(row.Text, chunkSize, overlap)
	for i := range chunks {
		chunks[i].DocumentID = id
	}
	if chunks == nil {
		chunks = []models.Chunk{}
	}

	return &models.ChunksResponse{
		DocumentID: id,
		ChunkSize:  chunkSize,
		Overlap:    overlap,
		Chunks:     chunks,
		Total:      len(chunks),
	}, nil
}

func (s *textService) ChunkText(text string, chunkSize, overlap int) *models.ChunksResponse {
	chunkSize, overlap = s.chunkParams(chunkSize, overlap)

	chunks := chunker.Split(text, chunkSize, overlap)
	if chunks == nil {
		chunks = []models.Chunk{}
	}

	return &models.ChunksResponse{
		ChunkSize: chunkSize,
		Overlap:   overlap,
		Chunks:    chunks,
		Total:     len(chunks),
	}
}

func (s *textService) chunkParams(chunkSize, overlap int) (int, int) {
	if chunkSize <= 0 {
		chunkSize = s.cfg.ChunkSize
	}
	if overlap < 0 {
		overlap = s.cfg.ChunkOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 10
	}
	return chunkSize, overlap
}

func (s *textService) Stats(ctx context.Context) (*models.ExtractionStats, error) {
	total, err := s.repo.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("Failed to count documents", "error", err)
		return nil, utils.NewInternalError("Failed to compute extraction stats")
	}

	methodStats, extracted, err := s.repo.MethodStats(ctx)
	if err != nil {
		s.logger.Error("Failed to aggregate method stats", "error", err)
		return nil, utils.NewInternalError("Failed to compute extraction stats")
	}

	percent := 0.0
	if total > 0 {
		percent = float64(extracted) / float64(total) * 100
	}

	capabilities := make(map[string]bool, len(allowedExtensions))
	for ext := range allowedExtensions {
		capabilities[ext] = s.engine.Supports(ext)
	}

	return &models.ExtractionStats{
		TotalDocuments:     total,
		ExtractedDocuments: extracted,
		ExtractionPercent:  percent,
		MethodStats:        methodStats,
		Capabilities:       capabilities,
	}, nil
}

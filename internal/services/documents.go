package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/krabiTim/knownothing-creative-rag/internal/config"
	"github.com/krabiTim/knownothing-creative-rag/internal/models"
	"github.com/krabiTim/knownothing-creative-rag/internal/repository"
	"github.com/krabiTim/knownothing-creative-rag/internal/storage"
	"github.com/krabiTim/knownothing-creative-rag/internal/utils"
)

// allowedExtensions is the upload allow-list, keyed without the dot.
// The "doc" entry is storable but has no extraction backend; extraction
// reports it as unsupported rather than corrupt.
var allowedExtensions = map[string]bool{
	"pdf":  true,
	"txt":  true,
	"docx": true,
	"doc":  true,
	"rtf":  true,
}

type DocumentService interface {
	Store(ctx context.Context, req *models.UploadRequest) (*models.UploadResponse, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, limit, offset int) (*models.ListResponse, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.StorageStats, error)
}

type documentService struct {
	repo   repository.Repository
	store  storage.Store
	locks  *utils.KeyedMutex
	cfg    *config.Config
	logger *utils.Logger
}

// NewDocumentService wires the content store and the metadata ledger
// behind one surface. locks is shared with the text service so that
// store, extract and delete for the same document id are serialized.
func NewDocumentService(repo repository.Repository, store storage.Store, locks *utils.KeyedMutex, cfg *config.Config, logger *utils.Logger) DocumentService {
	return &documentService{
		repo:   repo,
		store:  store,
		locks:  locks,
		cfg:    cfg,
		logger: logger,
	}
}

// Store validates the upload, writes the file, then commits the ledger
// row. If the ledger write fails after the file write succeeded, the
// file is removed again so no orphan survives a failed store.
func (s *documentService) Store(ctx context.Context, req *models.UploadRequest) (*models.UploadResponse, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return nil, utils.NewInvalidInputError("Filename is required")
	}
	if len(req.File) == 0 {
		return nil, utils.NewInvalidInputError("Uploaded file is empty")
	}
	if int64(len(req.File)) > s.cfg.MaxFileSize {
		return nil, utils.NewInvalidInputError(fmt.Sprintf("File exceeds the %d MB size limit", s.cfg.MaxFileSize/(1024*1024)))
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(req.Filename)), ".")
	if !allowedExtensions[ext] {
		return nil, utils.NewInvalidInputError(fmt.Sprintf("File type %q is not supported. Allowed: %s", ext, allowedExtensionList()))
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	docID := utils.GenerateID()
	storedName := docID + "." + ext

	s.locks.Lock(docID)
	defer s.locks.Unlock(docID)

	if err := s.store.Save(ctx, storedName, req.File, mimeType); err != nil {
		s.logger.Error("Failed to write file", "error", err, "id", docID, "filename", req.Filename)
		return nil, utils.NewStorageError("Failed to store document file")
	}

	doc := &models.Document{
		ID:           docID,
		OriginalName: req.Filename,
		StoredName:   storedName,
		FilePath:     s.store.Path(storedName),
		SizeBytes:    int64(len(req.File)),
		Extension:    ext,
		MimeType:     mimeType,
		UploadedAt:   time.Now().UTC(),
		Status:       models.StatusStored,
	}

	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		s.logger.Error("Failed to save document metadata", "error", err, "id", docID)
		if cleanupErr := s.store.Delete(ctx, storedName); cleanupErr != nil {
			s.logger.Error("Compensating file cleanup failed", "error", cleanupErr, "id", docID)
		}
		return nil, utils.NewInternalError("Failed to save document metadata")
	}

	s.logger.Info("Document stored",
		"id", docID,
		"filename", req.Filename,
		"extension", ext,
		"size_bytes", doc.SizeBytes)

	return &models.UploadResponse{
		ID:           docID,
		OriginalName: req.Filename,
		SizeBytes:    doc.SizeBytes,
		Extension:    ext,
		UploadedAt:   doc.UploadedAt,
		Message:      "Document stored. Use /api/v1/text/extract/{id} to extract its text.",
	}, nil
}

func (s *documentService) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get document", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to retrieve document")
	}
	if doc == nil {
		return nil, utils.NewNotFoundError("Document not found")
	}

	// A file removed out-of-band is surfaced, not hidden.
	exists, err := s.store.Exists(ctx, doc.StoredName)
	if err != nil {
		s.logger.Error("Failed to check file existence", "error", err, "id", id)
		return nil, utils.NewStorageError("Failed to check document file")
	}
	doc.FileExists = exists

	return doc, nil
}

func (s *documentService) List(ctx context.Context, limit, offset int) (*models.ListResponse, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := s.repo.ListDocuments(ctx, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list documents", "error", err)
		return nil, utils.NewInternalError("Failed to list documents")
	}

	total, err := s.repo.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("Failed to count documents", "error", err)
		return nil, utils.NewInternalError("Failed to count documents")
	}

	for i := range docs {
		exists, err := s.store.Exists(ctx, docs[i].StoredName)
		if err != nil {
			s.logger.Error("Failed to check file existence", "error", err, "id", docs[i].ID)
			continue
		}
		docs[i].FileExists = exists
	}

	return &models.ListResponse{
		Documents: docs,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	}, nil
}

// Delete removes the file first, then the ledger row; the extracted
// text row cascades with it. File removal is attempted even when the
// store is already missing the file, so storage never leaks.
func (s *documentService) Delete(ctx context.Context, id string) error {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get document for delete", "error", err, "id", id)
		return utils.NewInternalError("Failed to delete document")
	}
	if doc == nil {
		return utils.NewNotFoundError("Document not found")
	}

	if err := s.store.Delete(ctx, doc.StoredName); err != nil {
		s.logger.Error("Failed to remove file", "error", err, "id", id)
		return utils.NewStorageError("Failed to remove document file")
	}

	deleted, err := s.repo.DeleteDocument(ctx, id)
	if err != nil {
		s.logger.Error("Failed to delete ledger row", "error", err, "id", id)
		return utils.NewInternalError("Failed to delete document")
	}
	if !deleted {
		return utils.NewNotFoundError("Document not found")
	}

	s.logger.Info("Document deleted", "id", id)
	return nil
}

func (s *documentService) Stats(ctx context.Context) (*models.StorageStats, error) {
	total, err := s.repo.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("Failed to count documents", "error", err)
		return nil, utils.NewInternalError("Failed to compute storage stats")
	}

	byExtension, totalSize, err := s.repo.ExtensionStats(ctx)
	if err != nil {
		s.logger.Error("Failed to aggregate extension stats", "error", err)
		return nil, utils.NewInternalError("Failed to compute storage stats")
	}

	onDisk, err := s.store.DiskUsage(ctx)
	if err != nil {
		s.logger.Error("Failed to measure disk usage", "error", err)
		return nil, utils.NewStorageError("Failed to measure disk usage")
	}

	return &models.StorageStats{
		TotalDocuments:  total,
		TotalSizeBytes:  totalSize,
		OnDiskBytes:     onDisk,
		SizeByExtension: byExtension,
	}, nil
}

func allowedExtensionList() string {
	exts := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/krabiTim/knownothing-creative-rag/internal/models"
)

// Repository is the metadata ledger: one row per stored document, at
// most one extracted-text row per document. Reads of missing rows
// return (nil, nil); callers decide whether that is a NotFound.
type Repository interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]models.Document, error)
	CountDocuments(ctx context.Context) (int, error)
	DeleteDocument(ctx context.Context, id string) (bool, error)
	SetDocumentStatus(ctx context.Context, id, status string) error

	UpsertExtractedText(ctx context.Context, text *models.ExtractedText) error
	GetExtractedText(ctx context.Context, documentID string) (*models.ExtractedText, error)

	ExtensionStats(ctx context.Context) (map[string]models.ExtensionStats, int64, error)
	MethodStats(ctx context.Context) (map[string]models.MethodStats, int, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateDocument(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, original_name, stored_name, file_path, size_bytes, extension, mime_type, uploaded_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		doc.ID,
		doc.OriginalName,
		doc.StoredName,
		doc.FilePath,
		doc.SizeBytes,
		doc.Extension,
		doc.MimeType,
		doc.UploadedAt,
		doc.Status,
	)

	return err
}

func (r *repository) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document

	query := `
		SELECT id, original_name, stored_name, file_path, size_bytes, extension, mime_type, uploaded_at, status
		FROM documents
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &doc, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

func (r *repository) ListDocuments(ctx context.Context, limit, offset int) ([]models.Document, error) {
	docs := []models.Document{}

	query := `
		SELECT id, original_name, stored_name, file_path, size_bytes, extension, mime_type, uploaded_at, status
		FROM documents
		ORDER BY uploaded_at DESC, id
		LIMIT $1 OFFSET $2
	`

	if err := r.db.SelectContext(ctx, &docs, query, limit, offset); err != nil {
		return nil, err
	}

	return docs, nil
}

func (r *repository) CountDocuments(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM documents`); err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteDocument removes the ledger row; the document_text row goes
// with it via the foreign-key cascade. Returns false if no row existed.
func (r *repository) DeleteDocument(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *repository) SetDocumentStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE documents SET status = $2 WHERE id = $1`, id, status)
	return err
}

// UpsertExtractedText replaces the whole row on conflict; a forced
// re-extraction never partially merges into the previous record.
func (r *repository) UpsertExtractedText(ctx context.Context, text *models.ExtractedText) error {
	notesJSON, err := json.Marshal(text.Notes)
	if err != nil {
		return fmt.Errorf("failed to encode notes: %w", err)
	}

	query := `
		INSERT INTO document_text (document_id, extracted_text, method, word_count, char_count, page_count, quality, notes, extracted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (document_id) DO UPDATE SET
			extracted_text = excluded.extracted_text,
			method = excluded.method,
			word_count = excluded.word_count,
			char_count = excluded.char_count,
			page_count = excluded.page_count,
			quality = excluded.quality,
			notes = excluded.notes,
			extracted_at = excluded.extracted_at
	`

	_, err = r.db.ExecContext(ctx, query,
		text.DocumentID,
		text.Text,
		text.Method,
		text.WordCount,
		text.CharCount,
		text.PageCount,
		text.Quality,
		string(notesJSON),
		text.ExtractedAt,
	)

	return err
}

func (r *repository) GetExtractedText(ctx context.Context, documentID string) (*models.ExtractedText, error) {
	var text models.ExtractedText
	var notesJSON string

	query := `
		SELECT document_id, extracted_text, method, word_count, char_count, page_count, quality, notes, extracted_at
		FROM document_text
		WHERE document_id = $1
	`

	err := r.db.QueryRowContext(ctx, query, documentID).Scan(
		&text.DocumentID,
		&text.Text,
		&text.Method,
		&text.WordCount,
		&text.CharCount,
		&text.PageCount,
		&text.Quality,
		&notesJSON,
		&text.ExtractedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if notesJSON != "" {
		if err := json.Unmarshal([]byte(notesJSON), &text.Notes); err != nil {
			return nil, fmt.Errorf("failed to decode notes: %w", err)
		}
	}

	return &text, nil
}

// ExtensionStats aggregates document counts and sizes per extension,
// plus the overall size in bytes.
func (r *repository) ExtensionStats(ctx context.Context) (map[string]models.ExtensionStats, int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT extension, COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM documents
		GROUP BY extension
	`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	stats := make(map[string]models.ExtensionStats)
	var totalSize int64

	for rows.Next() {
		var ext string
		var s models.ExtensionStats
		if err := rows.Scan(&ext, &s.Count, &s.SizeBytes); err != nil {
			return nil, 0, err
		}
		stats[ext] = s
		totalSize += s.SizeBytes
	}

	return stats, totalSize, rows.Err()
}

// MethodStats aggregates extraction statistics per extraction method,
// plus the count of extracted documents.
func (r *repository) MethodStats(ctx context.Context) (map[string]models.MethodStats, int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT method, COUNT(*), COALESCE(AVG(word_count), 0), COALESCE(SUM(word_count), 0)
		FROM document_text
		GROUP BY method
	`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	stats := make(map[string]models.MethodStats)
	extracted := 0

	for rows.Next() {
		var method string
		var s models.MethodStats
		if err := rows.Scan(&method, &s.Count, &s.AvgWords, &s.TotalWords); err != nil {
			return nil, 0, err
		}
		stats[method] = s
		extracted += s.Count
	}

	return stats, extracted, rows.Err()
}

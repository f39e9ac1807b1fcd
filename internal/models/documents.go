package models

import (
	"time"
)

// Document lifecycle statuses. The only tracked forward transition is
// stored -> extracted.
const (
	StatusStored    = "stored"
	StatusExtracted = "extracted"
	StatusFailed    = "failed"
)

// Extraction quality labels derived from output length.
const (
	QualityLow       = "low"
	QualityGood      = "good"
	QualityExcellent = "excellent"
)

// Document is one stored upload: a single ledger row paired with a
// single file in the content store.
type Document struct {
	ID           string    `json:"id" db:"id"`
	OriginalName string    `json:"original_name" db:"original_name"`
	StoredName   string    `json:"stored_name" db:"stored_name"`
	FilePath     string    `json:"file_path" db:"file_path"`
	SizeBytes    int64     `json:"size_bytes" db:"size_bytes"`
	Extension    string    `json:"extension" db:"extension"`
	MimeType     string    `json:"mime_type" db:"mime_type"`
	UploadedAt   time.Time `json:"uploaded_at" db:"uploaded_at"`
	Status       string    `json:"status" db:"status"`

	// FileExists reports whether the stored file is currently present;
	// it is computed on read, never persisted.
	FileExists bool `json:"file_exists" db:"-"`
}

// ExtractedText is the single normalized-text derivative of a Document.
type ExtractedText struct {
	DocumentID  string    `json:"document_id" db:"document_id"`
	Text        string    `json:"text" db:"extracted_text"`
	Method      string    `json:"method" db:"method"`
	WordCount   int       `json:"word_count" db:"word_count"`
	CharCount   int       `json:"char_count" db:"char_count"`
	PageCount   *int      `json:"page_count,omitempty" db:"page_count"`
	Quality     string    `json:"quality" db:"quality"`
	Notes       []string  `json:"notes" db:"-"`
	ExtractedAt time.Time `json:"extracted_at" db:"extracted_at"`
}

// ExtractionResult is an ExtractedText plus whether it was served from
// the ledger instead of a fresh extraction pass.
type ExtractionResult struct {
	ExtractedText
	Cached bool `json:"cached"`
}

// Chunk is an overlapping segment of normalized text, produced on
// demand for the embedding collaborator and never persisted here.
// Offsets are rune offsets into the normalized text.
type Chunk struct {
	DocumentID  string `json:"document_id,omitempty"`
	ChunkIndex  int    `json:"chunk_index"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	WordCount   int    `json:"word_count"`
}

// Match is one in-text search hit. Position is the rune offset of the
// match start; LineNumber is 1-based.
type Match struct {
	Position   int    `json:"position"`
	Context    string `json:"context"`
	LineNumber int    `json:"line_number"`
}

type UploadRequest struct {
	File     []byte
	Filename string
	MimeType string
}

type UploadResponse struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	SizeBytes    int64     `json:"size_bytes"`
	Extension    string    `json:"extension"`
	UploadedAt   time.Time `json:"uploaded_at"`
	Message      string    `json:"message"`
}

type ListResponse struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}

// StorageStats aggregates the content store and ledger.
type StorageStats struct {
	TotalDocuments  int                       `json:"total_documents"`
	TotalSizeBytes  int64                     `json:"total_size_bytes"`
	OnDiskBytes     int64                     `json:"on_disk_bytes"`
	SizeByExtension map[string]ExtensionStats `json:"size_by_extension"`
}

type ExtensionStats struct {
	Count     int   `json:"count"`
	SizeBytes int64 `json:"size_bytes"`
}

// ExtractionStats summarizes extraction progress across all documents.
type ExtractionStats struct {
	TotalDocuments     int                    `json:"total_documents"`
	ExtractedDocuments int                    `json:"extracted_documents"`
	ExtractionPercent  float64                `json:"extraction_percent"`
	MethodStats        map[string]MethodStats `json:"method_statistics"`
	Capabilities       map[string]bool        `json:"capabilities"`
}

type MethodStats struct {
	Count      int     `json:"count"`
	AvgWords   float64 `json:"avg_words"`
	TotalWords int     `json:"total_words"`
}

type SearchRequest struct {
	Query         string `json:"query"`
	CaseSensitive bool   `json:"case_sensitive"`
	WholeWords    bool   `json:"whole_words"`
}

type SearchResponse struct {
	DocumentID   string  `json:"document_id"`
	Query        string  `json:"query"`
	Matches      []Match `json:"matches"`
	TotalMatches int     `json:"total_matches"`
}

// ChunkRequest chunks raw text without touching storage. A nil Overlap
// means "use the configured default"; an explicit 0 disables overlap.
type ChunkRequest struct {
	Text      string `json:"text"`
	ChunkSize int    `json:"chunk_size"`
	Overlap   *int   `json:"overlap"`
}

type ChunksResponse struct {
	DocumentID string  `json:"document_id,omitempty"`
	ChunkSize  int     `json:"chunk_size"`
	Overlap    int     `json:"overlap"`
	Chunks     []Chunk `json:"chunks"`
	Total      int     `json:"total"`
}

package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/krabiTim/knownothing-creative-rag/internal/config"
	"github.com/krabiTim/knownothing-creative-rag/internal/db"
	"github.com/krabiTim/knownothing-creative-rag/internal/extractor"
	"github.com/krabiTim/knownothing-creative-rag/internal/models"
	"github.com/krabiTim/knownothing-creative-rag/internal/repository"
	"github.com/krabiTim/knownothing-creative-rag/internal/storage"
	"github.com/krabiTim/knownothing-creative-rag/internal/utils"
)

type testEnv struct {
	docs  DocumentService
	text  TextService
	store storage.Store
	repo  repository.Repository
}

// newTestEnv builds both services on a real SQLite ledger and a
// directory-backed store, sharing one keyed mutex the way the server
// wires them.
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := &config.Config{
		StorageBackend: "local",
		MaxFileSize:    50 * 1024 * 1024,
		ChunkSize:      500,
		ChunkOverlap:   50,
	}
	if mutate != nil {
		mutate(cfg)
	}

	dir := t.TempDir()

	conn, err := db.NewSQLiteDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteDB: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.RunMigrations(conn); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}

	store, err := storage.NewLocalStore(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	logger := utils.NewLogger("error")
	repo := repository.NewRepository(conn)
	locks := utils.NewKeyedMutex()
	engine := extractor.NewEngine(logger)

	return &testEnv{
		docs:  NewDocumentService(repo, store, locks, cfg, logger),
		text:  NewTextService(repo, store, engine, locks, cfg, logger),
		store: store,
		repo:  repo,
	}
}

func (e *testEnv) upload(t *testing.T, filename, content string) string {
	t.Helper()

	resp, err := e.docs.Store(context.Background(), &models.UploadRequest{
		File:     []byte(content),
		Filename: filename,
	})
	if err != nil {
		t.Fatalf("Store(%q): %v", filename, err)
	}
	return resp.ID
}

func TestStoreAndGet(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	resp, err := env.docs.Store(ctx, &models.UploadRequest{
		File:     []byte("0123456789"),
		Filename: "notes.txt",
		MimeType: "text/plain",
	})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if resp.ID == "" {
		t.Fatal("empty document id")
	}
	if resp.Extension != "txt" {
		t.Errorf("Extension = %q, want txt", resp.Extension)
	}
	if resp.SizeBytes != 10 {
		t.Errorf("SizeBytes = %d, want 10", resp.SizeBytes)
	}

	doc, err := env.docs.Get(ctx, resp.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.OriginalName != "notes.txt" {
		t.Errorf("OriginalName = %q", doc.OriginalName)
	}
	if doc.Status != models.StatusStored {
		t.Errorf("Status = %q, want stored", doc.Status)
	}
	if !doc.FileExists {
		t.Error("FileExists = false right after Store")
	}
	if doc.MimeType != "text/plain" {
		t.Errorf("MimeType = %q", doc.MimeType)
	}
}

func TestStoreRejectsBadUploads(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		req  *models.UploadRequest
	}{
		{"disallowed type", &models.UploadRequest{File: []byte("MZ"), Filename: "payload.exe"}},
		{"no extension", &models.UploadRequest{File: []byte("x"), Filename: "README"}},
		{"empty file", &models.UploadRequest{File: nil, Filename: "empty.txt"}},
		{"blank filename", &models.UploadRequest{File: []byte("x"), Filename: "   "}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.docs.Store(ctx, tc.req)
			if utils.ErrorCode(err) != utils.CodeInvalidInput {
				t.Errorf("error = %v, want invalid_input", err)
			}
		})
	}
}

func TestStoreRejectsOversizedFile(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.MaxFileSize = 10 })

	_, err := env.docs.Store(context.Background(), &models.UploadRequest{
		File:     []byte("0123456789!"),
		Filename: "big.txt",
	})
	if utils.ErrorCode(err) != utils.CodeInvalidInput {
		t.Fatalf("error = %v, want invalid_input", err)
	}
}

// failingRepo makes the ledger insert fail; everything else is
// unreachable in the store path.
type failingRepo struct {
	repository.Repository
	createErr error
}

func (r *failingRepo) CreateDocument(context.Context, *models.Document) error {
	return r.createErr
}

func TestStoreCleansUpFileWhenLedgerFails(t *testing.T) {
	dir := t.TempDir()

	store, err := storage.NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	cfg := &config.Config{StorageBackend: "local", MaxFileSize: 1024, ChunkSize: 500, ChunkOverlap: 50}
	repo := &failingRepo{createErr: errors.New("ledger write failed")}
	svc := NewDocumentService(repo, store, utils.NewKeyedMutex(), cfg, utils.NewLogger("error"))

	_, err = svc.Store(context.Background(), &models.UploadRequest{
		File:     []byte("content"),
		Filename: "doomed.txt",
	})
	if utils.ErrorCode(err) != utils.CodeInternal {
		t.Fatalf("error = %v, want internal", err)
	}

	// The file written before the failed insert must not survive it.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("store dir holds %d files after a failed store, want 0", len(entries))
	}
}

func TestGetMissingDocument(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.docs.Get(context.Background(), "no-such-id")
	if !utils.IsNotFound(err) {
		t.Fatalf("error = %v, want not_found", err)
	}
}

func TestDeleteRemovesFileTextAndRow(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	id := env.upload(t, "doomed.txt", strings.Repeat("deletable content here. ", 10))
	if _, err := env.text.Extract(ctx, id, false); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	doc, err := env.docs.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if err := env.docs.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := env.docs.Get(ctx, id); !utils.IsNotFound(err) {
		t.Errorf("Get after delete = %v, want not_found", err)
	}
	if _, err := env.text.GetText(ctx, id); !utils.IsNotFound(err) {
		t.Errorf("GetText after delete = %v, want not_found", err)
	}
	exists, err := env.store.Exists(ctx, doc.StoredName)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("stored file survived the delete")
	}

	if err := env.docs.Delete(ctx, id); !utils.IsNotFound(err) {
		t.Errorf("second Delete = %v, want not_found", err)
	}
}

func TestListPagination(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		env.upload(t, "doc.txt", "list me")
	}

	page, err := env.docs.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Documents) != 2 {
		t.Errorf("got %d documents, want 2", len(page.Documents))
	}
	if page.Total != 5 {
		t.Errorf("Total = %d, want 5", page.Total)
	}

	page, err = env.docs.List(ctx, 2, 4)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Documents) != 1 {
		t.Errorf("got %d documents at offset 4, want 1", len(page.Documents))
	}

	// Out-of-range limits are normalized, not rejected.
	page, err = env.docs.List(ctx, -1, -1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Limit != 100 || page.Offset != 0 {
		t.Errorf("normalized limit/offset = %d/%d, want 100/0", page.Limit, page.Offset)
	}
}

func TestDocumentStats(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.upload(t, "a.txt", strings.Repeat("a", 100))
	env.upload(t, "b.txt", strings.Repeat("b", 150))

	stats, err := env.docs.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.TotalDocuments != 2 {
		t.Errorf("TotalDocuments = %d, want 2", stats.TotalDocuments)
	}
	if stats.TotalSizeBytes != 250 {
		t.Errorf("TotalSizeBytes = %d, want 250", stats.TotalSizeBytes)
	}
	if stats.OnDiskBytes != 250 {
		t.Errorf("OnDiskBytes = %d, want 250", stats.OnDiskBytes)
	}
	if got := stats.SizeByExtension["txt"]; got.Count != 2 || got.SizeBytes != 250 {
		t.Errorf("SizeByExtension[txt] = %+v", got)
	}
}

func TestExtractThenServesCachedRow(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	id := env.upload(t, "report.txt", strings.Repeat("Meaningful sentences fill this report with text. ", 5))

	first, err := env.text.Extract(ctx, id, false)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if first.Cached {
		t.Error("first extraction reported Cached = true")
	}
	if first.Method != "plain-text/utf-8" {
		t.Errorf("Method = %q", first.Method)
	}
	if first.Quality != models.QualityExcellent {
		t.Errorf("Quality = %q, want excellent", first.Quality)
	}

	doc, err := env.docs.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Status != models.StatusExtracted {
		t.Errorf("Status = %q, want extracted", doc.Status)
	}

	second, err := env.text.Extract(ctx, id, false)
	if err != nil {
		t.Fatalf("second Extract: %v", err)
	}
	if !second.Cached {
		t.Error("second extraction reported Cached = false")
	}
	if second.CharCount != first.CharCount || second.WordCount != first.WordCount {
		t.Errorf("cached counts diverge: %d/%d vs %d/%d",
			second.CharCount, second.WordCount, first.CharCount, first.WordCount)
	}
}

func TestExtractForceReplacesRow(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	id := env.upload(t, "draft.txt", strings.Repeat("The first revision of the draft document body. ", 4))
	if _, err := env.text.Extract(ctx, id, false); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	doc, err := env.docs.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// Replace the stored bytes out-of-band, then force a re-extraction.
	revised := strings.Repeat("A completely rewritten second revision of the draft. ", 4)
	if err := env.store.Save(ctx, doc.StoredName, []byte(revised), "text/plain"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	result, err := env.text.Extract(ctx, id, true)
	if err != nil {
		t.Fatalf("forced Extract: %v", err)
	}
	if result.Cached {
		t.Error("forced extraction reported Cached = true")
	}
	if !strings.Contains(result.Text, "second revision") {
		t.Errorf("forced extraction kept the old text: %q", result.Text)
	}
}

func TestExtractMissingDocument(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.text.Extract(context.Background(), "no-such-id", false)
	if !utils.IsNotFound(err) {
		t.Fatalf("error = %v, want not_found", err)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	id := env.upload(t, "legacy.doc", "binary word blob")

	_, err := env.text.Extract(ctx, id, false)
	if utils.ErrorCode(err) != utils.CodeUnsupported {
		t.Fatalf("error = %v, want unsupported", err)
	}

	// An unsupported format is not a failed document.
	doc, err := env.docs.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Status != models.StatusStored {
		t.Errorf("Status = %q, want stored", doc.Status)
	}
}

func TestExtractMissingFile(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	id := env.upload(t, "ghost.txt", "about to vanish")
	doc, err := env.docs.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := env.store.Delete(ctx, doc.StoredName); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, err = env.text.Extract(ctx, id, false)
	if utils.ErrorCode(err) != utils.CodeStorageIO {
		t.Fatalf("error = %v, want storage_io", err)
	}
}

func TestExtractFailureMarksDocumentFailed(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	id := env.upload(t, "broken.docx", "definitely not a zip archive")

	_, err := env.text.Extract(ctx, id, false)
	if utils.ErrorCode(err) != utils.CodeExtractionFailed {
		t.Fatalf("error = %v, want extraction_failed", err)
	}

	doc, err := env.docs.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Status != models.StatusFailed {
		t.Errorf("Status = %q, want failed", doc.Status)
	}
}

func TestExtractFailureCarriesNotes(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// Decodes fine but normalizes to nothing; the decode note must
	// still reach the caller on the failure.
	id := env.upload(t, "blank.txt", "   \n\t  \n")

	_, err := env.text.Extract(ctx, id, false)
	if utils.ErrorCode(err) != utils.CodeExtractionFailed {
		t.Fatalf("error = %v, want extraction_failed", err)
	}

	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error = %T, want *utils.AppError", err)
	}
	if len(appErr.Notes) == 0 || !strings.Contains(appErr.Notes[0], "utf-8") {
		t.Errorf("Notes = %v, want the decode note preserved", appErr.Notes)
	}
}

func TestConcurrentExtractions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	id := env.upload(t, "popular.txt", strings.Repeat("Everyone wants this document extracted at once. ", 5))

	var wg sync.WaitGroup
	results := make([]*models.ExtractionResult, 10)
	errs := make([]error, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.text.Extract(ctx, id, false)
		}(i)
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("goroutine %d: %v", i, errs[i])
		}
		if results[i].CharCount != results[0].CharCount {
			t.Errorf("goroutine %d saw CharCount %d, others saw %d",
				i, results[i].CharCount, results[0].CharCount)
		}
	}
}

func TestSearchExtractedText(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	id := env.upload(t, "prose.txt",
		"The quick brown fox jumps over the lazy dog. The fox was very quick indeed and everyone watching agreed completely.")
	if _, err := env.text.Extract(ctx, id, false); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	resp, err := env.text.Search(ctx, id, &models.SearchRequest{Query: "fox"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalMatches != 2 {
		t.Errorf("TotalMatches = %d, want 2", resp.TotalMatches)
	}
	if len(resp.Matches) != 2 {
		t.Errorf("got %d matches, want 2", len(resp.Matches))
	}
	if resp.Query != "fox" {
		t.Errorf("Query = %q", resp.Query)
	}

	if _, err := env.text.Search(ctx, id, &models.SearchRequest{Query: "  "}); utils.ErrorCode(err) != utils.CodeInvalidInput {
		t.Errorf("blank query error = %v, want invalid_input", err)
	}
}

func TestSearchRequiresExtractedText(t *testing.T) {
	env := newTestEnv(t, nil)

	id := env.upload(t, "raw.txt", "stored but never extracted")

	_, err := env.text.Search(context.Background(), id, &models.SearchRequest{Query: "stored"})
	if !utils.IsNotFound(err) {
		t.Fatalf("error = %v, want not_found", err)
	}
}

func TestChunkDocument(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	id := env.upload(t, "long.txt", strings.Repeat("abcd ", 240))
	if _, err := env.text.Extract(ctx, id, false); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	resp, err := env.text.ChunkDocument(ctx, id, 500, 50)
	if err != nil {
		t.Fatalf("ChunkDocument: %v", err)
	}

	if resp.Total != 3 {
		t.Fatalf("Total = %d, want 3", resp.Total)
	}
	if resp.ChunkSize != 500 || resp.Overlap != 50 {
		t.Errorf("params = %d/%d, want 500/50", resp.ChunkSize, resp.Overlap)
	}
	for i, c := range resp.Chunks {
		if c.DocumentID != id {
			t.Errorf("chunk %d DocumentID = %q", i, c.DocumentID)
		}
	}
}

func TestChunkTextDefaultsAndOverrides(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.text.ChunkText("some short text", 0, -1)
	if resp.ChunkSize != 500 || resp.Overlap != 50 {
		t.Errorf("defaults = %d/%d, want 500/50", resp.ChunkSize, resp.Overlap)
	}
	if resp.Total != 1 {
		t.Errorf("Total = %d, want 1", resp.Total)
	}

	// Explicit zero overlap is honored, not replaced by the default.
	resp = env.text.ChunkText(strings.Repeat("word ", 300), 200, 0)
	if resp.Overlap != 0 {
		t.Errorf("Overlap = %d, want 0", resp.Overlap)
	}

	// An overlap at or over the chunk size falls back to a tenth.
	resp = env.text.ChunkText(strings.Repeat("word ", 300), 200, 300)
	if resp.Overlap != 20 {
		t.Errorf("Overlap = %d, want 20", resp.Overlap)
	}
}

func TestExtractionStats(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	extractedID := env.upload(t, "done.txt", strings.Repeat("Document text that has been processed already. ", 4))
	env.upload(t, "pending.txt", "still waiting")
	if _, err := env.text.Extract(ctx, extractedID, false); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	stats, err := env.text.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.TotalDocuments != 2 {
		t.Errorf("TotalDocuments = %d, want 2", stats.TotalDocuments)
	}
	if stats.ExtractedDocuments != 1 {
		t.Errorf("ExtractedDocuments = %d, want 1", stats.ExtractedDocuments)
	}
	if stats.ExtractionPercent != 50 {
		t.Errorf("ExtractionPercent = %v, want 50", stats.ExtractionPercent)
	}
	if ms, ok := stats.MethodStats["plain-text/utf-8"]; !ok || ms.Count != 1 {
		t.Errorf("MethodStats = %+v", stats.MethodStats)
	}
	if !stats.Capabilities["txt"] || stats.Capabilities["doc"] {
		t.Errorf("Capabilities = %v", stats.Capabilities)
	}
}

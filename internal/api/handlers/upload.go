package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finsight-app/finsight/internal/api/middleware"
	"github.com/finsight-app/finsight/internal/gcsarchive"
	"github.com/finsight-app/finsight/internal/infra/bigquery"
	"github.com/finsight-app/finsight/internal/jobs"
	"github.com/finsight-app/finsight/internal/pipeline"
)

// maxUploadBytes caps statement uploads at 10MB.
const maxUploadBytes = 10 << 20

// allowedExtensions lists the statement file types the upload endpoint
// accepts.
var allowedExtensions = map[string]bool{
	".pdf": true,
	".csv": true,
	".txt": true,
}

// StatementParser turns raw statement text into transactions.
type StatementParser interface {
	Parse(ctx context.Context, text string) (*pipeline.Result, error)
}

// UploadHandler handles statement upload and extraction.
type UploadHandler struct {
	store     bigquery.TransactionStore
	parser    StatementParser
	publisher jobs.Publisher
	uploadDir string
	log       zerolog.Logger
}

// NewUploadHandler creates a new upload handler. publisher may be nil,
// in which case uploaded files are removed inline instead of being
// archived asynchronously.
func NewUploadHandler(store bigquery.TransactionStore, parser StatementParser, publisher jobs.Publisher, uploadDir string, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		store:     store,
		parser:    parser,
		publisher: publisher,
		uploadDir: uploadDir,
		log:       log,
	}
}

// Upload handles POST /api/upload
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "File too large or invalid multipart form")
		return
	}

	file, header, err := r.FormFile("statement")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	sourceFile := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(sourceFile))
	if !allowedExtensions[ext] {
		middleware.WriteError(w, http.StatusBadRequest, "Only PDF, CSV, and TXT files are allowed")
		return
	}

	localPath, err := h.saveUpload(file, sourceFile)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to save uploaded file")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}

	text, err := pipeline.ExtractText(localPath, ext)
	if err != nil {
		h.cleanup(localPath)
		var readErr *pipeline.FileReadError
		if errors.As(err, &readErr) {
			middleware.WriteError(w, http.StatusBadRequest, "Could not read the uploaded file")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Unsupported file content")
		return
	}

	result, err := h.parser.Parse(ctx, text)
	if err != nil {
		h.cleanup(localPath)
		h.log.Error().Err(err).Str("file", sourceFile).Msg("Statement extraction failed")
		middleware.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("AI processing failed: %v", err))
		return
	}

	now := time.Now()
	rows := make([]*bigquery.TransactionRow, len(result.Transactions))
	for i, tx := range result.Transactions {
		rows[i] = bigquery.NewTransactionRow(tx, uuid.New().String(), userID, sourceFile, now)
	}

	saved := rows
	if err := h.store.InsertTransactions(ctx, rows); err != nil {
		failed, partial := bigquery.FailedInserts(err)
		if !partial {
			h.cleanup(localPath)
			h.log.Error().Err(err).Msg("Failed to save transactions")
			middleware.WriteError(w, http.StatusInternalServerError, "Transactions were extracted but couldn't be saved")
			return
		}

		h.log.Warn().Ints("failed_rows", failed).Msg("Some transactions couldn't be saved")
		saved = dropFailed(rows, failed)
	}

	h.archive(ctx, userID, sourceFile, localPath, now)

	response := map[string]interface{}{
		"success":      true,
		"message":      fmt.Sprintf("Processed %d transactions successfully", len(saved)),
		"transactions": saved,
		"source":       string(result.Source),
	}
	if result.Source == pipeline.SourceMock {
		response["notice"] = "Extraction service unavailable; sample transactions were generated instead"
	}
	if len(saved) < len(rows) {
		response["message"] = fmt.Sprintf("Processed %d of %d transactions; some couldn't be saved", len(saved), len(rows))
	}

	middleware.WriteJSON(w, http.StatusOK, response)
}

// saveUpload copies the multipart file to the upload dir under a unique
// name and returns its path.
func (h *UploadHandler) saveUpload(file multipart.File, sourceFile string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("saveUpload: creating upload dir: %w", err)
	}

	localPath := filepath.Join(h.uploadDir, uuid.New().String()+"-"+sourceFile)
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("saveUpload: creating file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("saveUpload: writing file: %w", err)
	}
	return localPath, nil
}

// archive hands the statement file off for asynchronous archival, or
// removes it inline when no publisher is configured.
func (h *UploadHandler) archive(ctx context.Context, userID, sourceFile, localPath string, now time.Time) {
	if h.publisher == nil {
		h.cleanup(localPath)
		return
	}

	job := &jobs.ArchiveStatementJob{
		UserID:     userID,
		SourceFile: sourceFile,
		LocalPath:  localPath,
		ObjectName: gcsarchive.ObjectName(userID, sourceFile, now),
	}
	if err := h.publisher.PublishArchiveStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Str("file", sourceFile).Msg("Failed to enqueue archive job")
		h.cleanup(localPath)
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("file", sourceFile).Msg("Archive job enqueued")
}

func (h *UploadHandler) cleanup(localPath string) {
	if err := os.Remove(localPath); err != nil {
		h.log.Warn().Err(err).Str("path", localPath).Msg("Failed to remove temp file")
	}
}

func dropFailed(rows []*bigquery.TransactionRow, failed []int) []*bigquery.TransactionRow {
	failedSet := make(map[int]bool, len(failed))
	for _, i := range failed {
		failedSet[i] = true
	}

	kept := make([]*bigquery.TransactionRow, 0, len(rows))
	for i, row := range rows {
		if !failedSet[i] {
			kept = append(kept, row)
		}
	}
	return kept
}

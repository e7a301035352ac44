package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/monexa/internal/domain/dedup"
	"github.com/FACorreiaa/monexa/internal/domain/expense"
	"github.com/FACorreiaa/monexa/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/monexa/internal/domain/import/service"
	"github.com/FACorreiaa/monexa/pkg/httpx"
	"github.com/FACorreiaa/monexa/pkg/storage"
)

// Importer is the part of importservice.ImportService the handler uses.
type Importer interface {
	PreviewCSV(ctx context.Context, sourceID string, data []byte) (*importservice.Preview, error)
	ImportCSV(ctx context.Context, sourceID, filename string, data []byte) (*importservice.ImportResult, error)
	ImportExcel(ctx context.Context, sourceID, filename string, data []byte) (*importservice.ImportResult, error)
	ImportText(ctx context.Context, sourceID, text string) (*importservice.ImportResult, error)
	DedupePreview(ctx context.Context, records []expense.Record) ([]dedup.Result, error)
	FindDuplicates(ctx context.Context) (dedup.Scan, error)
	Uploads(ctx context.Context, sourceID string) ([]*storage.FileInfo, error)
	OpenUpload(ctx context.Context, sourceID string, jobID uuid.UUID) (io.ReadCloser, *storage.FileInfo, error)
	DeleteUpload(ctx context.Context, sourceID string, jobID uuid.UUID) error
}

// ImportHandler serves the upload, preview and dedup endpoints.
type ImportHandler struct {
	importSvc      Importer
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importSvc Importer, maxUploadBytes int64, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		importSvc:      importSvc,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

func (h *ImportHandler) Routes(r chi.Router) {
	r.Get("/sources", h.ListSources)
	r.Post("/preview_csv", h.PreviewCSV)
	r.Post("/upload_csv", h.UploadCSV)
	r.Post("/upload_excel", h.UploadExcel)
	r.Post("/upload_text", h.UploadText)
	r.Post("/dedupe_preview", h.DedupePreview)
	r.Get("/find_duplicates", h.FindDuplicates)

	r.Route("/uploads/{source}", func(r chi.Router) {
		r.Get("/", h.ListUploads)
		r.Get("/{jobID}", h.DownloadUpload)
		r.Delete("/{jobID}", h.DeleteUpload)
	})
}

type sourceInfo struct {
	Source parser.SourceKind `json:"source"`
	Family parser.Family     `json:"family"`
}

// ListSources returns every source identifier with a dedicated adapter.
func (h *ImportHandler) ListSources(w http.ResponseWriter, _ *http.Request) {
	out := make([]sourceInfo, 0, len(parser.AllSources))
	for _, k := range parser.AllSources {
		out = append(out, sourceInfo{Source: k, Family: k.Family()})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// PreviewCSV parses an uploaded CSV without inserting anything.
func (h *ImportHandler) PreviewCSV(w http.ResponseWriter, r *http.Request) {
	source, filename, data, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	preview, err := h.importSvc.PreviewCSV(r.Context(), source, data)
	if err != nil {
		h.logger.WarnContext(r.Context(), "csv preview failed",
			slog.String("source", source),
			slog.String("filename", filename),
			slog.Any("error", err))
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, preview)
}

// UploadCSV parses an uploaded CSV and stores its records.
func (h *ImportHandler) UploadCSV(w http.ResponseWriter, r *http.Request) {
	source, filename, data, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	result, err := h.importSvc.ImportCSV(r.Context(), source, filename, data)
	h.writeImport(w, r, result, err)
}

// UploadExcel parses an uploaded XLSX workbook and stores its records.
func (h *ImportHandler) UploadExcel(w http.ResponseWriter, r *http.Request) {
	source, filename, data, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	result, err := h.importSvc.ImportExcel(r.Context(), source, filename, data)
	h.writeImport(w, r, result, err)
}

// UploadText stores the records parsed from a pasted bill or invoice.
func (h *ImportHandler) UploadText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		httpx.WriteError(w, http.StatusBadRequest, "invalid form")
		return
	}

	source := strings.TrimSpace(r.FormValue("source"))
	text := r.FormValue("text")
	if source == "" || strings.TrimSpace(text) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "source and text are required")
		return
	}

	result, err := h.importSvc.ImportText(r.Context(), source, text)
	h.writeImport(w, r, result, err)
}

type dedupePreviewResponse struct {
	Results []dedup.Result `json:"results"`
}

// DedupePreview takes a JSON array of parsed records and reports probable duplicates.
func (h *ImportHandler) DedupePreview(w http.ResponseWriter, r *http.Request) {
	var records []expense.Record
	if err := httpx.DecodeJSON(r, &records); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.importSvc.DedupePreview(r.Context(), records)
	if err != nil {
		h.internalError(w, r, "dedup preview failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dedupePreviewResponse{Results: results})
}

// FindDuplicates runs the store-wide duplicate diagnostic.
func (h *ImportHandler) FindDuplicates(w http.ResponseWriter, r *http.Request) {
	scan, err := h.importSvc.FindDuplicates(r.Context())
	if err != nil {
		h.internalError(w, r, "duplicate scan failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, scan)
}

// ListUploads lists archived raw files of a source.
func (h *ImportHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	files, err := h.importSvc.Uploads(r.Context(), chi.URLParam(r, "source"))
	if err != nil {
		h.internalError(w, r, "failed to list uploads", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, files)
}

// DownloadUpload streams an archived raw file back.
func (h *ImportHandler) DownloadUpload(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	rc, info, err := h.importSvc.OpenUpload(r.Context(), chi.URLParam(r, "source"), jobID)
	if err != nil {
		h.archiveError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "upload download interrupted", slog.Any("error", err))
	}
}

// DeleteUpload removes an archived raw file.
func (h *ImportHandler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	if err := h.importSvc.DeleteUpload(r.Context(), chi.URLParam(r, "source"), jobID); err != nil {
		h.archiveError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readUpload reads the "source" field and the "file" part of a multipart form.
func (h *ImportHandler) readUpload(w http.ResponseWriter, r *http.Request) (source, filename string, data []byte, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, "file too large")
			return "", "", nil, false
		}
		httpx.WriteError(w, http.StatusBadRequest, "expected multipart form with source and file")
		return "", "", nil, false
	}

	source = strings.TrimSpace(r.FormValue("source"))
	if source == "" {
		httpx.WriteError(w, http.StatusBadRequest, "source is required")
		return "", "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "file is required")
		return "", "", nil, false
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "failed to read file")
		return "", "", nil, false
	}
	return source, header.Filename, data, true
}

func (h *ImportHandler) writeImport(w http.ResponseWriter, r *http.Request, result *importservice.ImportResult, err error) {
	if errors.Is(err, importservice.ErrUnreadableFile) {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, r, "import failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *ImportHandler) archiveError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "upload not found")
		return
	}
	h.internalError(w, r, "archive access failed", err)
}

func (h *ImportHandler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg, slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.WriteError(w, http.StatusInternalServerError, msg)
}

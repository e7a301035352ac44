// Package service dispatches uploaded statement rows to their source adapter
// and writes the resulting canonical records to the expense store.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/monexa/internal/domain/dedup"
	"github.com/FACorreiaa/monexa/internal/domain/expense"
	"github.com/FACorreiaa/monexa/internal/domain/import/parser"
	"github.com/FACorreiaa/monexa/internal/domain/import/sniffer"
	"github.com/FACorreiaa/monexa/pkg/metrics"
	"github.com/FACorreiaa/monexa/pkg/storage"
)

const (
	contentTypeCSV  = "text/csv"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ErrUnreadableFile wraps every failure to sniff or read an uploaded file.
var ErrUnreadableFile = errors.New("unreadable file")

// ImportResult summarizes one committed batch.
type ImportResult struct {
	JobID        uuid.UUID         `json:"job_id"`
	Source       string            `json:"source"`
	RowsTotal    int               `json:"rows_total"`
	RowsImported int               `json:"rows_imported"`
	Archive      *storage.FileInfo `json:"archive,omitempty"`
}

// Preview is a parsed batch that has not been written.
type Preview struct {
	Source     string              `json:"source"`
	FileConfig *sniffer.FileConfig `json:"file_config,omitempty"`
	Parsed     []expense.Record    `json:"parsed"`
}

// DuplicateChecker is implemented by dedup.Engine.
type DuplicateChecker interface {
	Preview(ctx context.Context, incoming []expense.Record) ([]dedup.Result, error)
	FindInDB(ctx context.Context) (dedup.Scan, error)
}

// VocabularyInvalidator is notified after new records land so the next
// question sees their notes and categories.
type VocabularyInvalidator interface {
	Invalidate()
}

type ImportService struct {
	registry   *parser.Registry
	writer     expense.Writer
	dedup      DuplicateChecker      // Optional: nil if dedup is not available
	archive    storage.Archive       // Optional: nil skips raw upload archiving
	vocabulary VocabularyInvalidator // Optional
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	newJobID   func() uuid.UUID
}

// NewImportService creates a new import service
func NewImportService(registry *parser.Registry, writer expense.Writer, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{
		registry: registry,
		writer:   writer,
		logger:   logger,
		tracer:   otel.Tracer("github.com/FACorreiaa/monexa/internal/domain/import/service"),
		newJobID: uuid.New,
	}
}

// WithDuplicateChecker adds dedup previews to the import service
func (s *ImportService) WithDuplicateChecker(checker DuplicateChecker) *ImportService {
	s.dedup = checker
	return s
}

// WithArchive keeps the raw bytes of every committed upload
func (s *ImportService) WithArchive(archive storage.Archive) *ImportService {
	s.archive = archive
	return s
}

// WithVocabulary registers the keyword cache to invalidate after commits
func (s *ImportService) WithVocabulary(v VocabularyInvalidator) *ImportService {
	s.vocabulary = v
	return s
}

func (s *ImportService) WithMetrics(m *metrics.Metrics) *ImportService {
	s.metrics = m
	return s
}

// Ingest maps rows through the adapter registered for sourceID. Unknown
// identifiers use the generic adapter. Rows must all come from one source.
func (s *ImportService) Ingest(ctx context.Context, sourceID string, rows []parser.Row) []expense.Record {
	adapter := s.registry.Lookup(sourceID)

	_, span := s.tracer.Start(ctx, "import.Ingest", trace.WithAttributes(
		attribute.String("source", sourceID),
		attribute.String("adapter", string(adapter.Kind())),
		attribute.Int("rows", len(rows)),
	))
	defer span.End()

	records := adapter.Parse(rows)

	s.metrics.RowsIngested(sourceID, len(rows))
	s.logger.InfoContext(ctx, "batch ingested",
		slog.String("source", sourceID),
		slog.String("adapter", string(adapter.Kind())),
		slog.Int("rows", len(rows)),
		slog.Int("records", len(records)))

	return records
}

// IngestText parses a free-text bill or invoice.
func (s *ImportService) IngestText(ctx context.Context, sourceID, text string) []expense.Record {
	records := parser.ParseText(sourceID, text)
	s.logger.DebugContext(ctx, "text ingested",
		slog.String("source", sourceID),
		slog.Int("chars", len(text)),
		slog.Int("records", len(records)))
	return records
}

// PreviewCSV sniffs the layout of a delimited file and parses it without writing.
func (s *ImportService) PreviewCSV(ctx context.Context, sourceID string, data []byte) (*Preview, error) {
	data = normalizeCSVBytes(data)

	cfg, err := sniffer.DetectConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to analyze file: %w", ErrUnreadableFile, err)
	}

	rows, err := parser.ReadCSV(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read csv: %w", ErrUnreadableFile, err)
	}

	return &Preview{
		Source:     sourceID,
		FileConfig: cfg,
		Parsed:     s.Ingest(ctx, sourceID, rows),
	}, nil
}

// PreviewExcel parses the transaction sheet of an XLSX workbook without writing.
func (s *ImportService) PreviewExcel(ctx context.Context, sourceID string, r io.Reader) (*Preview, error) {
	rows, err := parser.ReadExcel(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read workbook: %w", ErrUnreadableFile, err)
	}
	return &Preview{Source: sourceID, Parsed: s.Ingest(ctx, sourceID, rows)}, nil
}

// Commit writes records and their line items in one transaction. Records
// without a category are stored as expense.DefaultExpType.
func (s *ImportService) Commit(ctx context.Context, sourceID string, records []expense.Record) (*ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.Commit", trace.WithAttributes(
		attribute.String("source", sourceID),
		attribute.Int("records", len(records)),
	))
	defer span.End()

	result := &ImportResult{
		JobID:     s.newJobID(),
		Source:    sourceID,
		RowsTotal: len(records),
	}
	if len(records) == 0 {
		return result, nil
	}

	batch := make([]expense.Record, len(records))
	for i, rec := range records {
		batch[i] = rec.WithDefaults()
	}

	ids, err := s.writer.InsertBatch(ctx, sourceID, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "import commit failed",
			slog.String("job_id", result.JobID.String()),
			slog.String("source", sourceID),
			slog.Any("error", err))
		return nil, fmt.Errorf("failed to store records: %w", err)
	}
	result.RowsImported = len(ids)

	s.metrics.RecordsCommitted(sourceID, result.RowsImported)
	if s.vocabulary != nil {
		s.vocabulary.Invalidate()
	}

	s.logger.InfoContext(ctx, "import committed",
		slog.String("job_id", result.JobID.String()),
		slog.String("source", sourceID),
		slog.Int("rows_total", result.RowsTotal),
		slog.Int("rows_imported", result.RowsImported))

	return result, nil
}

// ImportCSV parses, commits and archives a delimited statement.
func (s *ImportService) ImportCSV(ctx context.Context, sourceID, filename string, data []byte) (*ImportResult, error) {
	preview, err := s.PreviewCSV(ctx, sourceID, data)
	if err != nil {
		return nil, err
	}
	result, err := s.Commit(ctx, sourceID, preview.Parsed)
	if err != nil {
		return nil, err
	}
	s.archiveUpload(ctx, result, filename, contentTypeCSV, data)
	return result, nil
}

// ImportExcel parses, commits and archives an XLSX statement.
func (s *ImportService) ImportExcel(ctx context.Context, sourceID, filename string, data []byte) (*ImportResult, error) {
	preview, err := s.PreviewExcel(ctx, sourceID, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	result, err := s.Commit(ctx, sourceID, preview.Parsed)
	if err != nil {
		return nil, err
	}
	s.archiveUpload(ctx, result, filename, contentTypeXLSX, data)
	return result, nil
}

// ImportText parses and commits a free-text bill.
func (s *ImportService) ImportText(ctx context.Context, sourceID, text string) (*ImportResult, error) {
	return s.Commit(ctx, sourceID, s.IngestText(ctx, sourceID, text))
}

// archiveUpload stores the raw file under the job id. The records are already
// committed, so a failure here is only logged.
func (s *ImportService) archiveUpload(ctx context.Context, result *ImportResult, filename, contentType string, data []byte) {
	if s.archive == nil || result.RowsImported == 0 {
		return
	}
	info, err := s.archive.Save(ctx, result.Source, result.JobID, filename, contentType, bytes.NewReader(data))
	if err != nil {
		s.logger.WarnContext(ctx, "failed to archive upload",
			slog.String("job_id", result.JobID.String()),
			slog.String("source", result.Source),
			slog.Any("error", err))
		return
	}
	result.Archive = info
}

// Uploads lists archived files of one source, newest first.
func (s *ImportService) Uploads(ctx context.Context, sourceID string) ([]*storage.FileInfo, error) {
	if s.archive == nil {
		return []*storage.FileInfo{}, nil
	}
	return s.archive.List(ctx, sourceID)
}

// OpenUpload returns the raw bytes archived for a job.
func (s *ImportService) OpenUpload(ctx context.Context, sourceID string, jobID uuid.UUID) (io.ReadCloser, *storage.FileInfo, error) {
	if s.archive == nil {
		return nil, nil, storage.ErrNotFound
	}
	return s.archive.Open(ctx, sourceID, jobID)
}

// DeleteUpload removes an archived file. Stored records are left alone.
func (s *ImportService) DeleteUpload(ctx context.Context, sourceID string, jobID uuid.UUID) error {
	if s.archive == nil {
		return storage.ErrNotFound
	}
	return s.archive.Delete(ctx, sourceID, jobID)
}

// DedupePreview reports probable duplicates of records among stored expenses.
func (s *ImportService) DedupePreview(ctx context.Context, records []expense.Record) ([]dedup.Result, error) {
	if s.dedup == nil {
		return nil, fmt.Errorf("dedup engine not configured")
	}
	results, err := s.dedup.Preview(ctx, records)
	if err != nil {
		return nil, err
	}

	flagged := 0
	for _, r := range results {
		flagged += len(r.Matches)
	}
	s.metrics.DuplicatesFlagged(flagged)
	return results, nil
}

// FindDuplicates runs the store-wide diagnostic.
func (s *ImportService) FindDuplicates(ctx context.Context) (dedup.Scan, error) {
	if s.dedup == nil {
		return dedup.Scan{}, fmt.Errorf("dedup engine not configured")
	}
	return s.dedup.FindInDB(ctx)
}

// normalizeCSVBytes drops a UTF-8 BOM and decodes Latin-1 exports.
func normalizeCSVBytes(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return data
	}
	return decodeLatin1(data)
}

func decodeLatin1(data []byte) []byte {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return []byte(string(runes))
}

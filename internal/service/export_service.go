package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	appErrors "github.com/tomengsanchez/asset-manager-api/pkg/errors"
	"github.com/tomengsanchez/asset-manager-api/pkg/export"
	"github.com/tomengsanchez/asset-manager-api/pkg/jobs"
	"github.com/tomengsanchez/asset-manager-api/pkg/storage"
)

var assetExportHeaders = []string{
	"Title", "Asset Tag", "Model", "Serial No.", "Brand", "Category",
	"Location", "Status", "Issued To", "Date Purchased", "Description",
}

var repairExportHeaders = []string{
	"Title", "Asset", "Issue Description", "Requested By", "Date Requested",
	"Assigned Technician", "Date Started", "Date Completed",
	"Estimated Cost", "Actual Cost", "Parts Used", "Status",
}

type exportJobRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	UpdateStatus(ctx context.Context, id string, status models.ExportStatus) error
	MarkFinished(ctx context.Context, id, resultURL string) error
	MarkFailed(ctx context.Context, id, message string) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.ExportJob, error)
}

type assetExportSource interface {
	ListAll(ctx context.Context, filter models.AssetFilter) ([]models.Asset, error)
}

type repairExportSource interface {
	ListAll(ctx context.Context, filter models.RepairFilter) ([]models.Repair, error)
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	Workers   int
	Retries   int
}

// ExportService runs register exports as background jobs: the request
// enqueues, a worker renders the file and the caller polls the job for
// a signed download URL.
type ExportService struct {
	repo    exportJobRepository
	assets  assetExportSource
	repairs repairExportSource
	storage exportStorage
	signer  *storage.SignedURLSigner
	csv     csvRenderer
	pdf     pdfRenderer
	xlsx    xlsxRenderer
	queue   *jobs.Queue
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService with its own worker
// queue. Call Start before enqueueing and Stop on shutdown.
func NewExportService(
	repo exportJobRepository,
	assets assetExportSource,
	repairs repairExportSource,
	fileStore exportStorage,
	signer *storage.SignedURLSigner,
	csv csvRenderer,
	pdf pdfRenderer,
	xlsx xlsxRenderer,
	cfg ExportConfig,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	s := &ExportService{
		repo:    repo,
		assets:  assets,
		repairs: repairs,
		storage: fileStore,
		signer:  signer,
		csv:     csv,
		pdf:     pdf,
		xlsx:    xlsx,
		logger:  logger,
		cfg:     cfg,
	}
	s.queue = jobs.NewQueue("exports", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue persists a job and schedules it for rendering.
func (s *ExportService) Enqueue(ctx context.Context, typ models.ExportType, params models.ExportJobParams, userID int64) (*models.ExportJob, error) {
	if typ != models.ExportTypeAssets && typ != models.ExportTypeRepairs {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown export type")
	}
	if err := s.rendererFor(params.Format); err != nil {
		return nil, err
	}

	job := &models.ExportJob{
		Type:      typ,
		Params:    params,
		CreatedBy: userID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(typ)}); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "export queue unavailable"); markErr != nil {
			s.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return job, nil
}

// Status returns job state for its owner.
func (s *ExportService) Status(ctx context.Context, id string, userID int64) (*models.ExportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.CreatedBy != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export job belongs to another user")
	}
	return job, nil
}

// ListByUser returns a user's recent export jobs.
func (s *ExportService) ListByUser(ctx context.Context, userID int64, limit int) ([]models.ExportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	list, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export jobs")
	}
	return list, nil
}

// ParseToken validates a signed download token.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to a stored export file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes export files older than the configured result TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

func (s *ExportService) process(ctx context.Context, qj jobs.Job) error {
	job, err := s.repo.FindByID(ctx, qj.ID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", qj.ID, err)
	}
	if err := s.repo.UpdateStatus(ctx, job.ID, models.ExportStatusProcessing); err != nil {
		s.logger.Warn("failed to mark export processing", zap.String("job_id", job.ID), zap.Error(err))
	}

	url, renderErr := s.render(ctx, job)
	if renderErr != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, renderErr.Error()); markErr != nil {
			s.logger.Warn("failed to mark export failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return renderErr
	}
	if err := s.repo.MarkFinished(ctx, job.ID, url); err != nil {
		return fmt.Errorf("finish export job %s: %w", job.ID, err)
	}
	return nil
}

func (s *ExportService) render(ctx context.Context, job *models.ExportJob) (string, error) {
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return "", err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		if s.pdf == nil {
			return "", appErrors.Clone(appErrors.ErrExportUnavailable, appErrors.ErrExportUnavailable.Message)
		}
		payload, err = s.pdf.Render(dataset, title)
	case models.ExportFormatXLSX:
		if s.xlsx == nil {
			return "", appErrors.Clone(appErrors.ErrExportUnavailable, appErrors.ErrExportUnavailable.Message)
		}
		payload, err = s.xlsx.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported export format %s", job.Params.Format)
	}
	if err != nil {
		return "", err
	}

	relPath, err := s.storage.Save(s.filename(job), payload)
	if err != nil {
		return "", fmt.Errorf("store export file: %w", err)
	}
	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return "", fmt.Errorf("sign export url: %w", err)
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/exports/download/%s", prefix, token), nil
}

// rendererFor rejects formats whose renderer is not wired so the job
// fails at enqueue time rather than in the worker.
func (s *ExportService) rendererFor(format models.ExportFormat) error {
	switch format {
	case models.ExportFormatCSV:
		return nil
	case models.ExportFormatPDF:
		if s.pdf == nil {
			return appErrors.Clone(appErrors.ErrExportUnavailable, appErrors.ErrExportUnavailable.Message)
		}
		return nil
	case models.ExportFormatXLSX:
		if s.xlsx == nil {
			return appErrors.Clone(appErrors.ErrExportUnavailable, appErrors.ErrExportUnavailable.Message)
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown export format")
	}
}

func (s *ExportService) filename(job *models.ExportJob) string {
	return fmt.Sprintf("%s-%s.%s", job.Type, time.Now().UTC().Format("2006-01-02"), job.Params.Format)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ExportTypeAssets:
		return s.assetDataset(ctx, job.Params)
	case models.ExportTypeRepairs:
		return s.repairDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unknown export type %s", job.Type)
	}
}

func (s *ExportService) assetDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	filter := models.AssetFilter{
		Search:    params.Search,
		Brand:     params.Extras["brand"],
		Status:    params.Extras["status"],
		SortBy:    "title",
		SortOrder: "asc",
	}
	assets, err := s.assets.ListAll(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load assets: %w", err)
	}

	rows := make([]map[string]string, 0, len(assets))
	for _, a := range assets {
		issued := a.IssuedToName
		if issued == "" {
			issued = "Unassigned"
		}
		category := ""
		if len(a.Categories) > 0 {
			category = a.Categories[0].Name
		}
		rows = append(rows, map[string]string{
			"Title":          a.Title,
			"Asset Tag":      a.AssetTag,
			"Model":          a.Model,
			"Serial No.":     a.SerialNumber,
			"Brand":          a.Brand,
			"Category":       category,
			"Location":       a.Location,
			"Status":         a.Status,
			"Issued To":      issued,
			"Date Purchased": a.DatePurchased,
			"Description":    a.Description,
		})
	}
	return export.Dataset{Headers: assetExportHeaders, Rows: rows}, "Asset Register", nil
}

func (s *ExportService) repairDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	filter := models.RepairFilter{
		Search:    params.Search,
		SortBy:    "title",
		SortOrder: "asc",
	}
	repairs, err := s.repairs.ListAll(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load repair requests: %w", err)
	}

	rows := make([]map[string]string, 0, len(repairs))
	for _, r := range repairs {
		status := ""
		if r.Status != nil {
			status = r.Status.Name
		}
		rows = append(rows, map[string]string{
			"Title":               r.Title,
			"Asset":               r.AssetTitle,
			"Issue Description":   r.IssueDescription,
			"Requested By":        r.RequestedByName,
			"Date Requested":      r.DateRequested,
			"Assigned Technician": r.TechnicianName,
			"Date Started":        r.DateStarted,
			"Date Completed":      r.DateCompleted,
			"Estimated Cost":      r.EstimatedCost,
			"Actual Cost":         r.ActualCost,
			"Parts Used":          r.PartsUsed,
			"Status":              status,
		})
	}
	return export.Dataset{Headers: repairExportHeaders, Rows: rows}, "Repair Register", nil
}

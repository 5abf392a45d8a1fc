package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	appErrors "github.com/tomengsanchez/asset-manager-api/pkg/errors"
	"github.com/tomengsanchez/asset-manager-api/pkg/export"
	"github.com/tomengsanchez/asset-manager-api/pkg/jobs"
	"github.com/tomengsanchez/asset-manager-api/pkg/storage"
)

type mockExportJobRepo struct {
	jobs     map[string]*models.ExportJob
	finished map[string]string
	failed   map[string]string
}

func newMockExportJobRepo() *mockExportJobRepo {
	return &mockExportJobRepo{
		jobs:     map[string]*models.ExportJob{},
		finished: map[string]string{},
		failed:   map[string]string{},
	}
}

func (m *mockExportJobRepo) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = models.ExportStatusQueued
	m.jobs[job.ID] = job
	return nil
}

func (m *mockExportJobRepo) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	if job, ok := m.jobs[id]; ok {
		return job, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockExportJobRepo) UpdateStatus(ctx context.Context, id string, status models.ExportStatus) error {
	m.jobs[id].Status = status
	return nil
}

func (m *mockExportJobRepo) MarkFinished(ctx context.Context, id, resultURL string) error {
	m.jobs[id].Status = models.ExportStatusFinished
	m.finished[id] = resultURL
	return nil
}

func (m *mockExportJobRepo) MarkFailed(ctx context.Context, id, message string) error {
	m.jobs[id].Status = models.ExportStatusFailed
	m.failed[id] = message
	return nil
}

func (m *mockExportJobRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]models.ExportJob, error) {
	var out []models.ExportJob
	for _, job := range m.jobs {
		if job.CreatedBy == userID {
			out = append(out, *job)
		}
	}
	return out, nil
}

type mockAssetSource struct {
	assets []models.Asset
}

func (m *mockAssetSource) ListAll(ctx context.Context, filter models.AssetFilter) ([]models.Asset, error) {
	return m.assets, nil
}

type mockRepairSource struct {
	repairs []models.Repair
}

func (m *mockRepairSource) ListAll(ctx context.Context, filter models.RepairFilter) ([]models.Repair, error) {
	return m.repairs, nil
}

type mockExportStorage struct {
	saved map[string][]byte
}

func (m *mockExportStorage) Save(filename string, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = map[string][]byte{}
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockExportStorage) Open(filename string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (m *mockExportStorage) Delete(filename string) error { return nil }

func (m *mockExportStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) { return nil, nil }

func newExportFixture(pdf pdfRenderer, xlsx xlsxRenderer) (*ExportService, *mockExportJobRepo, *mockExportStorage) {
	repo := newMockExportJobRepo()
	files := &mockExportStorage{}
	svc := NewExportService(
		repo,
		&mockAssetSource{assets: []models.Asset{{
			ID: 1, Title: "ASSET00001", AssetTag: "IT-0001", Brand: "Dell",
			Status: "Assigned", IssuedToName: "Jane Reyes",
		}}},
		&mockRepairSource{},
		files,
		storage.NewSignedURLSigner("test-secret", time.Hour),
		export.NewCSVExporter(),
		pdf,
		xlsx,
		ExportConfig{APIPrefix: "/api/v1"},
		zap.NewNop(),
	)
	return svc, repo, files
}

func TestExportServiceEnqueueRejectsMissingRenderer(t *testing.T) {
	svc, _, _ := newExportFixture(nil, nil)

	_, err := svc.Enqueue(context.Background(), models.ExportTypeAssets, models.ExportJobParams{Format: models.ExportFormatPDF}, 7)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrExportUnavailable.Code, appErr.Code)

	_, err = svc.Enqueue(context.Background(), models.ExportTypeAssets, models.ExportJobParams{Format: models.ExportFormatXLSX}, 7)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrExportUnavailable.Code, appErr.Code)
}

func TestExportServiceProcessRendersCSV(t *testing.T) {
	svc, repo, files := newExportFixture(nil, nil)
	job := &models.ExportJob{
		Type:      models.ExportTypeAssets,
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		CreatedBy: 7,
	}
	require.NoError(t, repo.Create(context.Background(), job))

	require.NoError(t, svc.process(context.Background(), jobs.Job{ID: job.ID}))

	assert.Equal(t, models.ExportStatusFinished, repo.jobs[job.ID].Status)
	assert.Contains(t, repo.finished[job.ID], "/api/v1/exports/download/")

	wantName := "assets-" + time.Now().UTC().Format("2006-01-02") + ".csv"
	payload, ok := files.saved[wantName]
	require.True(t, ok)
	assert.Contains(t, string(payload), "ASSET00001")
	assert.Contains(t, string(payload), "Jane Reyes")
}

func TestExportServiceProcessCoversFullDataset(t *testing.T) {
	assets := make([]models.Asset, 0, 150)
	for i := 1; i <= 150; i++ {
		assets = append(assets, models.Asset{
			ID:    int64(i),
			Title: fmt.Sprintf("ASSET%05d", i),
		})
	}
	repo := newMockExportJobRepo()
	files := &mockExportStorage{}
	svc := NewExportService(
		repo,
		&mockAssetSource{assets: assets},
		&mockRepairSource{},
		files,
		storage.NewSignedURLSigner("test-secret", time.Hour),
		export.NewCSVExporter(),
		nil,
		nil,
		ExportConfig{APIPrefix: "/api/v1"},
		zap.NewNop(),
	)

	job := &models.ExportJob{
		Type:      models.ExportTypeAssets,
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		CreatedBy: 7,
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NoError(t, svc.process(context.Background(), jobs.Job{ID: job.ID}))

	wantName := "assets-" + time.Now().UTC().Format("2006-01-02") + ".csv"
	payload, ok := files.saved[wantName]
	require.True(t, ok)
	// Header plus one line per asset, trailing newline excluded.
	lines := strings.Split(strings.TrimRight(string(payload), "\n"), "\n")
	assert.Len(t, lines, 151)
	assert.Contains(t, string(payload), "ASSET00150")
}

func TestExportServiceProcessMarksFailureOnBadFormat(t *testing.T) {
	svc, repo, _ := newExportFixture(nil, nil)
	job := &models.ExportJob{
		Type:      models.ExportTypeAssets,
		Params:    models.ExportJobParams{Format: models.ExportFormat("docx")},
		CreatedBy: 7,
	}
	require.NoError(t, repo.Create(context.Background(), job))

	err := svc.process(context.Background(), jobs.Job{ID: job.ID})
	require.Error(t, err)
	assert.Equal(t, models.ExportStatusFailed, repo.jobs[job.ID].Status)
	assert.NotEmpty(t, repo.failed[job.ID])
}

func TestExportServiceStatusChecksOwnership(t *testing.T) {
	svc, repo, _ := newExportFixture(nil, nil)
	job := &models.ExportJob{
		Type:      models.ExportTypeAssets,
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		CreatedBy: 7,
	}
	require.NoError(t, repo.Create(context.Background(), job))

	got, err := svc.Status(context.Background(), job.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	_, err = svc.Status(context.Background(), job.ID, 9)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestExportServiceEnqueueRejectsUnknownType(t *testing.T) {
	svc, _, _ := newExportFixture(nil, nil)

	_, err := svc.Enqueue(context.Background(), models.ExportType("users"), models.ExportJobParams{Format: models.ExportFormatCSV}, 7)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

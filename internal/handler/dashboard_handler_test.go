package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	"github.com/tomengsanchez/asset-manager-api/internal/repository"
	"github.com/tomengsanchez/asset-manager-api/internal/service"
)

type fakeDashboardRepo struct {
	kinds      []repository.KindCount
	statuses   []repository.StatusGroup
	issued     []repository.IssuedGroup
	categories []repository.CategoryGroup
	brands     []string
}

func (f *fakeDashboardRepo) CountByKind(context.Context) ([]repository.KindCount, error) {
	return f.kinds, nil
}

func (f *fakeDashboardRepo) CountAssetsByStatus(context.Context) ([]repository.StatusGroup, error) {
	return f.statuses, nil
}

func (f *fakeDashboardRepo) CountAssetsByIssued(context.Context) ([]repository.IssuedGroup, error) {
	return f.issued, nil
}

func (f *fakeDashboardRepo) CountAssetsByCategory(context.Context) ([]repository.CategoryGroup, error) {
	return f.categories, nil
}

func (f *fakeDashboardRepo) DistinctMetaValues(context.Context, models.RecordKind, string) ([]string, error) {
	return f.brands, nil
}

type fakeUserNames struct {
	names map[int64]string
}

func (f *fakeUserNames) DisplayName(_ context.Context, id int64) (string, bool, error) {
	name, ok := f.names[id]
	return name, ok, nil
}

func (f *fakeUserNames) SearchIDs(context.Context, string) ([]int64, error) {
	return nil, nil
}

func TestDashboardHandlerSummary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeDashboardRepo{
		kinds: []repository.KindCount{
			{Kind: models.KindAsset, Count: 12},
			{Kind: models.KindRepair, Count: 3},
		},
		statuses: []repository.StatusGroup{
			{Status: "Assigned", Count: 8},
			{Status: "Unassigned", Count: 4},
		},
		issued: []repository.IssuedGroup{
			{IssuedTo: "7", Status: "Assigned", Count: 8},
		},
		categories: []repository.CategoryGroup{
			{Category: "Laptops", Count: 12},
		},
	}
	users := &fakeUserNames{names: map[int64]string{7: "Jane Reyes"}}
	h := NewDashboardHandler(service.NewDashboardService(repo, users, nil, 0, nil))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/summary", nil)

	h.Summary(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data models.DashboardSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 12, envelope.Data.TotalAssets)
	assert.Equal(t, 3, envelope.Data.TotalRepairs)
	assert.Equal(t, []models.UserCount{{Label: "Jane Reyes", Count: 8}}, envelope.Data.ByUser)
	assert.Equal(t, []models.CategoryCount{{Category: "Laptops", Count: 12}}, envelope.Data.ByCategory)
}

func TestDashboardHandlerBrands(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeDashboardRepo{brands: []string{"Dell", "Lenovo"}}
	h := NewDashboardHandler(service.NewDashboardService(repo, &fakeUserNames{}, nil, 0, nil))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/brands", nil)

	h.Brands(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, []string{"Dell", "Lenovo"}, envelope.Data)
}

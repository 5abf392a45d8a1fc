package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	"github.com/tomengsanchez/asset-manager-api/internal/service"
)

type fakeTermRepo struct {
	terms  map[int64]*models.Term
	nextID int64
}

func newFakeTermRepo() *fakeTermRepo {
	return &fakeTermRepo{terms: map[int64]*models.Term{}, nextID: 1}
}

func (f *fakeTermRepo) List(_ context.Context, taxonomy string) ([]models.Term, error) {
	var out []models.Term
	for _, t := range f.terms {
		if t.Taxonomy == taxonomy {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTermRepo) FindByID(_ context.Context, id int64) (*models.Term, error) {
	t, ok := f.terms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *t
	return &clone, nil
}

func (f *fakeTermRepo) Create(_ context.Context, term *models.Term) error {
	term.ID = f.nextID
	f.nextID++
	clone := *term
	f.terms[term.ID] = &clone
	return nil
}

func (f *fakeTermRepo) Update(_ context.Context, term *models.Term) error {
	clone := *term
	f.terms[term.ID] = &clone
	return nil
}

func (f *fakeTermRepo) Delete(_ context.Context, id int64) error {
	delete(f.terms, id)
	return nil
}

type termEnvelope struct {
	Data  *models.Term `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestTermHandlerCreateDerivesSlug(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewTermHandler(service.NewTermService(newFakeTermRepo(), nil))

	body, _ := json.Marshal(map[string]string{"name": "Office Chairs"})
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/taxonomies/asset_category/terms", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "taxonomy", Value: "asset_category"}}

	h.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope termEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "Office Chairs", envelope.Data.Name)
	assert.Equal(t, "office-chairs", envelope.Data.Slug)
	assert.Equal(t, models.TaxonomyCategory, envelope.Data.Taxonomy)
}

func TestTermHandlerCreateRejectsUnknownTaxonomy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewTermHandler(service.NewTermService(newFakeTermRepo(), nil))

	body, _ := json.Marshal(map[string]string{"name": "Whatever"})
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/taxonomies/colors/terms", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "taxonomy", Value: "colors"}}

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTermHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewTermHandler(service.NewTermService(newFakeTermRepo(), nil))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/terms/42", nil)
	c.Params = gin.Params{{Key: "id", Value: "42"}}

	h.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTermHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newFakeTermRepo()
	repo.terms[5] = &models.Term{ID: 5, Name: "Laptops", Slug: "laptops", Taxonomy: models.TaxonomyCategory}
	repo.nextID = 6
	h := NewTermHandler(service.NewTermService(repo, nil))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/terms/5", nil)
	c.Params = gin.Params{{Key: "id", Value: "5"}}

	h.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, repo.terms)
}

package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	appErrors "github.com/tomengsanchez/asset-manager-api/pkg/errors"
)

type mockTermRepo struct {
	terms  map[int64]models.Term
	nextID int64
}

func (m *mockTermRepo) List(ctx context.Context, taxonomy string) ([]models.Term, error) {
	var out []models.Term
	for _, t := range m.terms {
		if t.Taxonomy == taxonomy {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTermRepo) FindByID(ctx context.Context, id int64) (*models.Term, error) {
	if t, ok := m.terms[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTermRepo) Create(ctx context.Context, term *models.Term) error {
	if m.terms == nil {
		m.terms = map[int64]models.Term{}
	}
	m.nextID++
	term.ID = m.nextID
	m.terms[term.ID] = *term
	return nil
}

func (m *mockTermRepo) Update(ctx context.Context, term *models.Term) error {
	m.terms[term.ID] = *term
	return nil
}

func (m *mockTermRepo) Delete(ctx context.Context, id int64) error {
	delete(m.terms, id)
	return nil
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "office-laptops", Slugify("Office Laptops"))
	assert.Equal(t, "a-v-equipment", Slugify("  A/V Equipment "))
	assert.Equal(t, "printers", Slugify("Printers!"))
}

func TestTermServiceCreateDerivesSlug(t *testing.T) {
	svc := NewTermService(&mockTermRepo{}, zap.NewNop())

	term, err := svc.Create(context.Background(), models.TaxonomyCategory, "Office Laptops", "")
	require.NoError(t, err)
	assert.Equal(t, "office-laptops", term.Slug)
	assert.Equal(t, models.TaxonomyCategory, term.Taxonomy)
}

func TestTermServiceCreateRejectsUnknownTaxonomy(t *testing.T) {
	svc := NewTermService(&mockTermRepo{}, zap.NewNop())

	_, err := svc.Create(context.Background(), "colors", "Red", "")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestTermServiceUpdateKeepsTaxonomy(t *testing.T) {
	repo := &mockTermRepo{}
	svc := NewTermService(repo, zap.NewNop())
	term, err := svc.Create(context.Background(), models.TaxonomyRepairStatus, "Pending", "")
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), term.ID, "Awaiting Parts", "")
	require.NoError(t, err)
	assert.Equal(t, "Awaiting Parts", updated.Name)
	assert.Equal(t, "awaiting-parts", updated.Slug)
	assert.Equal(t, models.TaxonomyRepairStatus, updated.Taxonomy)
}

func TestTermServiceDeleteMissing(t *testing.T) {
	svc := NewTermService(&mockTermRepo{}, zap.NewNop())

	err := svc.Delete(context.Background(), 99)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

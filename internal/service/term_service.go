package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	appErrors "github.com/tomengsanchez/asset-manager-api/pkg/errors"
)

type termRepository interface {
	List(ctx context.Context, taxonomy string) ([]models.Term, error)
	FindByID(ctx context.Context, id int64) (*models.Term, error)
	Create(ctx context.Context, term *models.Term) error
	Update(ctx context.Context, term *models.Term) error
	Delete(ctx context.Context, id int64) error
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from a term name.
func Slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(slug, "-")
}

// TermService manages taxonomy terms (asset categories and repair
// statuses).
type TermService struct {
	repo   termRepository
	logger *zap.Logger
}

// NewTermService constructs the term service.
func NewTermService(repo termRepository, logger *zap.Logger) *TermService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, logger: logger}
}

func validTaxonomy(taxonomy string) bool {
	return taxonomy == models.TaxonomyCategory || taxonomy == models.TaxonomyRepairStatus
}

// List returns all terms of one taxonomy ordered by name.
func (s *TermService) List(ctx context.Context, taxonomy string) ([]models.Term, error) {
	if !validTaxonomy(taxonomy) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown taxonomy")
	}
	terms, err := s.repo.List(ctx, taxonomy)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}
	return terms, nil
}

// Get returns one term by ID.
func (s *TermService) Get(ctx context.Context, id int64) (*models.Term, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

// Create adds a term to a taxonomy, deriving the slug from the name
// when absent.
func (s *TermService) Create(ctx context.Context, taxonomy, name, slug string) (*models.Term, error) {
	if !validTaxonomy(taxonomy) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown taxonomy")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term name is required")
	}
	if slug = strings.TrimSpace(slug); slug == "" {
		slug = Slugify(name)
	}
	term := &models.Term{Name: name, Slug: slug, Taxonomy: taxonomy}
	if err := s.repo.Create(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}
	return term, nil
}

// Update renames a term. The taxonomy is immutable.
func (s *TermService) Update(ctx context.Context, id int64, name, slug string) (*models.Term, error) {
	term, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term name is required")
	}
	term.Name = name
	if slug = strings.TrimSpace(slug); slug != "" {
		term.Slug = slug
	} else {
		term.Slug = Slugify(name)
	}
	if err := s.repo.Update(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update term")
	}
	return term, nil
}

// Delete removes a term; records linked to it simply lose the link.
func (s *TermService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete term")
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
)

// TermRepository manages taxonomy terms.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository constructs a TermRepository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// List returns terms in a taxonomy ordered by name.
func (r *TermRepository) List(ctx context.Context, taxonomy string) ([]models.Term, error) {
	var terms []models.Term
	query := `SELECT id, name, slug, taxonomy FROM terms WHERE taxonomy = $1 ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &terms, query, taxonomy); err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	return terms, nil
}

// FindByID fetches a term by ID.
func (r *TermRepository) FindByID(ctx context.Context, id int64) (*models.Term, error) {
	var term models.Term
	query := `SELECT id, name, slug, taxonomy FROM terms WHERE id = $1`
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// TermExists reports whether a term exists inside the given taxonomy.
func (r *TermRepository) TermExists(ctx context.Context, id int64, taxonomy string) (bool, error) {
	var exists int
	query := `SELECT 1 FROM terms WHERE id = $1 AND taxonomy = $2 LIMIT 1`
	if err := r.db.GetContext(ctx, &exists, query, id, taxonomy); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check term: %w", err)
	}
	return true, nil
}

// NameByID resolves a term ID to its name. Missing terms return ok=false.
func (r *TermRepository) NameByID(ctx context.Context, id int64) (string, bool, error) {
	var name string
	query := `SELECT name FROM terms WHERE id = $1`
	if err := r.db.GetContext(ctx, &name, query, id); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve term name: %w", err)
	}
	return name, true, nil
}

// SearchIDs returns IDs of terms in a taxonomy whose name contains the
// search fragment, case-insensitively.
func (r *TermRepository) SearchIDs(ctx context.Context, taxonomy, fragment string) ([]int64, error) {
	var ids []int64
	query := `SELECT id FROM terms WHERE taxonomy = $1 AND LOWER(name) LIKE $2`
	if err := r.db.SelectContext(ctx, &ids, query, taxonomy, "%"+strings.ToLower(fragment)+"%"); err != nil {
		return nil, fmt.Errorf("search terms: %w", err)
	}
	return ids, nil
}

// Create inserts a new term.
func (r *TermRepository) Create(ctx context.Context, term *models.Term) error {
	query := `INSERT INTO terms (name, slug, taxonomy) VALUES ($1, $2, $3) RETURNING id`
	if err := r.db.GetContext(ctx, &term.ID, query, term.Name, term.Slug, term.Taxonomy); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// Update renames a term.
func (r *TermRepository) Update(ctx context.Context, term *models.Term) error {
	query := `UPDATE terms SET name = $1, slug = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, term.Name, term.Slug, term.ID)
	if err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a term and its record links.
func (r *TermRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM record_terms WHERE term_id = $1`, id); err != nil {
		return fmt.Errorf("unlink term: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM terms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

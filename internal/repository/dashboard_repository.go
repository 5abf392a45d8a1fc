package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
)

// DashboardRepository runs the aggregate queries behind the overview
// screen. Raw groupings come back here; labeling rules live in the
// service layer.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// KindCount is a per-kind record total.
type KindCount struct {
	Kind  models.RecordKind `db:"kind"`
	Count int               `db:"count"`
}

// StatusGroup is a per-status asset count.
type StatusGroup struct {
	Status string `db:"status"`
	Count  int    `db:"count"`
}

// IssuedGroup groups assets by issued-to value and status.
type IssuedGroup struct {
	IssuedTo string `db:"issued_to"`
	Status   string `db:"status"`
	Count    int    `db:"count"`
}

// CategoryGroup is a per-category asset count.
type CategoryGroup struct {
	Category string `db:"category"`
	Count    int    `db:"count"`
}

// CountByKind returns record totals per kind.
func (r *DashboardRepository) CountByKind(ctx context.Context) ([]KindCount, error) {
	var rows []KindCount
	query := `SELECT kind, COUNT(*) AS count FROM records GROUP BY kind`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count records by kind: %w", err)
	}
	return rows, nil
}

// CountAssetsByStatus groups assets on their status meta value.
func (r *DashboardRepository) CountAssetsByStatus(ctx context.Context) ([]StatusGroup, error) {
	var rows []StatusGroup
	query := `SELECT COALESCE(m.meta_value, '') AS status, COUNT(*) AS count
        FROM records r
        LEFT JOIN record_meta m ON m.record_id = r.id AND m.meta_key = 'status'
        WHERE r.kind = $1
        GROUP BY 1`
	if err := r.db.SelectContext(ctx, &rows, query, models.KindAsset); err != nil {
		return nil, fmt.Errorf("count assets by status: %w", err)
	}
	return rows, nil
}

// CountAssetsByIssued groups assets on their issued-to and status meta
// values so the service can apply the unassigned labeling rules.
func (r *DashboardRepository) CountAssetsByIssued(ctx context.Context) ([]IssuedGroup, error) {
	var rows []IssuedGroup
	query := `SELECT COALESCE(mi.meta_value, '') AS issued_to, COALESCE(ms.meta_value, '') AS status, COUNT(*) AS count
        FROM records r
        LEFT JOIN record_meta mi ON mi.record_id = r.id AND mi.meta_key = 'issued_to'
        LEFT JOIN record_meta ms ON ms.record_id = r.id AND ms.meta_key = 'status'
        WHERE r.kind = $1
        GROUP BY 1, 2`
	if err := r.db.SelectContext(ctx, &rows, query, models.KindAsset); err != nil {
		return nil, fmt.Errorf("count assets by issued: %w", err)
	}
	return rows, nil
}

// CountAssetsByCategory groups assets on their linked category term.
func (r *DashboardRepository) CountAssetsByCategory(ctx context.Context) ([]CategoryGroup, error) {
	var rows []CategoryGroup
	query := `SELECT COALESCE(t.name, '') AS category, COUNT(DISTINCT r.id) AS count
        FROM records r
        LEFT JOIN record_terms rt ON rt.record_id = r.id
        LEFT JOIN terms t ON t.id = rt.term_id AND t.taxonomy = $2
        WHERE r.kind = $1
        GROUP BY 1`
	if err := r.db.SelectContext(ctx, &rows, query, models.KindAsset, models.TaxonomyCategory); err != nil {
		return nil, fmt.Errorf("count assets by category: %w", err)
	}
	return rows, nil
}

// DistinctMetaValues lists the non-empty values of one meta key across
// a kind, used to build the brand filter dropdown.
func (r *DashboardRepository) DistinctMetaValues(ctx context.Context, kind models.RecordKind, metaKey string) ([]string, error) {
	var values []string
	query := `SELECT DISTINCT m.meta_value FROM record_meta m
        JOIN records r ON r.id = m.record_id
        WHERE r.kind = $1 AND m.meta_key = $2 AND m.meta_value <> ''
        ORDER BY m.meta_value ASC`
	if err := r.db.SelectContext(ctx, &values, query, kind, metaKey); err != nil {
		return nil, fmt.Errorf("distinct meta values: %w", err)
	}
	return values, nil
}

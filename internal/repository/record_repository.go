package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	"github.com/tomengsanchez/asset-manager-api/internal/query"
)

// RecordRepository manages persistence for generic inventory records,
// their metadata fields, and their taxonomy links.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs a RecordRepository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Create inserts a new record row and returns it with its assigned ID.
func (r *RecordRepository) Create(ctx context.Context, kind models.RecordKind, title string) (*models.Record, error) {
	now := time.Now().UTC()
	record := &models.Record{Kind: kind, Title: title, CreatedAt: now, UpdatedAt: now}
	query := `INSERT INTO records (kind, title, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.GetContext(ctx, &record.ID, query, kind, title, now, now); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	return record, nil
}

// FindByID fetches a record by its ID.
func (r *RecordRepository) FindByID(ctx context.Context, id int64) (*models.Record, error) {
	var record models.Record
	query := `SELECT id, kind, title, created_at, updated_at FROM records WHERE id = $1`
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// ExistsByKind reports whether a record of the given kind exists.
func (r *RecordRepository) ExistsByKind(ctx context.Context, id int64, kind models.RecordKind) (bool, error) {
	var exists int
	query := `SELECT 1 FROM records WHERE id = $1 AND kind = $2 LIMIT 1`
	if err := r.db.GetContext(ctx, &exists, query, id, kind); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check record: %w", err)
	}
	return true, nil
}

// UpdateTitle sets a record's title without touching anything else.
func (r *RecordRepository) UpdateTitle(ctx context.Context, id int64, title string) error {
	query := `UPDATE records SET title = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, title, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update record title: %w", err)
	}
	return nil
}

// Touch bumps the record's updated_at timestamp.
func (r *RecordRepository) Touch(ctx context.Context, id int64) error {
	query := `UPDATE records SET updated_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("touch record: %w", err)
	}
	return nil
}

// Delete removes a record; metadata, term links, history, and notes
// cascade at the schema level.
func (r *RecordRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetMeta returns every metadata field of a record as a key/value map.
func (r *RecordRepository) GetMeta(ctx context.Context, recordID int64) (map[string]string, error) {
	var rows []models.RecordMeta
	query := `SELECT record_id, meta_key, meta_value FROM record_meta WHERE record_id = $1`
	if err := r.db.SelectContext(ctx, &rows, query, recordID); err != nil {
		return nil, fmt.Errorf("get record meta: %w", err)
	}
	meta := make(map[string]string, len(rows))
	for _, m := range rows {
		meta[m.MetaKey] = m.MetaValue
	}
	return meta, nil
}

// SetMeta upserts a single metadata field.
func (r *RecordRepository) SetMeta(ctx context.Context, recordID int64, key, value string) error {
	query := `INSERT INTO record_meta (record_id, meta_key, meta_value) VALUES ($1, $2, $3)
        ON CONFLICT (record_id, meta_key) DO UPDATE SET meta_value = EXCLUDED.meta_value`
	if _, err := r.db.ExecContext(ctx, query, recordID, key, value); err != nil {
		return fmt.Errorf("set record meta %s: %w", key, err)
	}
	return nil
}

// DeleteMeta removes a metadata field if present.
func (r *RecordRepository) DeleteMeta(ctx context.Context, recordID int64, key string) error {
	query := `DELETE FROM record_meta WHERE record_id = $1 AND meta_key = $2`
	if _, err := r.db.ExecContext(ctx, query, recordID, key); err != nil {
		return fmt.Errorf("delete record meta %s: %w", key, err)
	}
	return nil
}

// TermIDFor returns the record's single linked term in the given
// taxonomy, or zero when none is linked.
func (r *RecordRepository) TermIDFor(ctx context.Context, recordID int64, taxonomy string) (int64, error) {
	var termID int64
	query := `SELECT t.id FROM record_terms rt JOIN terms t ON t.id = rt.term_id
        WHERE rt.record_id = $1 AND t.taxonomy = $2 LIMIT 1`
	if err := r.db.GetContext(ctx, &termID, query, recordID, taxonomy); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("get record term: %w", err)
	}
	return termID, nil
}

// SetTerm replaces the record's term link inside one taxonomy. The
// link is single-valued: any prior link in the taxonomy is removed,
// and a zero termID simply clears it.
func (r *RecordRepository) SetTerm(ctx context.Context, recordID int64, taxonomy string, termID int64) error {
	del := `DELETE FROM record_terms rt USING terms t
        WHERE rt.term_id = t.id AND rt.record_id = $1 AND t.taxonomy = $2`
	if _, err := r.db.ExecContext(ctx, del, recordID, taxonomy); err != nil {
		return fmt.Errorf("clear record terms: %w", err)
	}
	if termID <= 0 {
		return nil
	}
	ins := `INSERT INTO record_terms (record_id, term_id) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, ins, recordID, termID); err != nil {
		return fmt.Errorf("link record term: %w", err)
	}
	return nil
}

// MaxTitleSequence extracts the highest numeric suffix among titles of
// the given kind matching prefix + digits, case-insensitively.
func (r *RecordRepository) MaxTitleSequence(ctx context.Context, kind models.RecordKind, prefix string) (int, error) {
	pattern := "^" + prefix + "0*([0-9]+)$"
	match := "^" + prefix + "[0-9]+$"
	var max int
	query := `SELECT COALESCE(MAX((substring(title from $1))::int), 0) FROM records
        WHERE kind = $2 AND title ~* $3`
	if err := r.db.GetContext(ctx, &max, query, pattern, kind, match); err != nil {
		return 0, fmt.Errorf("max title sequence: %w", err)
	}
	return max, nil
}

func resolveSort(sortBy, sortOrder string) string {
	allowedSorts := map[string]string{
		"title":      "records.title",
		"created_at": "records.created_at",
		"updated_at": "records.updated_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "records.created_at"
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return fmt.Sprintf("%s %s", column, order)
}

// List runs the composed listing query with pagination and returns the
// page of records plus the total match count.
func (r *RecordRepository) List(ctx context.Context, c *query.Composer, page, pageSize int, sortBy, sortOrder string) ([]models.Record, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	sqlStr, args, err := c.Build().
		OrderBy(resolveSort(sortBy, sortOrder)).
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	var records []models.Record
	if err := r.db.SelectContext(ctx, &records, sqlStr, args...); err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}

	countSQL, countArgs, err := c.BuildCount().ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}
	return records, total, nil
}

// ListAll runs the composed listing query with no LIMIT. Full exports
// go through here so the register covers every matching record.
func (r *RecordRepository) ListAll(ctx context.Context, c *query.Composer, sortBy, sortOrder string) ([]models.Record, error) {
	sqlStr, args, err := c.Build().
		OrderBy(resolveSort(sortBy, sortOrder)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list-all query: %w", err)
	}

	var records []models.Record
	if err := r.db.SelectContext(ctx, &records, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("list all records: %w", err)
	}
	return records, nil
}

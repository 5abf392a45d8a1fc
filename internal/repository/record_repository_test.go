package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	"github.com/tomengsanchez/asset-manager-api/internal/query"
)

func newRecordMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRecordRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO records (kind, title, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id")).
		WithArgs(models.KindAsset, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	record, err := repo.Create(context.Background(), models.KindAsset, "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), record.ID)
	assert.Equal(t, models.KindAsset, record.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryExistsByKind(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM records WHERE id = $1 AND kind = $2 LIMIT 1")).
		WithArgs(int64(42), models.KindAsset).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByKind(context.Background(), 42, models.KindAsset)
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM records WHERE id = $1 AND kind = $2 LIMIT 1")).
		WithArgs(int64(99), models.KindAsset).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.ExistsByKind(context.Background(), 99, models.KindAsset)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryMeta(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	rows := sqlmock.NewRows([]string{"record_id", "meta_key", "meta_value"}).
		AddRow(7, "brand", "Dell").
		AddRow(7, "status", "Assigned")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT record_id, meta_key, meta_value FROM record_meta WHERE record_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	meta, err := repo.GetMeta(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"brand": "Dell", "status": "Assigned"}, meta)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO record_meta (record_id, meta_key, meta_value) VALUES ($1, $2, $3)")).
		WithArgs(int64(7), "brand", "HP").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetMeta(context.Background(), 7, "brand", "HP"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM record_meta WHERE record_id = $1 AND meta_key = $2")).
		WithArgs(int64(7), "parts_used").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.DeleteMeta(context.Background(), 7, "parts_used"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositorySetTermReplacesLink(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectExec("DELETE FROM record_terms rt USING terms t").
		WithArgs(int64(7), models.TaxonomyCategory).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO record_terms (record_id, term_id) VALUES ($1, $2)")).
		WithArgs(int64(7), int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetTerm(context.Background(), 7, models.TaxonomyCategory, 12))

	// Zero term ID clears without inserting.
	mock.ExpectExec("DELETE FROM record_terms rt USING terms t").
		WithArgs(int64(7), models.TaxonomyCategory).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetTerm(context.Background(), 7, models.TaxonomyCategory, 0))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryMaxTitleSequence(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("^ASSET0*([0-9]+)$", models.KindAsset, "^ASSET[0-9]+$").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(7))

	max, err := repo.MaxTitleSequence(context.Background(), models.KindAsset, "ASSET")
	require.NoError(t, err)
	assert.Equal(t, 7, max)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryList(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "kind", "title", "created_at", "updated_at"}).
		AddRow(1, "asset", "ASSET00001", now, now)
	mock.ExpectQuery("SELECT records.id, records.kind, records.title").
		WithArgs("asset").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT records.id) FROM records")).
		WithArgs("asset").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), query.NewComposer(models.KindAsset), 1, 20, "", "")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryListCapsPageSize(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "kind", "title", "created_at", "updated_at"}).
		AddRow(1, "asset", "ASSET00001", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT 20 OFFSET 0")).
		WithArgs("asset").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT records.id) FROM records")).
		WithArgs("asset").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err := repo.List(context.Background(), query.NewComposer(models.KindAsset), 1, 10000, "title", "asc")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryListAllHasNoLimit(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "kind", "title", "created_at", "updated_at"}).
		AddRow(1, "asset", "ASSET00001", now, now).
		AddRow(2, "asset", "ASSET00002", now, now).
		AddRow(3, "asset", "ASSET00003", now, now)
	// Anchored at the end of the statement: ORDER BY must be the final
	// clause, with no LIMIT or OFFSET appended.
	mock.ExpectQuery(`ORDER BY records\.title ASC$`).
		WithArgs("asset").
		WillReturnRows(rows)

	records, err := repo.ListAll(context.Background(), query.NewComposer(models.KindAsset), "title", "asc")
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

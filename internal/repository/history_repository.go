package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
)

// HistoryRepository manages the append-only change log of a record.
// Entries are individual rows, so concurrent appends never clobber
// each other.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs a HistoryRepository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append inserts one history entry. Existing entries are never
// modified.
func (r *HistoryRepository) Append(ctx context.Context, entry *models.HistoryEntry) error {
	query := `INSERT INTO record_history (record_id, entry_date, entry_user, note) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.GetContext(ctx, &entry.ID, query, entry.RecordID, entry.Date, entry.User, entry.Note); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ListByRecord returns a record's history, newest first.
func (r *HistoryRepository) ListByRecord(ctx context.Context, recordID int64) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	query := `SELECT id, record_id, entry_date, entry_user, note FROM record_history
        WHERE record_id = $1 ORDER BY entry_date DESC, id DESC`
	if err := r.db.SelectContext(ctx, &entries, query, recordID); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
)

// NoteRepository manages freeform commentary on records, kept separate
// from the field-change history.
type NoteRepository struct {
	db *sqlx.DB
}

// NewNoteRepository constructs a NoteRepository.
func NewNoteRepository(db *sqlx.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Append inserts one note entry.
func (r *NoteRepository) Append(ctx context.Context, note *models.NoteEntry) error {
	query := `INSERT INTO record_notes (record_id, entry_date, entry_user, note) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.GetContext(ctx, &note.ID, query, note.RecordID, note.Date, note.User, note.Note); err != nil {
		return fmt.Errorf("append note: %w", err)
	}
	return nil
}

// ListByRecord returns a record's notes, newest first.
func (r *NoteRepository) ListByRecord(ctx context.Context, recordID int64) ([]models.NoteEntry, error) {
	var notes []models.NoteEntry
	query := `SELECT id, record_id, entry_date, entry_user, note FROM record_notes
        WHERE record_id = $1 ORDER BY entry_date DESC, id DESC`
	if err := r.db.SelectContext(ctx, &notes, query, recordID); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
)

// AttachmentRepository manages file references attached to records and
// their notes.
type AttachmentRepository struct {
	db *sqlx.DB
}

// NewAttachmentRepository constructs an AttachmentRepository.
func NewAttachmentRepository(db *sqlx.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create inserts an attachment row.
func (r *AttachmentRepository) Create(ctx context.Context, att *models.Attachment) error {
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO attachments (record_id, note_id, file_name, file_path, mime_type, size_bytes, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.db.GetContext(ctx, &att.ID, query,
		att.RecordID, att.NoteID, att.FileName, att.FilePath, att.MimeType, att.SizeBytes, att.CreatedAt); err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

// FindByID fetches one attachment.
func (r *AttachmentRepository) FindByID(ctx context.Context, id int64) (*models.Attachment, error) {
	var att models.Attachment
	query := `SELECT id, record_id, note_id, file_name, file_path, mime_type, size_bytes, created_at
        FROM attachments WHERE id = $1`
	if err := r.db.GetContext(ctx, &att, query, id); err != nil {
		return nil, err
	}
	return &att, nil
}

// ListByNote returns every attachment of a note.
func (r *AttachmentRepository) ListByNote(ctx context.Context, noteID int64) ([]models.Attachment, error) {
	var atts []models.Attachment
	query := `SELECT id, record_id, note_id, file_name, file_path, mime_type, size_bytes, created_at
        FROM attachments WHERE note_id = $1 ORDER BY id ASC`
	if err := r.db.SelectContext(ctx, &atts, query, noteID); err != nil {
		return nil, fmt.Errorf("list note attachments: %w", err)
	}
	return atts, nil
}

// ListByRecord returns every attachment of a record.
func (r *AttachmentRepository) ListByRecord(ctx context.Context, recordID int64) ([]models.Attachment, error) {
	var atts []models.Attachment
	query := `SELECT id, record_id, note_id, file_name, file_path, mime_type, size_bytes, created_at
        FROM attachments WHERE record_id = $1 ORDER BY id ASC`
	if err := r.db.SelectContext(ctx, &atts, query, recordID); err != nil {
		return nil, fmt.Errorf("list record attachments: %w", err)
	}
	return atts, nil
}

// Delete removes an attachment row.
func (r *AttachmentRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}

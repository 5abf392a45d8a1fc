package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	appErrors "github.com/tomengsanchez/asset-manager-api/pkg/errors"
)

type noteRepository interface {
	Append(ctx context.Context, note *models.NoteEntry) error
	ListByRecord(ctx context.Context, recordID int64) ([]models.NoteEntry, error)
}

type recordFinder interface {
	FindByID(ctx context.Context, id int64) (*models.Record, error)
}

type noteAttachmentStore interface {
	Create(ctx context.Context, att *models.Attachment) error
	ListByNote(ctx context.Context, noteID int64) ([]models.Attachment, error)
}

// NoteUpload is one file submitted alongside a note.
type NoteUpload struct {
	FileName string
	MimeType string
	Size     int64
	Reader   io.Reader
}

// NoteService appends free-form notes, optionally with attachments, to
// asset and repair records.
type NoteService struct {
	notes       noteRepository
	records     recordFinder
	attachments noteAttachmentStore
	files       fileStore
	logger      *zap.Logger
}

// NewNoteService constructs the note service.
func NewNoteService(notes noteRepository, records recordFinder, attachments noteAttachmentStore, files fileStore, logger *zap.Logger) *NoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoteService{notes: notes, records: records, attachments: attachments, files: files, logger: logger}
}

// Append adds a note to a record and stores any attachments against it.
func (s *NoteService) Append(ctx context.Context, recordID int64, text string, actor *models.User, uploads []NoteUpload) (*models.NoteEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(uploads) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a note needs text or an attachment")
	}
	record, err := s.findRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	// Only asset notes carry attachments.
	if len(uploads) > 0 && record.Kind == models.KindRepair {
		return nil, appErrors.Clone(appErrors.ErrValidation, "repair request notes cannot carry attachments")
	}

	note := &models.NoteEntry{
		RecordID: recordID,
		Date:     time.Now().UTC(),
		User:     actorName(actor),
		Note:     text,
	}
	if err := s.notes.Append(ctx, note); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append note")
	}

	for _, up := range uploads {
		stored := fmt.Sprintf("notes/%d/%d-%s", note.ID, time.Now().UnixNano(), up.FileName)
		path, err := s.files.SaveStream(stored, up.Reader)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store note attachment")
		}
		att := &models.Attachment{
			RecordID:  recordID,
			NoteID:    &note.ID,
			FileName:  up.FileName,
			FilePath:  path,
			MimeType:  up.MimeType,
			SizeBytes: up.Size,
		}
		if err := s.attachments.Create(ctx, att); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save note attachment")
		}
		note.Attachments = append(note.Attachments, *att)
	}
	return note, nil
}

// ListByRecord returns a record's notes, newest first, with their
// attachments.
func (s *NoteService) ListByRecord(ctx context.Context, recordID int64) ([]models.NoteEntry, error) {
	if _, err := s.findRecord(ctx, recordID); err != nil {
		return nil, err
	}
	notes, err := s.notes.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notes")
	}
	for i := range notes {
		atts, attErr := s.attachments.ListByNote(ctx, notes[i].ID)
		if attErr != nil {
			return nil, appErrors.Wrap(attErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list note attachments")
		}
		notes[i].Attachments = atts
	}
	return notes, nil
}

func (s *NoteService) findRecord(ctx context.Context, id int64) (*models.Record, error) {
	record, err := s.records.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}
	return record, nil
}

package models

import "time"

// Attachment is a file stored against a record or one of its notes.
type Attachment struct {
	ID        int64     `db:"id" json:"id"`
	RecordID  int64     `db:"record_id" json:"record_id"`
	NoteID    *int64    `db:"note_id" json:"note_id,omitempty"`
	FileName  string    `db:"file_name" json:"file_name"`
	FilePath  string    `db:"file_path" json:"-"`
	MimeType  string    `db:"mime_type" json:"mime_type"`
	SizeBytes int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

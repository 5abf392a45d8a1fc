package models

import "time"

// RecordKind identifies the kind of inventory record stored in the
// generic records table.
type RecordKind string

const (
	KindAsset  RecordKind = "asset"
	KindRepair RecordKind = "repair_request"
)

// Record is the generic persisted entity. Domain fields live in
// record_meta keyed by field name; the record row carries only identity
// and the display title.
type Record struct {
	ID        int64      `db:"id" json:"id"`
	Kind      RecordKind `db:"kind" json:"kind"`
	Title     string     `db:"title" json:"title"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// RecordMeta is a single key/value pair attached to a record.
type RecordMeta struct {
	RecordID  int64  `db:"record_id" json:"record_id"`
	MetaKey   string `db:"meta_key" json:"meta_key"`
	MetaValue string `db:"meta_value" json:"meta_value"`
}

// HistoryEntry is one line of a record's change log.
type HistoryEntry struct {
	ID       int64     `db:"id" json:"id"`
	RecordID int64     `db:"record_id" json:"record_id"`
	Date     time.Time `db:"entry_date" json:"date"`
	User     string    `db:"entry_user" json:"user"`
	Note     string    `db:"note" json:"note"`
}

// NoteEntry is a free-form annotation left on a record by a user.
type NoteEntry struct {
	ID          int64        `db:"id" json:"id"`
	RecordID    int64        `db:"record_id" json:"record_id"`
	Date        time.Time    `db:"entry_date" json:"date"`
	User        string       `db:"entry_user" json:"user"`
	Note        string       `db:"note" json:"note"`
	Attachments []Attachment `db:"-" json:"attachments,omitempty"`
}

package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	"github.com/tomengsanchez/asset-manager-api/internal/schema"
)

type userDirectory interface {
	DisplayName(ctx context.Context, id int64) (string, bool, error)
}

type termDirectory interface {
	NameByID(ctx context.Context, id int64) (string, bool, error)
}

// ChangeLog turns field-level differences into the human-readable
// notes appended to a record's history.
type ChangeLog struct {
	users userDirectory
	terms termDirectory
}

// NewChangeLog constructs a ChangeLog with the given resolvers.
func NewChangeLog(users userDirectory, terms termDirectory) *ChangeLog {
	return &ChangeLog{users: users, terms: terms}
}

// NormalizeValue collapses unset reference values before comparison:
// for user and record references, "0" and empty string both mean
// "unset" and compare equal.
func NormalizeValue(f schema.Field, value string) string {
	if f.Type == schema.TypeUserRef || f.Type == schema.TypeRecordRef {
		if value == "0" {
			return ""
		}
	}
	return value
}

// FieldMessage produces the history note for one field whose
// normalized values differ. The second return is false when the change
// is suppressed, e.g. two unresolvable user IDs that both display the
// same fallback label.
func (c *ChangeLog) FieldMessage(ctx context.Context, f schema.Field, oldVal, newVal string) (string, bool, error) {
	switch {
	case f.Type == schema.TypeTextarea && f.Key == "description":
		// Long text would bloat the log; record only that it changed.
		return fmt.Sprintf("%s changed.", f.Label), true, nil

	case f.Type == schema.TypeUserRef:
		oldDisplay, err := c.userDisplay(ctx, oldVal)
		if err != nil {
			return "", false, err
		}
		newDisplay, err := c.userDisplay(ctx, newVal)
		if err != nil {
			return "", false, err
		}
		if oldDisplay == newDisplay {
			return "", false, nil
		}
		return fmt.Sprintf("%s changed from %q to %q", f.Label, oldDisplay, newDisplay), true, nil

	default:
		oldDisplay := displayValue(oldVal)
		newDisplay := displayValue(newVal)
		if oldDisplay == newDisplay {
			return "", false, nil
		}
		return fmt.Sprintf("%s changed from %q to %q", f.Label, oldDisplay, newDisplay), true, nil
	}
}

// TermMessage produces the note for a taxonomy link change, resolving
// term IDs to names with "None" as the unset label.
func (c *ChangeLog) TermMessage(ctx context.Context, label string, oldID, newID int64) (string, error) {
	oldName, err := c.termDisplay(ctx, oldID)
	if err != nil {
		return "", err
	}
	newName, err := c.termDisplay(ctx, newID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s changed from %q to %q", label, oldName, newName), nil
}

// BuildEntry joins field messages into one timestamped history entry.
// Nil is returned when nothing changed, so a no-op save appends
// nothing.
func BuildEntry(recordID int64, actingUser string, messages []string) *models.HistoryEntry {
	if len(messages) == 0 {
		return nil
	}
	return &models.HistoryEntry{
		RecordID: recordID,
		Date:     time.Now().UTC(),
		User:     actingUser,
		Note:     strings.Join(messages, "; "),
	}
}

func (c *ChangeLog) userDisplay(ctx context.Context, value string) (string, error) {
	if value == "" || value == "0" {
		return "Unassigned", nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Sprintf("Unknown User (ID: %s)", value), nil
	}
	name, ok, lookupErr := c.users.DisplayName(ctx, id)
	if lookupErr != nil {
		return "", lookupErr
	}
	if !ok {
		return fmt.Sprintf("Unknown User (ID: %s)", value), nil
	}
	return name, nil
}

func (c *ChangeLog) termDisplay(ctx context.Context, id int64) (string, error) {
	if id <= 0 {
		return "None", nil
	}
	name, ok, err := c.terms.NameByID(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "None", nil
	}
	return name, nil
}

// displayValue substitutes the "empty" placeholder for blank values in
// change notes.
func displayValue(value string) string {
	if value == "" || value == "0" {
		return "empty"
	}
	return value
}

package schema

import "github.com/tomengsanchez/asset-manager-api/internal/models"

// FieldType classifies a metadata field for validation and sanitization.
type FieldType string

const (
	TypeText      FieldType = "text"
	TypeTextarea  FieldType = "textarea"
	TypeEnum      FieldType = "enum"
	TypeDate      FieldType = "date"
	TypeNumeric   FieldType = "numeric"
	TypeUserRef   FieldType = "user_ref"
	TypeRecordRef FieldType = "record_ref"
)

// Field describes one metadata field of a record kind.
type Field struct {
	Key      string
	Label    string
	Type     FieldType
	Required bool
	Enum     []string
}

// Well-known non-meta keys used by validation and filtering.
const (
	KeyCategory     = "asset_category"
	LabelCategory   = "Category"
	KeyRepairStatus = "repair_status"
	LabelStatus     = "Status"
)

// Order here determines display and validation order.
var assetFields = []Field{
	{Key: "asset_tag", Label: "Asset Tag", Type: TypeText, Required: true},
	{Key: "model", Label: "Model", Type: TypeText, Required: true},
	{Key: "serial_number", Label: "Serial Number", Type: TypeText, Required: true},
	{Key: "brand", Label: "Brand", Type: TypeText, Required: true},
	{Key: "supplier", Label: "Supplier", Type: TypeText, Required: true},
	{Key: "date_purchased", Label: "Date Purchased", Type: TypeDate, Required: true},
	{Key: "issued_to", Label: "Issued To", Type: TypeUserRef, Required: false},
	{Key: "status", Label: "Status", Type: TypeEnum, Required: true, Enum: assetStatusValues()},
	{Key: "location", Label: "Location", Type: TypeText, Required: true},
	{Key: "description", Label: "Description", Type: TypeTextarea, Required: true},
}

var repairFields = []Field{
	{Key: "asset_id", Label: "Asset", Type: TypeRecordRef, Required: true},
	{Key: "issue_description", Label: "Issue Description", Type: TypeTextarea, Required: true},
	{Key: "requested_by", Label: "Requested By", Type: TypeUserRef, Required: true},
	{Key: "date_requested", Label: "Date Requested", Type: TypeDate, Required: true},
	{Key: "assigned_technician", Label: "Assigned Technician", Type: TypeUserRef, Required: false},
	{Key: "date_started", Label: "Date Started", Type: TypeDate, Required: false},
	{Key: "date_completed", Label: "Date Completed", Type: TypeDate, Required: false},
	{Key: "estimated_cost", Label: "Estimated Cost", Type: TypeNumeric, Required: false},
	{Key: "actual_cost", Label: "Actual Cost", Type: TypeNumeric, Required: false},
	{Key: "parts_used", Label: "Parts Used", Type: TypeTextarea, Required: false},
}

func assetStatusValues() []string {
	values := make([]string, len(models.AssetStatuses))
	for i, s := range models.AssetStatuses {
		values[i] = string(s)
	}
	return values
}

// FieldsFor returns the ordered field list for a record kind. The slice
// is shared; callers must not mutate it.
func FieldsFor(kind models.RecordKind) []Field {
	switch kind {
	case models.KindAsset:
		return assetFields
	case models.KindRepair:
		return repairFields
	default:
		return nil
	}
}

// FieldFor looks up a single field definition by key.
func FieldFor(kind models.RecordKind, key string) (Field, bool) {
	for _, f := range FieldsFor(kind) {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// LabelFor returns the display label for a field key, falling back to
// the known non-meta keys and then the key itself.
func LabelFor(kind models.RecordKind, key string) string {
	if f, ok := FieldFor(kind, key); ok {
		return f.Label
	}
	switch key {
	case KeyCategory:
		return LabelCategory
	case KeyRepairStatus, "status":
		return LabelStatus
	}
	return key
}

// EnumValuesFor returns the closed value set for an enum field, or nil.
func EnumValuesFor(kind models.RecordKind, key string) []string {
	f, ok := FieldFor(kind, key)
	if !ok || f.Type != TypeEnum {
		return nil
	}
	return f.Enum
}

// UserReferenceKeys lists the metadata fields that hold user IDs for
// the given kind. Free-text search matches these by resolved ID set.
func UserReferenceKeys(kind models.RecordKind) []string {
	keys := make([]string, 0)
	for _, f := range FieldsFor(kind) {
		if f.Type == TypeUserRef {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// SearchableMetaKeys lists the metadata fields covered by free-text
// search in listings of the given kind.
func SearchableMetaKeys(kind models.RecordKind) []string {
	switch kind {
	case models.KindAsset:
		return []string{"asset_tag", "model", "serial_number", "brand", "location", "status", "date_purchased", "description"}
	case models.KindRepair:
		return []string{"issue_description", "date_requested", "date_started", "date_completed", "parts_used"}
	default:
		return nil
	}
}

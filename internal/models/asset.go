package models

import "time"

// AssetStatus enumerates the asset lifecycle states.
type AssetStatus string

const (
	StatusUnassigned AssetStatus = "Unassigned"
	StatusAssigned   AssetStatus = "Assigned"
	StatusReturned   AssetStatus = "Returned"
	StatusForRepair  AssetStatus = "For Repair"
	StatusRepairing  AssetStatus = "Repairing"
	StatusArchived   AssetStatus = "Archived"
	StatusDisposed   AssetStatus = "Disposed"
)

// AssetStatuses lists every valid status in display order.
var AssetStatuses = []AssetStatus{
	StatusUnassigned,
	StatusAssigned,
	StatusReturned,
	StatusForRepair,
	StatusRepairing,
	StatusArchived,
	StatusDisposed,
}

// ValidAssetStatus reports whether s names a defined status.
func ValidAssetStatus(s string) bool {
	for _, st := range AssetStatuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

// Asset is the read projection of an asset record with its metadata
// flattened into typed fields.
type Asset struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	AssetTag      string    `json:"asset_tag"`
	Model         string    `json:"model"`
	SerialNumber  string    `json:"serial_number"`
	Brand         string    `json:"brand"`
	Supplier      string    `json:"supplier"`
	DatePurchased string    `json:"date_purchased"`
	IssuedTo      string    `json:"issued_to"`
	IssuedToName  string    `json:"issued_to_name,omitempty"`
	Status        string    `json:"status"`
	Location      string    `json:"location"`
	Description   string    `json:"description"`
	Categories    []Term    `json:"categories,omitempty"`
	ImagePath     string    `json:"image_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AssetFilter captures the list/search parameters for assets.
type AssetFilter struct {
	Search    string
	Category  int64
	Brand     string
	Status    string
	IssuedTo  string
	Relation  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

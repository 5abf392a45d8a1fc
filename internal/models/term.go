package models

// Taxonomies recognized by the inventory.
const (
	// TaxonomyCategory classifies assets.
	TaxonomyCategory = "asset_category"
	// TaxonomyRepairStatus tracks the lifecycle of a repair request.
	TaxonomyRepairStatus = "repair_status"
)

// Term is a taxonomy term (asset category).
type Term struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Slug     string `db:"slug" json:"slug"`
	Taxonomy string `db:"taxonomy" json:"taxonomy"`
}

// TermFilter captures list parameters for terms.
type TermFilter struct {
	Taxonomy string
	Search   string
	Page     int
	PageSize int
}

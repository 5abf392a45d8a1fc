package models

import "time"

// Repair is the read projection of a repair request record.
type Repair struct {
	ID                 int64     `json:"id"`
	Title              string    `json:"title"`
	AssetID            string    `json:"asset_id"`
	AssetTitle         string    `json:"asset_title,omitempty"`
	IssueDescription   string    `json:"issue_description"`
	RequestedBy        string    `json:"requested_by"`
	RequestedByName    string    `json:"requested_by_name,omitempty"`
	DateRequested      string    `json:"date_requested"`
	AssignedTechnician string    `json:"assigned_technician"`
	TechnicianName     string    `json:"technician_name,omitempty"`
	DateStarted        string    `json:"date_started"`
	DateCompleted      string    `json:"date_completed"`
	EstimatedCost      string    `json:"estimated_cost"`
	ActualCost         string    `json:"actual_cost"`
	PartsUsed          string    `json:"parts_used"`
	Status             *Term     `json:"status,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// RepairFilter captures list/search parameters for repair requests.
type RepairFilter struct {
	Search     string
	AssetID    int64
	Technician string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

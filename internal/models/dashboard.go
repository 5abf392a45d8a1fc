package models

// StatusCount is one slice of the assets-by-status summary.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// UserCount is one slice of the assets-by-user summary.
type UserCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// CategoryCount is one slice of the assets-by-category summary.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// DashboardSummary aggregates asset counts for the overview screen.
type DashboardSummary struct {
	TotalAssets  int             `json:"total_assets"`
	TotalRepairs int             `json:"total_repairs"`
	ByStatus     []StatusCount   `json:"by_status"`
	ByUser       []UserCount     `json:"by_user"`
	ByCategory   []CategoryCount `json:"by_category"`
}

package domain

// Filters narrows the visible task list. Every constraint set to All is ignored.
type Filters struct {
	Search   string `json:"search"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
	Category string `json:"category"`
}

// NewFilters returns filters that match every task.
func NewFilters() Filters {
	return Filters{Priority: All, Status: All, Category: All}
}

// Stats are the dashboard counters.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Progress int `json:"progress"`
	Done     int `json:"done"`
}

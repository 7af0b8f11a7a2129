package scans

import "time"

// OutcomeState classifies one analysis attempt.
type OutcomeState string

const (
	StatusCompleted     OutcomeState = "completed"
	StatusFallback      OutcomeState = "fallback"
	StatusEmptyResponse OutcomeState = "empty_response"
	StatusParseError    OutcomeState = "parse_error"
)

// Scan is the persisted projection of a completed report.
type Scan struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Issues          []Issue   `json:"issues"`
	Recommendations []string  `json:"recommendations"`
	ImageKey        string    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
}

// HasImage reports whether the analysed photo was archived.
func (s Scan) HasImage() bool {
	return s.ImageKey != ""
}

// ListFilter narrows scan queries. Zero values mean no constraint.
type ListFilter struct {
	UserID string
	Since  time.Time
	Limit  int
}

// Totals aggregates scans matching a filter.
type Totals struct {
	Scans    int
	Issues   int
	LastScan *time.Time
}

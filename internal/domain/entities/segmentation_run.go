package entities

import (
	"time"
)

// SegmentationRun is the outcome of one batch segmentation.
type SegmentationRun struct {
	ID           string               `json:"id"`
	Source       string               `json:"source"`
	ModelVersion string               `json:"model_version"`
	RowsRead     int                  `json:"rows_read"`
	RowsCleaned  int                  `json:"rows_cleaned"`
	Customers    []ScoredCustomer     `json:"customers"`
	Labels       map[int]SegmentLabel `json:"labels"`
	Summary      []SegmentSummary     `json:"summary"`
	CreatedAt    time.Time            `json:"created_at"`
}

// SegmentCounts returns the number of customers per segment label.
// Unlabelled customers are counted under the empty label.
func (r *SegmentationRun) SegmentCounts() map[SegmentLabel]int {
	counts := make(map[SegmentLabel]int)
	for _, c := range r.Customers {
		counts[c.Segment]++
	}
	return counts
}

// TransactionFilter restricts transactions read from a store.
type TransactionFilter struct {
	Since *time.Time
	Until *time.Time
	Limit int
}

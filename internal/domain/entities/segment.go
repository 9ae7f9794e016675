package entities

// SegmentLabel is the business name derived for a cluster.
type SegmentLabel string

const (
	SegmentHighValueLoyal    SegmentLabel = "High-Value Loyal"
	SegmentAtRisk            SegmentLabel = "At-Risk/Churning"
	SegmentRecentLowSpenders SegmentLabel = "Recent Low Spenders"
	SegmentBulkAverage       SegmentLabel = "Bulk/Average Buyers"
)

// SegmentLabels returns the labels in assignment order.
func SegmentLabels() []SegmentLabel {
	return []SegmentLabel{SegmentHighValueLoyal, SegmentAtRisk, SegmentRecentLowSpenders, SegmentBulkAverage}
}

// IsValid checks if the label is one of the defined constants.
func (l SegmentLabel) IsValid() bool {
	switch l {
	case SegmentHighValueLoyal, SegmentAtRisk, SegmentRecentLowSpenders, SegmentBulkAverage:
		return true
	}
	return false
}

// SegmentSummary holds per-segment business metrics.
type SegmentSummary struct {
	Segment       SegmentLabel `json:"segment_name"`
	Clusters      []int        `json:"clusters"`
	Count         int          `json:"count"`
	MeanMonetary  float64      `json:"mean_monetary"`
	MeanRecency   float64      `json:"mean_recency"`
	MeanFrequency float64      `json:"mean_frequency"`
}

package entities

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Numeric customer feature names, as used by the fitted model schema.
const (
	FeatureRecency        = "Recency"
	FeatureFrequency      = "Frequency"
	FeatureMonetary       = "Monetary"
	FeatureTotalQuantity  = "TotalQuantity"
	FeatureUniqueProducts = "UniqueProducts"
)

// CustomerFeatureNames lists every numeric feature in canonical order.
func CustomerFeatureNames() []string {
	return []string{FeatureRecency, FeatureFrequency, FeatureMonetary, FeatureTotalQuantity, FeatureUniqueProducts}
}

// IsCustomerFeature reports whether name is a numeric customer feature.
func IsCustomerFeature(name string) bool {
	switch name {
	case FeatureRecency, FeatureFrequency, FeatureMonetary, FeatureTotalQuantity, FeatureUniqueProducts:
		return true
	}
	return false
}

// CustomerFeatureRow holds one customer's aggregated features.
type CustomerFeatureRow struct {
	CustomerID     string          `json:"customer_id"`
	Recency        int             `json:"recency"`   // days since last purchase, relative to the snapshot
	Frequency      int             `json:"frequency"` // distinct invoices
	Monetary       decimal.Decimal `json:"monetary"`
	TotalQuantity  int64           `json:"total_quantity"`
	UniqueProducts int             `json:"unique_products"`
}

// Feature returns the named numeric feature as float64.
func (r CustomerFeatureRow) Feature(name string) (float64, bool) {
	switch name {
	case FeatureRecency:
		return float64(r.Recency), true
	case FeatureFrequency:
		return float64(r.Frequency), true
	case FeatureMonetary:
		return r.Monetary.InexactFloat64(), true
	case FeatureTotalQuantity:
		return float64(r.TotalQuantity), true
	case FeatureUniqueProducts:
		return float64(r.UniqueProducts), true
	}
	return 0, false
}

// ScoredCustomer is a feature row with its cluster assignment and, once
// labelled, its business segment.
type ScoredCustomer struct {
	CustomerFeatureRow
	Cluster int          `json:"cluster"`
	Segment SegmentLabel `json:"segment_name"`
}

// CompareCustomerIDs orders identifiers numerically when both are integers,
// lexically otherwise.
func CompareCustomerIDs(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

package entities

import (
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeCustomerID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"17850", "17850"},
		{"17850.0", "17850"},
		{" 17850.00 ", "17850"},
		{"17850.5", "17850.5"},
		{"CUST-7", "CUST-7"},
		{"", ""},
		{"NaN", ""},
		{"null", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCustomerID(tt.in), "input %q", tt.in)
	}
}

func TestTransactionRow_IsCancellation(t *testing.T) {
	assert.True(t, TransactionRow{InvoiceNo: "C536379"}.IsCancellation())
	assert.False(t, TransactionRow{InvoiceNo: "536379"}.IsCancellation())
	assert.False(t, TransactionRow{InvoiceNo: "c536379"}.IsCancellation())
}

func TestFeatureSchema_Validate(t *testing.T) {
	_, err := NewFeatureSchema()
	assert.Error(t, err)

	_, err = NewFeatureSchema(FeatureRecency, "Tenure")
	assert.Error(t, err)

	_, err = NewFeatureSchema(FeatureRecency, FeatureRecency)
	assert.Error(t, err)

	s, err := NewFeatureSchema(FeatureMonetary, FeatureRecency)
	assert.NoError(t, err)
	assert.True(t, s.Equal([]string{FeatureMonetary, FeatureRecency}))
	assert.False(t, s.Equal([]string{FeatureRecency, FeatureMonetary}))
}

func TestCustomerFeatureRow_Feature(t *testing.T) {
	row := CustomerFeatureRow{
		CustomerID:     "1",
		Recency:        3,
		Frequency:      2,
		Monetary:       decimal.RequireFromString("10.50"),
		TotalQuantity:  7,
		UniqueProducts: 4,
	}

	for name, want := range map[string]float64{
		FeatureRecency: 3, FeatureFrequency: 2, FeatureMonetary: 10.5,
		FeatureTotalQuantity: 7, FeatureUniqueProducts: 4,
	} {
		got, ok := row.Feature(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := row.Feature("Tenure")
	assert.False(t, ok)
}

func TestCompareCustomerIDs_NumericAware(t *testing.T) {
	ids := []string{"120", "9", "A-1", "10"}
	sort.Slice(ids, func(i, j int) bool { return CompareCustomerIDs(ids[i], ids[j]) < 0 })
	assert.Equal(t, []string{"9", "10", "120", "A-1"}, ids)
}

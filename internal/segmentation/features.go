package segmentation

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

const snapshotOffset = 24 * time.Hour

type rfmAggregate struct {
	lastPurchase time.Time
	invoices     map[string]struct{}
	monetary     decimal.Decimal
}

type behaviourAggregate struct {
	quantity int64
	products map[string]struct{}
}

// FeatureBuilder aggregates cleaned transactions into one row per customer.
type FeatureBuilder struct{}

// NewFeatureBuilder creates a new feature builder
func NewFeatureBuilder() *FeatureBuilder {
	return &FeatureBuilder{}
}

// SnapshotInstant returns the latest invoice time plus one day.
func SnapshotInstant(rows []entities.CleanedTransaction) time.Time {
	var latest time.Time
	for _, row := range rows {
		if row.InvoiceTime.After(latest) {
			latest = row.InvoiceTime
		}
	}
	return latest.Add(snapshotOffset)
}

// Build computes Recency, Frequency, Monetary, TotalQuantity and
// UniqueProducts per customer. Rows are returned ordered by CustomerID.
func (b *FeatureBuilder) Build(rows []entities.CleanedTransaction) ([]entities.CustomerFeatureRow, error) {
	if len(rows) == 0 {
		return nil, apperrors.NewEmptyResultError("no cleaned transactions to aggregate")
	}

	snapshot := SnapshotInstant(rows)
	rfm := aggregateRFM(rows)
	behaviour := aggregateBehaviour(rows)

	features := make([]entities.CustomerFeatureRow, 0, len(rfm))
	for id, r := range rfm {
		row := entities.CustomerFeatureRow{
			CustomerID: id,
			Recency:    int(snapshot.Sub(r.lastPurchase) / snapshotOffset),
			Frequency:  len(r.invoices),
			Monetary:   r.monetary,
		}
		// left join: a customer missing from the behavioural aggregate keeps zero values
		if bh, ok := behaviour[id]; ok {
			row.TotalQuantity = bh.quantity
			row.UniqueProducts = len(bh.products)
		}
		features = append(features, row)
	}

	slices.SortFunc(features, func(a, b entities.CustomerFeatureRow) int {
		return entities.CompareCustomerIDs(a.CustomerID, b.CustomerID)
	})
	if err := checkUniqueCustomers(features); err != nil {
		return nil, err
	}
	return features, nil
}

func aggregateRFM(rows []entities.CleanedTransaction) map[string]*rfmAggregate {
	out := make(map[string]*rfmAggregate)
	for _, row := range rows {
		agg, ok := out[row.CustomerID]
		if !ok {
			agg = &rfmAggregate{invoices: make(map[string]struct{})}
			out[row.CustomerID] = agg
		}
		if row.InvoiceTime.After(agg.lastPurchase) {
			agg.lastPurchase = row.InvoiceTime
		}
		agg.invoices[row.InvoiceNo] = struct{}{}
		agg.monetary = agg.monetary.Add(row.TotalPrice)
	}
	return out
}

func aggregateBehaviour(rows []entities.CleanedTransaction) map[string]*behaviourAggregate {
	out := make(map[string]*behaviourAggregate)
	for _, row := range rows {
		agg, ok := out[row.CustomerID]
		if !ok {
			agg = &behaviourAggregate{products: make(map[string]struct{})}
			out[row.CustomerID] = agg
		}
		agg.quantity += row.Quantity
		agg.products[row.StockCode] = struct{}{}
	}
	return out
}

// checkUniqueCustomers expects rows sorted by CustomerID.
func checkUniqueCustomers(rows []entities.CustomerFeatureRow) error {
	for i := 1; i < len(rows); i++ {
		if rows[i].CustomerID == rows[i-1].CustomerID {
			return apperrors.NewInternalError(
				fmt.Sprintf("duplicate feature row for customer %s", rows[i].CustomerID), nil)
		}
	}
	return nil
}

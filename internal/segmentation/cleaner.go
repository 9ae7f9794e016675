// Package segmentation implements the batch inference pipeline: cleaning raw
// transactions, aggregating customer features, projecting them onto a fitted
// model's schema, assigning clusters and deriving business labels.
package segmentation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

// DefaultDateLayouts are tried in order when parsing InvoiceDate.
var DefaultDateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
}

// CleanStats counts what each cleaning rule removed.
type CleanStats struct {
	RowsRead        int `json:"rows_read"`
	MissingCustomer int `json:"missing_customer"`
	Cancelled       int `json:"cancelled"`
	NonPositive     int `json:"non_positive"`
	RowsKept        int `json:"rows_kept"`
}

// Cleaner reduces raw transaction rows to the analyzable subset.
type Cleaner struct {
	layouts []string
}

// CleanerOption configures a Cleaner.
type CleanerOption func(*Cleaner)

// WithDateLayouts replaces the accepted InvoiceDate layouts.
func WithDateLayouts(layouts ...string) CleanerOption {
	return func(c *Cleaner) {
		if len(layouts) > 0 {
			c.layouts = append([]string(nil), layouts...)
		}
	}
}

// NewCleaner creates a new cleaner
func NewCleaner(opts ...CleanerOption) *Cleaner {
	c := &Cleaner{layouts: DefaultDateLayouts}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean applies the cleaning rules and returns the surviving rows.
func (c *Cleaner) Clean(rows []entities.TransactionRow) ([]entities.CleanedTransaction, error) {
	cleaned, _, err := c.CleanWithStats(rows)
	return cleaned, err
}

// CleanWithStats is Clean that also reports per-rule drop counts.
//
// Rules run in a fixed order over the whole set: rows without a customer are
// dropped, every remaining InvoiceDate is parsed, cancellations are dropped,
// then non-positive quantities and prices. The input slice is not modified.
func (c *Cleaner) CleanWithStats(rows []entities.TransactionRow) ([]entities.CleanedTransaction, CleanStats, error) {
	stats := CleanStats{RowsRead: len(rows)}

	withCustomer := make([]entities.TransactionRow, 0, len(rows))
	for _, row := range rows {
		if !row.HasCustomer() {
			stats.MissingCustomer++
			continue
		}
		withCustomer = append(withCustomer, row)
	}

	times := make([]time.Time, len(withCustomer))
	for i, row := range withCustomer {
		t, err := c.parseDate(row.InvoiceDate)
		if err != nil {
			return nil, stats, err
		}
		times[i] = t
	}

	cleaned := make([]entities.CleanedTransaction, 0, len(withCustomer))
	for i, row := range withCustomer {
		if row.IsCancellation() {
			stats.Cancelled++
			continue
		}
		if row.Quantity <= 0 || !row.UnitPrice.IsPositive() {
			stats.NonPositive++
			continue
		}
		cleaned = append(cleaned, entities.CleanedTransaction{
			TransactionRow: row,
			InvoiceTime:    times[i],
			TotalPrice:     decimal.NewFromInt(row.Quantity).Mul(row.UnitPrice),
		})
	}
	stats.RowsKept = len(cleaned)

	if len(cleaned) == 0 {
		return nil, stats, apperrors.NewEmptyResultError("no transactions left after cleaning")
	}
	return cleaned, stats, nil
}

func (c *Cleaner) parseDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value != "" {
		for _, layout := range c.layouts {
			if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, apperrors.NewParseError("InvoiceDate", raw, nil)
}

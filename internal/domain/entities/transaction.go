package entities

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CancellationPrefix marks an invoice number as a cancelled transaction.
const CancellationPrefix = "C"

// TransactionRow is one raw line of transaction history as supplied by the
// uploader or the transactions table. InvoiceDate is kept as the literal
// value; parsing it is part of cleaning.
type TransactionRow struct {
	InvoiceNo   string          `json:"invoice_no"`
	StockCode   string          `json:"stock_code"`
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	InvoiceDate string          `json:"invoice_date"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CustomerID  string          `json:"customer_id"`
}

// HasCustomer reports whether the row carries a customer identifier.
func (r TransactionRow) HasCustomer() bool {
	return strings.TrimSpace(r.CustomerID) != ""
}

// IsCancellation reports whether the invoice number denotes a cancellation.
func (r TransactionRow) IsCancellation() bool {
	return strings.HasPrefix(r.InvoiceNo, CancellationPrefix)
}

// CleanedTransaction is a transaction that passed cleaning.
// Quantity > 0, UnitPrice > 0, customer present, not a cancellation.
type CleanedTransaction struct {
	TransactionRow
	InvoiceTime time.Time       `json:"invoice_time"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// NormalizeCustomerID strips surrounding whitespace and the ".0" suffix that
// spreadsheet exports add to numeric identifiers ("17850.0" -> "17850").
func NormalizeCustomerID(raw string) string {
	id := strings.TrimSpace(raw)
	if strings.EqualFold(id, "nan") || strings.EqualFold(id, "null") {
		return ""
	}
	if i := strings.IndexByte(id, '.'); i > 0 && strings.Trim(id[i+1:], "0") == "" && isDigits(id[:i]) {
		return id[:i]
	}
	return id
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

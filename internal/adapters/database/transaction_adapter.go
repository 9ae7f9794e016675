package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/shopspring/decimal"
	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	"github.com/zatekoja/retailsegmentation/internal/domain/repositories"
	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// TransactionAdapter reads raw transactions from a PostgreSQL or MySQL table
type TransactionAdapter struct {
	conn  *sql.DB
	db    *goqu.Database
	table string
}

// NewTransactionAdapter creates a transaction source. dialect is "postgres"
// or "mysql"; table must be a plain identifier.
func NewTransactionAdapter(conn *sql.DB, dialect, table string) (repositories.TransactionRepository, error) {
	if dialect != "postgres" && dialect != "mysql" {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported transaction source dialect %q", dialect))
	}
	if !tableNamePattern.MatchString(table) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid transactions table name %q", table))
	}
	return &TransactionAdapter{
		conn:  conn,
		db:    goqu.New(dialect, conn),
		table: table,
	}, nil
}

// List returns transactions whose invoice_date falls in [Since, Until)
func (a *TransactionAdapter) List(ctx context.Context, filter entities.TransactionFilter) ([]entities.TransactionRow, error) {
	ds := a.db.Select(
		"invoice_no", "stock_code", "description", "quantity",
		"invoice_date", "unit_price", "customer_id",
	).From(a.table)

	if filter.Since != nil {
		ds = ds.Where(goqu.C("invoice_date").Gte(filter.Since.UTC()))
	}
	if filter.Until != nil {
		ds = ds.Where(goqu.C("invoice_date").Lt(filter.Until.UTC()))
	}
	ds = ds.Order(goqu.C("invoice_date").Asc(), goqu.C("invoice_no").Asc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build transactions query", err)
	}

	rows, err := a.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to query transactions", err)
	}
	defer rows.Close()

	var out []entities.TransactionRow
	for rows.Next() {
		var (
			row         entities.TransactionRow
			description sql.NullString
			customerID  sql.NullString
			invoiceDate time.Time
			unitPrice   decimal.Decimal
		)
		if err := rows.Scan(
			&row.InvoiceNo,
			&row.StockCode,
			&description,
			&row.Quantity,
			&invoiceDate,
			&unitPrice,
			&customerID,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan transaction", err)
		}
		row.Description = description.String
		row.InvoiceDate = invoiceDate.UTC().Format(time.RFC3339)
		row.UnitPrice = unitPrice
		row.CustomerID = entities.NormalizeCustomerID(customerID.String)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewExternalError("failed to read transactions", err)
	}

	return out, nil
}

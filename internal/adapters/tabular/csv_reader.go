// Package tabular reads transaction files and writes segmented customer
// tables as CSV.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

// Mandatory transaction columns.
const (
	ColInvoiceNo   = "InvoiceNo"
	ColStockCode   = "StockCode"
	ColDescription = "Description"
	ColQuantity    = "Quantity"
	ColInvoiceDate = "InvoiceDate"
	ColUnitPrice   = "UnitPrice"
	ColCustomerID  = "CustomerID"
)

var transactionColumns = []string{
	ColInvoiceNo, ColStockCode, ColDescription, ColQuantity, ColInvoiceDate, ColUnitPrice, ColCustomerID,
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadTransactionsFile reads a transaction file from disk.
func LoadTransactionsFile(path string) ([]entities.TransactionRow, error) {
	if err := CheckFileName(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewFileFormatError("cannot open "+filepath.Base(path), err)
	}
	defer f.Close()

	return ReadTransactions(f)
}

// CheckFileName accepts .csv names. Spreadsheets must be converted
// upstream; every other extension is rejected.
func CheckFileName(name string) error {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv":
		return nil
	case ".xlsx", ".xls":
		return apperrors.NewFileFormatError(
			fmt.Sprintf("spreadsheet input (%s) is not supported, export the sheet as CSV", ext), nil)
	default:
		return apperrors.NewFileFormatError(
			fmt.Sprintf("unsupported file format %q, expected .csv", ext), nil)
	}
}

// ReadTransactions parses a CSV transaction table with a header row. Extra
// columns are ignored. Input that is not valid UTF-8 is decoded as
// ISO-8859-1.
func ReadTransactions(r io.Reader) ([]entities.TransactionRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewFileFormatError("cannot read transaction file", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		if data, err = charmap.ISO8859_1.NewDecoder().Bytes(data); err != nil {
			return nil, apperrors.NewFileFormatError("transaction file has an unknown text encoding", err)
		}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.NewFileFormatError("transaction file is empty", nil)
	}
	if err != nil {
		return nil, apperrors.NewFileFormatError("transaction file is not valid CSV", err)
	}

	index, err := indexColumns(header, transactionColumns)
	if err != nil {
		return nil, err
	}

	var rows []entities.TransactionRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewFileFormatError("transaction file is not valid CSV", err)
		}
		if blankRecord(record) {
			continue
		}
		line, _ := reader.FieldPos(0)

		row, err := parseTransaction(record, index, line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseTransaction(record []string, index map[string]int, line int) (entities.TransactionRow, error) {
	get := func(col string) string {
		if i := index[col]; i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	quantity, err := parseQuantity(get(ColQuantity))
	if err != nil {
		return entities.TransactionRow{}, apperrors.NewLineParseError(line, ColQuantity, get(ColQuantity), err)
	}
	price, err := decimal.NewFromString(get(ColUnitPrice))
	if err != nil {
		return entities.TransactionRow{}, apperrors.NewLineParseError(line, ColUnitPrice, get(ColUnitPrice), err)
	}

	return entities.TransactionRow{
		InvoiceNo:   get(ColInvoiceNo),
		StockCode:   get(ColStockCode),
		Description: get(ColDescription),
		Quantity:    quantity,
		InvoiceDate: get(ColInvoiceDate),
		UnitPrice:   price,
		CustomerID:  entities.NormalizeCustomerID(get(ColCustomerID)),
	}, nil
}

// parseQuantity accepts integers and integral floats such as "6.0".
func parseQuantity(s string) (int64, error) {
	if q, err := strconv.ParseInt(s, 10, 64); err == nil {
		return q, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("quantity %v is not a whole number", f)
	}
	// float64(math.MaxInt64) rounds up to 2^63, so the upper bound is exclusive.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("quantity %v is out of range", f)
	}
	return int64(f), nil
}

// indexColumns maps each required column to its header position and fails
// with every missing column at once.
func indexColumns(header, required []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewMissingColumnsError(missing)
	}
	return index, nil
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

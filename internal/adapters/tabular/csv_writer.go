package tabular

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

// ExportFileName is the suggested name for a downloaded result table.
const ExportFileName = "segmented_customers.csv"

// CustomerColumns is the header of an exported customer table.
var CustomerColumns = []string{
	"CustomerID",
	entities.FeatureRecency,
	entities.FeatureFrequency,
	entities.FeatureMonetary,
	entities.FeatureTotalQuantity,
	entities.FeatureUniqueProducts,
	"Cluster",
	"Segment Name",
}

// WriteCustomers writes the scored customer table as UTF-8 CSV with a header.
func WriteCustomers(w io.Writer, customers []entities.ScoredCustomer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CustomerColumns); err != nil {
		return err
	}
	for _, c := range customers {
		record := []string{
			c.CustomerID,
			strconv.Itoa(c.Recency),
			strconv.Itoa(c.Frequency),
			c.Monetary.String(),
			strconv.FormatInt(c.TotalQuantity, 10),
			strconv.Itoa(c.UniqueProducts),
			strconv.Itoa(c.Cluster),
			string(c.Segment),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCustomers parses a table produced by WriteCustomers.
func ReadCustomers(r io.Reader) ([]entities.ScoredCustomer, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.NewFileFormatError("customer file is empty", nil)
	}
	if err != nil {
		return nil, apperrors.NewFileFormatError("customer file is not valid CSV", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], string(utf8BOM))
	}
	index, err := indexColumns(header, CustomerColumns)
	if err != nil {
		return nil, err
	}

	var customers []entities.ScoredCustomer
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewFileFormatError("customer file is not valid CSV", err)
		}
		line, _ := reader.FieldPos(0)
		p := fieldParser{record: record, index: index, line: line}

		c := entities.ScoredCustomer{
			CustomerFeatureRow: entities.CustomerFeatureRow{
				CustomerID:     p.str("CustomerID"),
				Recency:        p.integer(entities.FeatureRecency),
				Frequency:      p.integer(entities.FeatureFrequency),
				Monetary:       p.decimal(entities.FeatureMonetary),
				TotalQuantity:  int64(p.integer(entities.FeatureTotalQuantity)),
				UniqueProducts: p.integer(entities.FeatureUniqueProducts),
			},
			Cluster: p.integer("Cluster"),
			Segment: entities.SegmentLabel(p.str("Segment Name")),
		}
		if p.err != nil {
			return nil, p.err
		}
		customers = append(customers, c)
	}
	return customers, nil
}

// fieldParser keeps the first parse failure of a record.
type fieldParser struct {
	record []string
	index  map[string]int
	line   int
	err    error
}

func (p *fieldParser) str(col string) string {
	if i := p.index[col]; i < len(p.record) {
		return strings.TrimSpace(p.record[i])
	}
	return ""
}

func (p *fieldParser) integer(col string) int {
	if p.err != nil {
		return 0
	}
	v, err := strconv.Atoi(p.str(col))
	if err != nil {
		p.err = apperrors.NewLineParseError(p.line, col, p.str(col), err)
	}
	return v
}

func (p *fieldParser) decimal(col string) decimal.Decimal {
	if p.err != nil {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(p.str(col))
	if err != nil {
		p.err = apperrors.NewLineParseError(p.line, col, p.str(col), err)
	}
	return v
}

package segmentation

import (
	"slices"

	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	"github.com/zatekoja/retailsegmentation/internal/model"
	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

// FeatureTable is the customer feature table addressed by column name.
// Columns may be a subset of the numeric customer features, e.g. when an
// upstream pipeline does not produce every feature.
type FeatureTable struct {
	rows    []entities.CustomerFeatureRow
	columns []string
}

// NewFeatureTable exposes every numeric customer feature as a column.
func NewFeatureTable(rows []entities.CustomerFeatureRow) *FeatureTable {
	return &FeatureTable{rows: rows, columns: entities.CustomerFeatureNames()}
}

// Columns returns the column names in table order.
func (t *FeatureTable) Columns() []string {
	return slices.Clone(t.columns)
}

// Rows returns the underlying customer rows.
func (t *FeatureTable) Rows() []entities.CustomerFeatureRow {
	return t.rows
}

func (t *FeatureTable) Len() int {
	return len(t.rows)
}

// WithoutColumns returns a table that no longer exposes the named columns.
func (t *FeatureTable) WithoutColumns(names ...string) *FeatureTable {
	columns := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if !slices.Contains(names, c) {
			columns = append(columns, c)
		}
	}
	return &FeatureTable{rows: t.rows, columns: columns}
}

func (t *FeatureTable) hasColumn(name string) bool {
	return slices.Contains(t.columns, name)
}

// Project selects the schema's features from the table, in schema order.
// A schema feature the table does not expose is a SchemaMismatchError that
// lists every missing field, plus the table columns the schema does not use.
func Project(t *FeatureTable, schema entities.FeatureSchema) (model.Matrix, error) {
	var missing, extra []string
	for _, f := range schema.Features {
		if !t.hasColumn(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		for _, c := range t.columns {
			if !slices.Contains(schema.Features, c) {
				extra = append(extra, c)
			}
		}
		return model.Matrix{}, apperrors.NewSchemaMismatchError(missing, extra)
	}

	m := model.Matrix{
		Columns: slices.Clone(schema.Features),
		Rows:    make([][]float64, len(t.rows)),
	}
	for i, row := range t.rows {
		vec := make([]float64, len(schema.Features))
		for j, f := range schema.Features {
			v, ok := row.Feature(f)
			if !ok {
				return model.Matrix{}, apperrors.NewSchemaMismatchError([]string{f}, nil)
			}
			vec[j] = v
		}
		m.Rows[i] = vec
	}
	return m, nil
}

package model

import (
	"fmt"

	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

// Matrix is a dense feature matrix whose columns are named. Rows[i][j] is
// the value of Columns[j] for row i.
type Matrix struct {
	Columns []string
	Rows    [][]float64
}

// checkColumns asserts got lists exactly the fitted features, in order.
func checkColumns(got, want []string) error {
	if len(got) != len(want) {
		missing, extra := diffColumns(got, want)
		return apperrors.NewSchemaMismatchError(missing, extra)
	}
	for i := range want {
		if got[i] != want[i] {
			return apperrors.NewColumnOrderError(i, got[i], want[i])
		}
	}
	return nil
}

func checkRows(m Matrix) error {
	for i, row := range m.Rows {
		if len(row) != len(m.Columns) {
			return apperrors.NewInternalError(
				fmt.Sprintf("feature row %d has %d values for %d columns", i, len(row), len(m.Columns)), nil)
		}
	}
	return nil
}

func diffColumns(got, want []string) (missing, extra []string) {
	have := make(map[string]struct{}, len(got))
	for _, c := range got {
		have[c] = struct{}{}
	}
	need := make(map[string]struct{}, len(want))
	for _, c := range want {
		need[c] = struct{}{}
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}
	for _, c := range got {
		if _, ok := need[c]; !ok {
			extra = append(extra, c)
		}
	}
	return missing, extra
}

package model

import (
	"fmt"
)

// Scaler is an element-wise affine transform fitted on the training
// feature distribution.
type Scaler interface {
	// Features returns the column order the scaler was fitted with.
	Features() []string
	// Transform scales m; m.Columns must equal Features().
	Transform(m Matrix) (Matrix, error)
}

// StandardScaler applies (x - mean) / scale per column.
type StandardScaler struct {
	features []string
	mean     []float64
	scale    []float64
}

// NewStandardScaler creates a scaler. Zero scale entries (constant training
// columns) are treated as 1.
func NewStandardScaler(features []string, mean, scale []float64) (*StandardScaler, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("scaler has no features")
	}
	if len(mean) != len(features) || len(scale) != len(features) {
		return nil, fmt.Errorf("scaler has %d features but %d means and %d scales", len(features), len(mean), len(scale))
	}
	s := &StandardScaler{
		features: append([]string(nil), features...),
		mean:     append([]float64(nil), mean...),
		scale:    make([]float64, len(scale)),
	}
	for i, v := range scale {
		if v == 0 {
			v = 1
		}
		s.scale[i] = v
	}
	return s, nil
}

// Features returns the fitted column order.
func (s *StandardScaler) Features() []string {
	return append([]string(nil), s.features...)
}

// Transform returns a new scaled matrix; m is left untouched.
func (s *StandardScaler) Transform(m Matrix) (Matrix, error) {
	if err := checkColumns(m.Columns, s.features); err != nil {
		return Matrix{}, err
	}
	if err := checkRows(m); err != nil {
		return Matrix{}, err
	}

	out := Matrix{
		Columns: append([]string(nil), m.Columns...),
		Rows:    make([][]float64, len(m.Rows)),
	}
	for i, row := range m.Rows {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.mean[j]) / s.scale[j]
		}
		out.Rows[i] = scaled
	}
	return out, nil
}

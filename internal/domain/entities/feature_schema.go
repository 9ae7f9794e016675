package entities

import (
	"fmt"
)

// FeatureSchema is the ordered list of features a fitted model expects.
// Order is significant: position i of every feature vector is Features[i].
type FeatureSchema struct {
	Features []string `json:"features"`
}

// NewFeatureSchema builds and validates a schema.
func NewFeatureSchema(features ...string) (FeatureSchema, error) {
	s := FeatureSchema{Features: append([]string(nil), features...)}
	if err := s.Validate(); err != nil {
		return FeatureSchema{}, err
	}
	return s, nil
}

// Validate checks the schema is a non-empty, duplicate-free subset of the
// numeric customer features.
func (s FeatureSchema) Validate() error {
	if len(s.Features) == 0 {
		return fmt.Errorf("feature schema is empty")
	}
	seen := make(map[string]struct{}, len(s.Features))
	for i, f := range s.Features {
		if !IsCustomerFeature(f) {
			return fmt.Errorf("feature %d: unknown feature %q", i, f)
		}
		if _, dup := seen[f]; dup {
			return fmt.Errorf("feature %d: duplicate feature %q", i, f)
		}
		seen[f] = struct{}{}
	}
	return nil
}

// Len returns the number of features.
func (s FeatureSchema) Len() int {
	return len(s.Features)
}

// Equal reports whether both schemas list the same features in the same order.
func (s FeatureSchema) Equal(other []string) bool {
	if len(s.Features) != len(other) {
		return false
	}
	for i := range s.Features {
		if s.Features[i] != other[i] {
			return false
		}
	}
	return true
}

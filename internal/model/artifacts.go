// Package model holds the fitted scaler and clustering model used at
// inference time. Artifacts are immutable once constructed and safe to
// share between concurrent predictions.
package model

import (
	"fmt"

	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

// Artifacts bundles a scaler, a clusterer and the feature schema from one
// training run.
type Artifacts struct {
	schema    entities.FeatureSchema
	scaler    Scaler
	clusterer Clusterer
	version   string
}

// NewArtifacts validates that scaler and clusterer were fitted on the
// schema's exact column order.
func NewArtifacts(schema entities.FeatureSchema, scaler Scaler, clusterer Clusterer, version string) (*Artifacts, error) {
	if err := schema.Validate(); err != nil {
		return nil, apperrors.NewArtifactLoadError("invalid feature schema", err)
	}
	if scaler == nil || clusterer == nil {
		return nil, apperrors.NewArtifactLoadError("scaler and clusterer are both required", nil)
	}
	if !schema.Equal(scaler.Features()) {
		return nil, apperrors.NewArtifactLoadError(
			fmt.Sprintf("scaler features %v do not match schema %v", scaler.Features(), schema.Features), nil)
	}
	if !schema.Equal(clusterer.Features()) {
		return nil, apperrors.NewArtifactLoadError(
			fmt.Sprintf("clusterer features %v do not match schema %v", clusterer.Features(), schema.Features), nil)
	}
	if clusterer.K() < 1 {
		return nil, apperrors.NewArtifactLoadError("clusterer has no clusters", nil)
	}

	return &Artifacts{
		schema:    entities.FeatureSchema{Features: append([]string(nil), schema.Features...)},
		scaler:    scaler,
		clusterer: clusterer,
		version:   version,
	}, nil
}

// Schema returns a copy of the feature schema.
func (a *Artifacts) Schema() entities.FeatureSchema {
	return entities.FeatureSchema{Features: append([]string(nil), a.schema.Features...)}
}

func (a *Artifacts) Scaler() Scaler {
	return a.scaler
}

func (a *Artifacts) Clusterer() Clusterer {
	return a.clusterer
}

// Version identifies the training run the bundle came from.
func (a *Artifacts) Version() string {
	return a.version
}

// K returns the number of clusters.
func (a *Artifacts) K() int {
	return a.clusterer.K()
}

package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

// Artifact file names inside a bundle directory.
const (
	ScalerFile    = "scaler.json"
	ClustererFile = "kmeans.json"
	SchemaFile    = "feature_schema.json"
)

type scalerFile struct {
	TrainingRun string    `json:"training_run"`
	Features    []string  `json:"features"`
	Mean        []float64 `json:"mean"`
	Scale       []float64 `json:"scale"`
}

type clustererFile struct {
	TrainingRun string      `json:"training_run"`
	Features    []string    `json:"features"`
	Centroids   [][]float64 `json:"centroids"`
}

type schemaFile struct {
	TrainingRun string   `json:"training_run"`
	Features    []string `json:"features"`
}

// LoadDir reads scaler.json, kmeans.json and feature_schema.json from dir.
//
// Scaler and clusterer may omit their feature list, in which case the
// schema's order is assumed. If any file carries a training_run tag, all
// three must carry the same tag.
func LoadDir(dir string) (*Artifacts, error) {
	hash := sha256.New()

	var schemaDoc schemaFile
	if err := readArtifact(dir, SchemaFile, &schemaDoc, hash); err != nil {
		return nil, err
	}
	var scalerDoc scalerFile
	if err := readArtifact(dir, ScalerFile, &scalerDoc, hash); err != nil {
		return nil, err
	}
	var clustererDoc clustererFile
	if err := readArtifact(dir, ClustererFile, &clustererDoc, hash); err != nil {
		return nil, err
	}

	schema, err := entities.NewFeatureSchema(schemaDoc.Features...)
	if err != nil {
		return nil, apperrors.NewArtifactLoadError(SchemaFile+": invalid schema", err)
	}

	version, err := trainingRun(schemaDoc.TrainingRun, scalerDoc.TrainingRun, clustererDoc.TrainingRun)
	if err != nil {
		return nil, err
	}
	if version == "" {
		version = "sha256:" + hex.EncodeToString(hash.Sum(nil))[:12]
	}

	scalerFeatures := scalerDoc.Features
	if len(scalerFeatures) == 0 {
		scalerFeatures = schema.Features
	}
	scaler, err := NewStandardScaler(scalerFeatures, scalerDoc.Mean, scalerDoc.Scale)
	if err != nil {
		return nil, apperrors.NewArtifactLoadError(ScalerFile, err)
	}

	clustererFeatures := clustererDoc.Features
	if len(clustererFeatures) == 0 {
		clustererFeatures = schema.Features
	}
	clusterer, err := NewKMeans(clustererFeatures, clustererDoc.Centroids)
	if err != nil {
		return nil, apperrors.NewArtifactLoadError(ClustererFile, err)
	}

	return NewArtifacts(schema, scaler, clusterer, version)
}

func readArtifact(dir, name string, v any, hash io.Writer) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return apperrors.NewArtifactLoadError("failed to read "+name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.NewArtifactLoadError("failed to parse "+name, err)
	}
	_, _ = hash.Write(data)
	return nil
}

func trainingRun(schema, scaler, clusterer string) (string, error) {
	if schema == "" && scaler == "" && clusterer == "" {
		return "", nil
	}
	if schema != scaler || schema != clusterer {
		return "", apperrors.NewArtifactLoadError(fmt.Sprintf(
			"artifacts come from different training runs (schema=%q scaler=%q clusterer=%q)",
			schema, scaler, clusterer), nil)
	}
	return schema, nil
}

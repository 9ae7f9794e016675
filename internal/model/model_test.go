package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

func TestStandardScaler_Transform(t *testing.T) {
	s, err := NewStandardScaler([]string{"Recency", "Monetary"}, []float64{10, 100}, []float64{2, 0})
	require.NoError(t, err)

	in := Matrix{Columns: []string{"Recency", "Monetary"}, Rows: [][]float64{{14, 103}}}
	out, err := s.Transform(in)
	require.NoError(t, err)

	// zero scale is treated as 1
	assert.Equal(t, [][]float64{{2, 3}}, out.Rows)
	assert.Equal(t, [][]float64{{14, 103}}, in.Rows, "input must not be mutated")
}

func TestStandardScaler_RejectsMisorderedColumns(t *testing.T) {
	s, err := NewStandardScaler([]string{"Recency", "Monetary"}, []float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)

	_, err = s.Transform(Matrix{Columns: []string{"Monetary", "Recency"}, Rows: [][]float64{{1, 2}}})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSchemaMismatch))

	_, err = s.Transform(Matrix{Columns: []string{"Recency"}, Rows: [][]float64{{1}}})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeSchemaMismatch, appErr.Type)
	assert.Equal(t, []string{"Monetary"}, appErr.Fields)
}

func TestStandardScaler_LengthMismatch(t *testing.T) {
	_, err := NewStandardScaler([]string{"Recency", "Monetary"}, []float64{0}, []float64{1, 1})
	assert.Error(t, err)
}

func TestKMeans_AssignNearestCentroid(t *testing.T) {
	k, err := NewKMeans([]string{"Recency", "Monetary"}, [][]float64{{0, 0}, {10, 10}, {0, 10}})
	require.NoError(t, err)

	got, err := k.Assign(Matrix{
		Columns: []string{"Recency", "Monetary"},
		Rows:    [][]float64{{1, 1}, {9, 11}, {-1, 8}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Equal(t, 3, k.K())
}

func TestKMeans_TieGoesToLowerIndex(t *testing.T) {
	k, err := NewKMeans([]string{"Recency"}, [][]float64{{-1}, {1}})
	require.NoError(t, err)

	got, err := k.Assign(Matrix{Columns: []string{"Recency"}, Rows: [][]float64{{0}}})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, got)
}

func TestKMeans_RejectsBadCentroids(t *testing.T) {
	_, err := NewKMeans([]string{"Recency", "Monetary"}, [][]float64{{1}})
	assert.Error(t, err)

	_, err = NewKMeans([]string{"Recency"}, nil)
	assert.Error(t, err)
}

func TestNewArtifacts_FeatureOrderMustMatchSchema(t *testing.T) {
	schema, _ := entities.NewFeatureSchema("Recency", "Monetary")
	scaler, _ := NewStandardScaler([]string{"Monetary", "Recency"}, []float64{0, 0}, []float64{1, 1})
	clusterer, _ := NewKMeans([]string{"Recency", "Monetary"}, [][]float64{{0, 0}})

	_, err := NewArtifacts(schema, scaler, clusterer, "v1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeArtifactLoad))
}

func TestLoadDir_Valid(t *testing.T) {
	a, err := LoadDir(filepath.Join("testdata", "valid"))
	require.NoError(t, err)

	assert.Equal(t, "2024-06-kmeans-k4", a.Version())
	assert.Equal(t, 4, a.K())
	assert.Equal(t, entities.CustomerFeatureNames(), a.Schema().Features)
}

func TestLoadDir_MissingFile(t *testing.T) {
	dir := copyBundle(t)
	require.NoError(t, os.Remove(filepath.Join(dir, ClustererFile)))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeArtifactLoad))
	assert.Contains(t, err.Error(), ClustererFile)
}

func TestLoadDir_CorruptJSON(t *testing.T) {
	dir := copyBundle(t)
	writeFile(t, dir, ScalerFile, `{"mean": [1, 2`)

	_, err := LoadDir(dir)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeArtifactLoad))
}

func TestLoadDir_TrainingRunSkew(t *testing.T) {
	dir := copyBundle(t)
	writeFile(t, dir, ClustererFile, `{
		"training_run": "2023-11-kmeans-k4",
		"centroids": [[0,0,0,0,0],[1,1,1,1,1]]
	}`)

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeArtifactLoad))
	assert.Contains(t, err.Error(), "different training runs")
}

func TestLoadDir_UntaggedBundleGetsContentVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, SchemaFile, `{"features": ["Recency", "Monetary"]}`)
	writeFile(t, dir, ScalerFile, `{"mean": [50, 1000], "scale": [20, 500]}`)
	writeFile(t, dir, ClustererFile, `{"centroids": [[-1, 1], [1, -1]]}`)

	a, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Contains(t, a.Version(), "sha256:")
	assert.Equal(t, []string{"Recency", "Monetary"}, a.Scaler().Features())
}

func TestLoadDir_DimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, SchemaFile, `{"features": ["Recency", "Monetary"]}`)
	writeFile(t, dir, ScalerFile, `{"mean": [50], "scale": [20]}`)
	writeFile(t, dir, ClustererFile, `{"centroids": [[-1, 1]]}`)

	_, err := LoadDir(dir)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeArtifactLoad))
}

func copyBundle(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{SchemaFile, ScalerFile, ClustererFile} {
		data, err := os.ReadFile(filepath.Join("testdata", "valid", name))
		require.NoError(t, err)
		writeFile(t, dir, name, string(data))
	}
	return dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

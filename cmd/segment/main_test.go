package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/retailsegmentation/internal/adapters/tabular"
	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	apperrors "github.com/zatekoja/retailsegmentation/pkg/errors"
)

const artifactsDir = "../../internal/model/testdata/valid"

const transactions = `InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID
1,A,Mug,2,2023-01-01 09:00:00,10,14000.0
2,B,Lamp,3,2023-09-08 09:00:00,10,15000
C3,B,Lamp,3,2023-09-08 10:00:00,10,15000
4,B,Lamp,3,2023-09-08 11:00:00,10,
`

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"input", []string{"-input", "tx.csv"}, false},
		{"database", []string{"-source", "db", "-since", "2011-01-01"}, false},
		{"nothing to read", []string{}, true},
		{"both inputs", []string{"-input", "tx.csv", "-source", "db"}, true},
		{"unknown source", []string{"-source", "s3"}, true},
		{"date filter on file", []string{"-input", "tx.csv", "-since", "2011-01-01"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args, &bytes.Buffer{})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildFilter(t *testing.T) {
	filter, err := buildFilter(&options{since: "2011-01-01", until: "2011-12-10", limit: 100})
	require.NoError(t, err)
	require.NotNil(t, filter.Since)
	require.NotNil(t, filter.Until)
	assert.Equal(t, "2011-01-01T00:00:00Z", filter.Since.Format("2006-01-02T15:04:05Z07:00"))
	assert.Equal(t, 100, filter.Limit)

	_, err = buildFilter(&options{until: "10/12/2011"})
	assert.Error(t, err)
}

func TestRun_FileToStdout(t *testing.T) {
	input := writeInput(t, "transactions.csv", transactions)
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"-input", input, "-artifacts", artifactsDir, "-quiet", "-summary"}, &stdout, &stderr)
	require.NoError(t, err)

	customers, err := tabular.ReadCustomers(&stdout)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, "14000", customers[0].CustomerID)
	assert.Equal(t, entities.SegmentAtRisk, customers[0].Segment)
	assert.Equal(t, "15000", customers[1].CustomerID)
	assert.Equal(t, entities.SegmentHighValueLoyal, customers[1].Segment)

	assert.Contains(t, stderr.String(), "High-Value Loyal")
	assert.Contains(t, stderr.String(), "MEAN MONETARY")
}

func TestRun_FileToOutputFile(t *testing.T) {
	input := writeInput(t, "transactions.csv", transactions)
	output := filepath.Join(t.TempDir(), tabular.ExportFileName)

	err := run(context.Background(), []string{"-input", input, "-artifacts", artifactsDir, "-output", output, "-quiet"}, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	customers, err := tabular.ReadCustomers(f)
	require.NoError(t, err)
	assert.Len(t, customers, 2)
}

func TestRun_ArtifactsDirFromConfig(t *testing.T) {
	input := writeInput(t, "transactions.csv", transactions)

	t.Setenv("ARTIFACTS_DIR", artifactsDir)
	err := run(context.Background(), []string{"-input", input, "-quiet"}, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)

	// the flag wins over the environment
	t.Setenv("ARTIFACTS_DIR", t.TempDir())
	err = run(context.Background(), []string{"-input", input, "-artifacts", artifactsDir, "-quiet"}, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)

	err = run(context.Background(), []string{"-input", input, "-quiet"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeArtifactLoad))
}

func TestRun_Errors(t *testing.T) {
	t.Run("spreadsheet input", func(t *testing.T) {
		input := writeInput(t, "transactions.xlsx", "PK")
		err := run(context.Background(), []string{"-input", input, "-artifacts", artifactsDir, "-quiet"}, &bytes.Buffer{}, &bytes.Buffer{})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeFileFormat))
	})

	t.Run("missing artifacts", func(t *testing.T) {
		input := writeInput(t, "transactions.csv", transactions)
		err := run(context.Background(), []string{"-input", input, "-artifacts", t.TempDir(), "-quiet"}, &bytes.Buffer{}, &bytes.Buffer{})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeArtifactLoad))
	})

	t.Run("nothing left after cleaning", func(t *testing.T) {
		input := writeInput(t, "transactions.csv",
			"InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID\nC1,A,x,1,2023-01-01,1,1\n")
		err := run(context.Background(), []string{"-input", input, "-artifacts", artifactsDir, "-quiet"}, &bytes.Buffer{}, &bytes.Buffer{})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeEmptyResult))
	})
}

package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorIncludesCause(t *testing.T) {
	err := NewArtifactLoadError("read scaler.json", fmt.Errorf("no such file"))
	assert.Equal(t, "ARTIFACT_LOAD: read scaler.json: no such file", err.Error())

	plain := NewEmptyResultError("no rows left")
	assert.Equal(t, "EMPTY_RESULT: no rows left", plain.Error())
}

func TestNewSchemaMismatchError_NamesFields(t *testing.T) {
	err := NewSchemaMismatchError([]string{"UniqueProducts"}, []string{"Tenure"})

	assert.Equal(t, ErrorTypeSchemaMismatch, err.Type)
	assert.Equal(t, []string{"UniqueProducts", "Tenure"}, err.Fields)
	assert.Contains(t, err.Message, "missing fields: UniqueProducts")
	assert.Contains(t, err.Message, "extra fields: Tenure")
}

func TestNewMissingColumnsError(t *testing.T) {
	err := NewMissingColumnsError([]string{"InvoiceNo", "CustomerID"})

	assert.Equal(t, ErrorTypeFileFormat, err.Type)
	assert.Equal(t, "missing mandatory columns: InvoiceNo, CustomerID", err.Message)
}

func TestNewParseError(t *testing.T) {
	err := NewParseError("InvoiceDate", "yesterday", nil)

	assert.Equal(t, ErrorTypeParse, err.Type)
	assert.Equal(t, []string{"InvoiceDate"}, err.Fields)
	assert.Contains(t, err.Message, `"yesterday"`)
}

func TestIsType_FollowsWrapChain(t *testing.T) {
	wrapped := fmt.Errorf("predict: %w", NewSchemaMismatchError([]string{"Monetary"}, nil))

	assert.True(t, IsType(wrapped, ErrorTypeSchemaMismatch))
	assert.False(t, IsType(wrapped, ErrorTypeParse))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeParse))

	appErr, ok := AsAppError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, []string{"Monetary"}, appErr.Fields)
}

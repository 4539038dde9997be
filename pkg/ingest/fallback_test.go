package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtractionAcceptsConformingJSON(t *testing.T) {
	raw := `{"entities":[{"name":"Acme Corp","entity_type":"ORG"}],"facts":[{"content":"a fact","fact_type":"assertion","confidence":0.9}]}`
	result, err := parseExtraction(raw)
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "Acme Corp", result.Entities[0].Name)
}

func TestParseExtractionRejectsEntityMissingRequiredField(t *testing.T) {
	raw := `{"entities":[{"name":"Acme Corp"}]}`
	_, err := parseExtraction(raw)
	assert.Error(t, err, "entity missing entity_type must fail validation, not silently unmarshal")
}

func TestParseExtractionAcceptsEmptyResult(t *testing.T) {
	result, err := parseExtraction("{}")
	require.NoError(t, err)
	assert.Empty(t, result.Entities)
	assert.Empty(t, result.Facts)
}

func TestParseExtractionRejectsFactMissingRequiredField(t *testing.T) {
	raw := `{"facts":[{"content":"a fact"}]}`
	_, err := parseExtraction(raw)
	assert.Error(t, err, "fact missing fact_type must fail validation")
}

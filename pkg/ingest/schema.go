package ingest

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
)

// ExtractedEntity is one entity in the extract-mode JSON document.
type ExtractedEntity struct {
	Name        string `json:"name" jsonschema:"required" validate:"required"`
	EntityType  string `json:"entity_type" jsonschema:"required" validate:"required"`
	Description string `json:"description,omitempty"`
}

type ExtractedFact struct {
	Content    string  `json:"content" jsonschema:"required" validate:"required"`
	FactType   string  `json:"fact_type" jsonschema:"required" validate:"required"`
	Confidence float64 `json:"confidence" jsonschema:"required"`
}

type ExtractedConcept struct {
	Term       string `json:"term" jsonschema:"required" validate:"required"`
	Definition string `json:"definition" jsonschema:"required" validate:"required"`
	Category   string `json:"category" jsonschema:"required" validate:"required"`
}

type ExtractedCase struct {
	CaseNumber   string `json:"case_number" jsonschema:"required" validate:"required"`
	CaseName     string `json:"case_name" jsonschema:"required" validate:"required"`
	Court        string `json:"court,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Status       string `json:"status,omitempty"`
}

type ExtractedRelation struct {
	SrcName  string `json:"src_name" jsonschema:"required" validate:"required"`
	DstName  string `json:"dst_name" jsonschema:"required" validate:"required"`
	Type     string `json:"type" jsonschema:"required" validate:"required"`
	SrcLabel string `json:"src_label" jsonschema:"required" validate:"required"`
	DstLabel string `json:"dst_label" jsonschema:"required" validate:"required"`
}

// ExtractionResult is the extract-mode JSON document shape. The validate
// tags mirror the jsonschema:"required" tags above on every string field
// (ExtractedFact.Confidence has none, so a missing confidence decodes as
// 0), so a
// value that decodes cleanly but omits a field the schema marks required
// (e.g. an entity object present in the JSON but missing entity_type) is
// still caught by extractionValidator.Struct in parseExtraction.
type ExtractionResult struct {
	Entities  []ExtractedEntity   `json:"entities" validate:"dive"`
	Facts     []ExtractedFact     `json:"facts" validate:"dive"`
	Concepts  []ExtractedConcept  `json:"concepts" validate:"dive"`
	Cases     []ExtractedCase     `json:"cases" validate:"dive"`
	Relations []ExtractedRelation `json:"relations" validate:"dive"`
}

var (
	extractionSchemaOnce sync.Once
	extractionSchema     map[string]any
)

// ExtractionSchema returns the JSON Schema for ExtractionResult, generated
// once via invopop/jsonschema and handed to the GenerativeModel's
// structured-output mode, so malformed model output is rejected before it
// ever reaches the graph.
func ExtractionSchema() map[string]any {
	extractionSchemaOnce.Do(func() {
		reflector := &jsonschema.Reflector{
			DoNotReference: true,
			ExpandedStruct: true,
		}
		schema := reflector.Reflect(&ExtractionResult{})
		raw, err := schema.MarshalJSON()
		if err != nil {
			panic("ingest: marshal extraction schema: " + err.Error())
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			panic("ingest: decode extraction schema: " + err.Error())
		}
		extractionSchema = m
	})
	return extractionSchema
}

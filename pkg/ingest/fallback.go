package ingest

import (
	"encoding/json"
	"regexp"

	"github.com/go-playground/validator"
	"github.com/kaptinlin/jsonrepair"
)

var extractionValidator = validator.New()

// parseExtraction repairs near-miss JSON from the generative model, decodes
// it into an ExtractionResult, and checks the result against the same
// required-field set ExtractionSchema() advertises to the model. Repair
// happens before validation: the model's raw text is never trusted
// directly, and JSON that decodes cleanly but omits a required field is
// rejected here rather than silently persisted with zero-value fields.
func parseExtraction(raw string) (ExtractionResult, error) {
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return ExtractionResult{}, err
	}
	var result ExtractionResult
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return ExtractionResult{}, err
	}
	if err := extractionValidator.Struct(result); err != nil {
		return ExtractionResult{}, err
	}
	return result, nil
}

var capitalizedSpan = regexp.MustCompile(`\b[A-Z][a-zA-Z]*(?:\s+[A-Z][a-zA-Z]*)*\b`)

// fallbackExtract is the deterministic, non-model-backed extraction path
// used when the model's response is not valid JSON conforming to the
// schema: capitalised token spans become candidate entities, no
// relationships, confidence 0.2.
func fallbackExtract(chunkText string) ExtractionResult {
	spans := capitalizedSpan.FindAllString(chunkText, -1)
	seen := make(map[string]bool, len(spans))

	var entities []ExtractedEntity
	for _, s := range spans {
		if seen[s] {
			continue
		}
		seen[s] = true
		entities = append(entities, ExtractedEntity{
			Name:       s,
			EntityType: "UNKNOWN",
		})
	}

	return ExtractionResult{
		Entities: entities,
		Facts: []ExtractedFact{{
			Content:    chunkText,
			FactType:   "unverified",
			Confidence: 0.2,
		}},
	}
}

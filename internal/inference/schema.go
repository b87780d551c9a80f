package inference

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lukasedel/docsorter/constants"
)

// BuildClassificationJSONSchema returns a JSON-Schema (draft 2020-12 subset)
// as a generic map. It is passed to the proxy as a structured-output
// constraint and also used locally to validate what came back.
func BuildClassificationJSONSchema() map[string]any {
	props := map[string]any{
		"target_box": map[string]any{
			"type": "string",
			"enum": constants.BoxesAsStringSlice(),
		},
		"confidence": map[string]any{
			"type": "string",
			"enum": constants.ConfidencesAsStringSlice(),
		},
		"reasoning":      map[string]any{"type": "string"},
		"insurer":        map[string]any{"type": "string"},
		"document_type":  map[string]any{"type": "string"},
		"insurance_type": map[string]any{"type": "string"},
		"document_date_iso": map[string]any{
			"type":    "string",
			"pattern": `^\d{4}(-\d{2}(-\d{2})?)?$`,
		},
		"date_granularity": map[string]any{
			"type": "string",
			"enum": []string{"day", "month", "year"},
		},
	}
	required := []string{"target_box", "confidence", "reasoning"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// SanitizeClassificationJSON cleans up a model payload that almost matches the
// classification schema: drops null/empty optionals, trims strings, removes
// unknown keys, and truncates over-precise dates. Returns the cleaned
// document plus the list of touched keys.
func SanitizeClassificationJSON(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var dropped []string

	allowed := map[string]struct{}{
		"target_box": {}, "confidence": {}, "reasoning": {},
		"insurer": {}, "document_type": {}, "insurance_type": {},
		"document_date_iso": {}, "date_granularity": {},
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	for k, v := range maps.Clone(m) {
		switch t := v.(type) {
		case nil:
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		default:
			// schema is all-strings; anything else is noise
			delete(m, k)
			dropped = append(dropped, k+"(type)")
		}
	}

	// Some models return full timestamps; keep only the date part.
	if v, ok := m["document_date_iso"].(string); ok {
		if idx := strings.IndexAny(v, "T "); idx > 0 {
			m["document_date_iso"] = v[:idx]
			dropped = append(dropped, "document_date_iso(truncated)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, dropped, nil
}

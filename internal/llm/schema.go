package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildRecordJSONSchema returns the JSON-Schema of a metadata reply. Types are
// permissive where models commonly vary (numbers as strings, a single tag as a
// string) but reject structurally wrong replies.
func BuildRecordJSONSchema() map[string]any {
	text := map[string]any{"type": []any{"string", "null"}}
	conf := map[string]any{"type": []any{"number", "string", "null"}}
	props := map[string]any{
		"title":                    text,
		"title_confidence":         conf,
		"summary":                  text,
		"summary_confidence":       conf,
		"subject":                  text,
		"subject_confidence":       conf,
		"creator":                  text,
		"creator_confidence":       conf,
		"creation_date":            text,
		"creation_date_confidence": conf,
		"importance":               conf,
		"importance_confidence":    conf,
		"tags": map[string]any{
			"type":  []any{"array", "string", "null"},
			"items": map[string]any{"type": []any{"string", "number"}},
		},
		"tags_confidence": map[string]any{
			"type":  []any{"array", "number", "string", "null"},
			"items": map[string]any{"type": []any{"number", "string"}},
		},
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

// BuildTagReplacementSchema accepts either a list of {original, replacement}
// objects or an object wrapping that list under "replacements".
func BuildTagReplacementSchema() map[string]any {
	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"original":    map[string]any{"type": "string"},
			"replacement": map[string]any{"type": []any{"string", "null"}},
		},
		"required": []any{"original"},
	}
	list := map[string]any{"type": "array", "items": item}
	return map[string]any{
		"anyOf": []any{
			list,
			map[string]any{
				"type":       "object",
				"properties": map[string]any{"replacements": list},
			},
		},
	}
}

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*jsonschema.Schema{}
)

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	key := string(b)

	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := schemaCache[key]; ok {
		return s, nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	schemaCache[key] = schema
	return schema, nil
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	schema, err := compileSchema(schemaMap)
	if err != nil {
		return err
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

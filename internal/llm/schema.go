package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/receipt-extractor/constants"
)

// BuildTransactionJSONSchema returns the canonical shape requested from the model.
// Money fields accept numbers or numeric strings because models emit both.
func BuildTransactionJSONSchema() map[string]any {
	money := map[string]any{
		"type":    []any{"number", "string"},
		"pattern": `^[^0-9-]*-?[0-9][0-9,]*(\.[0-9]+)?\s*$`,
		"minimum": 0,
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"vendor": map[string]any{"type": "string", "minLength": 1},
			"date":   map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":  map[string]any{"type": "string"},
						"price": money,
					},
					"required": []any{"name", "price"},
				},
			},
			"subtotal":         money,
			"tax":              money,
			"total":            money,
			"category":         map[string]any{"type": "string", "enum": toAny(constants.AsStringSlice())},
			"payment_method":   map[string]any{"type": "string"},
			"confidence_score": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
		},
		"required": []any{"vendor", "date", "total", "category", "confidence_score"},
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// CompileSchema compiles a schema map.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

var (
	transactionSchemaOnce sync.Once
	transactionSchema     *jsonschema.Schema
	transactionSchemaErr  error
)

// ValidateTransaction checks a decoded model object against the canonical schema.
// The validator panics on some numbers it cannot represent (e.g. 1e60000000);
// that is reported as a mismatch.
func ValidateTransaction(v any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("json does not match schema: unrepresentable value: %v", r)
		}
	}()
	transactionSchemaOnce.Do(func() {
		transactionSchema, transactionSchemaErr = CompileSchema(BuildTransactionJSONSchema())
	})
	if transactionSchemaErr != nil {
		return transactionSchemaErr
	}
	if err := transactionSchema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/AnTengye/contractrisk/model"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildReportJSONSchema returns the JSON Schema every model answer must match.
// Unknown fields are tolerated. The summary length is not constrained here:
// it is clamped to 5..7 after validation.
func BuildReportJSONSchema() map[string]any {
	str := map[string]any{"type": "string"}
	count := map[string]any{"type": "integer", "minimum": 0}

	cover := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"contract_type":  str,
			"analysis_date":  str,
			"pages":          map[string]any{"type": "integer"},
			"overall_status": map[string]any{"type": "string", "enum": model.AttentionLevels},
		},
		"required": []string{"overall_status"},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"cover":   cover,
			"summary": map[string]any{"type": "array", "items": str},
			"risk_map": arrayOf(map[string]any{
				"category":    map[string]any{"type": "string", "enum": model.RiskCategories},
				"description": str,
				"clause_ref":  str,
			}),
			"atypical": arrayOf(map[string]any{
				"quote": str,
				"note":  str,
			}),
			"contradictions": arrayOf(map[string]any{
				"description": str,
				"clause_refs": map[string]any{"type": "array", "items": str},
			}),
			"duties_balance": object(map[string]any{
				"customer_count": count,
				"provider_count": count,
				"note":           str,
			}),
			"needs_specialist": arrayOf(map[string]any{
				"item":       str,
				"clause_ref": str,
			}),
			"missing_sections": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "enum": model.MissingSectionValues},
			},
			"disclaimer": str,
		},
		"required": []string{
			"cover",
			"summary",
			"risk_map",
			"atypical",
			"contradictions",
			"duties_balance",
			"needs_specialist",
			"missing_sections",
		},
	}
}

// object requires every listed property.
func object(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for name := range props {
		required = append(required, name)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func arrayOf(itemProps map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": object(itemProps)}
}

// ReportValidator holds the compiled report schema. It is safe for
// concurrent use.
type ReportValidator struct {
	schema *jsonschema.Schema
}

func NewReportValidator() (*ReportValidator, error) {
	b, err := json.Marshal(BuildReportJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("report.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("report.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &ReportValidator{schema: schema}, nil
}

// Validate parses raw model output and checks it against the schema.
func (v *ReportValidator) Validate(raw string) (*model.Report, error) {
	data := []byte(raw)

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("json does not match schema: %w", err)
	}

	var report model.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &report, nil
}

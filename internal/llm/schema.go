package llm

// BuildSummaryJSONSchema returns the JSON Schema sent to the model and used to
// validate its answer locally.
func BuildSummaryJSONSchema() map[string]any {
	stringList := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string", "minLength": 1},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"summary":         map[string]any{"type": "string", "minLength": 1},
			"abnormal_values": stringList,
			"diagnosis":       map[string]any{"type": "string"},
			"recommendations": stringList,
		},
		"required": []string{"summary"},
	}
}

package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	summaryOnce   sync.Once
	summarySchema *jsonschema.Schema
	summaryErr    error
)

func compiledSummarySchema() (*jsonschema.Schema, error) {
	summaryOnce.Do(func() {
		b, err := json.Marshal(BuildSummaryJSONSchema())
		if err != nil {
			summaryErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("summary.json", bytes.NewReader(b)); err != nil {
			summaryErr = fmt.Errorf("add schema: %w", err)
			return
		}
		summarySchema, summaryErr = compiler.Compile("summary.json")
		if summaryErr != nil {
			summaryErr = fmt.Errorf("compile schema: %w", summaryErr)
		}
	})
	return summarySchema, summaryErr
}

// ValidateSummary checks a model answer against the summary schema. The
// schema is compiled on first use and shared afterwards.
func ValidateSummary(data []byte) error {
	schema, err := compiledSummarySchema()
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

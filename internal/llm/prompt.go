package llm

import (
	"fmt"
	"strings"
)

type PromptType string

const (
	PromptSimple       PromptType = "simple"
	PromptIntermediate PromptType = "intermediate"
	PromptDetailed     PromptType = "detailed"
	PromptCustom       PromptType = "custom"
)

// ParsePromptType accepts the known types; empty means simple.
func ParsePromptType(s string) (PromptType, error) {
	switch t := PromptType(strings.ToLower(strings.TrimSpace(s))); t {
	case PromptSimple, PromptIntermediate, PromptDetailed, PromptCustom:
		return t, nil
	case "":
		return PromptSimple, nil
	default:
		return "", fmt.Errorf("unknown prompt type %q", s)
	}
}

// BuildUserPrompt frames the report text for the chosen style. A custom type
// with no custom text falls back to the generic instruction.
func BuildUserPrompt(t PromptType, custom, text string) string {
	switch t {
	case PromptSimple:
		return "Simple, easy to understand summary:\n\n" + text
	case PromptIntermediate:
		return "Intermediate structured analysis covering diagnosis, parameters and therapies:\n\n" + text
	case PromptDetailed:
		return "Detailed medical analysis for specialists:\n\n" + text
	case PromptCustom:
		if c := strings.TrimSpace(custom); c != "" {
			return c + "\n\nReport text:\n" + text
		}
	}
	return "Summarize the following medical report:\n" + text
}

// BuildSystemPrompt asks for JSON matching BuildSummaryJSONSchema.
func BuildSystemPrompt() string {
	parts := []string{
		"You summarize medical reports for patients. Return ONLY JSON that matches the provided JSON Schema.",
		"'summary' is plain language, a few short paragraphs at most.",
		"List out-of-range values in 'abnormal_values', each with its value and reference range when visible.",
		"Put the main diagnosis in 'diagnosis' and the physician's recommendations in 'recommendations'.",
		"Never invent values that are not in the report. Never output null; omit fields that do not apply.",
		"Answer in the language of the report.",
	}
	return strings.Join(parts, " ")
}

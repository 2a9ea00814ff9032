package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject strips markdown fences and surrounding prose, returning the
// outermost {...} span. ok is false when no object is present.
func ExtractJSONObject(content string) (string, bool) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

var knownFields = map[string]bool{
	"summary": true, "abnormal_values": true, "diagnosis": true, "recommendations": true,
}

// SanitizeSummaryFields coerces common near-misses so the document can still
// validate: single strings become one-item lists, nulls and unknown keys are
// dropped. It returns the keys it changed.
func SanitizeSummaryFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var changed []string
	for k, v := range m {
		if !knownFields[k] || v == nil {
			delete(m, k)
			changed = append(changed, k)
		}
	}
	for _, k := range []string{"abnormal_values", "recommendations"} {
		switch t := m[k].(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				m[k] = []string{s}
			} else {
				delete(m, k)
			}
			changed = append(changed, k)
		case []any:
			items := make([]string, 0, len(t))
			for _, it := range t {
				if s := strings.TrimSpace(fmt.Sprint(it)); it != nil && s != "" {
					items = append(items, s)
				}
			}
			if len(items) != len(t) {
				changed = append(changed, k)
			}
			m[k] = items
		}
	}
	if d, ok := m["diagnosis"]; ok {
		if _, isStr := d.(string); !isStr {
			m["diagnosis"] = fmt.Sprint(d)
			changed = append(changed, "diagnosis")
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, changed, nil
}

// RenderSummary turns the structured answer into plain text for display and export.
func RenderSummary(s StructuredSummary) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(s.Summary))
	if len(s.AbnormalValues) > 0 {
		b.WriteString("\n\nAbnormal values:")
		for _, v := range s.AbnormalValues {
			b.WriteString("\n- " + v)
		}
	}
	if d := strings.TrimSpace(s.Diagnosis); d != "" {
		b.WriteString("\n\nDiagnosis: " + d)
	}
	if len(s.Recommendations) > 0 {
		b.WriteString("\n\nRecommendations:")
		for _, v := range s.Recommendations {
			b.WriteString("\n- " + v)
		}
	}
	return b.String()
}

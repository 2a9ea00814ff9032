package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/llm"
)

// maxPromptChars bounds the report text forwarded to the model.
const maxPromptChars = 60_000

// Summarize implements llm.Summarizer with a JSON-mode chat completion. Answers
// that fail the schema are sanitized once; prose answers are kept verbatim.
func (c *Client) Summarize(ctx context.Context, req llm.SummaryRequest) (llm.Summary, error) {
	logger := common.LoggerFrom(ctx, c.logger)
	start := time.Now()
	if strings.TrimSpace(req.Text) == "" {
		return llm.Summary{}, fmt.Errorf("summarize: %w: empty text", common.ErrInvalidInput)
	}

	text := req.Text
	if len(text) > maxPromptChars {
		text = strings.ToValidUTF8(text[:maxPromptChars], "")
	}
	schema := llm.BuildSummaryJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
			{"role": "user", "content": llm.BuildUserPrompt(req.PromptType, req.CustomPrompt, text)},
		},
	}
	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, logger)
	if err != nil {
		return llm.Summary{}, err
	}

	var cc struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return llm.Summary{}, fmt.Errorf("%w: decode response: %v", llm.ErrUpstream, err)
	}
	if len(cc.Choices) == 0 || strings.TrimSpace(cc.Choices[0].Message.Content) == "" {
		return llm.Summary{}, fmt.Errorf("%w: no choices in response", llm.ErrUpstream)
	}
	model := cc.Model
	if model == "" {
		model = c.cfg.Model
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)

	structured, err := c.parseStructured(content)
	if err != nil {
		logger.Warn("llm answer not structured; using prose", "error", err, "prompt_type", req.PromptType)
		return llm.Summary{Text: content, Model: model}, nil
	}

	logger.Info("llm summary ok",
		"model", model,
		"prompt_type", req.PromptType,
		"abnormal_values", len(structured.AbnormalValues),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.Summary{Text: llm.RenderSummary(structured), Structured: &structured, Model: model}, nil
}

func (c *Client) parseStructured(content string) (llm.StructuredSummary, error) {
	obj, ok := llm.ExtractJSONObject(content)
	if !ok {
		return llm.StructuredSummary{}, errors.New("no json object in answer")
	}
	doc := []byte(obj)
	if err := llm.ValidateSummary(doc); err != nil {
		cleaned, changed, sErr := llm.SanitizeSummaryFields(doc)
		if sErr != nil {
			return llm.StructuredSummary{}, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := llm.ValidateSummary(cleaned); vErr != nil {
			return llm.StructuredSummary{}, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.logger.Warn("llm answer sanitized", "changed", changed)
		doc = cleaned
	}
	var out llm.StructuredSummary
	if err := json.Unmarshal(doc, &out); err != nil {
		return llm.StructuredSummary{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	return out, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

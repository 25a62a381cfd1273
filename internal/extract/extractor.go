package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fieldset/fieldset-api/internal/content"
	"github.com/fieldset/fieldset-api/internal/models"
)

// Candidate is one evidence-backed field value reported for a single page.
type Candidate struct {
	FieldKey    string
	Value       any
	Confidence  float64
	Snippet     string
	Reason      string
	PageURL     string
	PageTitle   string
	RetrievedAt time.Time
}

// PageExtractor runs the per-page LLM extraction pass.
type PageExtractor struct {
	client       LLMClient
	model        string
	maxTokens    int
	maxBodyChars int
	minWordCount int
	logger       *slog.Logger
}

// PageExtractorConfig bounds the extraction pass.
type PageExtractorConfig struct {
	Model        string
	MaxTokens    int
	MaxBodyChars int
	MinWordCount int
}

// NewPageExtractor returns a PageExtractor.
func NewPageExtractor(client LLMClient, cfg PageExtractorConfig, logger *slog.Logger) *PageExtractor {
	if cfg.MaxBodyChars <= 0 {
		cfg.MaxBodyChars = 12000
	}
	if cfg.MinWordCount <= 0 {
		cfg.MinWordCount = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PageExtractor{
		client:       client,
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		maxBodyChars: cfg.MaxBodyChars,
		minWordCount: cfg.MinWordCount,
		logger:       logger.With("component", "extractor"),
	}
}

// ExtractPage asks the model for field candidates from one page. Pages with
// too little text contribute nothing. Malformed tool output degrades to the
// candidates that do parse; dropped entries are not surfaced.
func (e *PageExtractor) ExtractPage(ctx context.Context, fields []models.FieldDefinition, page content.ExtractedContent) ([]Candidate, error) {
	if page.WordCount < e.minWordCount {
		return nil, nil
	}

	req := ChatRequest{
		System: systemPrompt,
		Messages: []ChatMessage{
			{Role: "user", Content: buildUserMessage(fields, page, e.maxBodyChars)},
		},
		Tools: []ToolDefinition{buildExtractTool(fields)},
		Options: ChatOptions{
			Model:      e.model,
			MaxTokens:  e.maxTokens,
			ToolChoice: extractToolName,
		},
	}

	result, err := e.client.ChatWithTools(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("extraction call failed for %s: %w", page.URL, err)
	}

	candidates := parseCandidates(result.Input, fields, page.URL)
	for i := range candidates {
		candidates[i].PageTitle = page.Title
		candidates[i].RetrievedAt = page.FetchedAt
	}
	return candidates, nil
}

// rawExtraction mirrors one entry of the tool input.
type rawExtraction struct {
	Key        string          `json:"key"`
	Value      json.RawMessage `json:"value"`
	Confidence float64         `json:"confidence"`
	Snippet    string          `json:"snippet"`
	Reason     string          `json:"reason"`
}

// parseCandidates decodes and coerces the tool input. Entries with unknown
// keys, empty snippets, or values that will not coerce to the field type are
// dropped without error.
func parseCandidates(input json.RawMessage, fields []models.FieldDefinition, pageURL string) []Candidate {
	var payload struct {
		Extractions []rawExtraction `json:"extractions"`
	}
	if err := json.Unmarshal(input, &payload); err != nil {
		return nil
	}

	byKey := make(map[string]*models.FieldDefinition, len(fields))
	for i := range fields {
		byKey[fields[i].Key] = &fields[i]
	}

	var out []Candidate
	for _, raw := range payload.Extractions {
		field, ok := byKey[raw.Key]
		if !ok {
			continue
		}
		if strings.TrimSpace(raw.Snippet) == "" {
			continue
		}

		value, ok := coerceValue(raw.Value, field)
		if !ok {
			continue
		}

		out = append(out, Candidate{
			FieldKey:   raw.Key,
			Value:      value,
			Confidence: clampConfidence(raw.Confidence),
			Snippet:    raw.Snippet,
			Reason:     raw.Reason,
			PageURL:    pageURL,
		})
	}
	return out
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return math.Min(1, math.Max(0, c))
}

// coerceValue converts a raw JSON value to the field's declared type.
func coerceValue(raw json.RawMessage, field *models.FieldDefinition) (any, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return nil, false
	}

	switch field.Type {
	case models.FieldTypeString:
		return coerceString(v)

	case models.FieldTypeNumber:
		switch n := v.(type) {
		case float64:
			return n, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, true
			}
		}
		return nil, false

	case models.FieldTypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "true", "yes":
				return true, true
			case "false", "no":
				return false, true
			}
		}
		return nil, false

	case models.FieldTypeEnum:
		s, ok := coerceString(v)
		if !ok {
			return nil, false
		}
		str := strings.TrimSpace(s.(string))
		for _, opt := range field.Options {
			if strings.EqualFold(str, opt) {
				return opt, true
			}
		}
		return nil, false

	case models.FieldTypeStringArray:
		switch a := v.(type) {
		case []any:
			var items []string
			for _, item := range a {
				s, ok := coerceString(item)
				if !ok {
					return nil, false
				}
				if trimmed := strings.TrimSpace(s.(string)); trimmed != "" {
					items = append(items, trimmed)
				}
			}
			return items, true
		case string:
			var items []string
			for _, part := range strings.Split(a, ",") {
				if trimmed := strings.TrimSpace(part); trimmed != "" {
					items = append(items, trimmed)
				}
			}
			return items, true
		}
		return nil, false
	}

	return nil, false
}

// coerceString accepts strings and stringifies scalars.
func coerceString(v any) (any, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	}
	return nil, false
}

package extract

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/fieldset/fieldset-api/internal/models"
)

// SynthesisConfig tunes the merge of per-page candidates.
type SynthesisConfig struct {
	SourceHintBoost            float64
	CorroborationBoost         float64
	DefaultConfidenceThreshold float64
}

// DefaultSynthesisConfig returns the standard tuning.
func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{
		SourceHintBoost:            0.15,
		CorroborationBoost:         0.1,
		DefaultConfidenceThreshold: 0.75,
	}
}

type group struct {
	normalized      string
	candidates      []Candidate
	totalConfidence float64
}

// Synthesize deterministically merges all page candidates into exactly one
// value per schema field. Fields with no candidates come back as unknown.
func Synthesize(fields []models.FieldDefinition, candidates []Candidate, cfg SynthesisConfig) []models.ExtractedFieldValue {
	out := make([]models.ExtractedFieldValue, 0, len(fields))
	for _, field := range fields {
		out = append(out, synthesizeField(field, candidates, cfg))
	}
	return out
}

func synthesizeField(field models.FieldDefinition, all []Candidate, cfg SynthesisConfig) models.ExtractedFieldValue {
	// Bucket, applying the source-hint boost per candidate.
	var bucket []Candidate
	for _, c := range all {
		if c.FieldKey != field.Key {
			continue
		}
		if matchesSourceHint(field.SourceHints, c.PageURL) {
			c.Confidence = math.Min(1, c.Confidence+cfg.SourceHintBoost)
		}
		bucket = append(bucket, c)
	}

	if len(bucket) == 0 {
		return models.ExtractedFieldValue{
			Key:        field.Key,
			Value:      nil,
			Status:     models.FieldValueStatusUnknown,
			Confidence: 0,
		}
	}

	groups := groupByNormalizedValue(bucket)

	// Best group by total confidence, then by candidate count.
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].totalConfidence != groups[j].totalConfidence {
			return groups[i].totalConfidence > groups[j].totalConfidence
		}
		return len(groups[i].candidates) > len(groups[j].candidates)
	})
	best := groups[0]

	maxConf := 0.0
	for _, c := range best.candidates {
		if c.Confidence > maxConf {
			maxConf = c.Confidence
		}
	}
	confidence := math.Min(1, maxConf+cfg.CorroborationBoost*float64(len(best.candidates)-1))

	citations := make([]models.Citation, 0, len(best.candidates))
	for _, c := range best.candidates {
		citations = append(citations, models.Citation{
			SourceURL:   c.PageURL,
			Snippet:     c.Snippet,
			PageTitle:   c.PageTitle,
			RetrievedAt: c.RetrievedAt,
			Confidence:  c.Confidence,
		})
	}

	value := models.ExtractedFieldValue{
		Key:        field.Key,
		Value:      best.candidates[0].Value,
		Confidence: confidence,
		Citations:  citations,
	}

	if len(groups) > 1 {
		value.Status = models.FieldValueStatusNeedsReview
		value.Reason = conflictReason(groups)
		return value
	}

	threshold := cfg.DefaultConfidenceThreshold
	if field.ConfidenceThreshold != nil {
		threshold = *field.ConfidenceThreshold
	}
	if confidence >= threshold {
		value.Status = models.FieldValueStatusAuto
	} else {
		value.Status = models.FieldValueStatusNeedsReview
		value.Reason = fmt.Sprintf("Confidence %.2f below threshold %.2f", confidence, threshold)
	}
	return value
}

// groupByNormalizedValue groups candidates whose values compare equal after
// normalization, preserving encounter order within each group.
func groupByNormalizedValue(bucket []Candidate) []group {
	var groups []group
	index := make(map[string]int)
	for _, c := range bucket {
		key := normalizeForComparison(c.Value)
		if i, ok := index[key]; ok {
			groups[i].candidates = append(groups[i].candidates, c)
			groups[i].totalConfidence += c.Confidence
			continue
		}
		index[key] = len(groups)
		groups = append(groups, group{
			normalized:      key,
			candidates:      []Candidate{c},
			totalConfidence: c.Confidence,
		})
	}
	return groups
}

// normalizeForComparison reduces a value to a canonical string so that
// equivalent values from different pages land in the same group.
func normalizeForComparison(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(t))
	case []string:
		items := make([]string, len(t))
		for i, s := range t {
			items[i] = strings.ToLower(strings.TrimSpace(s))
		}
		sort.Strings(items)
		return strings.Join(items, ",")
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", t)))
	}
}

// conflictReason enumerates each group's first value, best group first.
func conflictReason(groups []group) string {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, fmt.Sprintf("%q", displayValue(g.candidates[0].Value)))
	}
	return "Conflicting values found: " + strings.Join(parts, " vs ")
}

func displayValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	default:
		return fmt.Sprintf("%v", t)
	}
}

// matchesSourceHint reports whether any hint occurs case-insensitively in the
// page URL.
func matchesSourceHint(hints []string, pageURL string) bool {
	if len(hints) == 0 {
		return false
	}
	lower := strings.ToLower(pageURL)
	for _, h := range hints {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" && strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

package extract

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/fieldset/fieldset-api/internal/models"
)

// regexMatchTimeout bounds a single pattern evaluation. Go's RE2 engine has
// no catastrophic backtracking, but user patterns against large values can
// still be slow enough to matter.
const regexMatchTimeout = 100 * time.Millisecond

// nestedQuantifierRe flags patterns like (x+)+, (x*)* or (x+){2,} whose shape
// is catastrophic on backtracking engines. Those patterns are never trusted
// from user input, regardless of engine.
var nestedQuantifierRe = regexp.MustCompile(`\([^)]*[+*][^)]*\)[+*{]`)

// Validate enforces each field's declared constraints against its
// synthesized value, in place. Constraint violations demote to needs_review,
// never to unknown.
func Validate(fields []models.FieldDefinition, values []models.ExtractedFieldValue, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	byKey := make(map[string]*models.FieldDefinition, len(fields))
	for i := range fields {
		byKey[fields[i].Key] = &fields[i]
	}

	for i := range values {
		v := &values[i]
		if v.Status == models.FieldValueStatusUnknown || v.Value == nil {
			continue
		}
		field, ok := byKey[v.Key]
		if !ok {
			continue
		}

		issues := checkField(field, v.Value, logger)
		if len(issues) == 0 {
			continue
		}

		v.Status = models.FieldValueStatusNeedsReview
		joined := strings.Join(issues, "; ")
		if v.Reason != "" {
			v.Reason = v.Reason + "; " + joined
		} else {
			v.Reason = joined
		}
	}
}

func checkField(field *models.FieldDefinition, value any, logger *slog.Logger) []string {
	str, isString := value.(string)

	// Type check first; on mismatch nothing else is meaningful.
	if issue := checkType(field, value); issue != "" {
		return []string{issue}
	}

	var issues []string

	if isString && field.Regex != "" {
		matched, checked := safeRegexMatch(field.Regex, str, logger)
		if checked && !matched {
			issues = append(issues, fmt.Sprintf("value does not match pattern %s", field.Regex))
		}
	}

	if isString {
		if field.MinLen != nil && len(str) < *field.MinLen {
			issues = append(issues, fmt.Sprintf("length %d below minimum %d", len(str), *field.MinLen))
		}
		if field.MaxLen != nil && len(str) > *field.MaxLen {
			issues = append(issues, fmt.Sprintf("length %d above maximum %d", len(str), *field.MaxLen))
		}
	}

	if field.Type == models.FieldTypeEnum {
		found := false
		for _, opt := range field.Options {
			if strings.EqualFold(str, opt) {
				found = true
				break
			}
		}
		if !found {
			issues = append(issues, fmt.Sprintf("value %q is not one of the allowed options", str))
		}
	}

	return issues
}

func checkType(field *models.FieldDefinition, value any) string {
	ok := false
	switch field.Type {
	case models.FieldTypeString, models.FieldTypeEnum:
		_, ok = value.(string)
	case models.FieldTypeNumber:
		_, ok = value.(float64)
		if !ok {
			_, ok = value.(int)
		}
	case models.FieldTypeBoolean:
		_, ok = value.(bool)
	case models.FieldTypeStringArray:
		switch t := value.(type) {
		case []string:
			ok = true
		case []any:
			ok = true
			for _, item := range t {
				if _, isStr := item.(string); !isStr {
					ok = false
					break
				}
			}
		}
	}
	if !ok {
		return fmt.Sprintf("value has wrong type for %s field", field.Type)
	}
	return ""
}

// safeRegexMatch evaluates pattern against value. The second return is false
// when the check was skipped: unsafe pattern shape, compile failure, or a
// wall-clock timeout during evaluation.
func safeRegexMatch(pattern, value string, logger *slog.Logger) (matched, checked bool) {
	if nestedQuantifierRe.MatchString(pattern) {
		logger.Warn("skipping regex with nested quantifiers", "pattern", pattern)
		return false, false
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		logger.Warn("skipping invalid regex", "pattern", pattern, "error", err)
		return false, false
	}

	done := make(chan bool, 1)
	go func() {
		done <- re.MatchString(value)
	}()

	select {
	case m := <-done:
		return m, true
	case <-time.After(regexMatchTimeout):
		logger.Warn("regex evaluation timed out", "pattern", pattern)
		return false, false
	}
}

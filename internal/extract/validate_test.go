package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldset/fieldset-api/internal/models"
)

func intPtr(i int) *int { return &i }

func validateOne(field models.FieldDefinition, value models.ExtractedFieldValue) models.ExtractedFieldValue {
	values := []models.ExtractedFieldValue{value}
	Validate([]models.FieldDefinition{field}, values, nil)
	return values[0]
}

func TestValidateSkipsUnknownAndNull(t *testing.T) {
	got := validateOne(
		models.FieldDefinition{Key: "k", Type: models.FieldTypeString, MinLen: intPtr(100)},
		models.ExtractedFieldValue{Key: "k", Status: models.FieldValueStatusUnknown},
	)
	assert.Equal(t, models.FieldValueStatusUnknown, got.Status, "never demoted from unknown")
	assert.Empty(t, got.Reason)
}

func TestValidateTypeMismatchStopsChecks(t *testing.T) {
	got := validateOne(
		models.FieldDefinition{Key: "k", Type: models.FieldTypeString, MinLen: intPtr(100), Regex: `^x+$`},
		models.ExtractedFieldValue{Key: "k", Value: 12.0, Status: models.FieldValueStatusAuto},
	)
	assert.Equal(t, models.FieldValueStatusNeedsReview, got.Status)
	assert.Equal(t, "value has wrong type for string field", got.Reason, "only the type issue is reported")
}

func TestValidateRegex(t *testing.T) {
	field := models.FieldDefinition{Key: "k", Type: models.FieldTypeString, Regex: `^\d{3}$`}

	ok := validateOne(field, models.ExtractedFieldValue{Key: "k", Value: "123", Status: models.FieldValueStatusAuto})
	assert.Equal(t, models.FieldValueStatusAuto, ok.Status)

	bad := validateOne(field, models.ExtractedFieldValue{Key: "k", Value: "12a", Status: models.FieldValueStatusAuto})
	assert.Equal(t, models.FieldValueStatusNeedsReview, bad.Status)
	assert.Contains(t, bad.Reason, "does not match pattern")
}

func TestValidateUnsafeRegexSkipped(t *testing.T) {
	field := models.FieldDefinition{Key: "k", Type: models.FieldTypeString, Regex: `(a+)+$`}

	got := validateOne(field, models.ExtractedFieldValue{Key: "k", Value: "zzzz", Status: models.FieldValueStatusAuto})
	assert.Equal(t, models.FieldValueStatusAuto, got.Status, "nested-quantifier pattern must be skipped, not applied")
}

func TestValidateInvalidRegexSkipped(t *testing.T) {
	field := models.FieldDefinition{Key: "k", Type: models.FieldTypeString, Regex: `([unclosed`}

	got := validateOne(field, models.ExtractedFieldValue{Key: "k", Value: "anything", Status: models.FieldValueStatusAuto})
	assert.Equal(t, models.FieldValueStatusAuto, got.Status)
}

func TestValidateLengths(t *testing.T) {
	field := models.FieldDefinition{Key: "k", Type: models.FieldTypeString, MinLen: intPtr(3), MaxLen: intPtr(5)}

	short := validateOne(field, models.ExtractedFieldValue{Key: "k", Value: "ab", Status: models.FieldValueStatusAuto})
	assert.Contains(t, short.Reason, "below minimum")

	long := validateOne(field, models.ExtractedFieldValue{Key: "k", Value: "abcdef", Status: models.FieldValueStatusAuto})
	assert.Contains(t, long.Reason, "above maximum")

	fine := validateOne(field, models.ExtractedFieldValue{Key: "k", Value: "abcd", Status: models.FieldValueStatusAuto})
	assert.Equal(t, models.FieldValueStatusAuto, fine.Status)
}

func TestValidateEnumMembership(t *testing.T) {
	field := models.FieldDefinition{Key: "k", Type: models.FieldTypeEnum, Options: []string{"SaaS", "Retail"}}

	ok := validateOne(field, models.ExtractedFieldValue{Key: "k", Value: "saas", Status: models.FieldValueStatusAuto})
	assert.Equal(t, models.FieldValueStatusAuto, ok.Status, "membership is case-insensitive")

	bad := validateOne(field, models.ExtractedFieldValue{Key: "k", Value: "Finance", Status: models.FieldValueStatusAuto})
	assert.Equal(t, models.FieldValueStatusNeedsReview, bad.Status)
}

func TestValidatePrependsExistingReason(t *testing.T) {
	field := models.FieldDefinition{Key: "k", Type: models.FieldTypeString, MinLen: intPtr(10), MaxLen: intPtr(2)}

	got := validateOne(field, models.ExtractedFieldValue{
		Key:    "k",
		Value:  "abcd",
		Status: models.FieldValueStatusNeedsReview,
		Reason: "Confidence 0.50 below threshold 0.75",
	})
	assert.Equal(t,
		"Confidence 0.50 below threshold 0.75; length 4 below minimum 10; length 4 above maximum 2",
		got.Reason)
}

func TestValidateStringArrayType(t *testing.T) {
	field := models.FieldDefinition{Key: "k", Type: models.FieldTypeStringArray}

	ok := validateOne(field, models.ExtractedFieldValue{Key: "k", Value: []string{"a"}, Status: models.FieldValueStatusAuto})
	assert.Equal(t, models.FieldValueStatusAuto, ok.Status)

	alsoOK := validateOne(field, models.ExtractedFieldValue{Key: "k", Value: []any{"a", "b"}, Status: models.FieldValueStatusAuto})
	assert.Equal(t, models.FieldValueStatusAuto, alsoOK.Status)

	bad := validateOne(field, models.ExtractedFieldValue{Key: "k", Value: []any{"a", 1.0}, Status: models.FieldValueStatusAuto})
	assert.Equal(t, models.FieldValueStatusNeedsReview, bad.Status)
}

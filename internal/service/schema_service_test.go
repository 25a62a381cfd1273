package service

import (
	"strings"
	"testing"

	"github.com/fieldset/fieldset-api/internal/models"
)

func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }

func TestValidateFields_Valid(t *testing.T) {
	fields := []models.FieldDefinition{
		{Key: "company_name", Label: "Company name", Type: models.FieldTypeString, Required: true},
		{Key: "employee_count", Label: "Employees", Type: models.FieldTypeNumber},
		{Key: "is_hiring", Label: "Hiring", Type: models.FieldTypeBoolean},
		{Key: "industry", Label: "Industry", Type: models.FieldTypeEnum, Options: []string{"saas", "retail"}},
		{Key: "office_locations", Label: "Offices", Type: models.FieldTypeStringArray},
		{
			Key:                 "support_email",
			Label:               "Support email",
			Type:                models.FieldTypeString,
			Regex:               `^[^@]+@[^@]+$`,
			MinLen:              intPtr(3),
			MaxLen:              intPtr(254),
			ConfidenceThreshold: floatPtr(0.9),
		},
	}

	if err := ValidateFields(fields); err != nil {
		t.Errorf("ValidateFields() = %v, want nil", err)
	}
}

func TestValidateFields_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		fields  []models.FieldDefinition
		wantErr string
	}{
		{
			name:    "empty list",
			fields:  nil,
			wantErr: "at least one field",
		},
		{
			name:    "missing key",
			fields:  []models.FieldDefinition{{Label: "No key", Type: models.FieldTypeString}},
			wantErr: "key is required",
		},
		{
			name:    "uppercase key",
			fields:  []models.FieldDefinition{{Key: "CompanyName", Type: models.FieldTypeString}},
			wantErr: "must match",
		},
		{
			name:    "key with spaces",
			fields:  []models.FieldDefinition{{Key: "company name", Type: models.FieldTypeString}},
			wantErr: "must match",
		},
		{
			name: "key too long",
			fields: []models.FieldDefinition{
				{Key: strings.Repeat("a", 101), Type: models.FieldTypeString},
			},
			wantErr: "exceeds 100",
		},
		{
			name: "duplicate key",
			fields: []models.FieldDefinition{
				{Key: "name", Type: models.FieldTypeString},
				{Key: "name", Type: models.FieldTypeString},
			},
			wantErr: "duplicate",
		},
		{
			name:    "unknown type",
			fields:  []models.FieldDefinition{{Key: "name", Type: "object"}},
			wantErr: "unknown type",
		},
		{
			name:    "enum without options",
			fields:  []models.FieldDefinition{{Key: "industry", Type: models.FieldTypeEnum}},
			wantErr: "require options",
		},
		{
			name:    "invalid regex",
			fields:  []models.FieldDefinition{{Key: "email", Type: models.FieldTypeString, Regex: "["}},
			wantErr: "invalid regex",
		},
		{
			name: "negative minLen",
			fields: []models.FieldDefinition{
				{Key: "name", Type: models.FieldTypeString, MinLen: intPtr(-1)},
			},
			wantErr: "non-negative",
		},
		{
			name: "minLen above maxLen",
			fields: []models.FieldDefinition{
				{Key: "name", Type: models.FieldTypeString, MinLen: intPtr(10), MaxLen: intPtr(5)},
			},
			wantErr: "exceeds maxLen",
		},
		{
			name: "confidence threshold out of range",
			fields: []models.FieldDefinition{
				{Key: "name", Type: models.FieldTypeString, ConfidenceThreshold: floatPtr(1.5)},
			},
			wantErr: "confidence threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFields(tt.fields)
			if err == nil {
				t.Fatal("ValidateFields() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

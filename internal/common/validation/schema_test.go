package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testSchema() JSONSchema {
	return JSONSchema{
		Type:     "object",
		Required: []string{"sessionId", "step"},
		Properties: map[string]Property{
			"sessionId": {Type: "string", MinLength: IntPtr(1), MaxLength: IntPtr(128)},
			"step":      {Type: "integer", Minimum: FloatPtr(1), Maximum: FloatPtr(6)},
			"mode":      {Type: "string", Enum: []string{"all", "failed"}},
			"email":     {Type: "string", Format: "email"},
			"date":      {Type: "string", Format: "date"},
			"ids":       {Type: "array", MaxItems: IntPtr(2), Items: &Property{Type: "string"}},
			"errors": {
				Type:  "array",
				Items: &Property{Type: "object", Properties: map[string]Property{"clientName": {Type: "string"}}, Required: []string{"clientName"}},
			},
		},
		AdditionalProperties: false,
	}
}

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name       string
		input      map[string]interface{}
		valid      bool
		wantFields []string
	}{
		{
			name:  "valid input from job variables",
			input: map[string]interface{}{"sessionId": "s-1", "step": float64(3)},
			valid: true,
		},
		{
			name:       "missing required field",
			input:      map[string]interface{}{"sessionId": "s-1"},
			wantFields: []string{"step"},
		},
		{
			name:       "fractional step",
			input:      map[string]interface{}{"sessionId": "s-1", "step": 2.5},
			wantFields: []string{"step"},
		},
		{
			name:       "step out of range",
			input:      map[string]interface{}{"sessionId": "s-1", "step": float64(7)},
			wantFields: []string{"step"},
		},
		{
			name:       "empty session id",
			input:      map[string]interface{}{"sessionId": "", "step": float64(1)},
			wantFields: []string{"sessionId"},
		},
		{
			name:       "unknown field",
			input:      map[string]interface{}{"sessionId": "s-1", "step": float64(1), "extra": true},
			wantFields: []string{"extra"},
		},
		{
			name:       "enum mismatch",
			input:      map[string]interface{}{"sessionId": "s-1", "step": float64(1), "mode": "some"},
			wantFields: []string{"mode"},
		},
		{
			name:       "bad email format",
			input:      map[string]interface{}{"sessionId": "s-1", "step": float64(1), "email": "nope"},
			wantFields: []string{"email"},
		},
		{
			name:  "empty string skips format",
			input: map[string]interface{}{"sessionId": "s-1", "step": float64(1), "email": ""},
			valid: true,
		},
		{
			name:       "bad date format",
			input:      map[string]interface{}{"sessionId": "s-1", "step": float64(1), "date": "06/01/2024"},
			wantFields: []string{"date"},
		},
		{
			name:       "too many items",
			input:      map[string]interface{}{"sessionId": "s-1", "step": float64(1), "ids": []interface{}{"a", "b", "c"}},
			wantFields: []string{"ids"},
		},
		{
			name:       "array item wrong type",
			input:      map[string]interface{}{"sessionId": "s-1", "step": float64(1), "ids": []interface{}{"a", true}},
			wantFields: []string{"ids[1]"},
		},
		{
			name: "nested array item missing field",
			input: map[string]interface{}{
				"sessionId": "s-1",
				"step":      float64(1),
				"errors":    []interface{}{map[string]interface{}{"error": "boom"}},
			},
			wantFields: []string{"errors[0].clientName"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateInput(tt.input, testSchema())
			assert.Equal(t, tt.valid, result.Valid, result.GetErrorMessages())
			for _, field := range tt.wantFields {
				assert.True(t, result.HasErrors(field), "expected error on %s, got %v", field, result.GetErrorMessages())
			}
		})
	}
}

func TestValidateTaskType(t *testing.T) {
	assert.NoError(t, ValidateTaskType("bulk-filing.batch.submit"))
	assert.NoError(t, ValidateTaskType("bulk-filing.csv.parse"))
	assert.Error(t, ValidateTaskType("submit-bulk-filing"))
	assert.Error(t, ValidateTaskType("Bulk.Batch.Submit"))
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("firm@example.com"))
	assert.False(t, ValidateEmail("not-an-email"))
}

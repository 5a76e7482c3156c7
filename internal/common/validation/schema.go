package validation

import (
	"fmt"
	"regexp"
	"time"
)

// JSONSchema is the subset of JSON Schema used to check job variables.
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties,omitempty"`
}

type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Default     interface{}         `json:"default,omitempty"`
	Minimum     *float64            `json:"minimum,omitempty"`
	Maximum     *float64            `json:"maximum,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Pattern     *string             `json:"pattern,omitempty"`
	Format      string              `json:"format,omitempty"` // email or date
	MinLength   *int                `json:"minLength,omitempty"`
	MaxLength   *int                `json:"maxLength,omitempty"`
	MaxItems    *int                `json:"maxItems,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const (
	CodeRequiredMissing = "REQUIRED_FIELD_MISSING"
	CodeExtraField      = "EXTRA_FIELD"
	CodeInvalidType     = "INVALID_TYPE"
	CodeMinLength       = "MIN_LENGTH_VIOLATION"
	CodeMaxLength       = "MAX_LENGTH_VIOLATION"
	CodePattern         = "PATTERN_MISMATCH"
	CodeFormat          = "FORMAT_MISMATCH"
	CodeEnum            = "INVALID_ENUM_VALUE"
	CodeMinimum         = "MINIMUM_VIOLATION"
	CodeMaximum         = "MAXIMUM_VIOLATION"
	CodeMaxItems        = "MAX_ITEMS_VIOLATION"
)

// ValidateInput checks decoded job variables against schema. Nested field
// errors carry dotted and indexed paths such as previousErrors[0].clientName.
func ValidateInput(input map[string]interface{}, schema JSONSchema) *ValidationResult {
	var errs []ValidationError

	for _, name := range schema.Required {
		if _, ok := input[name]; !ok {
			errs = append(errs, ValidationError{Field: name, Message: "required field missing", Code: CodeRequiredMissing})
		}
	}

	for name, value := range input {
		prop, ok := schema.Properties[name]
		if !ok {
			if !schema.AdditionalProperties {
				errs = append(errs, ValidationError{Field: name, Message: "field not allowed in schema", Code: CodeExtraField})
			}
			continue
		}
		errs = append(errs, validateField(name, value, prop)...)
	}

	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func validateField(field string, value interface{}, prop Property) []ValidationError {
	if err := validateType(value, prop.Type); err != nil {
		return []ValidationError{{Field: field, Message: err.Error(), Code: CodeInvalidType}}
	}

	var errs []ValidationError
	fail := func(code, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	switch v := value.(type) {
	case string:
		if prop.MinLength != nil && len(v) < *prop.MinLength {
			fail(CodeMinLength, "value must be at least %d characters", *prop.MinLength)
		}
		if prop.MaxLength != nil && len(v) > *prop.MaxLength {
			fail(CodeMaxLength, "value must be at most %d characters", *prop.MaxLength)
		}
		if prop.Pattern != nil {
			if matched, err := regexp.MatchString(*prop.Pattern, v); err != nil || !matched {
				fail(CodePattern, "value must match pattern %s", *prop.Pattern)
			}
		}
		if v != "" && !matchesFormat(v, prop.Format) {
			fail(CodeFormat, "value must be a valid %s", prop.Format)
		}
		if len(prop.Enum) > 0 && !contains(prop.Enum, v) {
			fail(CodeEnum, "value must be one of %v", prop.Enum)
		}

	case float64:
		if prop.Minimum != nil && v < *prop.Minimum {
			fail(CodeMinimum, "value must be >= %g", *prop.Minimum)
		}
		if prop.Maximum != nil && v > *prop.Maximum {
			fail(CodeMaximum, "value must be <= %g", *prop.Maximum)
		}

	case []interface{}:
		if prop.MaxItems != nil && len(v) > *prop.MaxItems {
			fail(CodeMaxItems, "array must have at most %d items", *prop.MaxItems)
		}
		if prop.Items != nil {
			for i, item := range v {
				errs = append(errs, validateField(fmt.Sprintf("%s[%d]", field, i), item, *prop.Items)...)
			}
		}

	case map[string]interface{}:
		if prop.Properties != nil {
			nested := ValidateInput(v, JSONSchema{
				Type:                 "object",
				Properties:           prop.Properties,
				Required:             prop.Required,
				AdditionalProperties: true,
			})
			for _, e := range nested.Errors {
				e.Field = field + "." + e.Field
				errs = append(errs, e)
			}
		}
	}

	return errs
}

func validateType(value interface{}, expected string) error {
	ok := true
	switch expected {
	case "string":
		_, ok = value.(string)
	case "number":
		ok = isNumber(value)
	case "integer":
		// JSON numbers decode as float64
		if f, isFloat := value.(float64); isFloat {
			if f != float64(int64(f)) {
				return fmt.Errorf("expected integer, got %v", f)
			}
			return nil
		}
		switch value.(type) {
		case int, int32, int64:
		default:
			ok = false
		}
	case "boolean":
		_, ok = value.(bool)
	case "object":
		_, ok = value.(map[string]interface{})
	case "array":
		_, ok = value.([]interface{})
	case "null":
		ok = value == nil
	}
	if !ok {
		return fmt.Errorf("expected %s, got %T", expected, value)
	}
	return nil
}

func isNumber(value interface{}) bool {
	switch value.(type) {
	case float64, int, int32, int64:
		return true
	}
	return false
}

func matchesFormat(v, format string) bool {
	switch format {
	case "email":
		return ValidateEmail(v)
	case "date":
		_, err := time.Parse("2006-01-02", v)
		return err == nil
	}
	return true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

var (
	taskTypePattern = regexp.MustCompile(`^[a-z][a-z-]*\.[a-z]+\.[a-z]+$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// ValidateTaskType checks the domain.subject.action naming used for job types,
// e.g. bulk-filing.batch.submit.
func ValidateTaskType(taskType string) error {
	if !taskTypePattern.MatchString(taskType) {
		return fmt.Errorf("task type %q must follow format: domain.subject.action (e.g., bulk-filing.batch.submit)", taskType)
	}
	return nil
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors reports whether field has at least one error.
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func IntPtr(i int) *int {
	return &i
}

func FloatPtr(f float64) *float64 {
	return &f
}

func StrPtr(s string) *string {
	return &s
}

package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"land-marketplace/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Schemas for payloads that must be checked before they leave the client.
const (
	GuestEnquirySchema = `{
		"type": "object",
		"properties": {
			"land_id": {"type": "string", "minLength": 1},
			"contact_phone": {"type": "string", "pattern": "^[0-9]{10}$"}
		},
		"required": ["land_id", "contact_phone"]
	}`

	FullEnquirySchema = `{
		"type": "object",
		"properties": {
			"land_id": {"type": "string", "minLength": 1},
			"enquiry_type": {"type": "string", "minLength": 1},
			"contact_name": {"type": "string", "pattern": "\\S"},
			"contact_phone": {"type": "string", "pattern": "^[0-9]{10}$"},
			"contact_email": {"type": "string", "format": "email"},
			"message": {"type": "string"}
		},
		"required": ["land_id", "enquiry_type", "contact_name", "contact_phone", "contact_email"]
	}`

	LoginSchema = `{
		"type": "object",
		"properties": {
			"identifier": {"type": "string", "pattern": "\\S"},
			"password": {"type": "string", "minLength": 1}
		},
		"required": ["identifier", "password"]
	}`

	SignupSchema = `{
		"type": "object",
		"properties": {
			"username": {"type": "string", "pattern": "\\S"},
			"full_name": {"type": "string", "pattern": "\\S"},
			"email": {"type": "string", "format": "email"},
			"phone": {"type": "string", "pattern": "^[0-9]{10}$"},
			"password": {"type": "string", "minLength": 6}
		},
		"required": ["username", "full_name", "email", "phone", "password"]
	}`
)

var (
	phonePattern = regexp.MustCompile(`^[0-9]{10}$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// field-level messages shown inline next to the offending input.
var fieldMessages = map[string]string{
	"contact_phone": "Enter a valid 10-digit phone number",
	"phone":         "Enter a valid 10-digit phone number",
	"contact_email": "Enter a valid email address",
	"email":         "Enter a valid email address",
	"contact_name":  "Name is required",
	"full_name":     "Name is required",
	"username":      "Username is required",
	"identifier":    "Username or email is required",
	"password":      "Password is required",
	"land_id":       "A listing must be selected",
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

// Validate checks document against a JSON schema string.
func Validate(schema string, document interface{}) (*ValidationResult, error) {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	vr := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		vr.Errors = append(vr.Errors, ValidationError{
			Field:   fieldName(desc),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return vr, nil
}

// Check validates document and converts failures into a VALIDATION_FAILED
// StandardError carrying one user-facing message per field.
func Check(schema string, document interface{}) error {
	result, err := Validate(schema, document)
	if err != nil {
		return errors.Normalize(err)
	}
	if result.Valid {
		return nil
	}

	fields := make(map[string]string)
	for _, e := range result.Errors {
		if _, seen := fields[e.Field]; seen {
			continue
		}
		if msg, ok := fieldMessages[e.Field]; ok {
			fields[e.Field] = msg
		} else {
			fields[e.Field] = e.Message
		}
	}
	return errors.NewValidationError(result.FirstMessage(), fields)
}

// FirstMessage returns the user-facing message for the first failing field in
// field-name order.
func (vr *ValidationResult) FirstMessage() string {
	if len(vr.Errors) == 0 {
		return ""
	}
	names := make([]string, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		names = append(names, e.Field)
	}
	sort.Strings(names)
	if msg, ok := fieldMessages[names[0]]; ok {
		return msg
	}
	for _, e := range vr.Errors {
		if e.Field == names[0] {
			return e.Message
		}
	}
	return ""
}

// FieldMessage returns the inline message for field stored on a validation error.
func FieldMessage(err error, field string) string {
	stdErr := errors.Normalize(err)
	if stdErr == nil || stdErr.Code != errors.ErrCodeValidationFailed {
		return ""
	}
	msg, _ := stdErr.Metadata["field."+field].(string)
	return msg
}

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePhone accepts exactly ten digits.
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// gojsonschema reports missing properties against the parent ("(root)") with the
// property name in details.
func fieldName(desc gojsonschema.ResultError) string {
	if desc.Type() == "required" {
		if prop, ok := desc.Details()["property"].(string); ok {
			return prop
		}
	}
	return strings.TrimPrefix(desc.Field(), "(root).")
}

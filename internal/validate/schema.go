package validate

import (
	"net/http"
	"time"

	"shopbridge/internal/apperr"
)

// Rule declares how a single field is cleaned and checked. Schemas are built
// once per endpoint and reused across requests; they must not be mutated
// after construction.
type Rule struct {
	Type     Type
	Sanitize Options
	Validate Options
}

// Schema maps field names to their rules. Fields present in the input but
// absent from the schema are dropped.
type Schema map[string]Rule

// ValidateAndSanitize cleans every schema field of data and validates the
// cleaned result. On success it returns the sanitized record. On failure it
// returns a single VALIDATION error whose context carries the complete
// field -> messages map; no partial output is ever returned.
//
// Validation runs on the sanitized value, not the raw one: a trimmed,
// lowercased email is what gets pattern-checked.
func ValidateAndSanitize(data map[string]any, schema Schema) (map[string]any, error) {
	sanitized := make(map[string]any, len(schema))
	fieldErrors := make(map[string][]string)

	for field, rule := range schema {
		clean := Sanitize(data[field], rule.Type, rule.Sanitize)
		if errs := Validate(clean, rule.Type, rule.Validate); len(errs) > 0 {
			fieldErrors[field] = errs
			continue
		}
		sanitized[field] = clean
	}

	if len(fieldErrors) > 0 {
		return nil, &apperr.Error{
			Kind:       apperr.KindValidation,
			StatusCode: http.StatusBadRequest,
			Severity:   apperr.SeverityLow,
			Message:    "request validation failed",
			Context:    map[string]any{"errors": fieldErrors},
			Timestamp:  time.Now(),
		}
	}
	return sanitized, nil
}

// FieldErrors extracts the field -> messages map from a VALIDATION error
// produced by ValidateAndSanitize. Returns nil for any other error.
func FieldErrors(err error) map[string][]string {
	appErr := apperr.From(err)
	if appErr == nil || appErr.Kind != apperr.KindValidation {
		return nil
	}
	if m, ok := appErr.Context["errors"].(map[string][]string); ok {
		return m
	}
	return nil
}

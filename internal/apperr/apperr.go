// Package apperr defines the typed error model shared by every layer of the
// shopbridge service. Each error carries a machine-readable kind, an HTTP
// status, a severity for log routing, and structured context so the HTTP
// layer can build a response without re-deriving anything.
//
// Error Handling Design:
// - One factory per failure category, pinning kind, status, and severity
// - Errors are created at the point of failure and never mutated afterward
// - Context carries field/value, operation/original-message, or retryAfter
// - Classify reclassifies plain errors at the boundary as a best-effort fallback
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Kind identifies the failure category. The set is closed; values are the
// strings clients see in the "code" field of error responses.
type Kind string

const (
	KindValidation     Kind = "VALIDATION_ERROR"
	KindAuthentication Kind = "AUTHENTICATION_ERROR"
	KindAuthorization  Kind = "AUTHORIZATION_ERROR"
	KindNotFound       Kind = "NOT_FOUND_ERROR"
	KindExternalAPI    Kind = "EXTERNAL_API_ERROR"
	KindDatabase       Kind = "DATABASE_ERROR"
	KindNetwork        Kind = "NETWORK_ERROR"
	KindInternal       Kind = "INTERNAL_SERVER_ERROR"
	KindRateLimit      Kind = "RATE_LIMIT_ERROR"
	KindShopifyAPI     Kind = "SHOPIFY_API_ERROR"
)

// Severity grades an error for alerting and log levels.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error is the typed error value propagated through the service.
type Error struct {
	Kind       Kind
	StatusCode int
	Severity   Severity
	Message    string
	Context    map[string]any
	Timestamp  time.Time
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with safe defaults for callers that bypass the
// category factories: INTERNAL_SERVER_ERROR, status 500, medium severity.
func New(message string) *Error {
	return &Error{
		Kind:       KindInternal,
		StatusCode: http.StatusInternalServerError,
		Severity:   SeverityMedium,
		Message:    message,
		Context:    map[string]any{},
		Timestamp:  time.Now(),
	}
}

// Validation reports an invalid input field. Context carries the field name
// and the offending value.
func Validation(field, message string, value any) *Error {
	return &Error{
		Kind:       KindValidation,
		StatusCode: http.StatusBadRequest,
		Severity:   SeverityLow,
		Message:    fmt.Sprintf("validation failed for %s: %s", field, message),
		Context:    map[string]any{"field": field, "value": value},
		Timestamp:  time.Now(),
	}
}

// ExternalAPI reports a failure from a third-party HTTP API. Status codes
// outside the valid error range collapse to 502.
func ExternalAPI(api string, status int, message, body string) *Error {
	if status < 400 || status > 599 {
		status = http.StatusBadGateway
	}
	severity := SeverityMedium
	if status >= 500 {
		severity = SeverityHigh
	}
	return &Error{
		Kind:       KindExternalAPI,
		StatusCode: status,
		Severity:   severity,
		Message:    fmt.Sprintf("%s API error: %s", api, message),
		Context:    map[string]any{"api": api, "status": status, "body": body},
		Timestamp:  time.Now(),
	}
}

// Database reports a storage failure for the given operation.
func Database(operation string, err error) *Error {
	return &Error{
		Kind:       KindDatabase,
		StatusCode: http.StatusInternalServerError,
		Severity:   SeverityHigh,
		Message:    fmt.Sprintf("database operation failed: %s", operation),
		Context:    map[string]any{"operation": operation, "originalError": errMessage(err)},
		Timestamp:  time.Now(),
		Err:        err,
	}
}

// ShopifyAPI reports a failure from the Shopify Admin API.
func ShopifyAPI(operation string, err error, status int) *Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	severity := SeverityMedium
	if status >= 500 {
		severity = SeverityHigh
	}
	return &Error{
		Kind:       KindShopifyAPI,
		StatusCode: status,
		Severity:   severity,
		Message:    fmt.Sprintf("Shopify API operation failed: %s", operation),
		Context:    map[string]any{"operation": operation, "originalError": errMessage(err)},
		Timestamp:  time.Now(),
		Err:        err,
	}
}

// RateLimit reports a rejected request with the number of seconds the caller
// should wait before retrying.
func RateLimit(retryAfterSeconds int) *Error {
	return &Error{
		Kind:       KindRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Severity:   SeverityMedium,
		Message:    fmt.Sprintf("rate limit exceeded, retry in %d seconds", retryAfterSeconds),
		Context:    map[string]any{"retryAfter": retryAfterSeconds},
		Timestamp:  time.Now(),
	}
}

// NotFound reports a missing resource.
func NotFound(resource string) *Error {
	return &Error{
		Kind:       KindNotFound,
		StatusCode: http.StatusNotFound,
		Severity:   SeverityLow,
		Message:    fmt.Sprintf("%s not found", resource),
		Context:    map[string]any{"resource": resource},
		Timestamp:  time.Now(),
	}
}

// Authentication reports a missing or invalid credential.
func Authentication(message string) *Error {
	return &Error{
		Kind:       KindAuthentication,
		StatusCode: http.StatusUnauthorized,
		Severity:   SeverityMedium,
		Message:    message,
		Context:    map[string]any{},
		Timestamp:  time.Now(),
	}
}

// Authorization reports an authenticated caller lacking permission.
func Authorization(message string) *Error {
	return &Error{
		Kind:       KindAuthorization,
		StatusCode: http.StatusForbidden,
		Severity:   SeverityMedium,
		Message:    message,
		Context:    map[string]any{},
		Timestamp:  time.Now(),
	}
}

// Network reports a transport-level failure (timeout, refused connection).
func Network(operation string, err error) *Error {
	return &Error{
		Kind:       KindNetwork,
		StatusCode: http.StatusBadGateway,
		Severity:   SeverityHigh,
		Message:    fmt.Sprintf("network error during %s", operation),
		Context:    map[string]any{"operation": operation, "originalError": errMessage(err)},
		Timestamp:  time.Now(),
		Err:        err,
	}
}

// RequireFields checks that every named field in data is present and
// non-empty. It returns a single VALIDATION error listing all missing
// fields, not just the first.
func RequireFields(data map[string]any, fields ...string) *Error {
	var missing []string
	for _, field := range fields {
		v, ok := data[field]
		if !ok || v == nil {
			missing = append(missing, field)
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &Error{
		Kind:       KindValidation,
		StatusCode: http.StatusBadRequest,
		Severity:   SeverityLow,
		Message:    fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")),
		Context:    map[string]any{"fields": missing},
		Timestamp:  time.Now(),
	}
}

// From returns err as an *Error when it already is one, otherwise it
// reclassifies it with Classify.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Classify(err)
}

// Classify maps a plain error onto the taxonomy by substring-matching its
// message. Best-effort fallback for errors that reach the HTTP boundary
// without going through a factory.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid token"):
		e := Authentication("authentication failed")
		e.Err = err
		return e
	case strings.Contains(msg, "forbidden") || strings.Contains(msg, "permission"):
		e := Authorization("permission denied")
		e.Err = err
		return e
	case strings.Contains(msg, "not found") || strings.Contains(msg, "no rows"):
		e := NotFound("resource")
		e.Err = err
		return e
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		e := RateLimit(1)
		e.Err = err
		return e
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host"):
		return Network("request", err)
	case strings.Contains(msg, "database") || strings.Contains(msg, "sql") ||
		strings.Contains(msg, "constraint"):
		return Database("query", err)
	default:
		e := New("internal server error")
		e.Err = err
		return e
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Package models - API response types.
// This file defines the outgoing response structures shared by all endpoints.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Machine-readable error codes (the apperr kind strings) for clients
// - Details map for field-specific validation errors
// - Request ID for tracing and support
package models

import (
	"time"
)

// ErrorResponse provides structured error information with debugging context.
type ErrorResponse struct {
	Error     string         `json:"error"`                // Error type (always "error")
	Message   string         `json:"message"`              // Human-readable error description
	Code      string         `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]any `json:"details,omitempty"`    // Field-specific error details
	Timestamp time.Time      `json:"timestamp"`            // Error occurrence time
	RequestID string         `json:"request_id,omitempty"` // Unique request identifier
}

// NewErrorResponse builds a basic error response with the current timestamp.
func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
	StatusDegraded  = "degraded"  // Partial functionality
	StatusUnknown   = "unknown"   // Status indeterminate
)

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// SessionResponse is the public view of a session; the access token is
// never serialized to clients.
type SessionResponse struct {
	ID        string     `json:"id"`
	Shop      string     `json:"shop"`
	IsOnline  bool       `json:"is_online"`
	Scope     string     `json:"scope,omitempty"`
	Expires   *time.Time `json:"expires,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
}

// FromSession populates the response from a session record.
func (sr *SessionResponse) FromSession(s *Session) {
	sr.ID = s.ID
	sr.Shop = s.Shop
	sr.IsOnline = s.IsOnline
	sr.Scope = s.Scope
	sr.Expires = s.Expires
	sr.Active = s.IsActive()
	sr.CreatedAt = s.CreatedAt
}

// OrderResponse echoes the third-party order API's record to the client.
type OrderResponse struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	Order     map[string]any `json:"order,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

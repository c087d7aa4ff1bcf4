// Package models - Shopify session records.
// A session holds the OAuth access token issued for a shop, either offline
// (long-lived, one per shop) or online (per-user, expiring).
package models

import (
	"strings"
	"time"
)

// Session is a persisted Shopify OAuth session.
type Session struct {
	ID          string     `json:"id"`
	Shop        string     `json:"shop"`
	State       string     `json:"state"`
	IsOnline    bool       `json:"is_online"`
	Scope       string     `json:"scope,omitempty"`
	AccessToken string     `json:"access_token,omitempty"`
	Expires     *time.Time `json:"expires,omitempty"`
	UserID      int64      `json:"user_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewSession creates a session for a shop. Offline sessions use the
// conventional "offline_<shop>" ID so each shop has at most one.
func NewSession(id, shop string, isOnline bool) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Shop:      shop,
		IsOnline:  isOnline,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OfflineSessionID returns the conventional session ID for a shop's
// offline token.
func OfflineSessionID(shop string) string {
	return "offline_" + shop
}

// IsExpired reports whether the session's token has expired. Sessions
// without an expiry (offline tokens) never expire.
func (s *Session) IsExpired() bool {
	return s.Expires != nil && time.Now().After(*s.Expires)
}

// IsActive reports whether the session holds a usable access token.
func (s *Session) IsActive() bool {
	return s.AccessToken != "" && !s.IsExpired()
}

// HasScope reports whether the session's granted scopes include the given
// scope. Scopes are stored as a comma-separated list.
func (s *Session) HasScope(scope string) bool {
	for _, granted := range strings.Split(s.Scope, ",") {
		if strings.TrimSpace(granted) == scope {
			return true
		}
	}
	return false
}

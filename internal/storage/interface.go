package storage

import (
	"context"

	"shopbridge/internal/models"
)

// SessionStore defines the interface for Shopify session persistence.
// It provides a clean abstraction that can be implemented by different
// backends such as in-memory maps, SQL databases, or Redis.
type SessionStore interface {
	// Store saves or replaces a session by its ID
	Store(ctx context.Context, session *models.Session) error

	// Load retrieves a session by its ID
	Load(ctx context.Context, id string) (*models.Session, error)

	// LoadByShop returns all sessions for a shop domain
	LoadByShop(ctx context.Context, shop string) ([]*models.Session, error)

	// Delete removes a session by its ID
	Delete(ctx context.Context, id string) error

	// DeleteByShop removes all sessions for a shop domain
	DeleteByShop(ctx context.Context, shop string) error

	// Ping verifies the backend is reachable and operational
	Ping(ctx context.Context) error

	// Close closes the store and cleans up resources
	Close() error
}

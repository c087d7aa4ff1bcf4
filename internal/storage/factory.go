package storage

import (
	"context"
	"fmt"

	"shopbridge/internal/models"
)

// Factory provides a centralized way to create session stores based on
// configuration. This allows for easy backend swapping without code changes.
type Factory struct{}

// NewFactory creates a new storage factory
func NewFactory() *Factory {
	return &Factory{}
}

// Create instantiates a session store based on the provided configuration.
// Supported backends:
//   - memory: In-memory storage (for testing/development)
//   - sqlite: SQLite database storage (single-instance persistence)
//   - postgres: PostgreSQL database storage (production-ready)
//   - redis: Redis storage with automatic session expiry
func (f *Factory) Create(ctx context.Context, config models.StorageConfig) (SessionStore, error) {
	switch config.Type {
	case models.StorageTypeMemory:
		return NewMemoryStore(), nil
	case models.StorageTypeSQLite:
		path := config.Path
		if path == "" {
			path = config.Database.DSN
		}
		return NewSQLiteStore(path)
	case models.StorageTypePostgres:
		return NewPostgresStore(ctx, config.Database)
	case models.StorageTypeRedis:
		return NewRedisStore(ctx, config.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}

// GetSupportedBackends returns a list of all supported storage backend types
func (f *Factory) GetSupportedBackends() []string {
	return []string{models.StorageTypeMemory, models.StorageTypeSQLite, models.StorageTypePostgres, models.StorageTypeRedis}
}

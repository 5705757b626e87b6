package ports

import "context"

// HealthChecker abstracts a dependency health probe, e.g. the cache storage backend.
// Implementations should return error if unhealthy.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

package ports

import (
	"context"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
)

// Fetcher performs the real network request behind the cache.
// Connectivity failures are returned wrapping asset.ErrNetwork; any HTTP
// status, including 4xx and 5xx, is a successful fetch.
type Fetcher interface {
	Fetch(ctx context.Context, req *asset.Request) (*asset.Response, error)
}

package ports

import (
	"context"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
)

// CacheStorage enumerates and manages the cache stores of every generation.
// It is owned exclusively by the cache manager.
type CacheStorage interface {
	// Open returns the store named name, creating it when absent.
	// created reports whether this call created it.
	Open(ctx context.Context, name string) (store CacheStore, created bool, err error)
	Has(ctx context.Context, name string) (bool, error)
	// Delete removes the store and all of its entries. ok=false if it did not exist.
	Delete(ctx context.Context, name string) (bool, error)
	// Keys lists the names of all existing stores.
	Keys(ctx context.Context) ([]string, error)
}

// CacheStore maps request keys to stored responses for one generation.
type CacheStore interface {
	Name() string
	// Match returns the stored response for req. ok=false on a miss or when
	// req is not cacheable.
	Match(ctx context.Context, req *asset.Request) (*asset.StoredResponse, bool, error)
	// Put stores resp under req's key, overwriting any previous entry.
	Put(ctx context.Context, req *asset.Request, resp *asset.StoredResponse) error
	// PutAll stores every entry or none of them.
	PutAll(ctx context.Context, entries []asset.Entry) error
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, req *asset.Request) (bool, error)
}

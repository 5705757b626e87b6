package memory

import (
	"context"
	"sync"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/core/ports"
)

// CacheStorage keeps every generation in process memory. Contents are lost
// on restart.
type CacheStorage struct {
	mu     sync.RWMutex
	stores map[string]map[string]asset.StoredResponse
}

func NewCacheStorage() *CacheStorage {
	return &CacheStorage{stores: make(map[string]map[string]asset.StoredResponse)}
}

func (s *CacheStorage) Open(ctx context.Context, name string) (ports.CacheStore, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.stores[name]
	if !exists {
		s.stores[name] = make(map[string]asset.StoredResponse)
	}
	return &cacheStore{storage: s, name: name}, !exists, nil
}

func (s *CacheStorage) Has(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.stores[name]
	return ok, nil
}

func (s *CacheStorage) Delete(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.stores[name]
	delete(s.stores, name)
	return ok, nil
}

func (s *CacheStorage) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.stores))
	for name := range s.stores {
		names = append(names, name)
	}
	return names, nil
}

type cacheStore struct {
	storage *CacheStorage
	name    string
}

func (c *cacheStore) Name() string { return c.name }

func (c *cacheStore) Match(ctx context.Context, req *asset.Request) (*asset.StoredResponse, bool, error) {
	if !req.Cacheable() {
		return nil, false, nil
	}
	c.storage.mu.RLock()
	defer c.storage.mu.RUnlock()
	entries, ok := c.storage.stores[c.name]
	if !ok {
		return nil, false, nil
	}
	v, ok := entries[req.Key()]
	if !ok {
		return nil, false, nil
	}
	return copyStored(&v), true, nil
}

func (c *cacheStore) Put(ctx context.Context, req *asset.Request, resp *asset.StoredResponse) error {
	return c.PutAll(ctx, []asset.Entry{{Request: req, Response: resp}})
}

func (c *cacheStore) PutAll(ctx context.Context, entries []asset.Entry) error {
	for _, e := range entries {
		if !e.Request.Cacheable() {
			return asset.ErrNotCacheable
		}
	}
	c.storage.mu.Lock()
	defer c.storage.mu.Unlock()
	// a put into a deleted store recreates it, like the browser cache API
	store, ok := c.storage.stores[c.name]
	if !ok {
		store = make(map[string]asset.StoredResponse)
		c.storage.stores[c.name] = store
	}
	for _, e := range entries {
		store[e.Request.Key()] = *copyStored(e.Response)
	}
	return nil
}

func (c *cacheStore) Keys(ctx context.Context) ([]string, error) {
	c.storage.mu.RLock()
	defer c.storage.mu.RUnlock()
	entries := c.storage.stores[c.name]
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	return keys, nil
}

func (c *cacheStore) Delete(ctx context.Context, req *asset.Request) (bool, error) {
	c.storage.mu.Lock()
	defer c.storage.mu.Unlock()
	entries, ok := c.storage.stores[c.name]
	if !ok {
		return false, nil
	}
	_, ok = entries[req.Key()]
	delete(entries, req.Key())
	return ok, nil
}

func copyStored(r *asset.StoredResponse) *asset.StoredResponse {
	cp := *r
	cp.Header = r.Header.Clone()
	cp.Body = append([]byte(nil), r.Body...)
	return &cp
}

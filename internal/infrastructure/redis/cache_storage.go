package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/core/ports"
)

// CacheStorage implements ports.CacheStorage on Redis. Generation names are
// kept in a set; each generation's entries live in one hash keyed by the
// request key.
type CacheStorage struct {
	r redis.Cmdable
	// key prefix to namespace entries
	prefix string
}

// NewCacheStorage creates a new Redis-backed cache storage.
func NewCacheStorage(r redis.Cmdable, prefix string) *CacheStorage {
	if prefix == "" {
		prefix = "offline"
	}
	return &CacheStorage{r: r, prefix: prefix}
}

func (s *CacheStorage) generationsKey() string {
	return s.prefix + ":generations"
}

func (s *CacheStorage) storeKey(name string) string {
	return s.prefix + ":store:" + name
}

// Open implements CacheStorage.Open.
func (s *CacheStorage) Open(ctx context.Context, name string) (ports.CacheStore, bool, error) {
	added, err := s.r.SAdd(ctx, s.generationsKey(), name).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to open cache %s: %w", name, err)
	}
	return &cacheStore{storage: s, name: name}, added == 1, nil
}

// Has implements CacheStorage.Has.
func (s *CacheStorage) Has(ctx context.Context, name string) (bool, error) {
	return s.r.SIsMember(ctx, s.generationsKey(), name).Result()
}

// Delete implements CacheStorage.Delete.
func (s *CacheStorage) Delete(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.r.TxPipelined(ctx, func(p redis.Pipeliner) error {
		removed = p.SRem(ctx, s.generationsKey(), name)
		p.Del(ctx, s.storeKey(name))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete cache %s: %w", name, err)
	}
	return removed.Val() > 0, nil
}

// Keys implements CacheStorage.Keys.
func (s *CacheStorage) Keys(ctx context.Context) ([]string, error) {
	return s.r.SMembers(ctx, s.generationsKey()).Result()
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
	val, err := c.storage.r.HGet(ctx, c.storage.storeKey(c.name), req.Key()).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var stored asset.StoredResponse
	if err := json.Unmarshal(val, &stored); err != nil {
		return nil, false, fmt.Errorf("corrupt cache entry %s: %w", req.Key(), err)
	}
	return &stored, true, nil
}

func (c *cacheStore) Put(ctx context.Context, req *asset.Request, resp *asset.StoredResponse) error {
	return c.PutAll(ctx, []asset.Entry{{Request: req, Response: resp}})
}

// PutAll writes all entries in one MULTI/EXEC transaction.
func (c *cacheStore) PutAll(ctx context.Context, entries []asset.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(entries)*2)
	for _, e := range entries {
		if !e.Request.Cacheable() {
			return asset.ErrNotCacheable
		}
		b, err := json.Marshal(e.Response)
		if err != nil {
			return err
		}
		values = append(values, e.Request.Key(), b)
	}
	_, err := c.storage.r.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, c.storage.generationsKey(), c.name)
		p.HSet(ctx, c.storage.storeKey(c.name), values...)
		return nil
	})
	return err
}

func (c *cacheStore) Keys(ctx context.Context) ([]string, error) {
	return c.storage.r.HKeys(ctx, c.storage.storeKey(c.name)).Result()
}

func (c *cacheStore) Delete(ctx context.Context, req *asset.Request) (bool, error) {
	n, err := c.storage.r.HDel(ctx, c.storage.storeKey(c.name), req.Key()).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

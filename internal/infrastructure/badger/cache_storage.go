package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/core/ports"
)

// Key layout:
//
//	gen\x00<name>               -> marker
//	entry\x00<name>\x00<key>    -> JSON encoded asset.StoredResponse
const (
	prefixGeneration = "gen\x00"
	prefixEntry      = "entry\x00"
)

func keyGeneration(name string) []byte { return []byte(prefixGeneration + name) }

func keyEntryPrefix(name string) []byte { return []byte(prefixEntry + name + "\x00") }

func keyEntry(name, key string) []byte { return append(keyEntryPrefix(name), key...) }

// CacheStorage implements ports.CacheStorage on an embedded BadgerDB, so
// cached generations survive process restarts without an external service.
type CacheStorage struct {
	db *badgerdb.DB
}

// Open opens (or creates) a BadgerDB at dir. An empty dir keeps the
// database in memory.
func Open(dir string) (*CacheStorage, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", dir, err)
	}
	return &CacheStorage{db: db}, nil
}

func (s *CacheStorage) Close() error {
	return s.db.Close()
}

// Healthcheck verifies a read transaction can be started.
func (s *CacheStorage) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.View(func(txn *badgerdb.Txn) error { return nil }); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

func (s *CacheStorage) Open(ctx context.Context, name string) (ports.CacheStore, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	created := false
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(keyGeneration(name))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		created = true
		return txn.Set(keyGeneration(name), []byte{1})
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to open cache %s: %w", name, err)
	}
	return &cacheStore{db: s.db, name: name}, created, nil
}

func (s *CacheStorage) Has(ctx context.Context, name string) (bool, error) {
	found := false
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(keyGeneration(name))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (s *CacheStorage) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	existed, err := s.Has(ctx, name)
	if err != nil {
		return false, err
	}
	keys, err := listKeys(s.db, keyEntryPrefix(name))
	if err != nil {
		return false, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	if err := wb.Delete(keyGeneration(name)); err != nil {
		return false, err
	}
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return false, err
		}
	}
	if err := wb.Flush(); err != nil {
		return false, fmt.Errorf("failed to delete cache %s: %w", name, err)
	}
	return existed, nil
}

func (s *CacheStorage) Keys(ctx context.Context) ([]string, error) {
	keys, err := listKeys(s.db, []byte(prefixGeneration))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, string(k[len(prefixGeneration):]))
	}
	return names, nil
}

func listKeys(db *badgerdb.DB, prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

type cacheStore struct {
	db   *badgerdb.DB
	name string
}

func (c *cacheStore) Name() string { return c.name }

func (c *cacheStore) Match(ctx context.Context, req *asset.Request) (*asset.StoredResponse, bool, error) {
	if !req.Cacheable() {
		return nil, false, nil
	}
	var stored *asset.StoredResponse
	err := c.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyEntry(c.name, req.Key()))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var v asset.StoredResponse
			if err := json.Unmarshal(val, &v); err != nil {
				return fmt.Errorf("corrupt cache entry %s: %w", req.Key(), err)
			}
			stored = &v
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	return stored, stored != nil, nil
}

func (c *cacheStore) Put(ctx context.Context, req *asset.Request, resp *asset.StoredResponse) error {
	return c.PutAll(ctx, []asset.Entry{{Request: req, Response: resp}})
}

// PutAll writes every entry in a single transaction.
func (c *cacheStore) PutAll(ctx context.Context, entries []asset.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(keyGeneration(c.name), []byte{1}); err != nil {
			return err
		}
		for _, e := range entries {
			if !e.Request.Cacheable() {
				return asset.ErrNotCacheable
			}
			data, err := json.Marshal(e.Response)
			if err != nil {
				return err
			}
			if err := txn.Set(keyEntry(c.name, e.Request.Key()), data); err != nil {
				return fmt.Errorf("failed to store %s: %w", e.Request.Key(), err)
			}
		}
		return nil
	})
}

func (c *cacheStore) Keys(ctx context.Context) ([]string, error) {
	prefix := keyEntryPrefix(c.name)
	keys, err := listKeys(c.db, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, string(k[len(prefix):]))
	}
	return out, nil
}

func (c *cacheStore) Delete(ctx context.Context, req *asset.Request) (bool, error) {
	found := false
	err := c.db.Update(func(txn *badgerdb.Txn) error {
		k := keyEntry(c.name, req.Key())
		_, err := txn.Get(k)
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return txn.Delete(k)
	})
	return found, err
}

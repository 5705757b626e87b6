package services

import (
	"sync"
	"time"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/core/domain/lifecycle"
	"github.com/avatarctic/funwheel-offline/internal/core/ports"
	"github.com/google/uuid"
)

// cacheWorker is one installed instance of the cache manager, bound to a
// single generation.
type cacheWorker struct {
	id         uuid.UUID
	generation asset.Generation
	manifest   asset.Manifest

	mu          sync.Mutex
	state       lifecycle.State
	store       ports.CacheStore
	installedAt *time.Time
	activatedAt *time.Time
}

func newCacheWorker(generation asset.Generation, manifest asset.Manifest) *cacheWorker {
	return &cacheWorker{
		id:         uuid.New(),
		generation: generation,
		manifest:   append(asset.Manifest(nil), manifest...),
		state:      lifecycle.StateUninstalled,
	}
}

func (w *cacheWorker) begin(kind lifecycle.EventKind) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	next, err := lifecycle.Begin(w.state, kind)
	if err != nil {
		return err
	}
	w.state = next
	return nil
}

func (w *cacheWorker) complete(kind lifecycle.EventKind, ok bool) {
	if kind == lifecycle.EventFetch {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = lifecycle.Complete(w.state, kind, ok)
	now := time.Now().UTC()
	switch w.state {
	case lifecycle.StateInstalled:
		w.installedAt = &now
	case lifecycle.StateActive:
		w.activatedAt = &now
	}
}

// resume adopts a store activated by an earlier process.
func (w *cacheWorker) resume(store ports.CacheStore) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now().UTC()
	w.store = store
	w.state = lifecycle.StateActive
	w.activatedAt = &now
}

func (w *cacheWorker) retire() {
	w.mu.Lock()
	w.state = lifecycle.StateRedundant
	w.mu.Unlock()
}

func (w *cacheWorker) currentStore() ports.CacheStore {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store
}

func (w *cacheWorker) setStore(store ports.CacheStore) {
	w.mu.Lock()
	w.store = store
	w.mu.Unlock()
}

func (w *cacheWorker) status() *ports.WorkerStatus {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return &ports.WorkerStatus{
		ID:          w.id,
		Generation:  w.generation,
		State:       w.state,
		Manifest:    append(asset.Manifest(nil), w.manifest...),
		InstalledAt: w.installedAt,
		ActivatedAt: w.activatedAt,
	}
}

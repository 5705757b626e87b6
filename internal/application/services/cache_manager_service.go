package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/core/domain/lifecycle"
	"github.com/avatarctic/funwheel-offline/internal/core/ports"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// CacheManagerConfig groups configuration parameters for the cache manager.
type CacheManagerConfig struct {
	Scope        string
	FallbackPath string
	Manifest     asset.Manifest
	// FallbackNavigationOnly limits the offline fallback to document loads.
	// Off by default: every failed request falls back to the root document.
	FallbackNavigationOnly bool
}

// cacheEvent is one dispatched lifecycle event.
type cacheEvent struct {
	kind     lifecycle.EventKind
	worker   *cacheWorker
	request  *asset.Request
	manifest asset.Manifest
	// storeCreated is set when dispatch created the generation's store.
	storeCreated bool
}

type eventHandler func(ctx context.Context, generation asset.Generation, store ports.CacheStore, ev cacheEvent) (*ports.FetchResult, error)

// CacheManagerService serves intercepted requests from the current
// generation's cache store and installs new generations on registration.
type CacheManagerService struct {
	storage  ports.CacheStorage
	fetcher  ports.Fetcher
	observer ports.CacheObserver
	logger   *logrus.Logger
	cfg      CacheManagerConfig
	handlers map[lifecycle.EventKind]eventHandler

	mu     sync.RWMutex
	active *cacheWorker
	last   *cacheWorker
	sf     singleflight.Group
}

func NewCacheManagerService(storage ports.CacheStorage, fetcher ports.Fetcher, observer ports.CacheObserver, cfg *CacheManagerConfig, logger *logrus.Logger) *CacheManagerService {
	c := CacheManagerConfig{Scope: "/", FallbackPath: asset.DefaultFallbackPath, Manifest: asset.DefaultManifest()}
	if cfg != nil {
		if cfg.Scope != "" {
			c.Scope = cfg.Scope
		}
		if cfg.FallbackPath != "" {
			c.FallbackPath = cfg.FallbackPath
		}
		if len(cfg.Manifest) > 0 {
			c.Manifest = cfg.Manifest
		}
		c.FallbackNavigationOnly = cfg.FallbackNavigationOnly
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	s := &CacheManagerService{storage: storage, fetcher: fetcher, observer: observer, logger: logger, cfg: c}
	s.handlers = map[lifecycle.EventKind]eventHandler{
		lifecycle.EventInstall:  s.handleInstall,
		lifecycle.EventActivate: s.handleActivate,
		lifecycle.EventFetch:    s.handleFetch,
	}
	return s
}

// Register installs generation req.Generation and, once installed, activates
// it immediately without a waiting period. A failed install leaves the
// previously active generation serving.
func (s *CacheManagerService) Register(ctx context.Context, req ports.RegistrationRequest) (*ports.WorkerStatus, error) {
	if err := req.Generation.Validate(); err != nil {
		return nil, err
	}
	manifest := req.Manifest
	if len(manifest) == 0 {
		manifest = s.cfg.Manifest
	}

	v, err, shared := s.sf.Do(req.Generation.String(), func() (any, error) {
		return s.register(ctx, req.Generation, manifest)
	})
	if shared {
		s.logger.WithField("generation", req.Generation).Debug("registration coalesced with an in-flight one")
	}
	st, _ := v.(*ports.WorkerStatus)
	return st, err
}

func (s *CacheManagerService) register(ctx context.Context, generation asset.Generation, manifest asset.Manifest) (*ports.WorkerStatus, error) {
	w := newCacheWorker(generation, manifest)
	s.mu.Lock()
	s.last = w
	s.mu.Unlock()

	log := s.logger.WithFields(logrus.Fields{"generation": generation, "worker_id": w.id})
	log.WithField("assets", len(manifest)).Info("installing cache generation")

	if _, err := s.dispatch(ctx, w, cacheEvent{kind: lifecycle.EventInstall, manifest: w.manifest}); err != nil {
		log.WithError(err).Error("install failed; keeping previous generation")
		if s.activeWorker() == nil {
			// a fresh process has nothing serving yet; an earlier one may
			// have left this generation complete in storage
			if st, ok := s.resumeStored(ctx, generation, manifest); ok {
				log.WithField("stored", st.Generation).Warn("serving stored generation until a later install succeeds")
			}
		}
		return w.status(), fmt.Errorf("%w: %w", asset.ErrInstallFailed, err)
	}

	// skip waiting: activate right after install
	if _, err := s.dispatch(ctx, w, cacheEvent{kind: lifecycle.EventActivate}); err != nil {
		log.WithError(err).Error("activate failed; keeping previous generation")
		return w.status(), fmt.Errorf("%w: %w", asset.ErrActivateFailed, err)
	}

	var previous asset.Generation
	s.mu.Lock()
	prev := s.active
	s.active = w
	s.mu.Unlock()
	if prev != nil && prev != w {
		previous = prev.generation
		prev.retire()
	}
	s.observer.SetActiveGeneration(previous, generation)
	log.WithField("previous", previous).Info("cache generation active and controlling clients")

	// fetches still running on the previous worker may have written its
	// store between the activate sweep and the swap
	if err := s.deleteStale(ctx, generation); err != nil {
		log.WithError(err).Warn("failed to sweep stale cache generations")
	}
	return w.status(), nil
}

// Resume adopts req.Generation from storage when every manifest entry is
// already stored. It is a no-op when a generation is already active.
func (s *CacheManagerService) Resume(ctx context.Context, req ports.RegistrationRequest) (*ports.WorkerStatus, error) {
	if err := req.Generation.Validate(); err != nil {
		return nil, err
	}
	manifest := req.Manifest
	if len(manifest) == 0 {
		manifest = s.cfg.Manifest
	}
	if w := s.activeWorker(); w != nil {
		return w.status(), nil
	}
	return s.resume(ctx, req.Generation, manifest)
}

// resumeStored tries preferred first, then any other complete generation
// left in storage.
func (s *CacheManagerService) resumeStored(ctx context.Context, preferred asset.Generation, manifest asset.Manifest) (*ports.WorkerStatus, bool) {
	candidates := []asset.Generation{preferred}
	if names, err := s.storage.Keys(ctx); err == nil {
		sort.Strings(names)
		for _, name := range names {
			if name != preferred.String() {
				candidates = append(candidates, asset.Generation(name))
			}
		}
	}
	for _, g := range candidates {
		st, err := s.resume(ctx, g, manifest)
		if err == nil {
			return st, true
		}
		s.logger.WithField("generation", g).WithError(err).Debug("stored generation not resumable")
	}
	return nil, false
}

func (s *CacheManagerService) resume(ctx context.Context, generation asset.Generation, manifest asset.Manifest) (*ports.WorkerStatus, error) {
	name := generation.String()
	stored, err := s.storage.Has(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up cache %s: %w", name, err)
	}
	if !stored {
		return nil, fmt.Errorf("%w: %s", asset.ErrNotStored, name)
	}
	store, _, err := s.storage.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", name, err)
	}
	keys, err := store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache %s: %w", name, err)
	}
	present := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		present[k] = struct{}{}
	}
	for _, req := range manifest.Requests(s.cfg.Scope) {
		if _, ok := present[req.Key()]; !ok {
			return nil, fmt.Errorf("%w: %s lacks %s", asset.ErrNotStored, name, req.Key())
		}
	}

	w := newCacheWorker(generation, manifest)
	w.resume(store)
	s.mu.Lock()
	if s.active != nil {
		active := s.active
		s.mu.Unlock()
		return active.status(), nil
	}
	s.active = w
	if s.last == nil {
		s.last = w
	}
	s.mu.Unlock()

	s.observer.SetActiveGeneration("", generation)
	s.logger.WithFields(logrus.Fields{"generation": generation, "worker_id": w.id, "entries": len(keys)}).Info("resumed stored cache generation")
	return w.status(), nil
}

// Fetch resolves an intercepted request. Requests outside the scope, or sent
// before any generation is active, go straight to the network.
func (s *CacheManagerService) Fetch(ctx context.Context, req *asset.Request) (*ports.FetchResult, error) {
	var (
		res *ports.FetchResult
		err error
	)
	if w := s.activeWorker(); w == nil || !asset.InScope(s.cfg.Scope, req.Key()) {
		res, err = s.passthrough(ctx, req)
	} else {
		res, err = s.dispatch(ctx, w, cacheEvent{kind: lifecycle.EventFetch, request: req})
	}
	if err != nil {
		s.observer.ObserveFetchFailure()
		return nil, err
	}
	s.observer.ObserveFetch(res.Source)
	return res, nil
}

func (s *CacheManagerService) Status() ports.CacheManagerStatus {
	s.mu.RLock()
	active, last := s.active, s.last
	s.mu.RUnlock()
	return ports.CacheManagerStatus{
		Scope:        s.cfg.Scope,
		FallbackPath: s.cfg.FallbackPath,
		Active:       active.status(),
		Last:         last.status(),
	}
}

func (s *CacheManagerService) Generations(ctx context.Context) ([]string, error) {
	names, err := s.storage.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache generations: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *CacheManagerService) activeWorker() *cacheWorker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// dispatch runs the handler registered for ev.kind with the worker's
// generation tag and store passed explicitly. Install and activate are
// barriers: the worker's state only advances once the handler returns.
func (s *CacheManagerService) dispatch(ctx context.Context, w *cacheWorker, ev cacheEvent) (*ports.FetchResult, error) {
	handler, ok := s.handlers[ev.kind]
	if !ok {
		return nil, fmt.Errorf("no handler for %s event", ev.kind)
	}
	if err := w.begin(ev.kind); err != nil {
		if ev.kind == lifecycle.EventFetch {
			// superseded between lookup and dispatch: the new worker claims it
			if next := s.activeWorker(); next != nil && next != w {
				return s.dispatch(ctx, next, ev)
			}
			return s.passthrough(ctx, ev.request)
		}
		return nil, err
	}
	ev.worker = w

	store := w.currentStore()
	if store == nil {
		opened, created, err := s.storage.Open(ctx, w.generation.String())
		if err != nil {
			w.complete(ev.kind, false)
			s.observer.ObserveLifecycle(ev.kind, false)
			return nil, fmt.Errorf("failed to open cache %s: %w", w.generation, err)
		}
		w.setStore(opened)
		store = opened
		ev.storeCreated = created
	}

	res, err := handler(ctx, w.generation, store, ev)
	w.complete(ev.kind, err == nil)
	if ev.kind != lifecycle.EventFetch {
		s.observer.ObserveLifecycle(ev.kind, err == nil)
	}
	return res, err
}

// putIfCurrent stores resp only while w still controls clients. Holding the
// read lock keeps the active swap from completing mid-write.
func (s *CacheManagerService) putIfCurrent(ctx context.Context, w *cacheWorker, store ports.CacheStore, req *asset.Request, resp *asset.StoredResponse) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active != w {
		return false, nil
	}
	return true, store.Put(ctx, req, resp)
}

func (s *CacheManagerService) passthrough(ctx context.Context, req *asset.Request) (*ports.FetchResult, error) {
	resp, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return &ports.FetchResult{Response: resp, Source: ports.SourcePassthrough}, nil
}

type noopObserver struct{}

func (noopObserver) ObserveFetch(ports.FetchSource)                         {}
func (noopObserver) ObserveFetchFailure()                                   {}
func (noopObserver) ObserveLifecycle(lifecycle.EventKind, bool)             {}
func (noopObserver) SetActiveGeneration(asset.Generation, asset.Generation) {}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/core/ports"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// handleInstall fetches every manifest asset and stores them as one batch.
// A single failed asset fails the whole install and nothing is stored.
func (s *CacheManagerService) handleInstall(ctx context.Context, generation asset.Generation, store ports.CacheStore, ev cacheEvent) (*ports.FetchResult, error) {
	requests := ev.manifest.Requests(s.cfg.Scope)
	entries := make([]asset.Entry, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			resp, err := s.fetcher.Fetch(gctx, req)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", req.URL, err)
			}
			if !resp.OK() {
				if resp.Body != nil {
					_ = resp.Body.Close()
				}
				return fmt.Errorf("fetch %s: unexpected status %d", req.URL, resp.Status)
			}
			stored, err := resp.Stored(req.URL)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", req.URL, err)
			}
			entries[i] = asset.Entry{Request: req, Response: stored}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = store.PutAll(ctx, entries)
	}
	if err != nil {
		if ev.storeCreated {
			if _, delErr := s.storage.Delete(ctx, generation.String()); delErr != nil {
				s.logger.WithField("generation", generation).WithError(delErr).Warn("failed to remove cache of failed install")
			}
		}
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"generation": generation, "entries": len(entries)}).Info("manifest cached")
	return nil, nil
}

// handleActivate deletes every cache store whose name is not generation.
func (s *CacheManagerService) handleActivate(ctx context.Context, generation asset.Generation, _ ports.CacheStore, _ cacheEvent) (*ports.FetchResult, error) {
	return nil, s.deleteStale(ctx, generation)
}

func (s *CacheManagerService) deleteStale(ctx context.Context, generation asset.Generation) error {
	names, err := s.storage.Keys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list caches: %w", err)
	}
	for _, name := range names {
		if name == generation.String() {
			continue
		}
		if _, err := s.storage.Delete(ctx, name); err != nil {
			return fmt.Errorf("failed to delete stale cache %s: %w", name, err)
		}
		s.logger.WithFields(logrus.Fields{"generation": generation, "stale": name}).Info("stale cache generation deleted")
	}
	return nil
}

// handleFetch answers from the store first, then the network, then the
// fallback document.
func (s *CacheManagerService) handleFetch(ctx context.Context, generation asset.Generation, store ports.CacheStore, ev cacheEvent) (*ports.FetchResult, error) {
	req := ev.request
	log := s.logger.WithFields(logrus.Fields{"generation": generation, "method": req.Method, "key": req.Key()})

	if cached, ok, err := store.Match(ctx, req); err != nil {
		log.WithError(err).Warn("cache lookup failed; treating as miss")
	} else if ok {
		return &ports.FetchResult{Response: cached.Response(), Source: ports.SourceCache}, nil
	}

	resp, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		return s.fallback(ctx, store, req, err)
	}

	if storable(req, resp) {
		dup, cloneErr := resp.Clone()
		if cloneErr != nil {
			return s.fallback(ctx, store, req, fmt.Errorf("%w: %w", asset.ErrNetwork, cloneErr))
		}
		stored, storeErr := dup.Stored(req.URL)
		if storeErr == nil {
			var current bool
			current, storeErr = s.putIfCurrent(ctx, ev.worker, store, req, stored)
			if storeErr == nil && !current {
				log.Debug("generation replaced during fetch; response not cached")
			}
		}
		if storeErr != nil {
			log.WithError(storeErr).Warn("failed to cache network response")
		}
	}
	return &ports.FetchResult{Response: resp, Source: ports.SourceNetwork}, nil
}

// storable rejects partial content and responses that vary on every
// request header, as the browser cache API does.
func storable(req *asset.Request, resp *asset.Response) bool {
	if !req.Cacheable() || resp.Status == http.StatusPartialContent {
		return false
	}
	return strings.TrimSpace(resp.Header.Get("Vary")) != "*"
}

func (s *CacheManagerService) fallback(ctx context.Context, store ports.CacheStore, req *asset.Request, cause error) (*ports.FetchResult, error) {
	log := s.logger.WithFields(logrus.Fields{"key": req.Key(), "cause": cause.Error()})
	if s.cfg.FallbackNavigationOnly && !req.IsNavigation() {
		return nil, fmt.Errorf("%w: %w", asset.ErrNoResponse, cause)
	}
	fallbackReq := asset.NewRequest(asset.ResolveInScope(s.cfg.Scope, s.cfg.FallbackPath))
	cached, ok, err := store.Match(ctx, fallbackReq)
	if err != nil {
		log.WithError(err).Warn("fallback lookup failed")
		return nil, fmt.Errorf("%w: %w", asset.ErrNoResponse, errors.Join(cause, err))
	}
	if !ok {
		log.Debug("network failed and no fallback document cached")
		return nil, fmt.Errorf("%w: %w", asset.ErrNoResponse, cause)
	}
	log.Debug("network failed; serving fallback document")
	return &ports.FetchResult{Response: cached.Response(), Source: ports.SourceFallback}, nil
}

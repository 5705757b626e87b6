package ports

import (
	"context"
	"time"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/core/domain/lifecycle"
	"github.com/google/uuid"
)

// FetchSource tells where the response of a fetch event came from.
type FetchSource string

const (
	SourceCache       FetchSource = "cache"
	SourceNetwork     FetchSource = "network"
	SourceFallback    FetchSource = "fallback"
	SourcePassthrough FetchSource = "passthrough"
)

type FetchResult struct {
	Response *asset.Response
	Source   FetchSource
}

type RegistrationRequest struct {
	Generation asset.Generation `json:"generation"`
	Manifest   asset.Manifest   `json:"manifest,omitempty"`
}

// WorkerStatus describes one cache manager instance.
type WorkerStatus struct {
	ID          uuid.UUID        `json:"id"`
	Generation  asset.Generation `json:"generation"`
	State       lifecycle.State  `json:"state"`
	Manifest    asset.Manifest   `json:"manifest"`
	InstalledAt *time.Time       `json:"installed_at,omitempty"`
	ActivatedAt *time.Time       `json:"activated_at,omitempty"`
}

type CacheManagerStatus struct {
	Scope        string        `json:"scope"`
	FallbackPath string        `json:"fallback_path"`
	Active       *WorkerStatus `json:"active,omitempty"`
	Last         *WorkerStatus `json:"last_registered,omitempty"`
}

// CacheManagerService intercepts requests and keeps the cache current across
// generations.
type CacheManagerService interface {
	// Register installs and activates a generation. It blocks until both
	// barriers complete; callers that do not need readiness run it in a goroutine.
	Register(ctx context.Context, req RegistrationRequest) (*WorkerStatus, error)
	// Resume serves a generation left complete in storage by an earlier
	// process without fetching anything. It fails with asset.ErrNotStored
	// when any manifest entry is missing.
	Resume(ctx context.Context, req RegistrationRequest) (*WorkerStatus, error)
	Fetch(ctx context.Context, req *asset.Request) (*FetchResult, error)
	Status() CacheManagerStatus
	Generations(ctx context.Context) ([]string, error)
}

// CacheObserver receives cache manager events for metrics.
type CacheObserver interface {
	ObserveFetch(source FetchSource)
	ObserveFetchFailure()
	ObserveLifecycle(event lifecycle.EventKind, ok bool)
	SetActiveGeneration(previous, current asset.Generation)
}

package mocks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/core/domain/lifecycle"
	"github.com/avatarctic/funwheel-offline/internal/core/ports"
)

// FetcherMock is a lightweight mock for ports.Fetcher that records calls
type FetcherMock struct {
	FetchFn func(ctx context.Context, req *asset.Request) (*asset.Response, error)

	mu    sync.Mutex
	calls []string
}

func (m *FetcherMock) Fetch(ctx context.Context, req *asset.Request) (*asset.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req.Method+" "+req.Key())
	m.mu.Unlock()
	if m.FetchFn != nil {
		return m.FetchFn(ctx, req)
	}
	return nil, fmt.Errorf("%w: no fetch stub", asset.ErrNetwork)
}

// Calls returns "METHOD key" for every fetch so far
func (m *FetcherMock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *FetcherMock) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

// Origin serves fixed bodies by cache key and fails the network for others.
type Origin struct {
	mu      sync.Mutex
	Assets  map[string]string
	Offline bool
}

func NewOrigin(assets map[string]string) *Origin {
	return &Origin{Assets: assets}
}

func (o *Origin) SetOffline(offline bool) {
	o.mu.Lock()
	o.Offline = offline
	o.mu.Unlock()
}

// Fetch implements the FetcherMock.FetchFn signature
func (o *Origin) Fetch(ctx context.Context, req *asset.Request) (*asset.Response, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Offline {
		return nil, fmt.Errorf("%w: offline", asset.ErrNetwork)
	}
	body, ok := o.Assets[req.Key()]
	if !ok {
		return TextResponse(http.StatusNotFound, "not found"), nil
	}
	return TextResponse(http.StatusOK, body), nil
}

func TextResponse(status int, body string) *asset.Response {
	return &asset.Response{
		Status: status,
		Header: http.Header{"Content-Type": []string{"text/plain"}},
		Body:   io.NopCloser(bytes.NewBufferString(body)),
	}
}

// CacheStorageMock wraps an optional inner storage with per-method overrides
type CacheStorageMock struct {
	Inner    ports.CacheStorage
	OpenFn   func(ctx context.Context, name string) (ports.CacheStore, bool, error)
	DeleteFn func(ctx context.Context, name string) (bool, error)
	KeysFn   func(ctx context.Context) ([]string, error)
}

func (m *CacheStorageMock) Open(ctx context.Context, name string) (ports.CacheStore, bool, error) {
	if m.OpenFn != nil {
		return m.OpenFn(ctx, name)
	}
	return m.Inner.Open(ctx, name)
}

func (m *CacheStorageMock) Has(ctx context.Context, name string) (bool, error) {
	return m.Inner.Has(ctx, name)
}

func (m *CacheStorageMock) Delete(ctx context.Context, name string) (bool, error) {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, name)
	}
	return m.Inner.Delete(ctx, name)
}

func (m *CacheStorageMock) Keys(ctx context.Context) ([]string, error) {
	if m.KeysFn != nil {
		return m.KeysFn(ctx)
	}
	return m.Inner.Keys(ctx)
}

// CacheManagerServiceMock mock
type CacheManagerServiceMock struct {
	RegisterFn    func(ctx context.Context, req ports.RegistrationRequest) (*ports.WorkerStatus, error)
	ResumeFn      func(ctx context.Context, req ports.RegistrationRequest) (*ports.WorkerStatus, error)
	FetchFn       func(ctx context.Context, req *asset.Request) (*ports.FetchResult, error)
	StatusFn      func() ports.CacheManagerStatus
	GenerationsFn func(ctx context.Context) ([]string, error)
}

func (m *CacheManagerServiceMock) Register(ctx context.Context, req ports.RegistrationRequest) (*ports.WorkerStatus, error) {
	if m.RegisterFn != nil {
		return m.RegisterFn(ctx, req)
	}
	return &ports.WorkerStatus{Generation: req.Generation, State: lifecycle.StateActive}, nil
}

func (m *CacheManagerServiceMock) Resume(ctx context.Context, req ports.RegistrationRequest) (*ports.WorkerStatus, error) {
	if m.ResumeFn != nil {
		return m.ResumeFn(ctx, req)
	}
	return nil, asset.ErrNotStored
}

func (m *CacheManagerServiceMock) Fetch(ctx context.Context, req *asset.Request) (*ports.FetchResult, error) {
	if m.FetchFn != nil {
		return m.FetchFn(ctx, req)
	}
	return nil, asset.ErrNoResponse
}

func (m *CacheManagerServiceMock) Status() ports.CacheManagerStatus {
	if m.StatusFn != nil {
		return m.StatusFn()
	}
	return ports.CacheManagerStatus{Scope: "/"}
}

func (m *CacheManagerServiceMock) Generations(ctx context.Context) ([]string, error) {
	if m.GenerationsFn != nil {
		return m.GenerationsFn(ctx)
	}
	return nil, nil
}

// ObserverMock counts observed cache events
type ObserverMock struct {
	mu        sync.Mutex
	Sources   map[ports.FetchSource]int
	Failures  int
	Lifecycle map[string]int
	Active    asset.Generation
}

func NewObserverMock() *ObserverMock {
	return &ObserverMock{Sources: map[ports.FetchSource]int{}, Lifecycle: map[string]int{}}
}

func (o *ObserverMock) ObserveFetch(source ports.FetchSource) {
	o.mu.Lock()
	o.Sources[source]++
	o.mu.Unlock()
}

func (o *ObserverMock) ObserveFetchFailure() {
	o.mu.Lock()
	o.Failures++
	o.mu.Unlock()
}

func (o *ObserverMock) ObserveLifecycle(event lifecycle.EventKind, ok bool) {
	o.mu.Lock()
	o.Lifecycle[fmt.Sprintf("%s:%t", event, ok)]++
	o.mu.Unlock()
}

func (o *ObserverMock) SetActiveGeneration(previous, current asset.Generation) {
	o.mu.Lock()
	o.Active = current
	o.mu.Unlock()
}

// HealthCheckerMock implements ports.HealthChecker
type HealthCheckerMock struct {
	NameValue string
	CheckFn   func(ctx context.Context) error
}

func (m *HealthCheckerMock) Name() string { return m.NameValue }

func (m *HealthCheckerMock) Check(ctx context.Context) error {
	if m.CheckFn != nil {
		return m.CheckFn(ctx)
	}
	return nil
}

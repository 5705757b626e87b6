package memory_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/memory"
)

func stored(url, body string) *asset.StoredResponse {
	return &asset.StoredResponse{
		URL:      asset.NormalizeKey(url),
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": []string{"text/plain"}},
		Body:     []byte(body),
		StoredAt: time.Now().UTC(),
	}
}

func TestCacheStorage_OpenReportsCreation(t *testing.T) {
	ctx := context.Background()
	s := memory.NewCacheStorage()

	_, created, err := s.Open(ctx, "v1")
	require.NoError(t, err)
	require.True(t, created)
	_, created, err = s.Open(ctx, "v1")
	require.NoError(t, err)
	require.False(t, created)

	has, err := s.Has(ctx, "v1")
	require.NoError(t, err)
	require.True(t, has)
}

func TestCacheStorage_PutMatchDelete(t *testing.T) {
	ctx := context.Background()
	s := memory.NewCacheStorage()
	store, _, err := s.Open(ctx, "v1")
	require.NoError(t, err)

	require.NoError(t, store.PutAll(ctx, []asset.Entry{
		{Request: asset.NewRequest("./"), Response: stored("./", "root")},
		{Request: asset.NewRequest("./index.html"), Response: stored("./index.html", "index")},
	}))

	got, ok, err := store.Match(ctx, asset.NewRequest("/"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "root", string(got.Body))

	// returned entries are copies
	got.Body[0] = 'X'
	again, _, _ := store.Match(ctx, asset.NewRequest("/"))
	require.Equal(t, "root", string(again.Body))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"/", "/index.html"}, keys)

	removed, err := store.Delete(ctx, asset.NewRequest("/index.html"))
	require.NoError(t, err)
	require.True(t, removed)
	_, ok, err = store.Match(ctx, asset.NewRequest("/index.html"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheStorage_RejectsNonGet(t *testing.T) {
	ctx := context.Background()
	store, _, err := memory.NewCacheStorage().Open(ctx, "v1")
	require.NoError(t, err)

	post := &asset.Request{Method: http.MethodPost, URL: "/api"}
	require.ErrorIs(t, store.Put(ctx, post, stored("/api", "{}")), asset.ErrNotCacheable)
	_, ok, err := store.Match(ctx, post)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheStorage_DeleteGeneration(t *testing.T) {
	ctx := context.Background()
	s := memory.NewCacheStorage()
	store, _, err := s.Open(ctx, "v1")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, asset.NewRequest("/"), stored("/", "root")))
	_, _, err = s.Open(ctx, "v2")
	require.NoError(t, err)

	removed, err := s.Delete(ctx, "v1")
	require.NoError(t, err)
	require.True(t, removed)
	removed, err = s.Delete(ctx, "v1")
	require.NoError(t, err)
	require.False(t, removed)

	names, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"v2"}, names)

	_, ok, err := store.Match(ctx, asset.NewRequest("/"))
	require.NoError(t, err)
	require.False(t, ok)
}

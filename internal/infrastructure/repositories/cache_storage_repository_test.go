//go:build integration

package repositories_test

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/avatarctic/funwheel-offline/configs"
	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/db"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/repositories"
)

// openDatabase uses POSTGRES_TEST_DSN when set and starts a container otherwise.
func openDatabase(t *testing.T) *db.Database {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		container, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("funwheel_offline"),
			postgres.WithUsername("funwheel"),
			postgres.WithPassword("funwheel"),
			testcontainers.WithWaitStrategyAndDeadline(3*time.Minute,
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			),
		)
		require.NoError(t, err)
		t.Cleanup(func() { _ = container.Terminate(context.Background()) })

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	database, err := db.Open(ctx, &configs.DatabaseConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	version, err := database.Migrate("../../../migrations")
	require.NoError(t, err)
	require.Equal(t, uint(1), version)

	_, err = database.DB.ExecContext(ctx, `TRUNCATE cache_generations CASCADE`)
	require.NoError(t, err)
	return database
}

func stored(body string) *asset.StoredResponse {
	return &asset.StoredResponse{
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": []string{"text/html"}},
		Body:     []byte(body),
		StoredAt: time.Now().UTC(),
	}
}

func TestCacheStorageRepository_Postgres(t *testing.T) {
	ctx := context.Background()
	database := openDatabase(t)
	storage := repositories.NewCacheStorageRepository(database)

	t.Run("open reports creation", func(t *testing.T) {
		_, created, err := storage.Open(ctx, "v1")
		require.NoError(t, err)
		require.True(t, created)
		_, created, err = storage.Open(ctx, "v1")
		require.NoError(t, err)
		require.False(t, created)
	})

	t.Run("put all and match", func(t *testing.T) {
		store, _, err := storage.Open(ctx, "v1")
		require.NoError(t, err)
		require.NoError(t, store.PutAll(ctx, []asset.Entry{
			{Request: asset.NewRequest("./"), Response: stored("root")},
			{Request: asset.NewRequest("./index.html"), Response: stored("index")},
		}))

		got, ok, err := store.Match(ctx, asset.NewRequest("/index.html"))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "index", string(got.Body))
		require.Equal(t, "text/html", got.Header.Get("Content-Type"))

		keys, err := store.Keys(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"/", "/index.html"}, keys)
	})

	t.Run("non-GET batch is rejected whole", func(t *testing.T) {
		store, _, err := storage.Open(ctx, "v1")
		require.NoError(t, err)
		err = store.PutAll(ctx, []asset.Entry{
			{Request: asset.NewRequest("/style.css"), Response: stored("body{}")},
			{Request: &asset.Request{Method: http.MethodPost, URL: "/api"}, Response: stored("{}")},
		})
		require.ErrorIs(t, err, asset.ErrNotCacheable)
		_, ok, err := store.Match(ctx, asset.NewRequest("/style.css"))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("deleting a generation cascades", func(t *testing.T) {
		v2, _, err := storage.Open(ctx, "v2")
		require.NoError(t, err)
		require.NoError(t, v2.Put(ctx, asset.NewRequest("/"), stored("newer")))

		removed, err := storage.Delete(ctx, "v1")
		require.NoError(t, err)
		require.True(t, removed)

		var orphans int
		require.NoError(t, database.DB.GetContext(ctx, &orphans,
			`SELECT COUNT(*) FROM cache_entries WHERE generation = $1`, "v1"))
		require.Zero(t, orphans)

		names, err := storage.Keys(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"v2"}, names)

		has, err := storage.Has(ctx, "v1")
		require.NoError(t, err)
		require.False(t, has)
	})
}

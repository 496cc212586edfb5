// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

//go:build integration

package mapping_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/taibuivan/anisync/internal/anidb/mapping"
	"github.com/taibuivan/anisync/internal/platform/apperr"
	"github.com/taibuivan/anisync/internal/platform/migration"
	"github.com/taibuivan/anisync/pkg/pointer"
)

func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "data", "migrations")
}

func startContainer(t *testing.T, request testcontainers.ContainerRequest, port string) (string, string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: request,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, port)
	require.NoError(t, err)
	return host, mapped.Port()
}

func setupDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()
	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "anisync",
			"POSTGRES_PASSWORD": "anisync",
			"POSTGRES_DB":       "anisync",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")

	dsn := fmt.Sprintf("postgres://anisync:anisync@%s:%s/anisync?sslmode=disable", host, port)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, migration.RunUp(dsn, migrationsPath(), logger))

	version, err := migration.Version(dsn, migrationsPath(), logger)
	require.NoError(t, err)
	require.EqualValues(t, 1, version)

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func setupRedis(t *testing.T) *goredis.Client {
	t.Helper()
	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}, "6379")

	client := goredis.NewClient(&goredis.Options{Addr: host + ":" + port})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

/*
TestPostgresRepository_Integration runs the repository and service against real
PostgreSQL and Redis.
*/
func TestPostgresRepository_Integration(t *testing.T) {
	pool := setupDatabase(t)
	cache := mapping.NewRedisStatisticsCache(setupRedis(t), time.Minute)
	repo := mapping.NewPostgresRepository(pool)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := mapping.NewService(repo, cache, &staticFeed{}, defaultFeedURL, logger)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `INSERT INTO anime (mal_id, title) VALUES (1, 'Cowboy Bebop'), (30, 'Trigun')`)
	require.NoError(t, err)

	t.Run("create_and_conflict", func(t *testing.T) {
		_, err := service.Create(ctx, mapping.CreateInput{AnidbID: 23, MalID: pointer.To(1), Title: pointer.To("Cowboy Bebop"), ConfidenceScore: pointer.To(0.95)})
		require.NoError(t, err)
		_, err = service.Create(ctx, mapping.CreateInput{AnidbID: 72, Title: pointer.To("Trigun 100%")})
		require.NoError(t, err)

		_, err = service.Create(ctx, mapping.CreateInput{AnidbID: 23})
		assert.Equal(t, http.StatusConflict, apperr.Status(err))

		dup := &mapping.Mapping{ID: "0190a000-0000-7000-8000-0000000000ff", AnidbID: 23, Source: mapping.SourceAuto}
		assert.Equal(t, http.StatusConflict, apperr.Status(repo.Create(ctx, dup)))
	})

	t.Run("search", func(t *testing.T) {
		matches, err := service.Search(ctx, mapping.SearchRequest{Query: "bebop"})
		require.NoError(t, err)
		require.Len(t, matches, 1)

		matches, err = service.Search(ctx, mapping.SearchRequest{Query: "100%"})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, 72, matches[0].AnidbID)

		matches, err = service.Search(ctx, mapping.SearchRequest{Query: "0%"})
		require.NoError(t, err)
		assert.Len(t, matches, 1, "percent is matched literally")
	})

	t.Run("statistics_cached_and_invalidated", func(t *testing.T) {
		stats, err := service.Statistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TotalMappings)
		assert.Equal(t, 1, stats.UnmappedCount)
		assert.InDelta(t, 0.95, *stats.AverageConfidence, 1e-9)

		_, err = service.Update(ctx, 72, mapping.UpdateInput{MalID: pointer.To(30)})
		require.NoError(t, err)

		stats, err = service.Statistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.UnmappedCount)
	})

	t.Run("list_sorted", func(t *testing.T) {
		result, err := service.List(ctx, mapping.ListParams{Limit: 1, SortBy: mapping.SortAnidbID, SortOrder: mapping.SortDesc})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Total)
		require.Len(t, result.Mappings, 1)
		assert.Equal(t, 72, result.Mappings[0].AnidbID)
	})

	t.Run("refresh_rescores", func(t *testing.T) {
		result, err := service.Refresh(ctx, mapping.RefreshRequest{})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Updated)

		m, err := service.Get(ctx, 23)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, *m.ConfidenceScore, 1e-9)
	})

	t.Run("bulk_delete_atomic", func(t *testing.T) {
		_, err := service.BulkDelete(ctx, mapping.BulkDeleteRequest{AnidbIDs: []int{23, 999}})
		assert.Equal(t, http.StatusNotFound, apperr.Status(err))

		_, err = service.Get(ctx, 23)
		require.NoError(t, err, "nothing deleted on partial miss")

		result, err := service.BulkDelete(ctx, mapping.BulkDeleteRequest{AnidbIDs: []int{23, 72}})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Deleted)
	})
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mapping_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/anisync/internal/anidb/mapping"
	"github.com/taibuivan/anisync/internal/platform/apperr"
	"github.com/taibuivan/anisync/pkg/pointer"
)

// # Fakes

type memoryRepository struct {
	mu        sync.Mutex
	rows      map[int]*mapping.Mapping
	catalog   map[int]string
	failScore map[int]bool

	// afterStatistics runs once the snapshot is computed, before it is returned.
	afterStatistics func()
}

func newMemoryRepository(rows ...*mapping.Mapping) *memoryRepository {
	repo := &memoryRepository{
		rows:      make(map[int]*mapping.Mapping),
		catalog:   make(map[int]string),
		failScore: make(map[int]bool),
	}
	for _, row := range rows {
		repo.rows[row.AnidbID] = row
	}
	return repo
}

func (repo *memoryRepository) sorted(keep func(*mapping.Mapping) bool) []*mapping.Mapping {
	out := make([]*mapping.Mapping, 0)
	for _, row := range repo.rows {
		if keep(row) {
			clone := *row
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnidbID < out[j].AnidbID })
	return out
}

func window(rows []*mapping.Mapping, offset, limit int) []*mapping.Mapping {
	if offset >= len(rows) {
		return []*mapping.Mapping{}
	}
	end := min(offset+limit, len(rows))
	return rows[offset:end]
}

func (repo *memoryRepository) List(_ context.Context, params mapping.ListParams) ([]*mapping.Mapping, int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	rows := repo.sorted(func(m *mapping.Mapping) bool {
		return params.SourceFilter == nil || m.Source == *params.SourceFilter
	})
	if params.SortOrder == mapping.SortDesc {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].AnidbID > rows[j].AnidbID })
	}
	return window(rows, params.Offset, params.Limit), len(rows), nil
}

func (repo *memoryRepository) ListUnmapped(_ context.Context, limit int) ([]*mapping.Mapping, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return window(repo.sorted(func(m *mapping.Mapping) bool { return !m.IsMapped() }), 0, limit), nil
}

func (repo *memoryRepository) FindByAnidbID(_ context.Context, anidbID int) (*mapping.Mapping, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	row, ok := repo.rows[anidbID]
	if !ok {
		return nil, mapping.ErrNotFound
	}
	clone := *row
	return &clone, nil
}

func (repo *memoryRepository) SearchByID(_ context.Context, id int, limit int) ([]*mapping.Mapping, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return window(repo.sorted(func(m *mapping.Mapping) bool {
		return m.AnidbID == id || (m.MalID != nil && *m.MalID == id)
	}), 0, limit), nil
}

func (repo *memoryRepository) SearchByTitle(_ context.Context, query string, limit int) ([]*mapping.Mapping, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return window(repo.sorted(func(m *mapping.Mapping) bool {
		return m.Title != nil && strings.Contains(strings.ToLower(*m.Title), strings.ToLower(query))
	}), 0, limit), nil
}

func (repo *memoryRepository) Create(_ context.Context, m *mapping.Mapping) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, ok := repo.rows[m.AnidbID]; ok {
		return apperr.Conflict("duplicate")
	}
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	clone := *m
	repo.rows[m.AnidbID] = &clone
	return nil
}

func (repo *memoryRepository) Update(_ context.Context, anidbID int, patch mapping.UpdateInput) (*mapping.Mapping, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	row, ok := repo.rows[anidbID]
	if !ok {
		return nil, mapping.ErrNotFound
	}
	if patch.MalID != nil {
		row.MalID = patch.MalID
	}
	if patch.Title != nil {
		row.Title = patch.Title
	}
	if patch.ConfidenceScore != nil {
		row.ConfidenceScore = patch.ConfidenceScore
	}
	if patch.Source != nil {
		row.Source = *patch.Source
	}
	clone := *row
	return &clone, nil
}

func (repo *memoryRepository) Delete(_ context.Context, anidbID int) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, ok := repo.rows[anidbID]; !ok {
		return mapping.ErrNotFound
	}
	delete(repo.rows, anidbID)
	return nil
}

func (repo *memoryRepository) BulkDelete(_ context.Context, ids []int) (int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, id := range ids {
		if _, ok := repo.rows[id]; !ok {
			return 0, apperr.NotFound("Mappings")
		}
	}
	deleted := 0
	for _, id := range ids {
		if _, ok := repo.rows[id]; ok {
			delete(repo.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

func (repo *memoryRepository) Statistics(_ context.Context) (*mapping.Statistics, error) {
	stats := repo.snapshot()
	if repo.afterStatistics != nil {
		repo.afterStatistics()
	}
	return stats, nil
}

func (repo *memoryRepository) snapshot() *mapping.Statistics {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	stats := &mapping.Statistics{TotalMappings: len(repo.rows)}
	sum, scored := 0.0, 0
	for _, row := range repo.rows {
		if row.IsMapped() {
			stats.MappedCount++
		}
		switch row.Source {
		case mapping.SourceManual:
			stats.ManualCount++
		case mapping.SourceAuto:
			stats.AutoCount++
		case mapping.SourceGithubFile:
			stats.GithubCount++
		case mapping.SourceJellyfinWebhook:
			stats.JellyfinCount++
		}
		if row.ConfidenceScore != nil {
			sum += *row.ConfidenceScore
			scored++
		}
	}
	stats.UnmappedCount = stats.TotalMappings - stats.MappedCount
	if scored > 0 {
		stats.AverageConfidence = pointer.To(sum / float64(scored))
	}
	return stats
}

func (repo *memoryRepository) ListScoringCandidates(_ context.Context, after int, limit int) ([]mapping.ScoringCandidate, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	rows := repo.sorted(func(m *mapping.Mapping) bool {
		if m.AnidbID <= after || m.MalID == nil || m.Title == nil {
			return false
		}
		_, ok := repo.catalog[*m.MalID]
		return ok
	})
	out := make([]mapping.ScoringCandidate, 0)
	for _, row := range window(rows, 0, limit) {
		out = append(out, mapping.ScoringCandidate{
			AnidbID:         row.AnidbID,
			Title:           *row.Title,
			ConfidenceScore: row.ConfidenceScore,
			MalTitle:        repo.catalog[*row.MalID],
		})
	}
	return out, nil
}

func (repo *memoryRepository) UpdateScore(_ context.Context, anidbID int, score float64) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.failScore[anidbID] {
		return errors.New("boom")
	}
	repo.rows[anidbID].ConfidenceScore = pointer.To(score)
	return nil
}

type memoryCache struct {
	stats       *mapping.Statistics
	invalidated int
	failGet     bool
}

func (cache *memoryCache) Get(context.Context) (*mapping.Statistics, bool, error) {
	if cache.failGet {
		return nil, false, errors.New("redis down")
	}
	if cache.stats == nil {
		return nil, false, nil
	}
	return cache.stats, true, nil
}

func (cache *memoryCache) Set(_ context.Context, stats *mapping.Statistics) error {
	cache.stats = stats
	return nil
}

func (cache *memoryCache) Invalidate(context.Context) error {
	cache.stats = nil
	cache.invalidated++
	return nil
}

type staticFeed struct {
	entries map[string][]mapping.FeedEntry
	err     error
}

func (feed *staticFeed) Fetch(_ context.Context, url string) ([]mapping.FeedEntry, error) {
	if feed.err != nil {
		return nil, feed.err
	}
	return feed.entries[url], nil
}

const defaultFeedURL = "https://feeds.example/mappings.json"

func newTestService(repo *memoryRepository, cache *memoryCache, feed *staticFeed) *mapping.Service {
	if feed == nil {
		feed = &staticFeed{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cache == nil {
		return mapping.NewService(repo, nil, feed, defaultFeedURL, logger)
	}
	return mapping.NewService(repo, cache, feed, defaultFeedURL, logger)
}

func mapped(anidbID, malID int, title string, source mapping.Source) *mapping.Mapping {
	return &mapping.Mapping{
		ID:      "id-" + title,
		AnidbID: anidbID,
		MalID:   pointer.To(malID),
		Title:   pointer.To(title),
		Source:  source,
	}
}

func unmapped(anidbID int, title string) *mapping.Mapping {
	return &mapping.Mapping{ID: "id-" + title, AnidbID: anidbID, Title: pointer.To(title), Source: mapping.SourceJellyfinWebhook}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	return apperr.Status(err)
}

// # Lookups

/*
TestService_List checks defaults, validation and pagination totals.
*/
func TestService_List(t *testing.T) {
	repo := newMemoryRepository(
		mapped(1, 10, "A", mapping.SourceManual),
		mapped(2, 20, "B", mapping.SourceAuto),
		unmapped(3, "C"),
	)
	service := newTestService(repo, nil, nil)
	ctx := context.Background()

	result, err := service.List(ctx, mapping.ListParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Len(t, result.Mappings, 2)
	assert.Equal(t, 1, result.Mappings[0].AnidbID)

	result, err = service.List(ctx, mapping.ListParams{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, result.Mappings)
	assert.Equal(t, 3, result.Total)

	source := mapping.SourceAuto
	result, err = service.List(ctx, mapping.ListParams{Limit: 10, SourceFilter: &source})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)

	for _, params := range []mapping.ListParams{
		{Limit: 0},
		{Limit: 1001},
		{Limit: 10, Offset: -1},
		{Limit: 10, SortBy: "nope"},
		{Limit: 10, SortOrder: "sideways"},
		{Limit: 10, SourceFilter: pointer.To(mapping.Source("rss"))},
	} {
		_, err := service.List(ctx, params)
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err), "%+v", params)
	}
}

/*
TestService_LookupMalID distinguishes mapped, unmapped and unknown ids.
*/
func TestService_LookupMalID(t *testing.T) {
	service := newTestService(newMemoryRepository(mapped(23, 1, "Cowboy Bebop", mapping.SourceManual), unmapped(72, "Trigun")), nil, nil)
	ctx := context.Background()

	result, err := service.LookupMalID(ctx, 23)
	require.NoError(t, err)
	assert.Equal(t, &mapping.LookupResult{AnidbID: 23, MalID: 1}, result)

	_, err = service.LookupMalID(ctx, 72)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = service.LookupMalID(ctx, 999)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = service.LookupMalID(ctx, 0)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

/*
TestService_Search prefers id matches and falls back to titles.
*/
func TestService_Search(t *testing.T) {
	service := newTestService(newMemoryRepository(
		mapped(23, 1, "Cowboy Bebop", mapping.SourceManual),
		mapped(5, 23, "Other", mapping.SourceAuto),
		mapped(100, 200, "Area 88", mapping.SourceAuto),
	), nil, nil)
	ctx := context.Background()

	matches, err := service.Search(ctx, mapping.SearchRequest{Query: " 23 "})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 5, matches[0].AnidbID)
	assert.Equal(t, 23, matches[1].AnidbID)

	matches, err = service.Search(ctx, mapping.SearchRequest{Query: "88"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 100, matches[0].AnidbID)

	matches, err = service.Search(ctx, mapping.SearchRequest{Query: "bebop"})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	_, err = service.Search(ctx, mapping.SearchRequest{Query: "   "})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = service.Search(ctx, mapping.SearchRequest{Query: "x", Limit: 101})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

// # Mutations

/*
TestService_Create checks defaults, rounding and conflicts.
*/
func TestService_Create(t *testing.T) {
	cache := &memoryCache{}
	repo := newMemoryRepository()
	service := newTestService(repo, cache, nil)
	ctx := context.Background()

	created, err := service.Create(ctx, mapping.CreateInput{
		AnidbID:         23,
		MalID:           pointer.To(1),
		Title:           pointer.To("Cowboy Bebop"),
		ConfidenceScore: pointer.To(0.876),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, mapping.SourceManual, created.Source)
	assert.InDelta(t, 0.88, *created.ConfidenceScore, 1e-9)
	assert.Equal(t, 1, cache.invalidated)

	_, err = service.Create(ctx, mapping.CreateInput{AnidbID: 23})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
	assert.Contains(t, err.Error(), "23")
}

/*
TestService_Create_Validation rejects each invalid field.
*/
func TestService_Create_Validation(t *testing.T) {
	service := newTestService(newMemoryRepository(), nil, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		input mapping.CreateInput
	}{
		{"zero_anidb_id", mapping.CreateInput{AnidbID: 0}},
		{"negative_mal_id", mapping.CreateInput{AnidbID: 1, MalID: pointer.To(-1)}},
		{"score_above_one", mapping.CreateInput{AnidbID: 1, ConfidenceScore: pointer.To(1.5)}},
		{"score_negative", mapping.CreateInput{AnidbID: 1, ConfidenceScore: pointer.To(-0.1)}},
		{"long_title", mapping.CreateInput{AnidbID: 1, Title: pointer.To(strings.Repeat("x", 256))}},
		{"unknown_source", mapping.CreateInput{AnidbID: 1, Source: "rss"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(ctx, tt.input)
			assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
		})
	}
}

/*
TestService_Update applies only the provided fields.
*/
func TestService_Update(t *testing.T) {
	cache := &memoryCache{}
	repo := newMemoryRepository(mapped(23, 1, "Cowboy Bebop", mapping.SourceAuto))
	service := newTestService(repo, cache, nil)
	ctx := context.Background()

	updated, err := service.Update(ctx, 23, mapping.UpdateInput{ConfidenceScore: pointer.To(0.555)})
	require.NoError(t, err)
	assert.Equal(t, 1, *updated.MalID)
	assert.Equal(t, "Cowboy Bebop", *updated.Title)
	assert.InDelta(t, 0.56, *updated.ConfidenceScore, 1e-9)
	assert.Equal(t, 1, cache.invalidated)

	_, err = service.Update(ctx, 999, mapping.UpdateInput{Title: pointer.To("x")})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = service.Update(ctx, 23, mapping.UpdateInput{MalID: pointer.To(0)})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

/*
TestService_UpdateEmptyPatch rejects a patch without fields and leaves the record alone.
*/
func TestService_UpdateEmptyPatch(t *testing.T) {
	cache := &memoryCache{}
	repo := newMemoryRepository(mapped(23, 1, "Cowboy Bebop", mapping.SourceAuto))
	service := newTestService(repo, cache, nil)

	_, err := service.Update(context.Background(), 23, mapping.UpdateInput{})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	require.Len(t, appErr.Details, 1)
	assert.Equal(t, mapping.FieldPatch, appErr.Details[0].Field)
	assert.Equal(t, 0, cache.invalidated)
}

/*
TestService_StatisticsRacingMutation does not cache a snapshot that a
mutation invalidated while it was being read.
*/
func TestService_StatisticsRacingMutation(t *testing.T) {
	cache := &memoryCache{}
	repo := newMemoryRepository(
		mapped(23, 1, "Cowboy Bebop", mapping.SourceAuto),
		mapped(72, 6, "Trigun", mapping.SourceAuto),
	)
	service := newTestService(repo, cache, nil)
	ctx := context.Background()

	repo.afterStatistics = func() {
		repo.afterStatistics = nil
		require.NoError(t, service.Delete(ctx, 72))
	}

	stale, err := service.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stale.TotalMappings)
	assert.Nil(t, cache.stats)
	assert.Equal(t, 1, cache.invalidated)

	fresh, err := service.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.TotalMappings)
	require.NotNil(t, cache.stats)
	assert.Equal(t, 1, cache.stats.TotalMappings)
}

/*
TestService_Delete removes records and reports unknown ids.
*/
func TestService_Delete(t *testing.T) {
	cache := &memoryCache{}
	repo := newMemoryRepository(mapped(23, 1, "Cowboy Bebop", mapping.SourceAuto))
	service := newTestService(repo, cache, nil)
	ctx := context.Background()

	require.NoError(t, service.Delete(ctx, 23))
	assert.Equal(t, 1, cache.invalidated)

	err := service.Delete(ctx, 23)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

/*
TestService_BulkDelete validates the id list and deletes all or nothing.
*/
func TestService_BulkDelete(t *testing.T) {
	repo := newMemoryRepository(
		mapped(1, 10, "A", mapping.SourceAuto),
		mapped(2, 20, "B", mapping.SourceAuto),
	)
	service := newTestService(repo, &memoryCache{}, nil)
	ctx := context.Background()

	_, err := service.BulkDelete(ctx, mapping.BulkDeleteRequest{})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = service.BulkDelete(ctx, mapping.BulkDeleteRequest{AnidbIDs: []int{1, -2}})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = service.BulkDelete(ctx, mapping.BulkDeleteRequest{AnidbIDs: []int{1, 3}})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	assert.Len(t, repo.rows, 2)

	result, err := service.BulkDelete(ctx, mapping.BulkDeleteRequest{AnidbIDs: []int{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Deleted)
	assert.Empty(t, repo.rows)
}

// # Statistics

/*
TestService_Statistics rounds the average and serves repeated reads from cache.
*/
func TestService_Statistics(t *testing.T) {
	a := mapped(1, 10, "A", mapping.SourceManual)
	a.ConfidenceScore = pointer.To(0.9)
	b := mapped(2, 20, "B", mapping.SourceGithubFile)
	b.ConfidenceScore = pointer.To(0.44)
	repo := newMemoryRepository(a, b, unmapped(3, "C"))
	cache := &memoryCache{}
	service := newTestService(repo, cache, nil)
	ctx := context.Background()

	stats, err := service.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalMappings)
	assert.Equal(t, 2, stats.MappedCount)
	assert.Equal(t, 1, stats.UnmappedCount)
	assert.Equal(t, 1, stats.ManualCount)
	assert.Equal(t, 1, stats.GithubCount)
	assert.Equal(t, 1, stats.JellyfinCount)
	assert.InDelta(t, 0.67, *stats.AverageConfidence, 1e-9)
	require.NotNil(t, cache.stats)

	delete(repo.rows, 3)
	stats, err = service.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalMappings, "served from cache")

	cache.failGet = true
	stats, err = service.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMappings, "cache failure falls through")
}

/*
TestService_Statistics_Empty leaves the average unset when nothing is scored.
*/
func TestService_Statistics_Empty(t *testing.T) {
	stats, err := newTestService(newMemoryRepository(), nil, nil).Statistics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalMappings)
	assert.Nil(t, stats.AverageConfidence)
}

// # Refresh

/*
TestService_Refresh_DefaultFeed loads the configured feed, keeps manual rows and re-scores.
*/
func TestService_Refresh_DefaultFeed(t *testing.T) {
	manual := mapped(1, 10, "Manual Title", mapping.SourceManual)
	auto := mapped(2, 20, "Naruto", mapping.SourceAuto)
	repo := newMemoryRepository(manual, auto)
	repo.catalog[20] = "Narute"
	repo.catalog[30] = "Trigun"

	feed := &staticFeed{entries: map[string][]mapping.FeedEntry{
		defaultFeedURL: {
			{AnidbID: 1, MalID: pointer.To(99), Title: pointer.To("Overwrite")},
			{AnidbID: 3, MalID: pointer.To(30), Title: pointer.To("Trigun")},
			{AnidbID: 0, MalID: pointer.To(1)},
			{AnidbID: 4, MalID: pointer.To(-5)},
		},
	}}
	cache := &memoryCache{stats: &mapping.Statistics{}}
	service := newTestService(repo, cache, feed)

	result, err := service.Refresh(context.Background(), mapping.RefreshRequest{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Loaded)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, "Refresh completed: 1 loaded, 2 updated, 1 errors", result.Message)
	assert.Nil(t, cache.stats)

	assert.Equal(t, 10, *repo.rows[1].MalID, "manual mapping untouched")
	assert.Equal(t, mapping.SourceGithubFile, repo.rows[3].Source)
	assert.InDelta(t, 1.0, *repo.rows[3].ConfidenceScore, 1e-9)
	assert.InDelta(t, 0.67, *repo.rows[2].ConfidenceScore, 1e-9)
}

/*
TestService_Refresh_DefaultFeedUnavailable counts the failed download and still re-scores.
*/
func TestService_Refresh_DefaultFeedUnavailable(t *testing.T) {
	repo := newMemoryRepository(mapped(2, 20, "Naruto", mapping.SourceAuto))
	repo.catalog[20] = "Naruto"
	service := newTestService(repo, nil, &staticFeed{err: errors.New("dns")})

	result, err := service.Refresh(context.Background(), mapping.RefreshRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Loaded)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Errors)
}

/*
TestService_Refresh_ExplicitSource loads only the given feed.
*/
func TestService_Refresh_ExplicitSource(t *testing.T) {
	source := "https://mirror.example/feed.json"
	repo := newMemoryRepository()
	feed := &staticFeed{entries: map[string][]mapping.FeedEntry{
		source: {{AnidbID: 7, MalID: pointer.To(70), Title: pointer.To("Seven")}},
	}}
	service := newTestService(repo, nil, feed)
	ctx := context.Background()

	result, err := service.Refresh(ctx, mapping.RefreshRequest{SourceURL: &source})
	require.NoError(t, err)
	assert.Equal(t, "Refresh completed: 1 loaded, 0 updated", result.Message)
	require.Contains(t, repo.rows, 7)

	_, err = service.Refresh(ctx, mapping.RefreshRequest{SourceURL: pointer.To("ftp://nope")})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	failing := newTestService(repo, nil, &staticFeed{err: errors.New("timeout")})
	_, err = failing.Refresh(ctx, mapping.RefreshRequest{SourceURL: &source})
	assert.Equal(t, http.StatusBadGateway, statusOf(t, err))
}

/*
TestService_Score delegates to the similarity function.
*/
func TestService_Score(t *testing.T) {
	result := newTestService(newMemoryRepository(), nil, nil).Score(mapping.ScoreRequest{
		AnidbTitle: "Naruto",
		MalTitle:   "Narute",
	})
	assert.InDelta(t, 0.67, result.ConfidenceScore, 1e-9)
	assert.Equal(t, "Naruto", result.AnidbTitle)
}

// # Jellyfin

/*
TestService_HandleJellyfin covers mapped, unmapped, new and unresolvable payloads.
*/
func TestService_HandleJellyfin(t *testing.T) {
	repo := newMemoryRepository(mapped(23, 1, "Cowboy Bebop", mapping.SourceManual), unmapped(72, "Trigun"))
	cache := &memoryCache{}
	service := newTestService(repo, cache, nil)
	ctx := context.Background()

	result, err := service.HandleJellyfin(ctx, &mapping.JellyfinPayload{ProviderIDs: map[string]string{"anidb": "23"}})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, *result.MalID)

	result, err = service.HandleJellyfin(ctx, &mapping.JellyfinPayload{ProviderIDs: map[string]string{"anidb": "72"}})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 72, *result.AnidbID)
	assert.Zero(t, cache.invalidated)

	result, err = service.HandleJellyfin(ctx, &mapping.JellyfinPayload{ItemName: "Ep 1", SeriesName: pointer.To("Mushishi [3000]")})
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Contains(t, repo.rows, 3000)
	assert.Equal(t, mapping.SourceJellyfinWebhook, repo.rows[3000].Source)
	assert.Equal(t, "Mushishi [3000]", *repo.rows[3000].Title)
	assert.Nil(t, repo.rows[3000].MalID)
	assert.Equal(t, 1, cache.invalidated)

	result, err = service.HandleJellyfin(ctx, &mapping.JellyfinPayload{ItemName: "Nothing here"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Nil(t, result.AnidbID)
	assert.NotEmpty(t, result.Errors)
}

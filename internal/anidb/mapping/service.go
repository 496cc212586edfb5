// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mapping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/taibuivan/anisync/internal/platform/apperr"
	"github.com/taibuivan/anisync/internal/platform/validate"
	"github.com/taibuivan/anisync/pkg/pagination"
	"github.com/taibuivan/anisync/pkg/pointer"
	"github.com/taibuivan/anisync/pkg/slice"
	"github.com/taibuivan/anisync/pkg/uuidv7"
)

// # Limits

const (
	DefaultListLimit     = pagination.DefaultLimit
	MaxListLimit         = pagination.MaxLimit
	DefaultSearchLimit   = 50
	MaxSearchLimit       = 100
	DefaultUnmappedLimit = 100
	MaxBulkDeleteIDs     = 1000

	// rescoreBatchSize is the page size used when re-scoring against the catalog.
	rescoreBatchSize = 500
)

// # Service Layer

// Service orchestrates the business rules for AniDB mappings.
type Service struct {
	repo    Repository
	cache   StatisticsCache
	feed    FeedFetcher
	feedURL string
	logger  *slog.Logger

	// cacheMu orders snapshot writes against invalidations. generation counts
	// invalidations so a read that raced a mutation does not cache its result.
	cacheMu    sync.Mutex
	generation uint64
}

// NewService constructs a new [Service]. cache may be nil to disable caching.
func NewService(repo Repository, cache StatisticsCache, feed FeedFetcher, feedURL string, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		cache:   cache,
		feed:    feed,
		feedURL: feedURL,
		logger:  logger,
	}
}

// # Lookups

/*
List returns one window of mappings.

Description: Missing sort settings default to anidb_id ascending. The
limit must be within 1..1000.

Parameters:
  - ctx: context.Context
  - params: ListParams

Returns:
  - *ListResult: Window, total and the effective limit/offset
  - error: VALIDATION_ERROR for bad parameters
*/
func (service *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.SortBy == "" {
		params.SortBy = SortAnidbID
	}
	if params.SortOrder == "" {
		params.SortOrder = SortAsc
	}

	validator := &validate.Validator{}
	validator.
		Range(FieldLimit, params.Limit, 1, MaxListLimit).
		Custom("offset", params.Offset < 0, "Must not be negative").
		Custom("sort_by", !params.SortBy.Valid(), "Unknown sort field").
		Custom("sort_order", !params.SortOrder.Valid(), "Must be one of: asc, desc")
	if params.SourceFilter != nil {
		validator.Custom("source_filter", !params.SourceFilter.Valid(), "Unknown source")
	}
	if err := validator.Err(); err != nil {
		return nil, err
	}

	mappings, total, err := service.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Mappings: mappings,
		Total:    total,
		Limit:    params.Limit,
		Offset:   params.Offset,
	}, nil
}

// ListUnmapped returns records still waiting for a MAL id.
func (service *Service) ListUnmapped(ctx context.Context, limit int) ([]*Mapping, error) {
	if err := (&validate.Validator{}).Range(FieldLimit, limit, 1, MaxListLimit).Err(); err != nil {
		return nil, err
	}
	return service.repo.ListUnmapped(ctx, limit)
}

// Get returns the mapping for an AniDB id.
func (service *Service) Get(ctx context.Context, anidbID int) (*Mapping, error) {
	if err := (&validate.Validator{}).Positive(FieldAnidbID, anidbID).Err(); err != nil {
		return nil, err
	}
	return service.repo.FindByAnidbID(ctx, anidbID)
}

// LookupMalID resolves an AniDB id to its MAL id. Unmapped records are reported as not found.
func (service *Service) LookupMalID(ctx context.Context, anidbID int) (*LookupResult, error) {
	mapping, err := service.Get(ctx, anidbID)
	if err != nil {
		return nil, err
	}
	if !mapping.IsMapped() {
		return nil, apperr.NotFound(fmt.Sprintf("MAL ID for AniDB ID %d", anidbID))
	}
	return &LookupResult{AnidbID: anidbID, MalID: *mapping.MalID}, nil
}

/*
Search finds mappings by id or title.

Description: A numeric query is first matched against both id columns.
When that finds nothing, or the query is not numeric, the title is
searched case-insensitively.

Parameters:
  - ctx: context.Context
  - request: SearchRequest (Query is trimmed; limit defaults to 50)

Returns:
  - []*Mapping: Matches ordered by AniDB id
  - error: VALIDATION_ERROR for an empty query or bad limit
*/
func (service *Service) Search(ctx context.Context, request SearchRequest) ([]*Mapping, error) {
	query := strings.TrimSpace(request.Query)
	limit := request.Limit
	if limit == 0 {
		limit = DefaultSearchLimit
	}

	validator := &validate.Validator{}
	validator.Required(FieldQuery, query).Range(FieldLimit, limit, 1, MaxSearchLimit)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	if id, err := strconv.Atoi(query); err == nil {
		matches, err := service.repo.SearchByID(ctx, id, limit)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			return matches, nil
		}
	}

	return service.repo.SearchByTitle(ctx, query, limit)
}

// # Mutations

/*
Create persists a new mapping.

Description: The source defaults to manual and the score is rounded to two
decimals. An AniDB id that is already mapped is a conflict.

Parameters:
  - ctx: context.Context
  - input: CreateInput

Returns:
  - *Mapping: The stored record
  - error: VALIDATION_ERROR, CONFLICT or persistence errors
*/
func (service *Service) Create(ctx context.Context, input CreateInput) (*Mapping, error) {
	if input.Source == "" {
		input.Source = SourceManual
	}

	validator := &validate.Validator{}
	validator.Positive(FieldAnidbID, input.AnidbID)
	validateFields(validator, input.MalID, input.Title, input.ConfidenceScore, &input.Source)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	// Duplicate check up front gives a precise message; the unique index still guards races.
	if _, err := service.repo.FindByAnidbID(ctx, input.AnidbID); err == nil {
		return nil, duplicateError(input.AnidbID)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	mapping := &Mapping{
		ID:              uuidv7.New(),
		AnidbID:         input.AnidbID,
		MalID:           input.MalID,
		Title:           input.Title,
		ConfidenceScore: roundedScore(input.ConfidenceScore),
		Source:          input.Source,
	}

	if err := service.repo.Create(ctx, mapping); err != nil {
		return nil, err
	}

	service.invalidateStatistics(ctx)
	service.logger.InfoContext(ctx, "mapping_created",
		slog.Int("anidb_id", mapping.AnidbID),
		slog.Any("mal_id", mapping.MalID),
		slog.String("source", string(mapping.Source)),
	)

	return mapping, nil
}

/*
Update applies a partial patch to an existing mapping.

Parameters:
  - ctx: context.Context
  - anidbID: int (Immutable key of the record)
  - patch: UpdateInput (Only non-nil fields are applied)

Returns:
  - *Mapping: The record after the update
  - error: VALIDATION_ERROR, NOT_FOUND or persistence errors
*/
func (service *Service) Update(ctx context.Context, anidbID int, patch UpdateInput) (*Mapping, error) {
	validator := &validate.Validator{}
	validator.Positive(FieldAnidbID, anidbID)
	validator.Custom(FieldPatch, patch.Empty(), "At least one field must be provided")
	validateFields(validator, patch.MalID, patch.Title, patch.ConfidenceScore, patch.Source)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	patch.ConfidenceScore = roundedScore(patch.ConfidenceScore)

	mapping, err := service.repo.Update(ctx, anidbID, patch)
	if err != nil {
		return nil, err
	}

	service.invalidateStatistics(ctx)
	service.logger.InfoContext(ctx, "mapping_updated",
		slog.Int("anidb_id", anidbID),
		slog.Any("mal_id", mapping.MalID),
	)

	return mapping, nil
}

// Delete removes one mapping.
func (service *Service) Delete(ctx context.Context, anidbID int) error {
	if err := (&validate.Validator{}).Positive(FieldAnidbID, anidbID).Err(); err != nil {
		return err
	}

	if err := service.repo.Delete(ctx, anidbID); err != nil {
		return err
	}

	service.invalidateStatistics(ctx)
	service.logger.InfoContext(ctx, "mapping_deleted", slog.Int("anidb_id", anidbID))
	return nil
}

/*
BulkDelete removes a set of mappings atomically.

Description: Either every listed record is deleted or, when any id is
unknown, none is.

Parameters:
  - ctx: context.Context
  - request: BulkDeleteRequest

Returns:
  - *BulkDeleteResult: Number of deleted records
  - error: VALIDATION_ERROR, NOT_FOUND naming missing ids, or persistence errors
*/
func (service *Service) BulkDelete(ctx context.Context, request BulkDeleteRequest) (*BulkDeleteResult, error) {
	validator := &validate.Validator{}
	validator.
		Custom(FieldAnidbIDs, len(request.AnidbIDs) == 0, "At least one AniDB ID is required").
		Custom(FieldAnidbIDs, len(request.AnidbIDs) > MaxBulkDeleteIDs, fmt.Sprintf("At most %d AniDB IDs per request", MaxBulkDeleteIDs)).
		Custom(FieldAnidbIDs, len(slice.Filter(request.AnidbIDs, func(id int) bool { return id <= 0 })) > 0, "AniDB IDs must be positive integers")
	if err := validator.Err(); err != nil {
		return nil, err
	}

	deleted, err := service.repo.BulkDelete(ctx, request.AnidbIDs)
	if err != nil {
		return nil, err
	}

	service.invalidateStatistics(ctx)
	service.logger.InfoContext(ctx, "mappings_bulk_deleted", slog.Int("deleted", deleted))

	return &BulkDeleteResult{Deleted: deleted}, nil
}

// validateFields checks the optional record fields shared by create and update.
func validateFields(validator *validate.Validator, malID *int, title *string, score *float64, source *Source) {
	if malID != nil {
		validator.Positive(FieldMalID, *malID)
	}
	if title != nil {
		validator.MaxLen(FieldTitle, *title, MaxTitleLength)
	}
	if score != nil {
		validator.FloatRange(FieldConfidenceScore, *score, 0, 1)
	}
	if source != nil {
		validator.OneOf(FieldSource, string(*source), sourceNames()...)
	}
}

func sourceNames() []string {
	return slice.Map(Sources, func(s Source) string { return string(s) })
}

func roundedScore(score *float64) *float64 {
	if score == nil {
		return nil
	}
	return pointer.To(RoundScore(*score))
}

// # Statistics

/*
Statistics returns the aggregate snapshot.

Description: The snapshot is served from the cache when present. Cache
failures are logged and fall through to the database. A snapshot read
while a mutation of this instance invalidated the cache is returned but
not cached. Mutations on other instances can still race the write; the
cache TTL bounds that window.

Returns:
  - *Statistics: Snapshot with the average rounded to two decimals
  - error: Persistence errors
*/
func (service *Service) Statistics(ctx context.Context) (*Statistics, error) {
	if service.cache != nil {
		cached, ok, err := service.cache.Get(ctx)
		if err != nil {
			service.logger.WarnContext(ctx, "statistics_cache_read_failed", slog.Any("error", err))
		} else if ok {
			return cached, nil
		}
	}

	service.cacheMu.Lock()
	generation := service.generation
	service.cacheMu.Unlock()

	stats, err := service.repo.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	stats.AverageConfidence = roundedScore(stats.AverageConfidence)

	if service.cache != nil {
		service.storeStatistics(ctx, generation, stats)
	}

	return stats, nil
}

// storeStatistics caches stats unless an invalidation happened after generation was read.
func (service *Service) storeStatistics(ctx context.Context, generation uint64, stats *Statistics) {
	service.cacheMu.Lock()
	defer service.cacheMu.Unlock()

	if service.generation != generation {
		service.logger.DebugContext(ctx, "statistics_cache_write_skipped")
		return
	}
	if err := service.cache.Set(ctx, stats); err != nil {
		service.logger.WarnContext(ctx, "statistics_cache_write_failed", slog.Any("error", err))
	}
}

func (service *Service) invalidateStatistics(ctx context.Context) {
	if service.cache == nil {
		return
	}

	service.cacheMu.Lock()
	defer service.cacheMu.Unlock()

	service.generation++
	if err := service.cache.Invalidate(ctx); err != nil {
		service.logger.WarnContext(ctx, "statistics_cache_invalidate_failed", slog.Any("error", err))
	}
}

// # Scoring

// Score computes the similarity between two titles.
func (service *Service) Score(request ScoreRequest) *ScoreResult {
	return &ScoreResult{
		ConfidenceScore: Similarity(request.AnidbTitle, request.MalTitle, request.AdditionalFactors),
		AnidbTitle:      request.AnidbTitle,
		MalTitle:        request.MalTitle,
	}
}

// # Refresh

/*
Refresh resynchronises mappings with an external feed.

Description: With an explicit source URL only that feed is loaded and a
download failure is returned as an error. Without one, the configured
feed is loaded (a download failure only counts as one error) and every
mapped record with a title is then re-scored against the MAL catalog.
Manual mappings are never overwritten.

Parameters:
  - ctx: context.Context
  - request: RefreshRequest

Returns:
  - *RefreshResult: Counters and a summary message
  - error: VALIDATION_ERROR for a bad URL, BAD_GATEWAY for a failed explicit feed
*/
func (service *Service) Refresh(ctx context.Context, request RefreshRequest) (*RefreshResult, error) {
	result := &RefreshResult{}

	if request.SourceURL != nil && strings.TrimSpace(*request.SourceURL) != "" {
		source := strings.TrimSpace(*request.SourceURL)
		if !isHTTPURL(source) {
			return nil, validate.RequiredError(FieldSourceURL, "Must be an http or https URL")
		}

		loaded, failed, err := service.loadFeed(ctx, source)
		if err != nil {
			return nil, apperr.BadGateway("Failed to load mapping feed", err)
		}
		result.Loaded, result.Errors = loaded, failed
	} else {
		loaded, failed, err := service.loadFeed(ctx, service.feedURL)
		if err != nil {
			service.logger.ErrorContext(ctx, "mapping_feed_failed",
				slog.String("url", service.feedURL),
				slog.Any("error", err),
			)
			failed++
		}

		updated, rescoreFailed := service.rescore(ctx)
		result.Loaded = loaded
		result.Updated = updated
		result.Errors = failed + rescoreFailed
	}

	service.invalidateStatistics(ctx)
	result.Message = refreshMessage(result)

	service.logger.InfoContext(ctx, "mapping_refresh_completed",
		slog.Int("loaded", result.Loaded),
		slog.Int("updated", result.Updated),
		slog.Int("errors", result.Errors),
	)

	return result, nil
}

func refreshMessage(result *RefreshResult) string {
	message := fmt.Sprintf("Refresh completed: %d loaded, %d updated", result.Loaded, result.Updated)
	if result.Errors > 0 {
		message += fmt.Sprintf(", %d errors", result.Errors)
	}
	return message
}

func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// loadFeed applies every feed entry. The error is only set when the feed
// itself could not be fetched; per-entry failures are counted.
func (service *Service) loadFeed(ctx context.Context, source string) (loaded, failed int, err error) {
	entries, err := service.feed.Fetch(ctx, source)
	if err != nil {
		return 0, 0, err
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return loaded, failed, ctx.Err()
		}

		applied, err := service.applyFeedEntry(ctx, entry)
		if err != nil {
			failed++
			service.logger.WarnContext(ctx, "mapping_feed_entry_failed",
				slog.Int("anidb_id", entry.AnidbID),
				slog.Any("error", err),
			)
			continue
		}
		if applied {
			loaded++
		}
	}

	return loaded, failed, nil
}

// applyFeedEntry creates or updates one record. Manual records are left alone.
func (service *Service) applyFeedEntry(ctx context.Context, entry FeedEntry) (bool, error) {
	if entry.AnidbID <= 0 {
		return false, nil
	}

	validator := &validate.Validator{}
	validateFields(validator, entry.MalID, entry.Title, nil, nil)
	if err := validator.Err(); err != nil {
		return false, err
	}

	var score *float64
	if entry.Title != nil && entry.MalTitle != nil {
		score = pointer.To(Similarity(*entry.Title, *entry.MalTitle, nil))
	}

	existing, err := service.repo.FindByAnidbID(ctx, entry.AnidbID)
	switch {
	case errors.Is(err, ErrNotFound):
		return true, service.repo.Create(ctx, &Mapping{
			ID:              uuidv7.New(),
			AnidbID:         entry.AnidbID,
			MalID:           entry.MalID,
			Title:           entry.Title,
			ConfidenceScore: score,
			Source:          SourceGithubFile,
		})
	case err != nil:
		return false, err
	case existing.Source == SourceManual:
		return false, nil
	}

	source := SourceGithubFile
	_, err = service.repo.Update(ctx, entry.AnidbID, UpdateInput{
		MalID:           entry.MalID,
		Title:           entry.Title,
		ConfidenceScore: score,
		Source:          &source,
	})
	return err == nil, err
}

// rescore recomputes scores for mapped records against the MAL catalog titles.
func (service *Service) rescore(ctx context.Context) (updated, failed int) {
	after := 0
	for ctx.Err() == nil {
		batch, err := service.repo.ListScoringCandidates(ctx, after, rescoreBatchSize)
		if err != nil {
			service.logger.ErrorContext(ctx, "mapping_rescore_failed", slog.Any("error", err))
			return updated, failed + 1
		}

		for _, candidate := range batch {
			after = candidate.AnidbID

			score := Similarity(candidate.Title, candidate.MalTitle, nil)
			if candidate.ConfidenceScore != nil && *candidate.ConfidenceScore == score {
				continue
			}

			if err := service.repo.UpdateScore(ctx, candidate.AnidbID, score); err != nil {
				failed++
				continue
			}
			updated++
		}

		if len(batch) < rescoreBatchSize {
			break
		}
	}

	return updated, failed
}

// # Jellyfin

/*
HandleJellyfin records the AniDB id seen in a playback webhook.

Description: An unknown id is stored as an unmapped record with source
jellyfin_webhook so it shows up for manual review. The result reports
success only when the id already resolves to a MAL id.

Parameters:
  - ctx: context.Context
  - payload: *JellyfinPayload

Returns:
  - *WebhookResult: Outcome sent back to Jellyfin
  - error: Persistence errors
*/
func (service *Service) HandleJellyfin(ctx context.Context, payload *JellyfinPayload) (*WebhookResult, error) {
	anidbID, ok := ExtractAnidbID(payload)
	if !ok {
		service.logger.WarnContext(ctx, "jellyfin_anidb_id_missing", slog.String("item_name", payload.ItemName))
		return &WebhookResult{
			Success: false,
			Message: "Could not extract AniDB ID from webhook payload",
			Errors:  []string{"AniDB ID not found in provider_ids or metadata"},
		}, nil
	}

	existing, err := service.repo.FindByAnidbID(ctx, anidbID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if existing == nil {
		if err := service.recordSighting(ctx, anidbID, payload.DisplayName()); err != nil {
			return nil, err
		}
	}

	if existing == nil || !existing.IsMapped() {
		return &WebhookResult{
			Success: false,
			Message: fmt.Sprintf("No MyAnimeList mapping found for AniDB ID %d", anidbID),
			AnidbID: pointer.To(anidbID),
			Errors:  []string{fmt.Sprintf("AniDB ID %d not mapped to MyAnimeList ID", anidbID)},
		}, nil
	}

	return &WebhookResult{
		Success: true,
		Message: fmt.Sprintf("AniDB ID %d maps to MyAnimeList ID %d", anidbID, *existing.MalID),
		AnidbID: pointer.To(anidbID),
		MalID:   existing.MalID,
	}, nil
}

// recordSighting stores an unmapped record for an AniDB id first seen in Jellyfin.
func (service *Service) recordSighting(ctx context.Context, anidbID int, name string) error {
	var title *string
	if name = strings.TrimSpace(name); name != "" {
		title = pointer.To(truncateRunes(name, MaxTitleLength))
	}

	err := service.repo.Create(ctx, &Mapping{
		ID:      uuidv7.New(),
		AnidbID: anidbID,
		Title:   title,
		Source:  SourceJellyfinWebhook,
	})
	if err != nil && apperr.Status(err) != http.StatusConflict {
		return err
	}

	service.invalidateStatistics(ctx)
	service.logger.InfoContext(ctx, "jellyfin_unmapped_recorded", slog.Int("anidb_id", anidbID))
	return nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

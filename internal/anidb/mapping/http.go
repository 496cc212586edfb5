// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mapping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/anisync/internal/platform/apperr"
	"github.com/taibuivan/anisync/internal/platform/constants"
	"github.com/taibuivan/anisync/internal/platform/ctxutil"
	"github.com/taibuivan/anisync/internal/platform/middleware"
	requestutil "github.com/taibuivan/anisync/internal/platform/request"
	"github.com/taibuivan/anisync/internal/platform/respond"
	"github.com/taibuivan/anisync/internal/platform/sec"
	"github.com/taibuivan/anisync/internal/platform/validate"
	"github.com/taibuivan/anisync/pkg/pagination"
)

// # Handler Implementation

// Handler implements the HTTP layer for AniDB mappings and the Jellyfin webhook.
type Handler struct {
	service       *Service
	webhookSecret string
}

// NewHandler constructs a mapping [Handler]. An empty webhookSecret disables
// signature checks on the Jellyfin webhook.
func NewHandler(service *Service, webhookSecret string) *Handler {
	return &Handler{service: service, webhookSecret: webhookSecret}
}

// Routes returns the router mounted at /api/anidb-mappings.
//
// Every endpoint requires an authenticated caller; refresh additionally
// requires [sec.RoleAdmin] and runs under the longer refresh deadline.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Group(func(api chi.Router) {
		api.Use(chimw.Timeout(constants.GlobalRequestTimeout))

		api.Get("/", handler.listMappings)
		api.Get("/statistics", handler.getStatistics)
		api.Get("/unmapped", handler.listUnmapped)
		api.Get("/lookup/{anidbID}/mal-id", handler.lookupMalID)
		api.Get("/{anidbID}", handler.getMapping)

		api.Post("/", handler.createMapping)
		api.Post("/search", handler.searchMappings)
		api.Post("/bulk-delete", handler.bulkDelete)
		api.Post("/confidence-score", handler.confidenceScore)
		api.Put("/{anidbID}", handler.updateMapping)
		api.Delete("/{anidbID}", handler.deleteMapping)
	})

	router.Group(func(admin chi.Router) {
		admin.Use(chimw.Timeout(constants.RefreshRequestTimeout))
		admin.Use(middleware.RequireRole(sec.RoleAdmin))
		admin.Post("/refresh", handler.refresh)
	})

	return router
}

// WebhookRoutes returns the router mounted at /api/webhooks.
func (handler *Handler) WebhookRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	router.Post("/jellyfin", handler.jellyfinWebhook)
	return router
}

// # Read Endpoints

/*
GET /api/anidb-mappings.

Request:
  - limit: int (1..1000, default 100)
  - offset: int (>= 0)
  - source_filter: string (manual, auto, github_file, jellyfin_webhook)
  - sort_by: string (anidb_id, mal_id, title, confidence_score, source, created_at, updated_at)
  - sort_order: string (asc, desc)

Response:
  - 200: ListResult
  - 400: VALIDATION_ERROR
*/
func (handler *Handler) listMappings(writer http.ResponseWriter, request *http.Request) {
	window, err := pagination.WindowFromRequest(request, DefaultListLimit, MaxListLimit)
	if err != nil {
		respond.Error(writer, request, rangeError(err))
		return
	}

	query := request.URL.Query()
	params := ListParams{
		Limit:     window.Limit,
		Offset:    window.Offset,
		SortBy:    SortField(query.Get("sort_by")),
		SortOrder: SortOrder(query.Get("sort_order")),
	}
	if raw := query.Get("source_filter"); raw != "" {
		source := Source(raw)
		params.SourceFilter = &source
	}

	result, err := handler.service.List(request.Context(), params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

// rangeError converts a pagination bound violation into a validation error.
func rangeError(err error) error {
	var rangeErr *pagination.RangeError
	if errors.As(err, &rangeErr) {
		return validate.RequiredError(rangeErr.Param, rangeErr.Error())
	}
	return err
}

/*
GET /api/anidb-mappings/statistics.

Response:
  - 200: Statistics
*/
func (handler *Handler) getStatistics(writer http.ResponseWriter, request *http.Request) {
	stats, err := handler.service.Statistics(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, stats)
}

/*
GET /api/anidb-mappings/unmapped.

Request:
  - limit: int (1..1000, default 100)

Response:
  - 200: []Mapping
*/
func (handler *Handler) listUnmapped(writer http.ResponseWriter, request *http.Request) {
	limit, err := requestutil.IntQuery(request, FieldLimit, DefaultUnmappedLimit)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	mappings, err := handler.service.ListUnmapped(request.Context(), limit)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, mappings)
}

/*
GET /api/anidb-mappings/{anidbID}.

Response:
  - 200: Mapping
  - 404: NOT_FOUND
*/
func (handler *Handler) getMapping(writer http.ResponseWriter, request *http.Request) {
	anidbID, err := requestutil.IntParam(request, "anidbID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	mapping, err := handler.service.Get(request.Context(), anidbID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, mapping)
}

/*
GET /api/anidb-mappings/lookup/{anidbID}/mal-id.

Response:
  - 200: LookupResult
  - 404: NOT_FOUND when the id is unknown or unmapped
*/
func (handler *Handler) lookupMalID(writer http.ResponseWriter, request *http.Request) {
	anidbID, err := requestutil.IntParam(request, "anidbID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.LookupMalID(request.Context(), anidbID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, result)
}

/*
POST /api/anidb-mappings/search.

Request:
  - Body: SearchRequest

Response:
  - 200: []Mapping
  - 400: VALIDATION_ERROR
*/
func (handler *Handler) searchMappings(writer http.ResponseWriter, request *http.Request) {
	var input SearchRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	mappings, err := handler.service.Search(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, mappings)
}

// # Write Endpoints

/*
POST /api/anidb-mappings.

Request:
  - Body: CreateInput

Response:
  - 201: Mapping
  - 400: VALIDATION_ERROR
  - 409: CONFLICT when the AniDB id is already mapped
*/
func (handler *Handler) createMapping(writer http.ResponseWriter, request *http.Request) {
	var input CreateInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	mapping, err := handler.service.Create(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, mapping)
}

/*
PUT /api/anidb-mappings/{anidbID}.

Request:
  - Body: UpdateInput (partial; absent fields are kept)

Response:
  - 200: Mapping
  - 404: NOT_FOUND
*/
func (handler *Handler) updateMapping(writer http.ResponseWriter, request *http.Request) {
	anidbID, err := requestutil.IntParam(request, "anidbID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var patch UpdateInput
	if err := requestutil.DecodeJSON(request, &patch); err != nil {
		respond.Error(writer, request, err)
		return
	}

	mapping, err := handler.service.Update(request.Context(), anidbID, patch)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, mapping)
}

/*
DELETE /api/anidb-mappings/{anidbID}.

Response:
  - 204: Deleted
  - 404: NOT_FOUND
*/
func (handler *Handler) deleteMapping(writer http.ResponseWriter, request *http.Request) {
	anidbID, err := requestutil.IntParam(request, "anidbID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Delete(request.Context(), anidbID); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

/*
POST /api/anidb-mappings/bulk-delete.

Request:
  - Body: BulkDeleteRequest

Response:
  - 200: BulkDeleteResult
  - 404: NOT_FOUND naming the missing ids; nothing is deleted
*/
func (handler *Handler) bulkDelete(writer http.ResponseWriter, request *http.Request) {
	var input BulkDeleteRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.BulkDelete(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, result)
}

/*
POST /api/anidb-mappings/refresh.

Request:
  - Body: RefreshRequest (optional; an empty body uses the configured feed)

Response:
  - 200: RefreshResult
  - 502: BAD_GATEWAY when an explicit source cannot be fetched
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(request.Body, requestutil.MaxBodyBytes))
	if err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	var input RefreshRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &input); err != nil {
			respond.Error(writer, request, validate.ErrInvalidJSON)
			return
		}
	}

	ctxutil.GetLogger(request.Context()).Info("mapping_refresh_requested",
		slog.String("user_id", claims.UserID),
		slog.Bool("custom_source", input.SourceURL != nil),
	)

	// A caller that gives up early must not abort a half-applied resync.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(request.Context()), constants.RefreshRequestTimeout)
	defer cancel()

	result, err := handler.service.Refresh(ctx, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, result)
}

/*
POST /api/anidb-mappings/confidence-score.

Request:
  - Body: ScoreRequest

Response:
  - 200: ScoreResult
*/
func (handler *Handler) confidenceScore(writer http.ResponseWriter, request *http.Request) {
	var input ScoreRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, handler.service.Score(input))
}

// # Webhooks

/*
POST /api/webhooks/jellyfin.

Description: The raw body is verified against the X-Jellyfin-Signature
header before it is decoded.

Response:
  - 200: WebhookResult
  - 400: Malformed payload
  - 401: Signature mismatch
*/
func (handler *Handler) jellyfinWebhook(writer http.ResponseWriter, request *http.Request) {
	body, err := io.ReadAll(io.LimitReader(request.Body, requestutil.MaxBodyBytes))
	if err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	signature := strings.TrimSpace(request.Header.Get(constants.HeaderJellyfinSignature))
	if !VerifySignature(body, signature, handler.webhookSecret) {
		respond.Error(writer, request, apperr.Unauthorized("Invalid webhook signature"))
		return
	}

	var payload JellyfinPayload
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	result, err := handler.service.HandleJellyfin(request.Context(), &payload)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, result)
}

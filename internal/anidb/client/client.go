// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package client is the HTTP client for the AniDB mapping API.

Every call carries the bearer credential of the injected [Session], is
paced by a token bucket and bounded by a fixed timeout. Failures surface as
[*APIError] (the server answered) or [ErrNetwork] (it did not).
*/
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/taibuivan/anisync/internal/anidb/mapping"
	"github.com/taibuivan/anisync/internal/platform/constants"
)

const mappingsPath = "/anidb-mappings"

// Client calls the mapping endpoints.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	session     *Session
	rateLimiter *rate.Limiter
	userAgent   string
}

// Option customises a [Client].
type Option func(*Client)

// WithHTTPClient replaces the transport. Its timeout is overridden with the fixed request timeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		clone := *httpClient
		c.httpClient = &clone
	}
}

// WithRateLimiter replaces the request pacing.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.rateLimiter = limiter
	}
}

// New creates a client for the API rooted at baseURL (e.g. http://localhost:8000/api).
func New(baseURL string, session *Session, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{},
		session:     session,
		rateLimiter: rate.NewLimiter(rate.Limit(constants.ClientRequestsPerSecond), constants.ClientRequestsPerSecond),
		userAgent:   constants.AppName + "-client/" + constants.AppVersion,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Timeout = constants.ClientRequestTimeout
	return c
}

// # Transport

// doRequest sends one request. Transport failures are reported as [ErrNetwork].
func (c *Client) doRequest(ctx context.Context, method, endpoint string, params url.Values, body any) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if token, ok := c.session.Token(); ok {
		req.Header.Set(constants.HeaderAuthorization, "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return resp, nil
}

// doJSON sends a request and decodes a 2xx body into out (which may be nil).
func (c *Client) doJSON(ctx context.Context, method, endpoint string, params url.Values, body, out any) error {
	resp, err := c.doRequest(ctx, method, endpoint, params, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.session.unauthorized()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func mappingPath(anidbID int) string {
	return mappingsPath + "/" + strconv.Itoa(anidbID)
}

// # Endpoints

// List fetches one window of mappings.
func (c *Client) List(ctx context.Context, params mapping.ListParams) (*mapping.ListResult, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(params.Limit))
	query.Set("offset", strconv.Itoa(params.Offset))
	if params.SourceFilter != nil {
		query.Set("source_filter", string(*params.SourceFilter))
	}
	if params.SortBy != "" {
		query.Set("sort_by", string(params.SortBy))
	}
	if params.SortOrder != "" {
		query.Set("sort_order", string(params.SortOrder))
	}

	var result mapping.ListResult
	if err := c.doJSON(ctx, http.MethodGet, mappingsPath+"/", query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Search runs an id-or-title search.
func (c *Client) Search(ctx context.Context, request mapping.SearchRequest) ([]*mapping.Mapping, error) {
	var result []*mapping.Mapping
	if err := c.doJSON(ctx, http.MethodPost, mappingsPath+"/search", nil, request, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Get fetches one mapping.
func (c *Client) Get(ctx context.Context, anidbID int) (*mapping.Mapping, error) {
	var result mapping.Mapping
	if err := c.doJSON(ctx, http.MethodGet, mappingPath(anidbID), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LookupMalID resolves an AniDB id to its MAL id.
func (c *Client) LookupMalID(ctx context.Context, anidbID int) (*mapping.LookupResult, error) {
	var result mapping.LookupResult
	endpoint := mappingsPath + "/lookup/" + strconv.Itoa(anidbID) + "/mal-id"
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListUnmapped fetches records without a MAL id.
func (c *Client) ListUnmapped(ctx context.Context, limit int) ([]*mapping.Mapping, error) {
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	var result []*mapping.Mapping
	if err := c.doJSON(ctx, http.MethodGet, mappingsPath+"/unmapped", query, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Statistics fetches the aggregate snapshot.
func (c *Client) Statistics(ctx context.Context) (*mapping.Statistics, error) {
	var result mapping.Statistics
	if err := c.doJSON(ctx, http.MethodGet, mappingsPath+"/statistics", nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Create stores a new mapping.
func (c *Client) Create(ctx context.Context, input mapping.CreateInput) (*mapping.Mapping, error) {
	var result mapping.Mapping
	if err := c.doJSON(ctx, http.MethodPost, mappingsPath+"/", nil, input, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Update patches a mapping. The AniDB id only appears in the path.
func (c *Client) Update(ctx context.Context, anidbID int, patch mapping.UpdateInput) (*mapping.Mapping, error) {
	var result mapping.Mapping
	if err := c.doJSON(ctx, http.MethodPut, mappingPath(anidbID), nil, patch, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes a mapping.
func (c *Client) Delete(ctx context.Context, anidbID int) error {
	return c.doJSON(ctx, http.MethodDelete, mappingPath(anidbID), nil, nil, nil)
}

// BulkDelete removes several mappings atomically.
func (c *Client) BulkDelete(ctx context.Context, anidbIDs []int) (*mapping.BulkDeleteResult, error) {
	var result mapping.BulkDeleteResult
	request := mapping.BulkDeleteRequest{AnidbIDs: anidbIDs}
	if err := c.doJSON(ctx, http.MethodPost, mappingsPath+"/bulk-delete", nil, request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Refresh asks the server to resynchronise. A nil sourceURL uses the server's feed.
func (c *Client) Refresh(ctx context.Context, sourceURL *string) (*mapping.RefreshResult, error) {
	var result mapping.RefreshResult
	request := mapping.RefreshRequest{SourceURL: sourceURL}
	if err := c.doJSON(ctx, http.MethodPost, mappingsPath+"/refresh", nil, request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Score asks the server for the similarity of two titles.
func (c *Client) Score(ctx context.Context, request mapping.ScoreRequest) (*mapping.ScoreResult, error) {
	var result mapping.ScoreResult
	if err := c.doJSON(ctx, http.MethodPost, mappingsPath+"/confidence-score", nil, request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Timeout returns the fixed per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/taibuivan/anisync/internal/platform/constants"
)

// # External Feed

// FeedEntry is one row of an external mapping feed.
type FeedEntry struct {
	AnidbID  int     `json:"anidb_id"`
	MalID    *int    `json:"mal_id"`
	Title    *string `json:"title"`
	MalTitle *string `json:"mal_title"`
}

// FeedFetcher downloads and decodes a mapping feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]FeedEntry, error)
}

// maxFeedBytes bounds the size of a downloaded feed.
const maxFeedBytes = 64 << 20

// HTTPFeedFetcher fetches JSON feeds over HTTP.
type HTTPFeedFetcher struct {
	client *http.Client
}

// NewHTTPFeedFetcher uses client, or a client with [constants.FeedFetchTimeout] when nil.
func NewHTTPFeedFetcher(client *http.Client) *HTTPFeedFetcher {
	if client == nil {
		client = &http.Client{Timeout: constants.FeedFetchTimeout}
	}
	return &HTTPFeedFetcher{client: client}
}

/*
Fetch downloads the feed at url and decodes it as a JSON array.

Parameters:
  - ctx: context.Context
  - url: string (Feed location)

Returns:
  - []FeedEntry: Decoded entries
  - error: Transport errors, non-2xx statuses or malformed JSON
*/
func (fetcher *HTTPFeedFetcher) Fetch(ctx context.Context, url string) ([]FeedEntry, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", constants.AppName+"/"+constants.AppVersion)

	response, err := fetcher.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("feed: fetch %s: %w", url, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, fmt.Errorf("feed: fetch %s: unexpected status %d", url, response.StatusCode)
	}

	var entries []FeedEntry
	if err := json.NewDecoder(io.LimitReader(response.Body, maxFeedBytes)).Decode(&entries); err != nil {
		return nil, fmt.Errorf("feed: decode %s: %w", url, err)
	}

	return entries, nil
}

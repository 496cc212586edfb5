// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pagination provides shared types and helpers for API list endpoints.
//
// # Overview
//
// The server speaks limit/offset windows; interactive clients think in
// 1-indexed pages. [Params] converts the latter into the former.
package pagination

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	// DefaultLimit is the number of items per window if not specified.
	DefaultLimit = 100
	// MaxLimit is the upper bound for items per window.
	MaxLimit = 1000
	// DefaultPage is the starting page (1-indexed).
	DefaultPage = 1
)

// Params holds a 1-indexed page and its size.
type Params struct {
	Page  int
	Limit int
}

// Offset returns the SQL OFFSET value derived from [Page] and [Limit].
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// TotalPages returns how many pages of size limit cover total items.
func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Window is a parsed limit/offset pair.
type Window struct {
	Limit  int
	Offset int
}

// RangeError reports a query parameter outside its accepted bounds.
type RangeError struct {
	Param    string
	Min, Max int
}

func (e *RangeError) Error() string {
	if e.Max > 0 {
		return fmt.Sprintf("%s must be an integer between %d and %d", e.Param, e.Min, e.Max)
	}
	return fmt.Sprintf("%s must be an integer of at least %d", e.Param, e.Min)
}

/*
WindowFromRequest parses "limit" and "offset" query parameters.

Unlike page clamping, out-of-range values are rejected so callers can
answer with a validation error.

Parameters:
  - r: *http.Request
  - defaultLimit: int (Used when "limit" is absent)
  - maxLimit: int (Inclusive upper bound for "limit")

Returns:
  - Window: Parsed values
  - error: *RangeError when a value is malformed or out of range
*/
func WindowFromRequest(r *http.Request, defaultLimit, maxLimit int) (Window, error) {
	limit, ok := parseIntParam(r, "limit", defaultLimit)
	if !ok || limit < 1 || limit > maxLimit {
		return Window{}, &RangeError{Param: "limit", Min: 1, Max: maxLimit}
	}

	offset, ok := parseIntParam(r, "offset", 0)
	if !ok || offset < 0 {
		return Window{}, &RangeError{Param: "offset", Min: 0}
	}

	return Window{Limit: limit, Offset: offset}, nil
}

// parseIntParam parses a single integer query parameter with a fallback default.
// The boolean is false when the parameter is present but not an integer.
func parseIntParam(r *http.Request, key string, defaultVal int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}

	return n, true
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package workflow drives mapping curation independently of any presentation.

  - [Query] turns paging, filter, sort and search state into API requests.
  - [Coordinator] owns the loaded list, statistics and selection.
  - [Editor] is the create/edit form state machine.

The mapctl command line renders what these types expose; it holds no
state of its own.
*/
package workflow

import (
	"strings"

	"github.com/taibuivan/anisync/internal/anidb/mapping"
	"github.com/taibuivan/anisync/pkg/pagination"
)

const (
	// DefaultPerPage is the list page size.
	DefaultPerPage = 50

	// SearchLimit caps the results of a search request.
	SearchLimit = mapping.MaxSearchLimit
)

// Request is what [Query.Request] issues. Exactly one of List and Search is set.
type Request struct {
	Token  uint64
	List   *mapping.ListParams
	Search *mapping.SearchRequest
}

// Query holds list view state. It is not safe for concurrent use; the
// [Coordinator] guards it.
type Query struct {
	page      int
	perPage   int
	source    *mapping.Source
	sortField mapping.SortField
	sortOrder mapping.SortOrder
	search    string

	issued uint64
}

// NewQuery returns page 1 sorted by AniDB id ascending. A non-positive
// perPage selects [DefaultPerPage].
func NewQuery(perPage int) *Query {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &Query{
		page:      pagination.DefaultPage,
		perPage:   perPage,
		sortField: mapping.SortAnidbID,
		sortOrder: mapping.SortAsc,
	}
}

func (query *Query) Page() int                    { return query.page }
func (query *Query) PerPage() int                 { return query.perPage }
func (query *Query) Source() *mapping.Source      { return query.source }
func (query *Query) SortField() mapping.SortField { return query.sortField }
func (query *Query) SortOrder() mapping.SortOrder { return query.sortOrder }
func (query *Query) Search() string               { return query.search }

// Searching reports whether the next request is a search.
func (query *Query) Searching() bool {
	return strings.TrimSpace(query.search) != ""
}

// SetPage moves to page (clamped to 1).
func (query *Query) SetPage(page int) {
	query.page = max(page, 1)
}

// SetSource changes the source filter; nil clears it. The page resets.
func (query *Query) SetSource(source *mapping.Source) {
	query.source = source
	query.page = 1
}

// SetSearch replaces the search text. The page resets.
func (query *Query) SetSearch(text string) {
	query.search = text
	query.page = 1
}

// ClearSearch returns to the paged list.
func (query *Query) ClearSearch() {
	query.SetSearch("")
}

// ToggleSort flips the order of the current field or switches to field ascending.
// The page resets.
func (query *Query) ToggleSort(field mapping.SortField) {
	switch {
	case field != query.sortField:
		query.sortField = field
		query.sortOrder = mapping.SortAsc
	case query.sortOrder == mapping.SortAsc:
		query.sortOrder = mapping.SortDesc
	default:
		query.sortOrder = mapping.SortAsc
	}
	query.page = 1
}

// Request issues the next request with a fresh token.
func (query *Query) Request() Request {
	query.issued++
	request := Request{Token: query.issued}

	if text := strings.TrimSpace(query.search); text != "" {
		request.Search = &mapping.SearchRequest{Query: text, Limit: SearchLimit}
		return request
	}

	request.List = &mapping.ListParams{
		Limit:        query.perPage,
		Offset:       pagination.Params{Page: query.page, Limit: query.perPage}.Offset(),
		SourceFilter: query.source,
		SortBy:       query.sortField,
		SortOrder:    query.sortOrder,
	}
	return request
}

// IsLatest reports whether token belongs to the most recently issued request.
func (query *Query) IsLatest(token uint64) bool {
	return token == query.issued
}

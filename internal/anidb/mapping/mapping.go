// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mapping owns AniDB to MyAnimeList identifier mappings.

A mapping ties one AniDB id to at most one MAL id and records where the link
came from (its source) and how sure we are about it (its confidence score).
The package holds the record model, the PostgreSQL store, the title
similarity scorer, the external feed loader, the Jellyfin webhook intake and
the HTTP handler mounted under /api/anidb-mappings.
*/
package mapping

import (
	"time"
)

// # Provenance

// Source identifies how a mapping was established.
type Source string

const (
	SourceManual          Source = "manual"
	SourceAuto            Source = "auto"
	SourceGithubFile      Source = "github_file"
	SourceJellyfinWebhook Source = "jellyfin_webhook"
)

// Sources lists every accepted provenance tag in display order.
var Sources = []Source{SourceManual, SourceAuto, SourceGithubFile, SourceJellyfinWebhook}

// Valid reports whether s is a known provenance tag.
func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourceAuto, SourceGithubFile, SourceJellyfinWebhook:
		return true
	}
	return false
}

// Label returns the human readable name of the source.
func (s Source) Label() string {
	switch s {
	case SourceManual:
		return "Manual"
	case SourceAuto:
		return "Auto"
	case SourceGithubFile:
		return "GitHub"
	case SourceJellyfinWebhook:
		return "Jellyfin"
	default:
		return string(s)
	}
}

// # Record Model

// Mapping is a single AniDB to MAL correspondence.
//
// A nil MalID means the record is unmapped. A nil ConfidenceScore means the
// record was never evaluated, which is different from a score of 0.
type Mapping struct {
	ID              string    `json:"id"`
	AnidbID         int       `json:"anidb_id"`
	MalID           *int      `json:"mal_id"`
	Title           *string   `json:"title"`
	ConfidenceScore *float64  `json:"confidence_score"`
	Source          Source    `json:"source"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsMapped reports whether the record points at a MAL entry.
func (m *Mapping) IsMapped() bool {
	return m.MalID != nil
}

// Statistics is the aggregate snapshot computed by the store.
type Statistics struct {
	TotalMappings     int      `json:"total_mappings"`
	MappedCount       int      `json:"mapped_count"`
	UnmappedCount     int      `json:"unmapped_count"`
	ManualCount       int      `json:"manual_count"`
	AutoCount         int      `json:"auto_count"`
	GithubCount       int      `json:"github_count"`
	JellyfinCount     int      `json:"jellyfin_count"`
	AverageConfidence *float64 `json:"average_confidence"`
}

// # Field Identifiers

const (
	FieldAnidbID         = "anidb_id"
	FieldMalID           = "mal_id"
	FieldTitle           = "title"
	FieldConfidenceScore = "confidence_score"
	FieldSource          = "source"
	FieldQuery           = "query"
	FieldLimit           = "limit"
	FieldAnidbIDs        = "anidb_ids"
	FieldSourceURL       = "source_url"
	FieldPatch           = "body"

	// MaxTitleLength matches the column width of anidb_mappings.title.
	MaxTitleLength = 255
)

// # Write Models

// CreateInput is the body of a create request.
type CreateInput struct {
	AnidbID         int      `json:"anidb_id"`
	MalID           *int     `json:"mal_id,omitempty"`
	Title           *string  `json:"title,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	Source          Source   `json:"source,omitempty"`
}

// UpdateInput is the body of an update request. Only non-nil fields are applied.
//
// The AniDB id is immutable and therefore not part of the patch.
type UpdateInput struct {
	MalID           *int     `json:"mal_id,omitempty"`
	Title           *string  `json:"title,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	Source          *Source  `json:"source,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (u UpdateInput) Empty() bool {
	return u.MalID == nil && u.Title == nil && u.ConfidenceScore == nil && u.Source == nil
}

// # Query Models

// SortField is a column the list endpoint can order by.
type SortField string

const (
	SortAnidbID         SortField = "anidb_id"
	SortMalID           SortField = "mal_id"
	SortTitle           SortField = "title"
	SortConfidenceScore SortField = "confidence_score"
	SortSource          SortField = "source"
	SortCreatedAt       SortField = "created_at"
	SortUpdatedAt       SortField = "updated_at"
)

// SortFields lists every sortable column.
var SortFields = []SortField{
	SortAnidbID, SortMalID, SortTitle, SortConfidenceScore, SortSource, SortCreatedAt, SortUpdatedAt,
}

// Valid reports whether f is a sortable column.
func (f SortField) Valid() bool {
	for _, known := range SortFields {
		if f == known {
			return true
		}
	}
	return false
}

// SortOrder is the direction of a sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Valid reports whether o is asc or desc.
func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

// ListParams describes one window of the mapping list.
type ListParams struct {
	Limit        int
	Offset       int
	SourceFilter *Source
	SortBy       SortField
	SortOrder    SortOrder
}

// ListResult is the body of the list endpoint.
type ListResult struct {
	Mappings []*Mapping `json:"mappings"`
	Total    int        `json:"total"`
	Limit    int        `json:"limit"`
	Offset   int        `json:"offset"`
}

// SearchRequest is the body of the search endpoint.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// LookupResult answers a MAL id lookup for one AniDB id.
type LookupResult struct {
	AnidbID int `json:"anidb_id"`
	MalID   int `json:"mal_id"`
}

// BulkDeleteRequest lists the AniDB ids to delete atomically.
type BulkDeleteRequest struct {
	AnidbIDs []int `json:"anidb_ids"`
}

// BulkDeleteResult reports how many records were removed.
type BulkDeleteResult struct {
	Deleted int `json:"deleted"`
}

// # Refresh & Scoring Models

// RefreshRequest optionally points the refresh at a custom feed.
type RefreshRequest struct {
	SourceURL *string `json:"source_url,omitempty"`
}

// RefreshResult summarises a feed resynchronisation.
type RefreshResult struct {
	Loaded  int    `json:"loaded"`
	Updated int    `json:"updated"`
	Errors  int    `json:"errors"`
	Message string `json:"message"`
}

// ScoreRequest asks for the similarity between two titles.
type ScoreRequest struct {
	AnidbTitle        string        `json:"anidb_title"`
	MalTitle          string        `json:"mal_title"`
	AdditionalFactors *ScoreFactors `json:"additional_factors,omitempty"`
}

// ScoreFactors adjust a title similarity with metadata agreement.
type ScoreFactors struct {
	EpisodeCountMatch bool `json:"episode_count_match,omitempty"`
	YearDifference    int  `json:"year_difference,omitempty"`
}

// ScoreResult echoes the titles with their computed score.
type ScoreResult struct {
	ConfidenceScore float64 `json:"confidence_score"`
	AnidbTitle      string  `json:"anidb_title"`
	MalTitle        string  `json:"mal_title"`
}

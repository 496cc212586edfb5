// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mapping

import (
	"context"

	"github.com/taibuivan/anisync/internal/platform/apperr"
)

// ErrNotFound is returned when no mapping exists for an AniDB id.
var ErrNotFound = apperr.NotFound("Mapping")

// ScoringCandidate pairs a mapped record with the catalog title of its MAL entry.
type ScoringCandidate struct {
	AnidbID         int
	Title           string
	ConfidenceScore *float64
	MalTitle        string
}

// Repository defines the persistence operations for mappings.
type Repository interface {
	// List returns one window of mappings and the total matching the filter.
	List(ctx context.Context, params ListParams) ([]*Mapping, int, error)

	// ListUnmapped returns records without a MAL id, oldest AniDB id first.
	ListUnmapped(ctx context.Context, limit int) ([]*Mapping, error)

	// FindByAnidbID returns [ErrNotFound] when the id is unknown.
	FindByAnidbID(ctx context.Context, anidbID int) (*Mapping, error)

	// SearchByID matches the id against both the AniDB and the MAL column.
	SearchByID(ctx context.Context, id int, limit int) ([]*Mapping, error)

	// SearchByTitle is a case-insensitive substring match on the title.
	SearchByTitle(ctx context.Context, query string, limit int) ([]*Mapping, error)

	// Create inserts the record and fills its timestamps.
	Create(ctx context.Context, mapping *Mapping) error

	// Update applies the non-nil fields of the patch.
	Update(ctx context.Context, anidbID int, patch UpdateInput) (*Mapping, error)

	// Delete removes one record.
	Delete(ctx context.Context, anidbID int) error

	// BulkDelete removes every listed record or none of them.
	BulkDelete(ctx context.Context, anidbIDs []int) (int, error)

	// Statistics aggregates the whole table.
	Statistics(ctx context.Context) (*Statistics, error)

	// ListScoringCandidates pages through mapped, titled records joined with
	// the MAL catalog, ordered by AniDB id and starting after afterAnidbID.
	ListScoringCandidates(ctx context.Context, afterAnidbID int, limit int) ([]ScoringCandidate, error)

	// UpdateScore stores a recomputed confidence score.
	UpdateScore(ctx context.Context, anidbID int, score float64) error
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mapping

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/taibuivan/anisync/internal/platform/apperr"
	"github.com/taibuivan/anisync/internal/platform/database/schema"
	"github.com/taibuivan/anisync/internal/platform/dberr"
	"github.com/taibuivan/anisync/internal/platform/postgres"
)

// # PostgreSQL Repository

// psql renders $n placeholders for pgx.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// sortColumns whitelists the columns a caller may order by.
var sortColumns = map[SortField]string{
	SortAnidbID:         schema.AnidbMapping.AnidbID,
	SortMalID:           schema.AnidbMapping.MalID,
	SortTitle:           schema.AnidbMapping.Title,
	SortConfidenceScore: schema.AnidbMapping.ConfidenceScore,
	SortSource:          schema.AnidbMapping.Source,
	SortCreatedAt:       schema.AnidbMapping.CreatedAt,
	SortUpdatedAt:       schema.AnidbMapping.UpdatedAt,
}

// PostgresRepository implements [Repository] with squirrel-built SQL.
type PostgresRepository struct {
	db postgres.Querier
}

// NewPostgresRepository constructs a PostgreSQL backed mapping store.
func NewPostgresRepository(db postgres.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// selectColumns returns the projection shared by every read.
// id and confidence_score are cast so they scan into plain Go types.
func selectColumns() []string {
	t := schema.AnidbMapping
	return []string{
		t.ID + "::text",
		t.AnidbID,
		t.MalID,
		t.Title,
		t.ConfidenceScore + "::float8",
		t.Source,
		t.CreatedAt,
		t.UpdatedAt,
	}
}

// scanMapping reads one row produced by [selectColumns], plus any extra destinations.
func scanMapping(row pgx.Row, extra ...any) (*Mapping, error) {
	var (
		m      Mapping
		source string
	)

	dest := []any{&m.ID, &m.AnidbID, &m.MalID, &m.Title, &m.ConfidenceScore, &source, &m.CreatedAt, &m.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	m.Source = Source(source)
	return &m, nil
}

/*
List returns a window of mappings and the total matching the filter.

Description: COUNT(*) OVER() returns the total with the page in one round
trip. When the offset is past the last row the window is empty, so the
total is then read with a plain count.

Parameters:
  - ctx: context.Context
  - params: ListParams (Window, filter and ordering)

Returns:
  - []*Mapping: The window
  - int: Total rows matching the filter
  - error: Database execution errors
*/
func (repository *PostgresRepository) List(ctx context.Context, params ListParams) ([]*Mapping, int, error) {
	t := schema.AnidbMapping

	filter := sq.And{}
	if params.SourceFilter != nil {
		filter = append(filter, sq.Eq{t.Source: string(*params.SourceFilter)})
	}

	column, ok := sortColumns[params.SortBy]
	if !ok {
		column = t.AnidbID
	}
	direction := "ASC"
	if params.SortOrder == SortDesc {
		direction = "DESC"
	}

	query := psql.
		Select(append(selectColumns(), "COUNT(*) OVER() AS total_count")...).
		From(t.Table).
		Where(filter).
		OrderBy(fmt.Sprintf("%s %s NULLS LAST", column, direction), t.ID+" ASC").
		Limit(uint64(params.Limit)).
		Offset(uint64(params.Offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}

	rows, err := repository.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_mappings")
	}
	defer rows.Close()

	total := 0
	mappings := make([]*Mapping, 0, params.Limit)
	for rows.Next() {
		m, err := scanMapping(rows, &total)
		if err != nil {
			return nil, 0, dberr.Wrap(err, "scan_mapping")
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "list_mappings")
	}

	if len(mappings) == 0 && params.Offset > 0 {
		total, err = repository.count(ctx, filter)
		if err != nil {
			return nil, 0, err
		}
	}

	return mappings, total, nil
}

func (repository *PostgresRepository) count(ctx context.Context, filter sq.And) (int, error) {
	sql, args, err := psql.Select("COUNT(*)").From(schema.AnidbMapping.Table).Where(filter).ToSql()
	if err != nil {
		return 0, apperr.Internal(err)
	}

	var total int
	if err := repository.db.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, dberr.Wrap(err, "count_mappings")
	}
	return total, nil
}

// ListUnmapped returns records without a MAL id.
func (repository *PostgresRepository) ListUnmapped(ctx context.Context, limit int) ([]*Mapping, error) {
	t := schema.AnidbMapping
	query := psql.Select(selectColumns()...).
		From(t.Table).
		Where(sq.Eq{t.MalID: nil}).
		OrderBy(t.AnidbID + " ASC").
		Limit(uint64(limit))

	return repository.queryMappings(ctx, query, "list_unmapped")
}

// FindByAnidbID returns the record for one AniDB id.
func (repository *PostgresRepository) FindByAnidbID(ctx context.Context, anidbID int) (*Mapping, error) {
	t := schema.AnidbMapping
	sql, args, err := psql.Select(selectColumns()...).
		From(t.Table).
		Where(sq.Eq{t.AnidbID: anidbID}).
		ToSql()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	m, err := scanMapping(repository.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dberr.Wrap(err, "find_mapping")
	}
	return m, nil
}

// SearchByID matches either identifier column.
func (repository *PostgresRepository) SearchByID(ctx context.Context, id int, limit int) ([]*Mapping, error) {
	t := schema.AnidbMapping
	query := psql.Select(selectColumns()...).
		From(t.Table).
		Where(sq.Or{sq.Eq{t.AnidbID: id}, sq.Eq{t.MalID: id}}).
		OrderBy(t.AnidbID + " ASC").
		Limit(uint64(limit))

	return repository.queryMappings(ctx, query, "search_mappings_by_id")
}

// SearchByTitle runs a case-insensitive substring match. LIKE wildcards in
// the query are matched literally.
func (repository *PostgresRepository) SearchByTitle(ctx context.Context, query string, limit int) ([]*Mapping, error) {
	t := schema.AnidbMapping
	pattern := "%" + escapeLike(query) + "%"

	builder := psql.Select(selectColumns()...).
		From(t.Table).
		Where(sq.ILike{t.Title: pattern}).
		OrderBy(t.AnidbID + " ASC").
		Limit(uint64(limit))

	return repository.queryMappings(ctx, builder, "search_mappings_by_title")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (repository *PostgresRepository) queryMappings(ctx context.Context, query sq.SelectBuilder, action string) ([]*Mapping, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	rows, err := repository.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, dberr.Wrap(err, action)
	}
	defer rows.Close()

	mappings := make([]*Mapping, 0)
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, dberr.Wrap(err, action)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, action)
	}

	return mappings, nil
}

/*
Create inserts a new mapping.

Description: The caller assigns the id. Timestamps come from the database
and are written back into the record.

Parameters:
  - ctx: context.Context
  - mapping: *Mapping (Record to persist)

Returns:
  - error: apperr.Conflict on a duplicate AniDB id, or database errors
*/
func (repository *PostgresRepository) Create(ctx context.Context, mapping *Mapping) error {
	t := schema.AnidbMapping
	sql, args, err := psql.Insert(t.Table).
		Columns(t.ID, t.AnidbID, t.MalID, t.Title, t.ConfidenceScore, t.Source).
		Values(mapping.ID, mapping.AnidbID, mapping.MalID, mapping.Title, mapping.ConfidenceScore, string(mapping.Source)).
		Suffix(fmt.Sprintf("RETURNING %s, %s", t.CreatedAt, t.UpdatedAt)).
		ToSql()
	if err != nil {
		return apperr.Internal(err)
	}

	if err := repository.db.QueryRow(ctx, sql, args...).Scan(&mapping.CreatedAt, &mapping.UpdatedAt); err != nil {
		if dberr.IsUniqueViolation(err) {
			return duplicateError(mapping.AnidbID)
		}
		return dberr.Wrap(err, "create_mapping")
	}

	return nil
}

// duplicateError is the conflict reported for an AniDB id that is already mapped.
func duplicateError(anidbID int) error {
	return apperr.Conflict(fmt.Sprintf("Mapping for AniDB ID %d already exists", anidbID))
}

/*
Update applies a partial patch.

Description: Only non-nil fields are written; updated_at is always bumped.
The AniDB id is never part of the SET list.

Parameters:
  - ctx: context.Context
  - anidbID: int
  - patch: UpdateInput

Returns:
  - *Mapping: The record after the update
  - error: ErrNotFound when the id is unknown
*/
func (repository *PostgresRepository) Update(ctx context.Context, anidbID int, patch UpdateInput) (*Mapping, error) {
	t := schema.AnidbMapping

	builder := psql.Update(t.Table).Set(t.UpdatedAt, sq.Expr("now()"))
	if patch.MalID != nil {
		builder = builder.Set(t.MalID, *patch.MalID)
	}
	if patch.Title != nil {
		builder = builder.Set(t.Title, *patch.Title)
	}
	if patch.ConfidenceScore != nil {
		builder = builder.Set(t.ConfidenceScore, *patch.ConfidenceScore)
	}
	if patch.Source != nil {
		builder = builder.Set(t.Source, string(*patch.Source))
	}

	sql, args, err := builder.
		Where(sq.Eq{t.AnidbID: anidbID}).
		Suffix("RETURNING " + strings.Join(selectColumns(), ", ")).
		ToSql()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	m, err := scanMapping(repository.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dberr.Wrap(err, "update_mapping")
	}
	return m, nil
}

// Delete removes one record.
func (repository *PostgresRepository) Delete(ctx context.Context, anidbID int) error {
	t := schema.AnidbMapping
	sql, args, err := psql.Delete(t.Table).Where(sq.Eq{t.AnidbID: anidbID}).ToSql()
	if err != nil {
		return apperr.Internal(err)
	}

	tag, err := repository.db.Exec(ctx, sql, args...)
	if err != nil {
		return dberr.Wrap(err, "delete_mapping")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

/*
BulkDelete removes every listed record inside one transaction.

Description: The rows are locked first. If any id is missing the
transaction is rolled back and nothing is deleted.

Parameters:
  - ctx: context.Context
  - anidbIDs: []int (Duplicates are ignored)

Returns:
  - int: Number of deleted records
  - error: apperr NOT_FOUND naming the missing ids, or database errors
*/
func (repository *PostgresRepository) BulkDelete(ctx context.Context, anidbIDs []int) (int, error) {
	ids := uniqueSorted(anidbIDs)
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := repository.db.Begin(ctx)
	if err != nil {
		return 0, dberr.Wrap(err, "bulk_delete_begin")
	}

	deleted, err := bulkDeleteTx(ctx, tx, ids)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, dberr.Wrap(err, "bulk_delete_commit")
	}

	return deleted, nil
}

func bulkDeleteTx(ctx context.Context, tx pgx.Tx, ids []int) (int, error) {
	t := schema.AnidbMapping

	// 1. Lock and collect the rows that exist
	lockSQL, lockArgs, err := psql.Select(t.AnidbID).
		From(t.Table).
		Where(sq.Eq{t.AnidbID: ids}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return 0, apperr.Internal(err)
	}

	rows, err := tx.Query(ctx, lockSQL, lockArgs...)
	if err != nil {
		return 0, dberr.Wrap(err, "bulk_delete_lock")
	}
	found := make(map[int]struct{}, len(ids))
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, dberr.Wrap(err, "bulk_delete_lock")
		}
		found[id] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, dberr.Wrap(err, "bulk_delete_lock")
	}

	// 2. Refuse the whole batch if anything is missing
	missing := make([]string, 0)
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, strconv.Itoa(id))
		}
	}
	if len(missing) > 0 {
		return 0, apperr.NotFound("Mappings for AniDB IDs " + strings.Join(missing, ", "))
	}

	// 3. Delete
	deleteSQL, deleteArgs, err := psql.Delete(t.Table).Where(sq.Eq{t.AnidbID: ids}).ToSql()
	if err != nil {
		return 0, apperr.Internal(err)
	}

	tag, err := tx.Exec(ctx, deleteSQL, deleteArgs...)
	if err != nil {
		return 0, dberr.Wrap(err, "bulk_delete")
	}

	return int(tag.RowsAffected()), nil
}

func uniqueSorted(ids []int) []int {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// Statistics aggregates the whole table in a single scan.
func (repository *PostgresRepository) Statistics(ctx context.Context) (*Statistics, error) {
	t := schema.AnidbMapping
	bySource := func(source Source) sq.Sqlizer {
		return sq.Expr(fmt.Sprintf("COUNT(*) FILTER (WHERE %s = ?)", t.Source), string(source))
	}

	sql, args, err := psql.Select(
		"COUNT(*)",
		fmt.Sprintf("COUNT(%s)", t.MalID),
	).
		Column(bySource(SourceManual)).
		Column(bySource(SourceAuto)).
		Column(bySource(SourceGithubFile)).
		Column(bySource(SourceJellyfinWebhook)).
		Column(fmt.Sprintf("AVG(%s)::float8", t.ConfidenceScore)).
		From(t.Table).
		ToSql()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	stats := &Statistics{}
	err = repository.db.QueryRow(ctx, sql, args...).Scan(
		&stats.TotalMappings,
		&stats.MappedCount,
		&stats.ManualCount,
		&stats.AutoCount,
		&stats.GithubCount,
		&stats.JellyfinCount,
		&stats.AverageConfidence,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "mapping_statistics")
	}

	stats.UnmappedCount = stats.TotalMappings - stats.MappedCount
	return stats, nil
}

// ListScoringCandidates pages through mapped records that have a catalog title.
func (repository *PostgresRepository) ListScoringCandidates(ctx context.Context, afterAnidbID int, limit int) ([]ScoringCandidate, error) {
	m := schema.AnidbMapping
	a := schema.Anime

	sql, args, err := psql.Select(
		"m."+m.AnidbID,
		"m."+m.Title,
		"m."+m.ConfidenceScore+"::float8",
		"a."+a.Title,
	).
		From(m.Table + " m").
		Join(fmt.Sprintf("%s a ON a.%s = m.%s", a.Table, a.MalID, m.MalID)).
		Where(sq.NotEq{"m." + m.Title: nil}).
		Where(sq.Gt{"m." + m.AnidbID: afterAnidbID}).
		OrderBy("m." + m.AnidbID + " ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	rows, err := repository.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, dberr.Wrap(err, "list_scoring_candidates")
	}
	defer rows.Close()

	candidates := make([]ScoringCandidate, 0, limit)
	for rows.Next() {
		var c ScoringCandidate
		if err := rows.Scan(&c.AnidbID, &c.Title, &c.ConfidenceScore, &c.MalTitle); err != nil {
			return nil, dberr.Wrap(err, "scan_scoring_candidate")
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "list_scoring_candidates")
	}

	return candidates, nil
}

// UpdateScore stores a recomputed confidence score.
func (repository *PostgresRepository) UpdateScore(ctx context.Context, anidbID int, score float64) error {
	t := schema.AnidbMapping
	sql, args, err := psql.Update(t.Table).
		Set(t.ConfidenceScore, score).
		Set(t.UpdatedAt, sq.Expr("now()")).
		Where(sq.Eq{t.AnidbID: anidbID}).
		ToSql()
	if err != nil {
		return apperr.Internal(err)
	}

	tag, err := repository.db.Exec(ctx, sql, args...)
	if err != nil {
		return dberr.Wrap(err, "update_mapping_score")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

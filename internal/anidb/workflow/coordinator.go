// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/anisync/internal/anidb/client"
	"github.com/taibuivan/anisync/internal/anidb/mapping"
	"github.com/taibuivan/anisync/internal/platform/validate"
	"github.com/taibuivan/anisync/pkg/pagination"
)

// # Collaborators

// Remote is the mapping API as seen by the workflow. [*client.Client] implements it.
type Remote interface {
	List(ctx context.Context, params mapping.ListParams) (*mapping.ListResult, error)
	Search(ctx context.Context, request mapping.SearchRequest) ([]*mapping.Mapping, error)
	Statistics(ctx context.Context) (*mapping.Statistics, error)
	Create(ctx context.Context, input mapping.CreateInput) (*mapping.Mapping, error)
	Update(ctx context.Context, anidbID int, patch mapping.UpdateInput) (*mapping.Mapping, error)
	Delete(ctx context.Context, anidbID int) error
	BulkDelete(ctx context.Context, anidbIDs []int) (*mapping.BulkDeleteResult, error)
	Refresh(ctx context.Context, sourceURL *string) (*mapping.RefreshResult, error)
	Score(ctx context.Context, request mapping.ScoreRequest) (*mapping.ScoreResult, error)
}

var _ Remote = (*client.Client)(nil)

// Level is the severity of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier receives user-facing messages.
type Notifier interface {
	Notify(level Level, message string)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(level Level, message string)

func (fn NotifierFunc) Notify(level Level, message string) { fn(level, message) }

// Confirmer asks the user before destructive operations.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmerFunc adapts a function to [Confirmer].
type ConfirmerFunc func(prompt string) bool

func (fn ConfirmerFunc) Confirm(prompt string) bool { return fn(prompt) }

// # State

// Operation names a coordinator action for status tracking.
type Operation string

const (
	OpLoad       Operation = "load"
	OpReload     Operation = "reload"
	OpStatistics Operation = "statistics"
	OpCreate     Operation = "create"
	OpUpdate     Operation = "update"
	OpDelete     Operation = "delete"
	OpBulkDelete Operation = "bulk_delete"
	OpRefresh    Operation = "refresh"
)

// Status is the lifecycle of one operation.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// SelectionState summarises the selection relative to the loaded list.
type SelectionState string

const (
	SelectionNone SelectionState = "none"
	SelectionSome SelectionState = "some"
	SelectionAll  SelectionState = "all"
)

// DefaultConfidence is the score given to a new mapping when none is provided.
const DefaultConfidence = 0.5

// ErrStale is returned when a response arrived after a newer request was issued.
var ErrStale = errors.New("workflow: response superseded by a newer request")

// Coordinator owns the mapping list, its statistics and the selection.
//
// Remote calls run without the lock held; results are applied atomically
// afterwards, so state is never half-updated.
type Coordinator struct {
	remote    Remote
	notifier  Notifier
	confirmer Confirmer
	logger    *slog.Logger

	mu       sync.Mutex
	query    *Query
	mappings []*mapping.Mapping
	total    int
	stats    *mapping.Statistics
	selected map[int]struct{}
	status   map[Operation]Status
	// owner is the token of the latest request issued per loading operation.
	owner map[Operation]uint64
}

// NewCoordinator wires the collaborators. perPage <= 0 selects [DefaultPerPage].
func NewCoordinator(remote Remote, notifier Notifier, confirmer Confirmer, perPage int, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		remote:    remote,
		notifier:  notifier,
		confirmer: confirmer,
		logger:    logger,
		query:     NewQuery(perPage),
		mappings:  []*mapping.Mapping{},
		selected:  make(map[int]struct{}),
		status:    make(map[Operation]Status),
		owner:     make(map[Operation]uint64),
	}
}

// # Accessors

// Mappings returns a copy of the loaded list.
func (coordinator *Coordinator) Mappings() []*mapping.Mapping {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	return slices.Clone(coordinator.mappings)
}

// Total returns the server-side total for the current filter.
func (coordinator *Coordinator) Total() int {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	return coordinator.total
}

// Statistics returns the last fetched snapshot, or nil.
func (coordinator *Coordinator) Statistics() *mapping.Statistics {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	return coordinator.stats
}

// Status returns the lifecycle state of op.
func (coordinator *Coordinator) Status(op Operation) Status {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if status, ok := coordinator.status[op]; ok {
		return status
	}
	return StatusIdle
}

// Loading reports whether a list load is in flight.
func (coordinator *Coordinator) Loading() bool {
	return coordinator.Status(OpLoad) == StatusPending || coordinator.Status(OpReload) == StatusPending
}

// UpdateQuery mutates the query state under the coordinator lock. Call Load afterwards.
func (coordinator *Coordinator) UpdateQuery(fn func(query *Query)) {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	fn(coordinator.query)
}

// TotalPages returns the page count for the current list.
func (coordinator *Coordinator) TotalPages() int {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if coordinator.query.Searching() {
		return 1
	}
	return pagination.TotalPages(coordinator.total, coordinator.query.PerPage())
}

func (coordinator *Coordinator) setStatus(op Operation, status Status) {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	coordinator.status[op] = status
}

// fail records the failure and notifies with the server's message.
func (coordinator *Coordinator) fail(op Operation, err error) error {
	coordinator.setStatus(op, StatusFailed)
	coordinator.logger.Warn("mapping_operation_failed", slog.String("operation", string(op)), slog.Any("error", err))
	coordinator.notifier.Notify(LevelError, client.Message(err))
	return err
}

// # Loading

type listPage struct {
	mappings []*mapping.Mapping
	total    int
}

func (coordinator *Coordinator) fetch(ctx context.Context, request Request) (listPage, error) {
	if request.Search != nil {
		matches, err := coordinator.remote.Search(ctx, *request.Search)
		if err != nil {
			return listPage{}, err
		}
		return listPage{mappings: matches, total: len(matches)}, nil
	}

	result, err := coordinator.remote.List(ctx, *request.List)
	if err != nil {
		return listPage{}, err
	}
	return listPage{mappings: result.Mappings, total: result.Total}, nil
}

// issue builds the next request for op and marks op pending.
func (coordinator *Coordinator) issue(op Operation) Request {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	request := coordinator.query.Request()
	coordinator.owner[op] = request.Token
	coordinator.status[op] = StatusPending
	return request
}

// isLatest reports whether token still belongs to the newest request.
func (coordinator *Coordinator) isLatest(token uint64) bool {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	return coordinator.query.IsLatest(token)
}

// superseded settles op after its response was discarded. The status goes
// back to idle unless a newer request of the same operation owns it.
func (coordinator *Coordinator) superseded(op Operation, token uint64) error {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	if coordinator.owner[op] == token {
		coordinator.status[op] = StatusIdle
	}
	return ErrStale
}

// applyPage installs a page unless a newer request has been issued since.
func (coordinator *Coordinator) applyPage(token uint64, page listPage, stats *mapping.Statistics) bool {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	if !coordinator.query.IsLatest(token) {
		return false
	}

	coordinator.mappings = page.mappings
	if coordinator.mappings == nil {
		coordinator.mappings = []*mapping.Mapping{}
	}
	coordinator.total = page.total
	if stats != nil {
		coordinator.stats = stats
	}
	return true
}

/*
Load fetches the list (or search results) for the current query.

Returns:
  - error: The remote failure (already notified), or [ErrStale] when a newer
    request superseded this one
*/
func (coordinator *Coordinator) Load(ctx context.Context) error {
	request := coordinator.issue(OpLoad)

	page, err := coordinator.fetch(ctx, request)
	if err != nil {
		if !coordinator.isLatest(request.Token) {
			return coordinator.superseded(OpLoad, request.Token)
		}
		return coordinator.fail(OpLoad, err)
	}

	if !coordinator.applyPage(request.Token, page, nil) {
		return coordinator.superseded(OpLoad, request.Token)
	}
	coordinator.setStatus(OpLoad, StatusSuccess)
	return nil
}

// Reload fetches the list and statistics concurrently and applies both together.
func (coordinator *Coordinator) Reload(ctx context.Context) error {
	request := coordinator.issue(OpReload)

	var (
		page  listPage
		stats *mapping.Statistics
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		page, err = coordinator.fetch(groupCtx, request)
		return err
	})
	group.Go(func() error {
		var err error
		stats, err = coordinator.remote.Statistics(groupCtx)
		return err
	})

	if err := group.Wait(); err != nil {
		if !coordinator.isLatest(request.Token) {
			return coordinator.superseded(OpReload, request.Token)
		}
		return coordinator.fail(OpReload, err)
	}

	if !coordinator.applyPage(request.Token, page, stats) {
		return coordinator.superseded(OpReload, request.Token)
	}
	coordinator.setStatus(OpReload, StatusSuccess)
	return nil
}

// RefreshStatistics refetches the statistics snapshot.
func (coordinator *Coordinator) RefreshStatistics(ctx context.Context) error {
	coordinator.setStatus(OpStatistics, StatusPending)

	stats, err := coordinator.remote.Statistics(ctx)
	if err != nil {
		return coordinator.fail(OpStatistics, err)
	}

	coordinator.mu.Lock()
	coordinator.stats = stats
	coordinator.status[OpStatistics] = StatusSuccess
	coordinator.mu.Unlock()
	return nil
}

// # Mutations

// ValidateCreate checks a create input before it is sent.
func ValidateCreate(input mapping.CreateInput) error {
	validator := &validate.Validator{}
	validator.Positive(mapping.FieldAnidbID, input.AnidbID)
	validatePatch(validator, input.MalID, input.ConfidenceScore)
	return validator.Err()
}

func validatePatch(validator *validate.Validator, malID *int, score *float64) {
	if malID != nil {
		validator.Positive(mapping.FieldMalID, *malID)
	}
	if score != nil {
		validator.FloatRange(mapping.FieldConfidenceScore, *score, 0, 1)
	}
}

/*
Create validates input locally and stores it.

Description: A missing score defaults to 0.5 and a missing source to
manual. The created record is prepended to the list.

Returns:
  - *mapping.Mapping: The stored record
  - error: Validation (no request sent) or remote failure
*/
func (coordinator *Coordinator) Create(ctx context.Context, input mapping.CreateInput) (*mapping.Mapping, error) {
	if input.ConfidenceScore == nil {
		score := DefaultConfidence
		input.ConfidenceScore = &score
	}
	if input.Source == "" {
		input.Source = mapping.SourceManual
	}
	if err := ValidateCreate(input); err != nil {
		return nil, coordinator.fail(OpCreate, err)
	}

	coordinator.setStatus(OpCreate, StatusPending)
	created, err := coordinator.remote.Create(ctx, input)
	if err != nil {
		return nil, coordinator.fail(OpCreate, err)
	}

	coordinator.mu.Lock()
	coordinator.mappings = append([]*mapping.Mapping{created}, coordinator.mappings...)
	coordinator.total++
	coordinator.status[OpCreate] = StatusSuccess
	coordinator.mu.Unlock()

	coordinator.notifier.Notify(LevelSuccess, fmt.Sprintf("Mapping created for AniDB ID %d", created.AnidbID))
	_ = coordinator.RefreshStatistics(ctx)
	return created, nil
}

// Update patches a record and replaces it in the list by record id.
func (coordinator *Coordinator) Update(ctx context.Context, anidbID int, patch mapping.UpdateInput) (*mapping.Mapping, error) {
	validator := &validate.Validator{}
	validatePatch(validator, patch.MalID, patch.ConfidenceScore)
	if err := validator.Err(); err != nil {
		return nil, coordinator.fail(OpUpdate, err)
	}

	coordinator.setStatus(OpUpdate, StatusPending)
	updated, err := coordinator.remote.Update(ctx, anidbID, patch)
	if err != nil {
		return nil, coordinator.fail(OpUpdate, err)
	}

	coordinator.mu.Lock()
	for i, existing := range coordinator.mappings {
		if existing.ID == updated.ID {
			coordinator.mappings[i] = updated
			break
		}
	}
	coordinator.status[OpUpdate] = StatusSuccess
	coordinator.mu.Unlock()

	coordinator.notifier.Notify(LevelSuccess, fmt.Sprintf("Mapping updated for AniDB ID %d", updated.AnidbID))
	_ = coordinator.RefreshStatistics(ctx)
	return updated, nil
}

/*
Delete removes one record after confirmation.

Returns:
  - bool: False when the user declined (no request was sent)
  - error: Remote failure
*/
func (coordinator *Coordinator) Delete(ctx context.Context, record *mapping.Mapping) (bool, error) {
	if !coordinator.confirmer.Confirm(fmt.Sprintf("Delete mapping for AniDB ID %d?", record.AnidbID)) {
		return false, nil
	}

	coordinator.setStatus(OpDelete, StatusPending)
	if err := coordinator.remote.Delete(ctx, record.AnidbID); err != nil {
		return false, coordinator.fail(OpDelete, err)
	}

	coordinator.mu.Lock()
	coordinator.mappings = slices.DeleteFunc(coordinator.mappings, func(m *mapping.Mapping) bool { return m.ID == record.ID })
	coordinator.total = max(coordinator.total-1, 0)
	delete(coordinator.selected, record.AnidbID)
	coordinator.status[OpDelete] = StatusSuccess
	coordinator.mu.Unlock()

	coordinator.notifier.Notify(LevelSuccess, fmt.Sprintf("Mapping deleted for AniDB ID %d", record.AnidbID))
	_ = coordinator.RefreshStatistics(ctx)
	return true, nil
}

/*
BulkDelete removes every selected record after confirmation.

Description: The server deletes all or nothing. On success exactly the ids
sent leave the list and the selection, and the total drops by their count.
Rows ticked while the request was in flight stay listed and selected.

Returns:
  - int: Number of deleted records (0 when declined or nothing selected)
  - error: Remote failure
*/
func (coordinator *Coordinator) BulkDelete(ctx context.Context) (int, error) {
	ids := coordinator.Selected()
	if len(ids) == 0 {
		coordinator.notifier.Notify(LevelWarning, "No mappings selected")
		return 0, nil
	}
	if !coordinator.confirmer.Confirm(fmt.Sprintf("Delete %d selected mappings?", len(ids))) {
		return 0, nil
	}

	coordinator.setStatus(OpBulkDelete, StatusPending)
	result, err := coordinator.remote.BulkDelete(ctx, ids)
	if err != nil {
		return 0, coordinator.fail(OpBulkDelete, err)
	}

	deleted := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		deleted[id] = struct{}{}
	}

	coordinator.mu.Lock()
	coordinator.mappings = slices.DeleteFunc(coordinator.mappings, func(m *mapping.Mapping) bool {
		_, gone := deleted[m.AnidbID]
		return gone
	})
	coordinator.total = max(coordinator.total-len(ids), 0)
	for id := range deleted {
		delete(coordinator.selected, id)
	}
	coordinator.status[OpBulkDelete] = StatusSuccess
	coordinator.mu.Unlock()

	coordinator.notifier.Notify(LevelSuccess, fmt.Sprintf("Deleted %d mappings", result.Deleted))
	_ = coordinator.RefreshStatistics(ctx)
	return result.Deleted, nil
}

/*
Refresh asks the server to resynchronise and then reloads list and statistics.

Description: The reload happens whatever the error count. A nonzero error
count is reported as a warning.
*/
func (coordinator *Coordinator) Refresh(ctx context.Context, sourceURL *string) (*mapping.RefreshResult, error) {
	coordinator.setStatus(OpRefresh, StatusPending)
	result, err := coordinator.remote.Refresh(ctx, sourceURL)
	if err != nil {
		return nil, coordinator.fail(OpRefresh, err)
	}
	coordinator.setStatus(OpRefresh, StatusSuccess)

	if result.Errors > 0 {
		coordinator.notifier.Notify(LevelWarning, result.Message)
	} else {
		coordinator.notifier.Notify(LevelSuccess, result.Message)
	}

	if err := coordinator.Reload(ctx); err != nil && !errors.Is(err, ErrStale) {
		return result, err
	}
	return result, nil
}

// Score computes a confidence score for the editor.
func (coordinator *Coordinator) Score(ctx context.Context, request mapping.ScoreRequest) (*mapping.ScoreResult, error) {
	result, err := coordinator.remote.Score(ctx, request)
	if err != nil {
		coordinator.notifier.Notify(LevelError, client.Message(err))
		return nil, err
	}
	return result, nil
}

// # Selection

// ToggleSelection flips the selection of one record.
func (coordinator *Coordinator) ToggleSelection(anidbID int) {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if _, ok := coordinator.selected[anidbID]; ok {
		delete(coordinator.selected, anidbID)
		return
	}
	coordinator.selected[anidbID] = struct{}{}
}

// SelectAll selects every loaded record.
func (coordinator *Coordinator) SelectAll() {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	for _, m := range coordinator.mappings {
		coordinator.selected[m.AnidbID] = struct{}{}
	}
}

// ClearSelection deselects everything.
func (coordinator *Coordinator) ClearSelection() {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	coordinator.selected = make(map[int]struct{})
}

// IsSelected reports whether anidbID is selected.
func (coordinator *Coordinator) IsSelected(anidbID int) bool {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	_, ok := coordinator.selected[anidbID]
	return ok
}

// Selected returns the selected AniDB ids in ascending order.
func (coordinator *Coordinator) Selected() []int {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	ids := make([]int, 0, len(coordinator.selected))
	for id := range coordinator.selected {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SelectionState compares the selection with the loaded list.
func (coordinator *Coordinator) SelectionState() SelectionState {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	count := 0
	for _, m := range coordinator.mappings {
		if _, ok := coordinator.selected[m.AnidbID]; ok {
			count++
		}
	}

	switch {
	case count == 0:
		return SelectionNone
	case count == len(coordinator.mappings):
		return SelectionAll
	default:
		return SelectionSome
	}
}

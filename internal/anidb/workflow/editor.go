// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package workflow

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/taibuivan/anisync/internal/anidb/mapping"
	"github.com/taibuivan/anisync/internal/platform/validate"
	"github.com/taibuivan/anisync/pkg/pointer"
)

// EditorState is the lifecycle of the form.
type EditorState string

const (
	EditorClosed     EditorState = "closed"
	EditorOpen       EditorState = "open"
	EditorValidating EditorState = "validating"
	EditorSubmitting EditorState = "submitting"
)

// EditorMode distinguishes a new record from an existing one.
type EditorMode string

const (
	ModeCreate EditorMode = "create"
	ModeEdit   EditorMode = "edit"
)

var (
	// ErrEditorReadOnly is returned when the form is not open for edits.
	ErrEditorReadOnly = errors.New("workflow: editor is read-only")

	// ErrFieldDisabled is returned when editing the AniDB id of an existing record.
	ErrFieldDisabled = errors.New("workflow: field cannot be changed")

	// ErrSubmitting is returned when cancelling during a submit.
	ErrSubmitting = errors.New("workflow: submit in progress")

	// ErrUnknownField is returned by SetField for an unrecognised field name.
	ErrUnknownField = errors.New("workflow: unknown field")
)

// Form is the editable text of a mapping.
type Form struct {
	AnidbID string
	MalID   string
	Title   string
	Score   float64
	Source  mapping.Source
}

// Editor is the create/edit state machine. Like [Query] it is driven from a
// single goroutine.
type Editor struct {
	coordinator *Coordinator

	state      EditorState
	mode       EditorMode
	target     *mapping.Mapping
	form       Form
	calculated *float64
	errors     map[string]string
}

// NewEditor returns a closed editor bound to coordinator.
func NewEditor(coordinator *Coordinator) *Editor {
	return &Editor{coordinator: coordinator, state: EditorClosed}
}

func (editor *Editor) State() EditorState        { return editor.state }
func (editor *Editor) Mode() EditorMode          { return editor.mode }
func (editor *Editor) Form() Form                { return editor.form }
func (editor *Editor) Errors() map[string]string { return editor.errors }
func (editor *Editor) CalculatedScore() *float64 { return editor.calculated }
func (editor *Editor) Target() *mapping.Mapping  { return editor.target }
func (editor *Editor) ReadOnly() bool            { return editor.state != EditorOpen }
func (editor *Editor) FieldDisabled(f string) bool {
	return editor.mode == ModeEdit && f == mapping.FieldAnidbID
}

// OpenCreate opens an empty form with the default score and manual source.
func (editor *Editor) OpenCreate() {
	editor.reset(ModeCreate, nil)
	editor.form = Form{Score: DefaultConfidence, Source: mapping.SourceManual}
}

// OpenEdit opens the form prefilled from record.
func (editor *Editor) OpenEdit(record *mapping.Mapping) {
	editor.reset(ModeEdit, record)

	editor.form = Form{
		AnidbID: strconv.Itoa(record.AnidbID),
		Title:   pointer.Val(record.Title),
		Score:   pointer.Fallback(record.ConfidenceScore, DefaultConfidence),
		Source:  record.Source,
	}
	if record.MalID != nil {
		editor.form.MalID = strconv.Itoa(*record.MalID)
	}
}

func (editor *Editor) reset(mode EditorMode, target *mapping.Mapping) {
	editor.state = EditorOpen
	editor.mode = mode
	editor.target = target
	editor.calculated = nil
	editor.errors = nil
}

// SetField replaces one text field (anidb_id, mal_id or title).
func (editor *Editor) SetField(field, value string) error {
	if editor.ReadOnly() {
		return ErrEditorReadOnly
	}
	if editor.FieldDisabled(field) {
		return ErrFieldDisabled
	}

	switch field {
	case mapping.FieldAnidbID:
		editor.form.AnidbID = value
	case mapping.FieldMalID:
		editor.form.MalID = value
	case mapping.FieldTitle:
		editor.form.Title = value
	default:
		return ErrUnknownField
	}
	delete(editor.errors, field)
	return nil
}

// SetScore sets the score, clamped to [0, 1].
func (editor *Editor) SetScore(score float64) error {
	if editor.ReadOnly() {
		return ErrEditorReadOnly
	}
	editor.form.Score = min(max(score, 0), 1)
	return nil
}

// SetSource sets the provenance tag.
func (editor *Editor) SetSource(source mapping.Source) error {
	if editor.ReadOnly() {
		return ErrEditorReadOnly
	}
	editor.form.Source = source
	return nil
}

/*
CalculateConfidence scores the form title against malTitle and overwrites
the form score with the result.

Returns:
  - float64: The calculated score
  - error: [ErrEditorReadOnly] or the remote failure
*/
func (editor *Editor) CalculateConfidence(ctx context.Context, malTitle string) (float64, error) {
	if editor.ReadOnly() {
		return 0, ErrEditorReadOnly
	}

	result, err := editor.coordinator.Score(ctx, mapping.ScoreRequest{
		AnidbTitle: editor.form.Title,
		MalTitle:   malTitle,
	})
	if err != nil {
		return 0, err
	}

	score := result.ConfidenceScore
	editor.calculated = &score
	editor.form.Score = score
	return score, nil
}

// Validate checks the form and records per-field errors. It reports whether the form is valid.
func (editor *Editor) Validate() bool {
	if editor.state != EditorOpen {
		return false
	}
	editor.state = EditorValidating

	validator := &validate.Validator{}
	if editor.mode == ModeCreate {
		parsePositive(validator, mapping.FieldAnidbID, editor.form.AnidbID, true)
	}
	// The API patches only provided fields, so a stored MAL id cannot be removed by an edit.
	clearing := editor.mode == ModeEdit && editor.target != nil && editor.target.MalID != nil &&
		strings.TrimSpace(editor.form.MalID) == ""
	validator.Custom(mapping.FieldMalID, clearing, "The MAL ID cannot be removed")
	parsePositive(validator, mapping.FieldMalID, editor.form.MalID, false)
	validator.MaxLen(mapping.FieldTitle, strings.TrimSpace(editor.form.Title), mapping.MaxTitleLength)
	validator.Custom(mapping.FieldSource, !editor.form.Source.Valid(), "Unknown source")

	editor.errors = validator.Fields()
	editor.state = EditorOpen
	return len(editor.errors) == 0
}

// parsePositive reads a positive integer text field. Blank is allowed unless required.
func parsePositive(validator *validate.Validator, field, text string, required bool) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		validator.Custom(field, required, "This field is required")
		return 0, false
	}

	value, err := strconv.Atoi(text)
	if err != nil || value <= 0 {
		validator.Custom(field, true, "Must be a positive integer")
		return 0, false
	}
	return value, true
}

/*
Submit validates and sends the form.

Description: Invalid forms stay open with their field errors and nothing is
sent. During the remote call the form is read-only. Success closes the
editor; a remote failure reopens it with the entered values intact.

Returns:
  - *mapping.Mapping: The stored record
  - error: Validation or remote failure
*/
func (editor *Editor) Submit(ctx context.Context) (*mapping.Mapping, error) {
	if editor.state != EditorOpen {
		return nil, ErrEditorReadOnly
	}
	if !editor.Validate() {
		return nil, editor.validationError()
	}

	editor.state = EditorSubmitting
	record, err := editor.send(ctx)
	if err != nil {
		editor.state = EditorOpen
		return nil, err
	}

	editor.state = EditorClosed
	editor.target = nil
	return record, nil
}

func (editor *Editor) send(ctx context.Context) (*mapping.Mapping, error) {
	discard := &validate.Validator{}
	score := editor.form.Score
	var malID *int
	if value, ok := parsePositive(discard, mapping.FieldMalID, editor.form.MalID, false); ok {
		malID = &value
	}
	var title *string
	if text := strings.TrimSpace(editor.form.Title); text != "" {
		title = &text
	}

	if editor.mode == ModeCreate {
		anidbID, _ := parsePositive(discard, mapping.FieldAnidbID, editor.form.AnidbID, true)
		return editor.coordinator.Create(ctx, mapping.CreateInput{
			AnidbID:         anidbID,
			MalID:           malID,
			Title:           title,
			ConfidenceScore: &score,
			Source:          editor.form.Source,
		})
	}

	source := editor.form.Source
	return editor.coordinator.Update(ctx, editor.target.AnidbID, mapping.UpdateInput{
		MalID:           malID,
		Title:           title,
		ConfidenceScore: &score,
		Source:          &source,
	})
}

func (editor *Editor) validationError() error {
	validator := &validate.Validator{}
	for _, field := range []string{mapping.FieldAnidbID, mapping.FieldMalID, mapping.FieldTitle, mapping.FieldSource} {
		if message, ok := editor.errors[field]; ok {
			validator.Custom(field, true, message)
		}
	}
	return validator.Err()
}

// Cancel closes the form. It is refused while a submit is in flight.
func (editor *Editor) Cancel() error {
	if editor.state == EditorSubmitting {
		return ErrSubmitting
	}
	editor.state = EditorClosed
	editor.target = nil
	editor.errors = nil
	editor.calculated = nil
	return nil
}

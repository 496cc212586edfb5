// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package workflow_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/anisync/internal/anidb/client"
	"github.com/taibuivan/anisync/internal/anidb/mapping"
	"github.com/taibuivan/anisync/internal/anidb/workflow"
	"github.com/taibuivan/anisync/pkg/pointer"
)

func newEditor(remote *fakeRemote) (*workflow.Editor, *workflow.Coordinator) {
	coordinator, _ := newCoordinator(remote, true)
	return workflow.NewEditor(coordinator), coordinator
}

/*
TestEditor_Validate reports errors per field.
*/
func TestEditor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		anidbID string
		malID   string
		want    map[string]string
	}{
		{"valid", "12", "", map[string]string{}},
		{"valid_with_mal", "12", " 34 ", map[string]string{}},
		{"missing_anidb", "", "", map[string]string{mapping.FieldAnidbID: "This field is required"}},
		{"not_a_number", "abc", "", map[string]string{mapping.FieldAnidbID: "Must be a positive integer"}},
		{"zero_mal", "1", "0", map[string]string{mapping.FieldMalID: "Must be a positive integer"}},
		{
			"both_bad", "-1", "x",
			map[string]string{mapping.FieldAnidbID: "Must be a positive integer", mapping.FieldMalID: "Must be a positive integer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			editor, _ := newEditor(seededRemote())
			editor.OpenCreate()
			require.NoError(t, editor.SetField(mapping.FieldAnidbID, tt.anidbID))
			require.NoError(t, editor.SetField(mapping.FieldMalID, tt.malID))

			assert.Equal(t, len(tt.want) == 0, editor.Validate())
			assert.Equal(t, tt.want, editor.Errors())
			assert.Equal(t, workflow.EditorOpen, editor.State())
		})
	}
}

/*
TestEditor_SubmitCreate sends parsed values and closes.
*/
func TestEditor_SubmitCreate(t *testing.T) {
	remote := seededRemote()
	editor, coordinator := newEditor(remote)

	editor.OpenCreate()
	require.NoError(t, editor.SetField(mapping.FieldAnidbID, "42"))
	require.NoError(t, editor.SetField(mapping.FieldMalID, "7"))
	require.NoError(t, editor.SetField(mapping.FieldTitle, "  Cowboy Bebop "))

	created, err := editor.Submit(context.Background())
	require.NoError(t, err)

	require.Len(t, remote.created, 1)
	input := remote.created[0]
	assert.Equal(t, 42, input.AnidbID)
	assert.Equal(t, 7, *input.MalID)
	assert.Equal(t, "Cowboy Bebop", *input.Title)
	assert.InDelta(t, 0.5, *input.ConfidenceScore, 1e-9)
	assert.Equal(t, mapping.SourceManual, input.Source)

	assert.Equal(t, workflow.EditorClosed, editor.State())
	assert.Equal(t, created, coordinator.Mappings()[0])
}

/*
TestEditor_SubmitInvalid stays open and sends nothing.
*/
func TestEditor_SubmitInvalid(t *testing.T) {
	remote := seededRemote()
	editor, _ := newEditor(remote)

	editor.OpenCreate()
	_, err := editor.Submit(context.Background())

	require.Error(t, err)
	assert.Empty(t, remote.created)
	assert.Equal(t, workflow.EditorOpen, editor.State())
	assert.Contains(t, editor.Errors(), mapping.FieldAnidbID)
}

/*
TestEditor_SubmitFailure reopens the form with the entered values.
*/
func TestEditor_SubmitFailure(t *testing.T) {
	remote := seededRemote()
	remote.fail(&client.APIError{Status: http.StatusConflict, Message: "Mapping for AniDB ID 42 already exists"})
	editor, _ := newEditor(remote)

	editor.OpenCreate()
	require.NoError(t, editor.SetField(mapping.FieldAnidbID, "42"))

	_, err := editor.Submit(context.Background())

	assert.Equal(t, http.StatusConflict, client.StatusOf(err))
	assert.Equal(t, workflow.EditorOpen, editor.State())
	assert.Equal(t, "42", editor.Form().AnidbID)
}

/*
TestEditor_Edit keeps the AniDB id fixed and patches by it.
*/
func TestEditor_Edit(t *testing.T) {
	remote := seededRemote()
	editor, _ := newEditor(remote)

	target := record("id-3", 3, pointer.To(30), pointer.To(0.75))
	editor.OpenEdit(target)

	assert.Equal(t, workflow.ModeEdit, editor.Mode())
	assert.Equal(t, "30", editor.Form().MalID)
	assert.InDelta(t, 0.75, editor.Form().Score, 1e-9)
	assert.True(t, editor.FieldDisabled(mapping.FieldAnidbID))
	require.ErrorIs(t, editor.SetField(mapping.FieldAnidbID, "99"), workflow.ErrFieldDisabled)

	require.NoError(t, editor.SetField(mapping.FieldMalID, "31"))
	_, err := editor.Submit(context.Background())
	require.NoError(t, err)

	require.Len(t, remote.updated, 1)
	assert.Equal(t, 31, *remote.updated[0].MalID)
	assert.Equal(t, mapping.SourceAuto, *remote.updated[0].Source)
}

/*
TestEditor_EditMalIDBlank rejects removing a stored MAL id and allows leaving an absent one blank.
*/
func TestEditor_EditMalIDBlank(t *testing.T) {
	tests := []struct {
		name   string
		target *mapping.Mapping
		malID  string
		want   map[string]string
	}{
		{"cleared", record("id-3", 3, pointer.To(30), pointer.To(0.75)), "", map[string]string{mapping.FieldMalID: "The MAL ID cannot be removed"}},
		{"whitespace", record("id-3", 3, pointer.To(30), pointer.To(0.75)), "   ", map[string]string{mapping.FieldMalID: "The MAL ID cannot be removed"}},
		{"never_set", record("id-2", 2, nil, nil), "", map[string]string{}},
		{"replaced", record("id-3", 3, pointer.To(30), pointer.To(0.75)), "31", map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := seededRemote()
			editor, _ := newEditor(remote)
			editor.OpenEdit(tt.target)
			require.NoError(t, editor.SetField(mapping.FieldMalID, tt.malID))

			_, err := editor.Submit(context.Background())

			assert.Equal(t, tt.want, editor.Errors())
			if len(tt.want) > 0 {
				require.Error(t, err)
				assert.Empty(t, remote.updated)
				assert.Equal(t, workflow.EditorOpen, editor.State())
				return
			}
			require.NoError(t, err)
			assert.Len(t, remote.updated, 1)
		})
	}
}

/*
TestEditor_SetScore clamps to the unit interval.
*/
func TestEditor_SetScore(t *testing.T) {
	editor, _ := newEditor(seededRemote())
	editor.OpenCreate()

	require.NoError(t, editor.SetScore(1.7))
	assert.InDelta(t, 1.0, editor.Form().Score, 1e-9)

	require.NoError(t, editor.SetScore(-0.2))
	assert.InDelta(t, 0.0, editor.Form().Score, 1e-9)
}

/*
TestEditor_CalculateConfidence overwrites the score with the server result.
*/
func TestEditor_CalculateConfidence(t *testing.T) {
	remote := seededRemote()
	remote.score = 0.92
	editor, _ := newEditor(remote)

	editor.OpenCreate()
	require.NoError(t, editor.SetField(mapping.FieldTitle, "Naruto"))

	score, err := editor.CalculateConfidence(context.Background(), "NARUTO")
	require.NoError(t, err)

	assert.InDelta(t, 0.92, score, 1e-9)
	assert.InDelta(t, 0.92, editor.Form().Score, 1e-9)
	assert.InDelta(t, 0.92, *editor.CalculatedScore(), 1e-9)
	assert.Equal(t, []mapping.ScoreRequest{{AnidbTitle: "Naruto", MalTitle: "NARUTO"}}, remote.scored)
}

/*
TestEditor_ClosedIsReadOnly refuses edits outside the open state.
*/
func TestEditor_ClosedIsReadOnly(t *testing.T) {
	editor, _ := newEditor(seededRemote())

	assert.ErrorIs(t, editor.SetField(mapping.FieldTitle, "x"), workflow.ErrEditorReadOnly)
	assert.ErrorIs(t, editor.SetScore(0.3), workflow.ErrEditorReadOnly)
	_, err := editor.Submit(context.Background())
	assert.ErrorIs(t, err, workflow.ErrEditorReadOnly)

	editor.OpenCreate()
	assert.ErrorIs(t, editor.SetField("episodes", "12"), workflow.ErrUnknownField)
	require.NoError(t, editor.Cancel())
	assert.Equal(t, workflow.EditorClosed, editor.State())
}

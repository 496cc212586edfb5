// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package workflow

import (
	"strconv"

	"github.com/taibuivan/anisync/internal/anidb/confidence"
	"github.com/taibuivan/anisync/internal/anidb/mapping"
	"github.com/taibuivan/anisync/pkg/pointer"
)

const (
	// UnmappedLabel is shown in place of a missing MAL id.
	UnmappedLabel = "Unmapped"

	// EmptyListLabel is shown when the list has no records.
	EmptyListLabel = "No mappings found"
)

// Row is the display form of one record.
type Row struct {
	Record      *mapping.Mapping
	Selected    bool
	AnidbID     string
	MalID       string
	Title       string
	Confidence  string
	Tier        confidence.Tier
	Color       confidence.Color
	SourceLabel string
}

// Rows derives one display row per loaded record.
func (coordinator *Coordinator) Rows() []Row {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	rows := make([]Row, 0, len(coordinator.mappings))
	for _, record := range coordinator.mappings {
		_, selected := coordinator.selected[record.AnidbID]
		rows = append(rows, NewRow(record, selected))
	}
	return rows
}

// NewRow formats a single record.
func NewRow(record *mapping.Mapping, selected bool) Row {
	class := confidence.Classify(record.ConfidenceScore)

	row := Row{
		Record:      record,
		Selected:    selected,
		AnidbID:     strconv.Itoa(record.AnidbID),
		MalID:       UnmappedLabel,
		Title:       pointer.Val(record.Title),
		Confidence:  confidence.FormatPercent(record.ConfidenceScore),
		Tier:        class.Tier,
		Color:       class.Color,
		SourceLabel: record.Source.Label(),
	}
	if record.MalID != nil {
		row.MalID = strconv.Itoa(*record.MalID)
	}
	return row
}

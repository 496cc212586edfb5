// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package workflow

import (
	"strconv"

	"github.com/taibuivan/anisync/internal/anidb/confidence"
	"github.com/taibuivan/anisync/internal/anidb/mapping"
)

// StatisticLine is one labelled value of the statistics summary.
type StatisticLine struct {
	Label string
	Value string
}

// StatisticLines formats a snapshot in display order. A nil snapshot yields no lines.
func StatisticLines(stats *mapping.Statistics) []StatisticLine {
	if stats == nil {
		return nil
	}

	return []StatisticLine{
		{"Total Mappings", strconv.Itoa(stats.TotalMappings)},
		{"Mapped", strconv.Itoa(stats.MappedCount)},
		{"Unmapped", strconv.Itoa(stats.UnmappedCount)},
		{mapping.SourceManual.Label(), strconv.Itoa(stats.ManualCount)},
		{mapping.SourceAuto.Label(), strconv.Itoa(stats.AutoCount)},
		{mapping.SourceGithubFile.Label(), strconv.Itoa(stats.GithubCount)},
		{mapping.SourceJellyfinWebhook.Label(), strconv.Itoa(stats.JellyfinCount)},
		{"Average Confidence", confidence.FormatPercent(stats.AverageConfidence)},
	}
}

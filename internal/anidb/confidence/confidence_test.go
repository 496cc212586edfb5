// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package confidence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/anisync/internal/anidb/confidence"
	"github.com/taibuivan/anisync/pkg/pointer"
)

/*
TestClassify covers each tier boundary.
*/
func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		score *float64
		tier  confidence.Tier
		color confidence.Color
	}{
		{"nil", nil, confidence.TierUnknown, confidence.ColorDefault},
		{"zero_is_low", pointer.To(0.0), confidence.TierLow, confidence.ColorError},
		{"just_below_medium", pointer.To(0.59), confidence.TierLow, confidence.ColorError},
		{"medium_boundary", pointer.To(0.6), confidence.TierMedium, confidence.ColorWarning},
		{"just_below_high", pointer.To(0.79), confidence.TierMedium, confidence.ColorWarning},
		{"high_boundary", pointer.To(0.8), confidence.TierHigh, confidence.ColorSuccess},
		{"one", pointer.To(1.0), confidence.TierHigh, confidence.ColorSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := confidence.Classify(tt.score)
			assert.Equal(t, tt.tier, got.Tier)
			assert.Equal(t, tt.color, got.Color)
		})
	}
}

/*
TestFormatPercent rounds halves up and renders nil as N/A.
*/
func TestFormatPercent(t *testing.T) {
	tests := []struct {
		name  string
		score *float64
		want  string
	}{
		{"nil", nil, "N/A"},
		{"zero", pointer.To(0.0), "0%"},
		{"half_up", pointer.To(0.875), "88%"},
		{"round_down", pointer.To(0.874), "87%"},
		{"whole", pointer.To(0.5), "50%"},
		{"one", pointer.To(1.0), "100%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, confidence.FormatPercent(tt.score))
		})
	}
}

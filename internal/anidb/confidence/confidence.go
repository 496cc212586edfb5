// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package confidence classifies mapping confidence scores for display.

Table rows, the record editor and the statistics view all go through
[Classify] and [FormatPercent] so a score renders identically everywhere.
*/
package confidence

import (
	"math"
	"strconv"
)

// Tier is the qualitative bucket of a score.
type Tier string

const (
	TierUnknown Tier = "Unknown"
	TierLow     Tier = "Low"
	TierMedium  Tier = "Medium"
	TierHigh    Tier = "High"
)

// Color is the semantic color token attached to a tier.
type Color string

const (
	ColorDefault Color = "default"
	ColorError   Color = "error"
	ColorWarning Color = "warning"
	ColorSuccess Color = "success"
)

// Tier boundaries. Both are inclusive lower bounds.
const (
	HighThreshold   = 0.8
	MediumThreshold = 0.6
)

// NotAvailable is rendered for a score that was never evaluated.
const NotAvailable = "N/A"

// Classification pairs a tier with its color.
type Classification struct {
	Tier  Tier
	Color Color
}

// Classify buckets score. A nil score is Unknown, which is distinct from 0.
func Classify(score *float64) Classification {
	switch {
	case score == nil:
		return Classification{Tier: TierUnknown, Color: ColorDefault}
	case *score >= HighThreshold:
		return Classification{Tier: TierHigh, Color: ColorSuccess}
	case *score >= MediumThreshold:
		return Classification{Tier: TierMedium, Color: ColorWarning}
	default:
		return Classification{Tier: TierLow, Color: ColorError}
	}
}

// FormatPercent renders score as a whole percentage, rounding halves up.
func FormatPercent(score *float64) string {
	if score == nil {
		return NotAvailable
	}
	return strconv.Itoa(int(math.Floor(*score*100+0.5))) + "%"
}

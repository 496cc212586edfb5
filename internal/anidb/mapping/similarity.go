// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mapping

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/unicode/norm"
)

// # Title Similarity

const (
	scoreExact       = 1.0
	scoreContainment = 0.8

	// editWeight caps the edit-distance term below containment.
	editWeight = 0.8

	episodeMatchBonus = 0.1
	yearPenalty       = 0.2
	yearPenaltyAfter  = 5
)

/*
Similarity scores how likely two titles name the same work.

Titles are normalised first. Identical titles score 1.0 and containment
scores 0.8. Otherwise the score is the larger of the word Jaccard index
and a Levenshtein ratio weighted by 0.8, adjusted by the optional factors.
The result is rounded to two decimals.

Parameters:
  - anidbTitle: string
  - malTitle: string
  - factors: *ScoreFactors (Optional metadata agreement)

Returns:
  - float64: Score in [0, 1]
*/
func Similarity(anidbTitle, malTitle string, factors *ScoreFactors) float64 {
	a := NormalizeTitle(anidbTitle)
	b := NormalizeTitle(malTitle)

	if a == "" || b == "" {
		return 0
	}

	if a == b {
		return scoreExact
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		return scoreContainment
	}

	score := math.Max(wordJaccard(a, b), editRatio(a, b)*editWeight)

	if factors != nil {
		if factors.EpisodeCountMatch {
			score = math.Min(1, score+episodeMatchBonus)
		}
		if factors.YearDifference > yearPenaltyAfter {
			score = math.Max(0, score-yearPenalty)
		}
	}

	return RoundScore(score)
}

// RoundScore rounds a score half-up to two decimals.
func RoundScore(score float64) float64 {
	return math.Round(score*100) / 100
}

/*
NormalizeTitle folds a title for comparison.

Compatibility forms are folded with NFKC, combining marks are removed,
letters are lower-cased and every run of non letter/digit characters
becomes one space. Non-Latin scripts are kept.
*/
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}

	// Width and compatibility folding
	title = norm.NFKC.String(title)

	// Decompose so diacritics become separate marks we can drop
	decomposed := norm.NFD.String(title)

	var builder strings.Builder
	builder.Grow(len(decomposed))

	pendingSpace := false
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && builder.Len() > 0 {
				builder.WriteByte(' ')
			}
			pendingSpace = false
			builder.WriteRune(unicode.ToLower(r))
		default:
			pendingSpace = true
		}
	}

	return norm.NFC.String(builder.String())
}

// wordJaccard is |A ∩ B| / |A ∪ B| over whitespace separated words.
func wordJaccard(a, b string) float64 {
	left := wordSet(a)
	right := wordSet(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	common := 0
	for word := range left {
		if _, ok := right[word]; ok {
			common++
		}
	}

	union := len(left) + len(right) - common
	return float64(common) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// editRatio is 1 - distance/longest, measured in runes.
func editRatio(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 0
	}

	distance := fuzzy.LevenshteinDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}

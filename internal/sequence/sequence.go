package sequence

import (
	"errors"
	"strings"

	"DNAHunter/internal/model"
)

// minLengthRatio is the fraction of the target length a candidate history
// must reach before it is scored at all. Shorter histories usually mean a
// long trading halt or a recent listing, not a genuine mismatch.
const minLengthRatio = 0.8

// Encode maps each candle to one symbol: "1" for an up or flat close
// (close >= open), "0" for a down close, in chronological order.
func Encode(candles []model.Candle) string {
	var b strings.Builder
	b.Grow(len(candles))
	for _, c := range candles {
		if c.Close >= c.Open {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Similarity scores how well candidate reproduces target: the length of the
// longest contiguous substring common to both, divided by the target length.
// Candidates shorter than minLengthRatio of the target score exactly 0
// (insufficient data). The metric is deliberately asymmetric: it asks whether
// any stretch of the candidate reproduces the whole target, not how alike the
// two strings are overall.
func Similarity(target, candidate string) float64 {
	if len(target) == 0 {
		return 0
	}
	if float64(len(candidate)) < minLengthRatio*float64(len(target)) {
		return 0
	}
	return float64(longestCommonSubstring(target, candidate)) / float64(len(target))
}

// longestCommonSubstring returns the length of the longest run of symbols
// appearing contiguously in both a and b.
func longestCommonSubstring(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return best
}

// Validate checks that s is a usable target pattern: non-empty and only
// '0'/'1' symbols. User entry points apply their own length floor on top.
func Validate(s string) error {
	if len(s) == 0 {
		return errors.New("target sequence is empty")
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return errors.New("target sequence must contain only 0 and 1")
		}
	}
	return nil
}

// Clean strips whitespace and newlines from a user-entered pattern.
func Clean(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, s)
}

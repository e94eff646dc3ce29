package domain

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Default concentration estimates (cells/L) for categories that carry no
// parseable range.
const (
	backgroundCells = 500
	veryLowCells    = 2500
	lowCells        = 5000
	mediumCells     = 50000
	highCells       = 500000
)

// digitGroupRe matches maximal runs of digits and thousands separators,
// e.g. "1,000" and "5,000" in "very low (1,000 - 5,000 cells/L)".
var digitGroupRe = regexp.MustCompile(`[\d,]+`)

// Classify converts a raw abundance category into a concentration estimate
// (cells/L) and a severity tier.
//
// Keywords are matched case-insensitively in priority order; the order
// matters because "low" is a substring of "very low". Medium and high both
// map to TierAvoid. Unrecognized text yields (0, TierSafe).
func Classify(raw string) (int, Tier) {
	text := strings.ToLower(raw)

	switch {
	case strings.Contains(text, "not present"), strings.Contains(text, "background"):
		return backgroundCells, TierSafe
	case strings.Contains(text, "very low"):
		return veryLowCells, TierSafe
	case strings.Contains(text, "low"):
		return rangeMidpoint(raw, lowCells), TierCaution
	case strings.Contains(text, "medium"):
		return rangeMidpoint(raw, mediumCells), TierAvoid
	case strings.Contains(text, "high"):
		return rangeMidpoint(raw, highCells), TierAvoid
	default:
		return 0, TierSafe
	}
}

// rangeMidpoint returns floor((low+high)/2) using the first two numeric
// groups in text, or fallback when fewer than two are present.
func rangeMidpoint(text string, fallback int) int {
	bounds := extractNumbers(text, 2)
	if len(bounds) < 2 {
		return fallback
	}
	lo, hi := min(bounds[0], bounds[1]), max(bounds[0], bounds[1])
	return lo + (hi-lo)/2
}

// extractNumbers scans text left to right and returns up to limit integers
// parsed from digit/comma groups. Groups made only of commas are skipped;
// groups too large for an int saturate at math.MaxInt.
func extractNumbers(text string, limit int) []int {
	var out []int
	for _, group := range digitGroupRe.FindAllString(text, -1) {
		digits := strings.ReplaceAll(group, ",", "")
		if digits == "" {
			continue
		}
		n, err := strconv.Atoi(digits)
		if errors.Is(err, strconv.ErrRange) {
			n = math.MaxInt
		} else if err != nil {
			continue
		}
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return out
}

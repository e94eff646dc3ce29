package domain

import (
	"math"
	"time"
)

// Distance bands (miles) and their weights.
const (
	nearBandMiles = 1.0
	midBandMiles  = 3.0
	farBandMiles  = 10.0

	freshSampleDays = 7
	minAgeWeight    = 0.1
)

// Weight combines the spatial and temporal relevance of one reading into a
// factor in (0, 1]. The age component floors at 0.1 so stale data still
// contributes.
func Weight(distanceMiles float64, ageDays int) float64 {
	return distanceWeight(distanceMiles) * ageWeight(ageDays)
}

func distanceWeight(miles float64) float64 {
	switch {
	case miles <= nearBandMiles:
		return 1.0
	case miles <= midBandMiles:
		return 0.7
	case miles <= farBandMiles:
		return 0.4
	default:
		return 0.2
	}
}

func ageWeight(days int) float64 {
	if days <= freshSampleDays {
		return 1.0
	}
	return math.Max(minAgeWeight, 1-float64(days)/freshSampleDays)
}

// AgeDays is the number of whole days between sampledAt and now.
func AgeDays(sampledAt, now time.Time) int {
	return int(now.Sub(sampledAt) / (24 * time.Hour))
}

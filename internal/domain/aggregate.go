package domain

import (
	"math"
	"time"
)

// Average weighted-score thresholds for the beach tier.
const (
	avoidScoreThreshold   = 1.5
	cautionScoreThreshold = 0.5

	confidencePerWeight  = 50
	confidencePerReading = 10
	maxConfidence        = 100
)

// Aggregate combines all readings for one beach into its status.
//
// With no readings the result is TierNoData with zero confidence. Otherwise
// the tier is always a real one, even when the only reading is old and far
// away. now is the reference time for sample age.
func Aggregate(beachID string, readings []SiteReading, now time.Time) LocationStatus {
	status := LocationStatus{
		LocationID: beachID,
		Kind:       KindBeach,
		Tier:       TierNoData,
	}
	if len(readings) == 0 {
		return status
	}

	contributions := make([]SiteContribution, 0, len(readings))
	var scoreSum, totalWeight float64
	for _, r := range readings {
		concentration, tier := Classify(r.RawAbundance)
		w := Weight(r.DistanceMiles, AgeDays(r.SampledAt, now))
		ordinal, _ := tier.Ordinal()
		scoreSum += float64(ordinal) * w
		totalWeight += w

		contributions = append(contributions, SiteContribution{
			SiteID:        r.SiteID,
			LocationLabel: r.LocationLabel,
			DistanceMiles: r.DistanceMiles,
			Concentration: concentration,
			Tier:          tier,
			SampleDate:    r.SampledAt,
			Weight:        w,
		})

		if concentration > status.PeakConcentration {
			status.PeakConcentration = concentration
		}
		if r.SampledAt.After(status.SampleDate) {
			status.SampleDate = r.SampledAt
		}
	}

	status.Tier = scoreTier(scoreSum / float64(len(contributions)))
	status.Confidence = confidence(totalWeight, len(contributions))
	status.Contributions = contributions
	return status
}

func scoreTier(avg float64) Tier {
	switch {
	case avg >= avoidScoreThreshold:
		return TierAvoid
	case avg >= cautionScoreThreshold:
		return TierCaution
	default:
		return TierSafe
	}
}

func confidence(totalWeight float64, readings int) int {
	c := int(math.Round(totalWeight*confidencePerWeight + float64(readings*confidencePerReading)))
	return min(maxConfidence, c)
}

package domain

// Rollup combines child statuses into a city or region status.
//
// The tier is the worst tier among children that have data; no_data children
// are left out of that comparison but still counted and still pull the mean
// confidence down. With no data-bearing children the tier is TierNoData.
func Rollup(id string, kind LocationKind, children []LocationStatus) LocationStatus {
	counts := TierCounts{}
	status := LocationStatus{
		LocationID:  id,
		Kind:        kind,
		Tier:        TierNoData,
		ChildCounts: &counts,
	}
	if len(children) == 0 {
		return status
	}

	worst := -1
	var concentrationSum, concentrationN, confidenceSum int
	for _, child := range children {
		counts.add(child.Tier)
		confidenceSum += child.Confidence

		if ordinal, ok := child.Tier.Ordinal(); ok && ordinal > worst {
			worst = ordinal
		}
		if child.PeakConcentration > 0 {
			concentrationSum += child.PeakConcentration
			concentrationN++
			if child.PeakConcentration > status.PeakConcentration {
				status.PeakConcentration = child.PeakConcentration
			}
		}
		if child.SampleDate.After(status.SampleDate) {
			status.SampleDate = child.SampleDate
		}
	}

	if worst >= 0 {
		status.Tier = tierFromOrdinal(worst)
	}
	if concentrationN > 0 {
		status.AvgConcentration = concentrationSum / concentrationN
	}
	status.Confidence = confidenceSum / len(children)
	return status
}

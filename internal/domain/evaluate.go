package domain

import "time"

// EvaluateOptions tunes sample selection ahead of aggregation.
type EvaluateOptions struct {
	// MaxSampleAge drops samples older than this before aggregation.
	// Zero keeps every sample.
	MaxSampleAge time.Duration
}

// Evaluate computes every beach, city, and region status for one run.
//
// Levels are computed in dependency order: beaches from resolved readings,
// cities from their beaches, regions from their beaches with the region's
// cities attached as display children only. Each level is sorted by ID.
func Evaluate(h *Hierarchy, samples []Sample, now time.Time, opts EvaluateOptions) Snapshot {
	samples = filterByAge(samples, now, opts.MaxSampleAge)

	snap := Snapshot{EvaluatedAt: now}
	byID := make(map[string]LocationStatus, len(h.beaches))

	for _, b := range h.beaches {
		st := Aggregate(b.ID, ReadingsFor(b, samples), now).withIdentity(b.Name, b.CityID)
		byID[b.ID] = st
		snap.Beaches = append(snap.Beaches, st)
	}

	for _, c := range h.cities {
		children := collect(byID, h.BeachesInCity(c.ID))
		snap.Cities = append(snap.Cities, Rollup(c.ID, KindCity, children).
			WithChildIDs(h.BeachesInCity(c.ID)).
			withIdentity(c.Name, c.RegionID))
	}

	for _, r := range h.regions {
		children := collect(byID, h.BeachesInRegion(r.ID))
		snap.Regions = append(snap.Regions, Rollup(r.ID, KindRegion, children).
			WithChildIDs(h.CitiesInRegion(r.ID)).
			withIdentity(r.Name, ""))
	}
	return snap
}

func collect(byID map[string]LocationStatus, ids []string) []LocationStatus {
	out := make([]LocationStatus, 0, len(ids))
	for _, id := range ids {
		if st, ok := byID[id]; ok {
			out = append(out, st)
		}
	}
	return out
}

func filterByAge(samples []Sample, now time.Time, maxAge time.Duration) []Sample {
	if maxAge <= 0 {
		return samples
	}
	cutoff := now.Add(-maxAge)
	kept := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if !s.SampledAt.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	return kept
}

package domain

import (
	"errors"
	"slices"
	"time"
)

// ErrUnknownLocation is returned when a location ID is not in the registry.
var ErrUnknownLocation = errors.New("unknown location")

// LocationKind is the level of a location in the hierarchy.
type LocationKind string

const (
	KindBeach  LocationKind = "beach"
	KindCity   LocationKind = "city"
	KindRegion LocationKind = "region"
)

// Sample is one raw record from the hazard-monitoring data source, before it
// has been matched to a beach.
type Sample struct {
	Key           string    `json:"key"`
	LocationLabel string    `json:"location"`
	County        string    `json:"county,omitempty"`
	RawAbundance  string    `json:"abundance"`
	SampledAt     time.Time `json:"sample_date"`
	Lat           float64   `json:"lat,omitempty"`
	Lon           float64   `json:"lon,omitempty"`
}

// SiteReading is a sample resolved to one beach, with the site's precomputed
// distance to that beach.
type SiteReading struct {
	SiteID        string
	LocationLabel string
	RawAbundance  string
	SampledAt     time.Time
	DistanceMiles float64
}

// SiteContribution records how one reading entered a beach status.
type SiteContribution struct {
	SiteID        string    `json:"site_id"`
	LocationLabel string    `json:"location"`
	DistanceMiles float64   `json:"distance_miles"`
	Concentration int       `json:"concentration"`
	Tier          Tier      `json:"tier"`
	SampleDate    time.Time `json:"sample_date"`
	Weight        float64   `json:"weight"`
}

// LocationStatus is the computed status of a beach, city, or region.
//
// Contributions is set for beaches only; ChildCounts and ChildIDs for cities
// and regions only. A zero SampleDate means no sample contributed.
type LocationStatus struct {
	LocationID        string             `json:"id"`
	Name              string             `json:"name,omitempty"`
	Kind              LocationKind       `json:"kind"`
	Parent            string             `json:"parent,omitempty"`
	Tier              Tier               `json:"tier"`
	PeakConcentration int                `json:"peak_concentration"`
	AvgConcentration  int                `json:"avg_concentration,omitempty"`
	Confidence        int                `json:"confidence"`
	SampleDate        time.Time          `json:"sample_date,omitzero"`
	Contributions     []SiteContribution `json:"contributions,omitempty"`
	ChildCounts       *TierCounts        `json:"child_counts,omitempty"`
	ChildIDs          []string           `json:"child_ids,omitempty"`
}

// HasSampleDate reports whether any sample contributed to the status.
func (s LocationStatus) HasSampleDate() bool {
	return !s.SampleDate.IsZero()
}

// WithChildIDs returns a copy of s listing ids as its display children.
// The numeric rollup is unaffected.
func (s LocationStatus) WithChildIDs(ids []string) LocationStatus {
	s.ChildIDs = slices.Clone(ids)
	return s
}

// withIdentity returns a copy of s carrying the registry name and parent.
func (s LocationStatus) withIdentity(name, parent string) LocationStatus {
	s.Name = name
	s.Parent = parent
	return s
}

// Snapshot is the full set of statuses produced by one evaluation run.
type Snapshot struct {
	RunID       string           `json:"run_id"`
	EvaluatedAt time.Time        `json:"evaluated_at"`
	Beaches     []LocationStatus `json:"beaches"`
	Cities      []LocationStatus `json:"cities"`
	Regions     []LocationStatus `json:"regions"`

	// Samples holds the raw samples the run fetched, before age filtering.
	Samples []Sample `json:"-"`
}

// All returns every status in the snapshot, beaches first, then cities,
// then regions.
func (s Snapshot) All() []LocationStatus {
	out := make([]LocationStatus, 0, len(s.Beaches)+len(s.Cities)+len(s.Regions))
	out = append(out, s.Beaches...)
	out = append(out, s.Cities...)
	out = append(out, s.Regions...)
	return out
}

// Find returns the status with the given location ID.
func (s Snapshot) Find(id string) (LocationStatus, bool) {
	for _, st := range s.All() {
		if st.LocationID == id {
			return st, true
		}
	}
	return LocationStatus{}, false
}

// HistoryEntry is one past status of a location, as recorded by a run.
type HistoryEntry struct {
	RunID       string         `json:"run_id"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
	Status      LocationStatus `json:"status"`
}

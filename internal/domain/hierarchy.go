package domain

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidHierarchy is returned when registry data violates the
// beach → city → region membership rules.
var ErrInvalidHierarchy = errors.New("invalid location hierarchy")

// Region is the top level of the hierarchy.
type Region struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// City belongs to exactly one region.
type City struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	RegionID string `yaml:"region" json:"region"`
}

// Site maps source samples onto a beach. A sample matches when its key
// equals Key, or when its location label contains one of LabelPatterns
// (case-insensitive).
type Site struct {
	Key           string   `yaml:"key" json:"key"`
	DistanceMiles float64  `yaml:"distance_miles" json:"distance_miles"`
	LabelPatterns []string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Beach is a named location belonging to exactly one city.
type Beach struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	CityID string `yaml:"city" json:"city"`
	Sites  []Site `yaml:"sites" json:"sites"`
}

// Hierarchy is an immutable registry of regions, cities, and beaches.
// It is safe for concurrent use.
type Hierarchy struct {
	regions []Region
	cities  []City
	beaches []Beach

	regionIdx map[string]int
	cityIdx   map[string]int
	beachIdx  map[string]int
}

// NewHierarchy validates and indexes registry data. Inputs are copied and
// sorted by ID.
func NewHierarchy(regions []Region, cities []City, beaches []Beach) (*Hierarchy, error) {
	h := &Hierarchy{
		regions:   slices.Clone(regions),
		cities:    slices.Clone(cities),
		beaches:   make([]Beach, len(beaches)),
		regionIdx: make(map[string]int, len(regions)),
		cityIdx:   make(map[string]int, len(cities)),
		beachIdx:  make(map[string]int, len(beaches)),
	}
	for i, b := range beaches {
		b.Sites = cloneSites(b.Sites)
		h.beaches[i] = b
	}

	slices.SortFunc(h.regions, func(a, b Region) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(h.cities, func(a, b City) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(h.beaches, func(a, b Beach) int { return strings.Compare(a.ID, b.ID) })

	// Statuses, history rows and message keys share one ID space across kinds.
	kinds := make(map[string]LocationKind, len(regions)+len(cities)+len(beaches))
	claim := func(id string, kind LocationKind) error {
		if other, ok := kinds[id]; ok && other != kind {
			return fmt.Errorf("%w: id %q is used by both a %s and a %s", ErrInvalidHierarchy, id, other, kind)
		}
		kinds[id] = kind
		return nil
	}

	for i, r := range h.regions {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: region with empty id", ErrInvalidHierarchy)
		}
		if _, dup := h.regionIdx[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate region %q", ErrInvalidHierarchy, r.ID)
		}
		if err := claim(r.ID, KindRegion); err != nil {
			return nil, err
		}
		h.regionIdx[r.ID] = i
	}
	for i, c := range h.cities {
		if c.ID == "" {
			return nil, fmt.Errorf("%w: city with empty id", ErrInvalidHierarchy)
		}
		if _, dup := h.cityIdx[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate city %q", ErrInvalidHierarchy, c.ID)
		}
		if _, ok := h.regionIdx[c.RegionID]; !ok {
			return nil, fmt.Errorf("%w: city %q references unknown region %q", ErrInvalidHierarchy, c.ID, c.RegionID)
		}
		if err := claim(c.ID, KindCity); err != nil {
			return nil, err
		}
		h.cityIdx[c.ID] = i
	}
	for i, b := range h.beaches {
		if b.ID == "" {
			return nil, fmt.Errorf("%w: beach with empty id", ErrInvalidHierarchy)
		}
		if _, dup := h.beachIdx[b.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate beach %q", ErrInvalidHierarchy, b.ID)
		}
		if _, ok := h.cityIdx[b.CityID]; !ok {
			return nil, fmt.Errorf("%w: beach %q references unknown city %q", ErrInvalidHierarchy, b.ID, b.CityID)
		}
		for _, s := range b.Sites {
			if s.Key == "" && len(s.LabelPatterns) == 0 {
				return nil, fmt.Errorf("%w: beach %q has a site with neither key nor labels", ErrInvalidHierarchy, b.ID)
			}
			if s.DistanceMiles < 0 {
				return nil, fmt.Errorf("%w: beach %q site %q has negative distance", ErrInvalidHierarchy, b.ID, s.Key)
			}
		}
		if err := claim(b.ID, KindBeach); err != nil {
			return nil, err
		}
		h.beachIdx[b.ID] = i
	}
	return h, nil
}

func cloneSites(sites []Site) []Site {
	out := make([]Site, len(sites))
	for i, s := range sites {
		s.LabelPatterns = slices.Clone(s.LabelPatterns)
		out[i] = s
	}
	return out
}

// Regions returns all regions sorted by ID.
func (h *Hierarchy) Regions() []Region { return slices.Clone(h.regions) }

// Cities returns all cities sorted by ID.
func (h *Hierarchy) Cities() []City { return slices.Clone(h.cities) }

// Beaches returns all beaches sorted by ID.
func (h *Hierarchy) Beaches() []Beach {
	out := make([]Beach, len(h.beaches))
	for i, b := range h.beaches {
		b.Sites = cloneSites(b.Sites)
		out[i] = b
	}
	return out
}

// City looks up a city by ID.
func (h *Hierarchy) City(id string) (City, bool) {
	i, ok := h.cityIdx[id]
	if !ok {
		return City{}, false
	}
	return h.cities[i], true
}

// Region looks up a region by ID.
func (h *Hierarchy) Region(id string) (Region, bool) {
	i, ok := h.regionIdx[id]
	if !ok {
		return Region{}, false
	}
	return h.regions[i], true
}

// BeachesInCity returns the IDs of the beaches that belong to cityID.
func (h *Hierarchy) BeachesInCity(cityID string) []string {
	var ids []string
	for _, b := range h.beaches {
		if b.CityID == cityID {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// CitiesInRegion returns the IDs of the cities that belong to regionID.
func (h *Hierarchy) CitiesInRegion(regionID string) []string {
	var ids []string
	for _, c := range h.cities {
		if c.RegionID == regionID {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// BeachesInRegion returns the IDs of all beaches whose city is in regionID.
func (h *Hierarchy) BeachesInRegion(regionID string) []string {
	var ids []string
	for _, b := range h.beaches {
		if c, ok := h.City(b.CityID); ok && c.RegionID == regionID {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// ReadingsFor resolves samples onto the sites of beach. Each site yields at
// most one reading: the most recent matching sample. A sampling station feeds
// at most one site of the beach; sites claim stations nearest first. Readings
// keep site order.
func ReadingsFor(beach Beach, samples []Sample) []SiteReading {
	order := make([]int, len(beach.Sites))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(beach.Sites[a].DistanceMiles, beach.Sites[b].DistanceMiles)
	})

	picked := make([]int, len(beach.Sites))
	consumed := make(map[station]bool)
	for _, si := range order {
		site := beach.Sites[si]
		best := -1
		for i, s := range samples {
			if consumed[stationOf(s, i)] || !site.matches(s) {
				continue
			}
			if best < 0 || s.SampledAt.After(samples[best].SampledAt) {
				best = i
			}
		}
		picked[si] = best
		if best >= 0 {
			consumed[stationOf(samples[best], best)] = true
		}
	}

	var readings []SiteReading
	for si, site := range beach.Sites {
		if picked[si] < 0 {
			continue
		}
		best := samples[picked[si]]
		siteID := site.Key
		if siteID == "" {
			siteID = best.Key
		}
		readings = append(readings, SiteReading{
			SiteID:        siteID,
			LocationLabel: best.LocationLabel,
			RawAbundance:  best.RawAbundance,
			SampledAt:     best.SampledAt,
			DistanceMiles: site.DistanceMiles,
		})
	}
	return readings
}

// station identifies a sampling station. Keyless samples are their own station.
type station struct {
	key   string
	index int
}

func stationOf(s Sample, index int) station {
	if s.Key != "" {
		return station{key: s.Key, index: -1}
	}
	return station{index: index}
}

func (s Site) matches(sample Sample) bool {
	if s.Key != "" && sample.Key == s.Key {
		return true
	}
	label := strings.ToLower(sample.LocationLabel)
	for _, p := range s.LabelPatterns {
		if p != "" && strings.Contains(label, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

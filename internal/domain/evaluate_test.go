package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSamples() []Sample {
	return []Sample{
		{Key: "HAB-100", LocationLabel: "Siesta Key", RawAbundance: "medium", SampledAt: daysAgo(1)},
		{Key: "HAB-150", LocationLabel: "Point of Rocks", RawAbundance: "very low", SampledAt: daysAgo(2)},
		{Key: "HAB-200", LocationLabel: "Lido Key", RawAbundance: "not present", SampledAt: daysAgo(3)},
		{Key: "HAB-300", LocationLabel: "Venice Pier", RawAbundance: "high (600,000 - 1,000,000 cells/L)", SampledAt: daysAgo(1)},
		{Key: "HAB-400", LocationLabel: "Nokomis", RawAbundance: "high", SampledAt: daysAgo(20)},
	}
}

func TestEvaluate_Levels(t *testing.T) {
	h := testHierarchy(t)

	snap := Evaluate(h, testSamples(), testNow, EvaluateOptions{MaxSampleAge: 14 * 24 * time.Hour})

	assert.Equal(t, testNow, snap.EvaluatedAt)
	require.Len(t, snap.Beaches, 4)
	require.Len(t, snap.Cities, 2)
	require.Len(t, snap.Regions, 1)

	beaches := map[string]LocationStatus{}
	for _, b := range snap.Beaches {
		beaches[b.LocationID] = b
	}
	assert.Equal(t, TierSafe, beaches["lido"].Tier)
	assert.Equal(t, testSarasota, beaches["lido"].Parent)
	assert.Equal(t, "Lido Beach", beaches["lido"].Name)
	assert.Equal(t, TierCaution, beaches["siesta"].Tier)
	assert.Equal(t, 100, beaches["siesta"].Confidence)
	assert.Equal(t, 50000, beaches["siesta"].PeakConcentration)
	assert.Equal(t, TierAvoid, beaches["venice-beach"].Tier)
	assert.Equal(t, 800000, beaches["venice-beach"].PeakConcentration)
	assert.Equal(t, TierNoData, beaches["nokomis"].Tier, "20-day-old sample is past the age limit")

	sarasota := snap.Cities[0]
	assert.Equal(t, testSarasota, sarasota.LocationID)
	assert.Equal(t, KindCity, sarasota.Kind)
	assert.Equal(t, testRegion, sarasota.Parent)
	assert.Equal(t, TierCaution, sarasota.Tier)
	assert.Equal(t, 50000, sarasota.PeakConcentration)
	assert.Equal(t, 25250, sarasota.AvgConcentration)
	assert.Equal(t, 80, sarasota.Confidence)
	assert.Equal(t, []string{"lido", "siesta"}, sarasota.ChildIDs)
	assert.Equal(t, TierCounts{Safe: 1, Caution: 1}, *sarasota.ChildCounts)

	venice := snap.Cities[1]
	assert.Equal(t, TierAvoid, venice.Tier)
	assert.Equal(t, 30, venice.Confidence)
	assert.Equal(t, TierCounts{NoData: 1, Avoid: 1}, *venice.ChildCounts)

	region := snap.Regions[0]
	assert.Equal(t, KindRegion, region.Kind)
	assert.Equal(t, TierAvoid, region.Tier)
	assert.Equal(t, 800000, region.PeakConcentration)
	assert.Equal(t, 283500, region.AvgConcentration)
	assert.Equal(t, 55, region.Confidence)
	assert.Equal(t, []string{testSarasota, testVenice}, region.ChildIDs)
	assert.Equal(t, TierCounts{NoData: 1, Safe: 1, Caution: 1, Avoid: 1}, *region.ChildCounts,
		"region counts come from beaches, not cities")
	assert.Equal(t, daysAgo(1), region.SampleDate)
}

func TestEvaluate_NoAgeLimitKeepsOldSamples(t *testing.T) {
	snap := Evaluate(testHierarchy(t), testSamples(), testNow, EvaluateOptions{})

	nokomis, ok := snap.Find("nokomis")
	require.True(t, ok)
	assert.Equal(t, TierSafe, nokomis.Tier)
	assert.Equal(t, 500000, nokomis.PeakConcentration)
}

func TestEvaluate_NoSamples(t *testing.T) {
	snap := Evaluate(testHierarchy(t), nil, testNow, EvaluateOptions{})

	for _, st := range snap.All() {
		assert.Equal(t, TierNoData, st.Tier, st.LocationID)
		assert.Equal(t, 0, st.Confidence, st.LocationID)
	}
	assert.Len(t, snap.All(), 7)
}

func TestEvaluate_Repeatable(t *testing.T) {
	h := testHierarchy(t)
	samples := testSamples()

	first := Evaluate(h, samples, testNow, EvaluateOptions{})
	second := Evaluate(h, samples, testNow, EvaluateOptions{})
	assert.Equal(t, first, second)
}

func TestSnapshot_Find(t *testing.T) {
	snap := Evaluate(testHierarchy(t), testSamples(), testNow, EvaluateOptions{})

	city, ok := snap.Find(testVenice)
	require.True(t, ok)
	assert.Equal(t, KindCity, city.Kind)

	_, ok = snap.Find("atlantis")
	assert.False(t, ok)
}

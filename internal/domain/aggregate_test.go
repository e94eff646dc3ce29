package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.August, 10, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return testNow.AddDate(0, 0, -n)
}

func TestAggregate_NoReadings(t *testing.T) {
	st := Aggregate("lido-key", nil, testNow)

	assert.Equal(t, "lido-key", st.LocationID)
	assert.Equal(t, KindBeach, st.Kind)
	assert.Equal(t, TierNoData, st.Tier)
	assert.Equal(t, 0, st.Confidence)
	assert.Equal(t, 0, st.PeakConcentration)
	assert.Empty(t, st.Contributions)
	assert.False(t, st.HasSampleDate())
}

func TestAggregate_SingleAvoidReading(t *testing.T) {
	st := Aggregate("lido-key", []SiteReading{
		{SiteID: "hab-1", LocationLabel: "Lido Beach", RawAbundance: "high", SampledAt: daysAgo(1), DistanceMiles: 0.5},
	}, testNow)

	assert.Equal(t, TierAvoid, st.Tier)
	assert.Equal(t, 60, st.Confidence)
	assert.Equal(t, 500000, st.PeakConcentration)
	assert.Equal(t, daysAgo(1), st.SampleDate)
	require.Len(t, st.Contributions, 1)
	assert.InDelta(t, 1.0, st.Contributions[0].Weight, 1e-9)
}

func TestAggregate_MixedReadings(t *testing.T) {
	readings := []SiteReading{
		{SiteID: "a", RawAbundance: "very low", SampledAt: daysAgo(2), DistanceMiles: 0.5},
		{SiteID: "b", RawAbundance: "low (10,000 - 100,000 cells/L)", SampledAt: daysAgo(1), DistanceMiles: 2},
		{SiteID: "c", RawAbundance: "medium", SampledAt: daysAgo(3), DistanceMiles: 0.8},
	}

	st := Aggregate("siesta", readings, testNow)

	// scores 0 + 0.7 + 2.0 → mean 0.9
	assert.Equal(t, TierCaution, st.Tier)
	assert.Equal(t, 100, st.Confidence)
	assert.Equal(t, 55000, st.PeakConcentration)
	assert.Equal(t, daysAgo(1), st.SampleDate)

	require.Len(t, st.Contributions, 3)
	want := []struct {
		site  string
		conc  int
		tier  Tier
		weigh float64
	}{
		{"a", 2500, TierSafe, 1.0},
		{"b", 55000, TierCaution, 0.7},
		{"c", 50000, TierAvoid, 1.0},
	}
	for i, w := range want {
		c := st.Contributions[i]
		assert.Equal(t, w.site, c.SiteID)
		assert.Equal(t, w.conc, c.Concentration)
		assert.Equal(t, w.tier, c.Tier)
		assert.InDelta(t, w.weigh, c.Weight, 1e-9)
	}
}

func TestAggregate_ThresholdBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		readings []SiteReading
		want     Tier
	}{
		{
			name:     "single caution at full weight",
			readings: []SiteReading{{RawAbundance: "low", SampledAt: testNow, DistanceMiles: 0}},
			want:     TierCaution,
		},
		{
			name: "avoid averaged with safe",
			readings: []SiteReading{
				{RawAbundance: "high", SampledAt: testNow, DistanceMiles: 0},
				{RawAbundance: "not present", SampledAt: testNow, DistanceMiles: 0},
			},
			want: TierCaution,
		},
		{
			name: "avoid averaged with caution",
			readings: []SiteReading{
				{RawAbundance: "high", SampledAt: testNow, DistanceMiles: 0},
				{RawAbundance: "low", SampledAt: testNow, DistanceMiles: 0},
			},
			want: TierAvoid,
		},
		{
			name:     "distant caution drops to safe",
			readings: []SiteReading{{RawAbundance: "low", SampledAt: testNow, DistanceMiles: 5}},
			want:     TierSafe,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate("b", tt.readings, testNow).Tier)
		})
	}
}

func TestAggregate_StaleDistantReadingStillHasTier(t *testing.T) {
	st := Aggregate("b", []SiteReading{
		{RawAbundance: "high", SampledAt: daysAgo(30), DistanceMiles: 20},
	}, testNow)

	assert.Equal(t, TierSafe, st.Tier)
	assert.Equal(t, 11, st.Confidence)
	assert.Equal(t, 500000, st.PeakConcentration)
}

func TestAggregate_UnrecognizedTextStillContributes(t *testing.T) {
	st := Aggregate("b", []SiteReading{
		{RawAbundance: "n/a", SampledAt: testNow, DistanceMiles: 0.2},
	}, testNow)

	assert.Equal(t, TierSafe, st.Tier)
	assert.Equal(t, 60, st.Confidence)
	assert.Equal(t, 0, st.PeakConcentration)
	require.Len(t, st.Contributions, 1)
}

func TestAggregate_ConfidenceCapped(t *testing.T) {
	readings := make([]SiteReading, 10)
	for i := range readings {
		readings[i] = SiteReading{RawAbundance: "not present", SampledAt: testNow}
	}
	assert.Equal(t, 100, Aggregate("b", readings, testNow).Confidence)
}

func TestAggregate_Idempotent(t *testing.T) {
	readings := []SiteReading{
		{SiteID: "a", RawAbundance: "medium", SampledAt: daysAgo(9), DistanceMiles: 4},
		{SiteID: "b", RawAbundance: "low", SampledAt: daysAgo(2), DistanceMiles: 1.5},
	}
	first := Aggregate("b", readings, testNow)
	second := Aggregate("b", readings, testNow)
	assert.Equal(t, first, second)

	// results do not alias each other
	first.Contributions[0].Concentration = -1
	assert.Equal(t, 50000, second.Contributions[0].Concentration)
}

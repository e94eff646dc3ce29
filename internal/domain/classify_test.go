package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantConc int
		wantTier Tier
	}{
		{"not present", "Not Present", 500, TierSafe},
		{"background", "not present/background (0 - 1,000 cells/L)", 500, TierSafe},
		{"background alone", "BACKGROUND", 500, TierSafe},
		{"very low ignores range", "very low (1,000 - 5,000 cells/L)", 2500, TierSafe},
		{"low with range", "low (10,000 - 100,000 cells/L)", 55000, TierCaution},
		{"low without range", "LOW", 5000, TierCaution},
		{"low with single bound", "low (>10,000)", 5000, TierCaution},
		{"medium with range", "Medium (100,000 - 1,000,000 cells/L)", 550000, TierAvoid},
		{"medium default", "medium", 50000, TierAvoid},
		{"high with range", "high (600,000 - 1,000,000 cells/L)", 800000, TierAvoid},
		{"high single bound", "high (>1,000,000)", 500000, TierAvoid},
		{"high default", "High", 500000, TierAvoid},
		{"midpoint floors", "low (1 - 2)", 1, TierCaution},
		{"bare commas skipped", "low ,, 10 and 20", 15, TierCaution},
		{"first two groups only", "medium 100 200 900", 150, TierAvoid},
		{"empty", "", 0, TierSafe},
		{"unrecognized", "sample lost in transit", 0, TierSafe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conc, tier := Classify(tt.raw)
			assert.Equal(t, tt.wantConc, conc)
			assert.Equal(t, tt.wantTier, tier)
		})
	}
}

func TestClassify_MediumAndHighShareTier(t *testing.T) {
	_, medium := Classify("medium")
	_, high := Classify("high")
	assert.Equal(t, medium, high)
}

func TestExtractNumbers(t *testing.T) {
	assert.Equal(t, []int{1000, 5000}, extractNumbers("(1,000 - 5,000)", 2))
	assert.Equal(t, []int{7}, extractNumbers("only 7 here", 2))
	assert.Empty(t, extractNumbers("none", 2))
	assert.Equal(t, []int{math.MaxInt, 5}, extractNumbers("99999999999999999999999 - 5", 2))
}

func TestRangeMidpoint_LargeBounds(t *testing.T) {
	assert.Equal(t, 3, rangeMidpoint("(2 - 5)", 0))
	assert.Equal(t, 3, rangeMidpoint("(5 - 2)", 0))
	assert.Equal(t, math.MaxInt, rangeMidpoint("high (99999999999999999999 - 99999999999999999998)", highCells))
	assert.Equal(t, math.MaxInt/2+50, rangeMidpoint("high (100 - 99999999999999999999 - 7)", highCells))
}

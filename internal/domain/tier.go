package domain

import "fmt"

// Tier is the severity classification of a location.
//
// TierNoData is a sentinel for "no contributing data" and carries no ordinal;
// it sorts below TierSafe for display only and must never take part in a
// worst-of comparison.
type Tier int8

const (
	TierNoData  Tier = -1
	TierSafe    Tier = 0
	TierCaution Tier = 1
	TierAvoid   Tier = 2
)

// Ordinal returns the fixed severity rank {safe:0, caution:1, avoid:2}.
// The boolean is false for TierNoData.
func (t Tier) Ordinal() (int, bool) {
	switch t {
	case TierSafe, TierCaution, TierAvoid:
		return int(t), true
	default:
		return 0, false
	}
}

// HasData reports whether t is a real tier rather than the no-data sentinel.
func (t Tier) HasData() bool {
	_, ok := t.Ordinal()
	return ok
}

func (t Tier) String() string {
	switch t {
	case TierSafe:
		return "safe"
	case TierCaution:
		return "caution"
	case TierAvoid:
		return "avoid"
	default:
		return "no_data"
	}
}

// tierFromOrdinal is the inverse of Ordinal for valid ranks.
func tierFromOrdinal(n int) Tier {
	switch n {
	case 0:
		return TierSafe
	case 1:
		return TierCaution
	case 2:
		return TierAvoid
	default:
		return TierNoData
	}
}

// ParseTier converts the text form produced by String back into a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "no_data":
		return TierNoData, nil
	case "safe":
		return TierSafe, nil
	case "caution":
		return TierCaution, nil
	case "avoid":
		return TierAvoid, nil
	default:
		return TierNoData, fmt.Errorf("unknown tier %q", s)
	}
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TierCounts holds the number of child locations at each tier, no_data included.
type TierCounts struct {
	NoData  int `json:"no_data"`
	Safe    int `json:"safe"`
	Caution int `json:"caution"`
	Avoid   int `json:"avoid"`
}

func (c *TierCounts) add(t Tier) {
	switch t {
	case TierSafe:
		c.Safe++
	case TierCaution:
		c.Caution++
	case TierAvoid:
		c.Avoid++
	default:
		c.NoData++
	}
}

// Total is the number of children counted.
func (c TierCounts) Total() int {
	return c.NoData + c.Safe + c.Caution + c.Avoid
}

package report

// Concern bands for the Autism Concerns Index.
const (
	BandLow      = "Low"
	BandModerate = "Moderate"
	BandHigh     = "High"
)

// BandFor maps an index value to its interpretation band.
func BandFor(aci float64) string {
	switch {
	case aci < 31:
		return BandLow
	case aci < 61:
		return BandModerate
	default:
		return BandHigh
	}
}

// PoolScore is one pool's contribution to the concern index.
type PoolScore struct {
	Weight        int
	Score         int
	Max           int
	NotApplicable bool
}

// ConcernIndex computes the weighted Autism Concerns Index over pool
// scores. Weights are renormalized over the pools that actually carry a
// usable score: not-applicable pools and pools with a zero maximum are
// excluded from both the numerator and the weight denominator, so they
// never silently count as zero concern. The second value is false when no
// pool qualifies.
func ConcernIndex(scores []PoolScore) (float64, bool) {
	weightSum := 0
	for _, s := range scores {
		if s.NotApplicable || s.Max == 0 || s.Weight <= 0 {
			continue
		}
		weightSum += s.Weight
	}
	if weightSum == 0 {
		return 0, false
	}

	aci := 0.0
	for _, s := range scores {
		if s.NotApplicable || s.Max == 0 || s.Weight <= 0 {
			continue
		}
		pct := float64(s.Score) / float64(s.Max) * 100
		aci += pct * float64(s.Weight) / float64(weightSum)
	}
	return aci, true
}

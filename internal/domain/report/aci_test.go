package report

import (
	"math"
	"testing"
)

func TestConcernIndex_WeightedRenormalization(t *testing.T) {
	// Pool A: weight 25, scoring 80%. Pool B: weight 28, scoring 100%.
	// Pool C: weight 19 but not applicable, excluded from numerator and
	// denominator. ACI = 80*(25/53) + 100*(28/53).
	scores := []PoolScore{
		{Weight: 25, Score: 80, Max: 100},
		{Weight: 28, Score: 28, Max: 28},
		{Weight: 19, NotApplicable: true},
	}
	aci, ok := ConcernIndex(scores)
	if !ok {
		t.Fatal("expected a computable index")
	}
	want := 80*(25.0/53.0) + 100*(28.0/53.0)
	if math.Abs(aci-want) > 1e-9 {
		t.Errorf("ACI = %f, want %f", aci, want)
	}
	if band := BandFor(aci); band != BandHigh {
		t.Errorf("band = %s, want High", band)
	}
}

func TestConcernIndex_ZeroMaxExcluded(t *testing.T) {
	scores := []PoolScore{
		{Weight: 40, Score: 0, Max: 0},
		{Weight: 30, Score: 15, Max: 30},
	}
	aci, ok := ConcernIndex(scores)
	if !ok {
		t.Fatal("expected a computable index")
	}
	// Only the second pool counts, with its weight renormalized to 1.
	if math.Abs(aci-50) > 1e-9 {
		t.Errorf("ACI = %f, want 50", aci)
	}
}

func TestConcernIndex_NoQualifyingPools(t *testing.T) {
	scores := []PoolScore{
		{Weight: 25, NotApplicable: true},
		{Weight: 30, Score: 0, Max: 0},
	}
	if _, ok := ConcernIndex(scores); ok {
		t.Error("expected no computable index")
	}
	if _, ok := ConcernIndex(nil); ok {
		t.Error("expected no computable index for empty input")
	}
}

func TestBandBoundaries(t *testing.T) {
	cases := []struct {
		aci  float64
		want string
	}{
		{0, BandLow},
		{30.99, BandLow},
		{31, BandModerate},
		{60.99, BandModerate},
		{61, BandHigh},
		{100, BandHigh},
	}
	for _, tc := range cases {
		if got := BandFor(tc.aci); got != tc.want {
			t.Errorf("BandFor(%f) = %s, want %s", tc.aci, got, tc.want)
		}
	}
}

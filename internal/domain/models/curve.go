package models

import "sort"

// RateCurve is an immutable tenor ladder of annualized risk-free rates,
// keyed by tenor in days and sorted ascending.
type RateCurve struct {
	tenors []int
	rates  map[int]float64
}

// NewRateCurve builds a curve from a tenor-days -> rate payload.
func NewRateCurve(payload map[int]float64) *RateCurve {
	tenors := make([]int, 0, len(payload))
	rates := make(map[int]float64, len(payload))
	for tenor, rate := range payload {
		tenors = append(tenors, tenor)
		rates[tenor] = rate
	}
	sort.Ints(tenors)
	return &RateCurve{tenors: tenors, rates: rates}
}

// Empty reports whether the curve has no tenor points.
func (c *RateCurve) Empty() bool { return len(c.tenors) == 0 }

// MinTenor returns the shortest tenor in days. Zero on an empty curve.
func (c *RateCurve) MinTenor() int {
	if len(c.tenors) == 0 {
		return 0
	}
	return c.tenors[0]
}

// MaxTenor returns the longest tenor in days. Zero on an empty curve.
func (c *RateCurve) MaxTenor() int {
	if len(c.tenors) == 0 {
		return 0
	}
	return c.tenors[len(c.tenors)-1]
}

// Rate returns the rate at an exact tenor. Zero when the tenor is not on the
// ladder.
func (c *RateCurve) Rate(tenor int) float64 { return c.rates[tenor] }

// Bracket returns the ladder tenors surrounding d. d must already be clamped
// into [MinTenor, MaxTenor]. When d sits exactly on a ladder point both
// bounds equal that point.
func (c *RateCurve) Bracket(d int) (lo, hi int) {
	i := sort.SearchInts(c.tenors, d)
	if i < len(c.tenors) && c.tenors[i] == d {
		return d, d
	}
	return c.tenors[i-1], c.tenors[i]
}

// Tenors returns the ascending tenor ladder.
func (c *RateCurve) Tenors() []int {
	out := make([]int, len(c.tenors))
	copy(out, c.tenors)
	return out
}

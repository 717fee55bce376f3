// Review-time estimation for bulk insertions.

package classify

import "time"

// EstimateParams controls how long a review window stays open for a given
// insertion size.
type EstimateParams struct {
	// PerChar is the reading cost attributed to each inserted character.
	PerChar time.Duration

	// PerLine is the reading cost attributed to each inserted line.
	PerLine time.Duration

	// Density scales the estimate for denser syntaxes (1.0 = plain text).
	Density float64

	// Min is the floor: trivial insertions still impose a minimal pause.
	Min time.Duration

	// Max is the ceiling: the window never blocks indefinitely.
	Max time.Duration
}

// DefaultEstimateParams returns the standard estimation parameters.
func DefaultEstimateParams() EstimateParams {
	return EstimateParams{
		PerChar: 15 * time.Millisecond,
		PerLine: 150 * time.Millisecond,
		Density: 1.0,
		Min:     1500 * time.Millisecond,
		Max:     20000 * time.Millisecond,
	}
}

// Estimate returns the expected review duration for an insertion of the
// given size. Pure: same inputs always produce the same result.
func Estimate(chars, lines int, p EstimateParams) time.Duration {
	density := p.Density
	if density <= 0 {
		density = 1.0
	}

	ms := time.Duration(chars)*p.PerChar + time.Duration(lines)*p.PerLine
	ms = time.Duration(float64(ms) * density)

	if ms < p.Min {
		return p.Min
	}
	if ms > p.Max {
		return p.Max
	}
	return ms
}

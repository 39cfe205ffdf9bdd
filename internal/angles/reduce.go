package angles

import (
	"math"
	"strings"
)

// Policy to collapse the view angles of all the bands into one grid
type Policy string

const (
	// FixedBand keeps the grids of one band
	FixedBand Policy = "band"
	// MeanBands averages the grids of all the bands, cell-wise
	MeanBands Policy = "mean"
)

// DefaultBand is the band kept by the FixedBand policy (B8, near infrared)
const DefaultBand BandID = 7

// ParsePolicy returns the policy from the user input
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(s)) {
	case FixedBand:
		return FixedBand, nil
	case MeanBands:
		return MeanBands, nil
	}
	return "", NewConfigurationError("unknown view angles policy: %q (expected %q or %q)", s, FixedBand, MeanBands)
}

type Reducer struct {
	policy Policy
	band   BandID
}

// NewReducer creates a reducer.
// band is only used by the FixedBand policy.
func NewReducer(policy Policy, band BandID) (Reducer, error) {
	switch policy {
	case FixedBand:
		if !band.Valid() {
			return Reducer{}, NewConfigurationError("invalid band id: %d (expected 0 to %d)", band, NumBands-1)
		}
	case MeanBands:
	default:
		return Reducer{}, NewConfigurationError("unknown view angles policy: %q", policy)
	}
	return Reducer{policy: policy, band: band}, nil
}

func (r Reducer) Policy() Policy {
	return r.policy
}

func (r Reducer) Band() BandID {
	return r.band
}

// Reduce collapses the stack into one pair of grids
func (r Reducer) Reduce(stack ViewStack) (AnglePair, error) {
	if len(stack) == 0 {
		return AnglePair{}, NewConfigurationError("no viewing incidence angles to reduce")
	}
	switch r.policy {
	case FixedBand:
		pair, ok := stack[r.band]
		if !ok {
			return AnglePair{}, NewConfigurationError("band %d not found in viewing incidence angles (available: %v)", r.band, stack.Bands())
		}
		return pair, nil
	case MeanBands:
		bands := stack.Bands()
		zeniths := make([]Grid, len(bands))
		azimuths := make([]Grid, len(bands))
		for i, b := range bands {
			zeniths[i] = stack[b].Zenith
			azimuths[i] = stack[b].Azimuth
		}
		return AnglePair{Zenith: MeanGrid(zeniths...), Azimuth: MeanGrid(azimuths...)}, nil
	}
	return AnglePair{}, NewConfigurationError("unknown view angles policy: %q", r.policy)
}

// MeanGrid returns the cell-wise mean of the grids.
// A cell is averaged over the grids where it is valid: a NaN cell does not contribute.
// A cell that is NaN in all the grids stays NaN.
// The mean is computed incrementally so that the mean of identical values is exactly this value.
func MeanGrid(grids ...Grid) Grid {
	res := NewGrid()
	var count [GridSize][GridSize]int
	for _, g := range grids {
		for i := range g {
			for j := range g[i] {
				v := g[i][j]
				if math.IsNaN(v) {
					continue
				}
				count[i][j]++
				if count[i][j] == 1 {
					res[i][j] = v
				} else {
					res[i][j] += (v - res[i][j]) / float64(count[i][j])
				}
			}
		}
	}
	return res
}

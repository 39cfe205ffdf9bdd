package angles

import (
	"math"
	"sort"
)

const (
	// GridSize is the number of rows and columns of the angle grids of the tile metadata
	GridSize = 23
	// GridStep is the pitch of the angle grids, in meters
	GridStep = 5000.0
	// NumBands is the number of spectral bands of the MSI instrument
	NumBands = 13
)

// Grid is a GridSize x GridSize matrix of angles in degrees. NaN marks a missing value.
// Grid is an array: it is copied on assignment.
type Grid [GridSize][GridSize]float64

// NewGrid returns a grid where all the cells are NaN
func NewGrid() Grid {
	var g Grid
	for i := range g {
		for j := range g[i] {
			g[i][j] = math.NaN()
		}
	}
	return g
}

// At returns the value at row, col
func (g Grid) At(row, col int) float64 {
	return g[row][col]
}

// Valid returns the number of non-NaN cells
func (g Grid) Valid() int {
	n := 0
	for i := range g {
		for j := range g[i] {
			if !math.IsNaN(g[i][j]) {
				n++
			}
		}
	}
	return n
}

// Mean returns the mean of the valid cells, or false if all the cells are NaN
func (g Grid) Mean() (float64, bool) {
	sum, n := 0.0, 0
	for i := range g {
		for j := range g[i] {
			if !math.IsNaN(g[i][j]) {
				sum += g[i][j]
				n++
			}
		}
	}
	if n == 0 {
		return math.NaN(), false
	}
	return sum / float64(n), true
}

// Merge overwrites the cells of g with the valid cells of o.
// Used to combine the per-detector grids of a band, which do not overlap.
func (g *Grid) Merge(o Grid) {
	for i := range o {
		for j := range o[i] {
			if !math.IsNaN(o[i][j]) {
				g[i][j] = o[i][j]
			}
		}
	}
}

// Equal returns true if both grids have the same values and the same NaN cells
func (g Grid) Equal(o Grid) bool {
	for i := range g {
		for j := range g[i] {
			if math.IsNaN(g[i][j]) != math.IsNaN(o[i][j]) {
				return false
			}
			if !math.IsNaN(g[i][j]) && g[i][j] != o[i][j] {
				return false
			}
		}
	}
	return true
}

// Flatten returns the rows x cols top-left block of the grid, row-major
func (g Grid) Flatten(rows, cols int) []float64 {
	res := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		res = append(res, g[i][:cols]...)
	}
	return res
}

// BandID is the index of a spectral band in the tile metadata (0 to 12)
type BandID int

func (b BandID) Valid() bool {
	return b >= 0 && b < NumBands
}

// AnglePair groups the zenith and azimuth grids of the same geometry
type AnglePair struct {
	Zenith  Grid
	Azimuth Grid
}

// ViewStack maps each band present in the metadata to its viewing incidence angles.
// Band ids are not guaranteed to be contiguous.
type ViewStack map[BandID]AnglePair

// Bands returns the band ids of the stack, sorted
func (s ViewStack) Bands() []BandID {
	bands := make([]BandID, 0, len(s))
	for b := range s {
		bands = append(bands, b)
	}
	sort.Slice(bands, func(i, j int) bool { return bands[i] < bands[j] })
	return bands
}

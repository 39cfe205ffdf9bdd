package raster

import (
	"fmt"
	"math"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/airbusgeo/s2angles/internal/utils/affine"
)

// EdgePolicy is the number of rows and columns of the metadata grid kept in the coarse raster
type EdgePolicy int

const (
	// Edge23 keeps all the cells of the grid
	Edge23 EdgePolicy = angles.GridSize
	// Edge22 drops the last row and the last column
	Edge22 EdgePolicy = angles.GridSize - 1
)

// ParseEdgePolicy returns the policy keeping n rows and columns
func ParseEdgePolicy(n int) (EdgePolicy, error) {
	switch EdgePolicy(n) {
	case Edge23, Edge22:
		return EdgePolicy(n), nil
	}
	return 0, angles.NewConfigurationError("grid edge must be %d or %d, got %d", Edge23, Edge22, n)
}

// Size returns the number of rows and columns of the coarse raster
func (e EdgePolicy) Size() int {
	return int(e)
}

// Coarse is an angle grid as an in-memory raster, anchored on the origin of a reference grid.
type Coarse struct {
	Dataset *godal.Dataset
	Ref     GeoReference
	values  []float64
}

// BuildCoarse creates the coarse raster of grid: Float64, nodata NaN, pixel size GridStep,
// upper-left corner and crs of ref.
// The caller must Close the returned Coarse.
func BuildCoarse(grid angles.Grid, ref GeoReference, edge EdgePolicy) (*Coarse, error) {
	if _, err := ParseEdgePolicy(int(edge)); err != nil {
		return nil, err
	}
	if ref.PixToCRS == nil {
		return nil, angles.NewReferenceRasterError("", "reference has no geotransform")
	}
	size := edge.Size()
	ox, oy := ref.PixToCRS.Origin()
	c := &Coarse{
		Ref: GeoReference{
			PixToCRS:  affine.NorthUp(ox, oy, angles.GridStep),
			WKT:       ref.WKT,
			Width:     size,
			Height:    size,
			NoData:    math.NaN(),
			HasNoData: true,
		},
		values: grid.Flatten(size, size),
	}

	ds, err := godal.Create(godal.Memory, "", 1, godal.Float64, size, size, ErrLogger)
	if err != nil {
		return nil, fmt.Errorf("BuildCoarse.Create: %w", err)
	}
	if err := c.fill(ds); err != nil {
		ds.Close()
		return nil, fmt.Errorf("BuildCoarse.%w", err)
	}
	c.Dataset = ds
	return c, nil
}

func (c *Coarse) fill(ds *godal.Dataset) error {
	if err := ds.SetGeoTransform([6]float64(*c.Ref.PixToCRS)); err != nil {
		return fmt.Errorf("SetGeoTransform: %w", err)
	}
	if c.Ref.WKT != "" {
		if err := ds.SetProjection(c.Ref.WKT); err != nil {
			return fmt.Errorf("SetProjection: %w", err)
		}
	}
	band := ds.Bands()[0]
	if err := band.SetNoData(math.NaN()); err != nil {
		return fmt.Errorf("SetNoData: %w", err)
	}
	if err := band.Write(0, 0, c.values, c.Ref.Width, c.Ref.Height); err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	return nil
}

// At returns the value of the cell col, row
func (c *Coarse) At(col, row int) float64 {
	return c.values[row*c.Ref.Width+col]
}

// Close releases the in-memory raster
func (c *Coarse) Close() error {
	if c.Dataset == nil {
		return nil
	}
	err := c.Dataset.Close()
	c.Dataset = nil
	return err
}

package raster

import (
	"fmt"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/airbusgeo/s2angles/internal/utils/affine"
	"github.com/airbusgeo/s2angles/internal/utils/proj"
	"github.com/twpayne/go-geom"
)

// GeoReference is the pixel grid of a raster: its geotransform, crs and size
type GeoReference struct {
	PixToCRS      *affine.Affine
	WKT           string
	Width, Height int
	NoData        float64
	HasNoData     bool
}

// OpenReference reads the pixel grid of the raster at path.
// It returns a ReferenceRasterError if the raster cannot be opened or has no extent
func OpenReference(path string) (GeoReference, error) {
	ds, err := godal.Open(path, ErrLogger)
	if err != nil {
		return GeoReference{}, angles.NewReferenceRasterError(path, "cannot open raster: %v", err)
	}
	defer ds.Close()
	ref, err := ReferenceOf(ds)
	if err != nil {
		return GeoReference{}, angles.WithPath(err, path)
	}
	return ref, nil
}

// ReferenceOf reads the pixel grid of an opened dataset
func ReferenceOf(ds *godal.Dataset) (GeoReference, error) {
	st := ds.Structure()
	if st.SizeX <= 0 || st.SizeY <= 0 || st.NBands == 0 {
		return GeoReference{}, angles.NewReferenceRasterError("", "empty raster (%dx%d, %d bands)", st.SizeX, st.SizeY, st.NBands)
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		return GeoReference{}, angles.NewReferenceRasterError("", "no geotransform: %v", err)
	}
	pixToCRS := affine.Affine(gt)
	if !pixToCRS.IsInvertible() {
		return GeoReference{}, angles.NewReferenceRasterError("", "degenerated geotransform %v", gt)
	}
	ref := GeoReference{
		PixToCRS: &pixToCRS,
		WKT:      ds.Projection(),
		Width:    st.SizeX,
		Height:   st.SizeY,
	}
	ref.NoData, ref.HasNoData = ds.Bands()[0].NoData()
	return ref, nil
}

// Extent returns xmin, ymin, xmax, ymax
func (r GeoReference) Extent() [4]float64 {
	return r.PixToCRS.Extent(r.Width, r.Height)
}

// Resolution returns the pixel size along x and y (positive)
func (r GeoReference) Resolution() (float64, float64) {
	rx, ry := r.PixToCRS.Rx(), r.PixToCRS.Ry()
	if rx < 0 {
		rx = -rx
	}
	if ry < 0 {
		ry = -ry
	}
	return rx, ry
}

// SpatialRef returns the crs of the grid.
// It returns a ResamplingError if the grid has no crs
func (r GeoReference) SpatialRef() (*godal.SpatialRef, error) {
	if strings.TrimSpace(r.WKT) == "" {
		return nil, angles.NewResamplingError("", "raster has no crs")
	}
	crs, _, err := proj.CRSFromUserInput(r.WKT)
	if err != nil {
		return nil, angles.NewResamplingError("", "invalid crs: %v", err)
	}
	return crs, nil
}

// Footprint returns the extent of the grid as a polygon, in the crs of the grid
func (r GeoReference) Footprint() *geom.Polygon {
	return proj.NewPolygonFromExtent(r.PixToCRS, r.Width, r.Height)
}

// SameGrid returns true if both grids have the same size, geotransform (up to tol) and crs
func (r GeoReference) SameGrid(o GeoReference, tol float64) bool {
	if r.Width != o.Width || r.Height != o.Height || !r.PixToCRS.Equal(o.PixToCRS, tol) {
		return false
	}
	if r.WKT == o.WKT {
		return true
	}
	a, err := r.SpatialRef()
	if err != nil {
		return false
	}
	b, err := o.SpatialRef()
	if err != nil {
		return false
	}
	return proj.SameCRS(a, b)
}

func (r GeoReference) String() string {
	return fmt.Sprintf("%dx%d %v", r.Width, r.Height, *r.PixToCRS)
}

package proj

import (
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/s2angles/internal/utils/affine"
	"github.com/twpayne/go-geom"
)

const (
	RadToDeg = 180 / math.Pi
	DegToRad = math.Pi / 180
)

// densifyPoints is the number of points sampled along each edge of an extent before reprojection
const densifyPoints = 21

// CreateLonLatProj create a CoordinateTransform from/to the geographic lon/lat coordinates
func CreateLonLatProj(crs *godal.SpatialRef, inverse bool) (*godal.Transform, error) {
	lonlatCRS, err := CRSFromEPSG(4326)
	if err != nil {
		return nil, fmt.Errorf("CreateLonLatProj.%w", err)
	}
	if inverse {
		return NewTransform(crs, lonlatCRS)
	}
	return NewTransform(lonlatCRS, crs)
}

// NewTransform creates a CoordinateTransform from src to dst.
// The transform is released by the garbage collector.
func NewTransform(src, dst *godal.SpatialRef) (*godal.Transform, error) {
	tr, err := godal.NewTransform(src, dst)
	if err != nil {
		return nil, fmt.Errorf("NewTransform: %w", err)
	}
	runtime.SetFinalizer(tr, func(tr *godal.Transform) { tr.Close() })
	return tr, nil
}

// CRSFromUserInput initialize a crs from epsg, proj4 or Wkt format
// Return the SRID if known
func CRSFromUserInput(input string) (*godal.SpatialRef, int, error) {
	var err error
	var crs *godal.SpatialRef
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, 0, fmt.Errorf("CRSFromUserInput: empty crs")
	}
	if epsg, err := strconv.Atoi(input); err == nil {
		crs, err = CRSFromEPSG(epsg)
		return crs, epsg, err
	}
	if strings.HasPrefix(strings.ToLower(input), "epsg:") {
		epsg, err := strconv.Atoi(input[5:])
		if err != nil {
			return nil, 0, fmt.Errorf("CRSFromUserInput: %w", err)
		}
		crs, err = CRSFromEPSG(epsg)
		return crs, epsg, err
	}
	if strings.HasPrefix(input, "+") {
		crs, err = godal.NewSpatialRefFromProj4(input)
	} else {
		crs, err = godal.NewSpatialRefFromWKT(input)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("CRSFromUserInput: %w", err)
	}
	runtime.SetFinalizer(crs, func(crs *godal.SpatialRef) { crs.Close() })
	return crs, Srid(crs), nil
}

var crsEPSG map[int]*godal.SpatialRef = map[int]*godal.SpatialRef{}
var crsEPSGLock sync.Mutex

// CRSFromEPSG initialize a crs from epsg (only once per epsg)
// DO NOT release the crs (it is kept for further uses)
func CRSFromEPSG(epsg int) (*godal.SpatialRef, error) {
	crsEPSGLock.Lock()
	defer crsEPSGLock.Unlock()

	if crs, ok := crsEPSG[epsg]; ok && crs != nil {
		return crs, nil
	}

	crs, err := godal.NewSpatialRefFromEPSG(epsg)
	if err != nil {
		return nil, fmt.Errorf("CRSFromEPSG: %w", err)
	}
	crsEPSG[epsg] = crs
	runtime.SetFinalizer(crs, func(crs *godal.SpatialRef) { crs.Close() })
	return crs, nil
}

// SRID returns the SRID from the crs or 0 if not found
// Warning : this function is not reliable...
func Srid(crs *godal.SpatialRef) int {
	if crs == nil {
		return 0
	}
	entities := []string{"PROJCS", "PROJCS", "LOCAL_CS", "GEOGCS"}
	for i, entity := range entities {
		if crs.AuthorityName(entity) == "EPSG" {
			if res, err := strconv.Atoi(crs.AuthorityCode(entity)); err == nil {
				return res
			}
		}
		if i == 0 {
			crs.AutoIdentifyEPSG()
		}
	}
	return 0
}

// SameCRS returns true if both crs describe the same coordinate system
func SameCRS(a, b *godal.SpatialRef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IsSame(b)
}

// NewPolygonFromExtent returns the polygon corresponding to the extent
func NewPolygonFromExtent(pixToCrs *affine.Affine, width, height int) *geom.Polygon {
	xMin, yMin := pixToCrs.Transform(0, 0)
	xMax, yMax := pixToCrs.Transform(float64(width), float64(height))
	if xMin > xMax {
		xMin, xMax = xMax, xMin
	}
	if yMin > yMax {
		yMin, yMax = yMax, yMin
	}
	bounds := geom.NewBounds(geom.XY)
	bounds.SetCoords([]float64{xMin, yMin}, []float64{xMax, yMax})
	return bounds.Polygon()
}

// Footprint returns the bounding polygon, in dst coordinates, of the width x height extent
// defined by pixToCrs in src coordinates.
// The edges are densified before the reprojection. If dst is nil or the same as src, no reprojection is done.
func Footprint(pixToCrs *affine.Affine, width, height int, src, dst *godal.SpatialRef) (*geom.Polygon, error) {
	if dst == nil || SameCRS(src, dst) {
		return NewPolygonFromExtent(pixToCrs, width, height), nil
	}
	tr, err := NewTransform(src, dst)
	if err != nil {
		return nil, fmt.Errorf("Footprint.%w", err)
	}
	x, y := densifyExtent(pixToCrs, float64(width), float64(height))
	ok := make([]bool, len(x))
	if err := tr.TransformEx(x, y, make([]float64, len(x)), ok); err != nil {
		return nil, fmt.Errorf("Footprint: %w", err)
	}
	bounds := geom.NewBounds(geom.XY)
	var n int
	for i := range x {
		if !ok[i] || math.IsNaN(x[i]) || math.IsNaN(y[i]) || math.IsInf(x[i], 0) || math.IsInf(y[i], 0) {
			continue
		}
		bounds.Extend(geom.NewPointFlat(geom.XY, []float64{x[i], y[i]}))
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("Footprint: no point of the extent can be reprojected")
	}
	return bounds.Polygon(), nil
}

func densifyExtent(pixToCrs *affine.Affine, width, height float64) (x, y []float64) {
	corners := [5][2]float64{{0, 0}, {width, 0}, {width, height}, {0, height}, {0, 0}}
	for c := 0; c < 4; c++ {
		for i := 0; i < densifyPoints; i++ {
			t := float64(i) / densifyPoints
			px := corners[c][0] + t*(corners[c+1][0]-corners[c][0])
			py := corners[c][1] + t*(corners[c+1][1]-corners[c][1])
			cx, cy := pixToCrs.Transform(px, py)
			x = append(x, cx)
			y = append(y, cy)
		}
	}
	return x, y
}

// Covers returns true if the bounds of outer contain the bounds of inner, up to tol
func Covers(outer, inner *geom.Polygon, tol float64) bool {
	ob, ib := outer.Bounds(), inner.Bounds()
	if ob.IsEmpty() || ib.IsEmpty() {
		return false
	}
	for dim := 0; dim < 2; dim++ {
		if ib.Min(dim) < ob.Min(dim)-tol || ib.Max(dim) > ob.Max(dim)+tol {
			return false
		}
	}
	return true
}

// CenterLonLat returns the geographic coordinates of the center of the width x height extent
func CenterLonLat(pixToCrs *affine.Affine, width, height int, crs *godal.SpatialRef) (float64, float64, error) {
	tr, err := CreateLonLatProj(crs, true)
	if err != nil {
		return 0, 0, fmt.Errorf("CenterLonLat.%w", err)
	}
	x, y := pixToCrs.Transform(float64(width)/2, float64(height)/2)
	xs, ys := []float64{x}, []float64{y}
	if err := tr.TransformEx(xs, ys, []float64{0}, nil); err != nil {
		return 0, 0, fmt.Errorf("CenterLonLat: %w", err)
	}
	return xs[0], ys[0], nil
}

// Package to handle 2D affine transformations, following GDAL affine convention
package affine

import (
	"math"
	"math/big"
)

// Affine follows the GDAL geotransform convention:
// Xgeo = a[0] + col*a[1] + row*a[2]
// Ygeo = a[3] + col*a[4] + row*a[5]
type Affine [6]float64

func NewAffine(a, b, c, d, e, f float64) *Affine {
	res := Affine([6]float64{a, b, c, d, e, f})
	return &res
}

// Translation creates a translation transform from (offx, offy)
func Translation(offx, offy float64) *Affine {
	return NewAffine(offx, 1.0, 0, offy, 0, 1.0)
}

// Scale creates a scale transform from (scalex, scaley)
func Scale(scalex, scaley float64) *Affine {
	return NewAffine(0, scalex, 0, 0, 0, scaley)
}

// NorthUp creates the transform of a grid with its upper-left corner at (originX, originY)
// and square pixels of size res
func NorthUp(originX, originY, res float64) *Affine {
	return NewAffine(originX, res, 0, originY, 0, -res)
}

// Origin returns the coordinates of the upper-left corner
func (a *Affine) Origin() (float64, float64) {
	return a[0], a[3]
}

// Rx returns the X resolution
func (a *Affine) Rx() float64 {
	return a[1]
}

// Ry returns the Y resolution
func (a *Affine) Ry() float64 {
	return a[5]
}

// IsRotated returns true if the transform has rotation or shear terms
func (a *Affine) IsRotated() bool {
	return a[2] != 0 || a[4] != 0
}

// IsInvertible returns true if the transformation is invertible
func (a *Affine) IsInvertible() bool {
	return a[1]*a[5] != a[2]*a[4] // det != 0
}

// Inverse creates the inverse of the affine transform.
// Inverse panics if it is not inversible
func (a *Affine) Inverse() *Affine {
	idet := 1.0 / (a[1]*a[5] - a[2]*a[4])
	res := Affine([6]float64{0, a[5] * idet, -a[2] * idet, 0, -a[4] * idet, a[1] * idet})
	res[0], res[3] = res.Transform(-a[0], -a[3])
	return &res
}

// Extent returns the bounds (xmin, ymin, xmax, ymax) of a width x height raster
func (a *Affine) Extent(width, height int) [4]float64 {
	xs, ys := make([]float64, 0, 4), make([]float64, 0, 4)
	for _, c := range [][2]float64{{0, 0}, {float64(width), 0}, {0, float64(height)}, {float64(width), float64(height)}} {
		x, y := a.Transform(c[0], c[1])
		xs, ys = append(xs, x), append(ys, y)
	}
	return [4]float64{minOf(xs), minOf(ys), maxOf(xs), maxOf(ys)}
}

// Equal returns true if both transforms are equal within tol
func (a *Affine) Equal(b *Affine, tol float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

const (
	prec = 128
)

// highPrecisionTransform, such as highPrecisionTransform(xs, x+1, sy, y+1, o) = highPrecisionTransform(xs, x, sy, y, o) + highPrecisionTransform(xs, 1, sy, 1, 0)
func highPrecisionTransform(sx, x, sy, y, o float64) float64 {
	sX := big.NewFloat(sx).SetPrec(prec)
	sY := big.NewFloat(sy).SetPrec(prec)
	X := big.NewFloat(x).SetPrec(prec)
	Y := big.NewFloat(y).SetPrec(prec)
	O := big.NewFloat(o).SetPrec(prec)
	r, _ := O.Add(O, sX.Mul(sX, X)).Add(O, sY.Mul(sY, Y)).Float64() // o + sx*x + sy*y
	return r
}

// Multiply merges the two affines transforms into one.
func (a *Affine) Multiply(b *Affine) *Affine {
	return NewAffine(
		highPrecisionTransform(a[1], b[0], a[2], b[3], a[0]),
		highPrecisionTransform(a[1], b[1], a[2], b[4], 0),
		highPrecisionTransform(a[1], b[2], a[2], b[5], 0),
		highPrecisionTransform(a[4], b[0], a[5], b[3], a[3]),
		highPrecisionTransform(a[4], b[1], a[5], b[4], 0),
		highPrecisionTransform(a[4], b[2], a[5], b[5], 0),
	)
}

// Transform applies the affine transform to the point (x, y)
func (a *Affine) Transform(x float64, y float64) (float64, float64) {
	return highPrecisionTransform(a[1], x, a[2], y, a[0]), highPrecisionTransform(a[4], x, a[5], y, a[3])
}

// TransformFast applies the affine transform to the point (x, y) in float64 precision.
// To be used in per-pixel loops.
func (a *Affine) TransformFast(x, y float64) (float64, float64) {
	return a[0] + x*a[1] + y*a[2], a[3] + x*a[4] + y*a[5]
}

func minOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = math.Min(m, x)
	}
	return m
}

func maxOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = math.Max(m, x)
	}
	return m
}

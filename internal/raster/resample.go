package raster

import (
	"context"
	"fmt"
	"math"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/airbusgeo/s2angles/internal/utils/affine"
	"github.com/airbusgeo/s2angles/internal/utils/proj"
)

// minWeight is the bilinear weight under which a coarse cell does not contribute to a pixel
const minWeight = 1e-6

// stripHeight is the number of rows processed at once when masking
const stripHeight = 256

// Target describes the dataset created by Resample
type Target struct {
	// Path of the GTiff to create. Empty for an in-memory dataset
	Path string
	// DataType of the band. Float32 if not defined
	DataType godal.DataType
	// CreationOptions of the GTiff (KEY=VALUE)
	CreationOptions []string
}

func (t Target) dataType() godal.DataType {
	if t.DataType == godal.Unknown {
		return godal.Float32
	}
	return t.DataType
}

// Resample warps the coarse raster onto the pixel grid of ref with a bilinear kernel.
// Output pixels having a NaN contributor or lying outside the coarse extent are nodata (NaN).
// The caller is responsible to close the returned dataset (and to delete target.Path).
func Resample(ctx context.Context, coarse *Coarse, ref GeoReference, target Target) (*godal.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ref.PixToCRS == nil || ref.Width <= 0 || ref.Height <= 0 {
		return nil, angles.NewReferenceRasterError("", "reference grid has no extent")
	}
	dstCRS, err := ref.SpatialRef()
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	srcCRS, err := coarse.Ref.SpatialRef()
	if err != nil {
		return nil, fmt.Errorf("coarse grid: %w", err)
	}
	var toCoarse *godal.Transform
	if !proj.SameCRS(srcCRS, dstCRS) {
		if toCoarse, err = proj.NewTransform(dstCRS, srcCRS); err != nil {
			return nil, angles.NewResamplingError("", "no transformation between crs: %v", err)
		}
	}

	options := warpOptions(ref, target)
	ds, err := godal.Warp(target.Path, []*godal.Dataset{coarse.Dataset}, options, ErrLogger)
	if err != nil {
		return nil, angles.NewResamplingError(target.Path, "warp %v: %v", options, err)
	}

	if err := applyStrictNoData(ctx, ds, coarse, ref, toCoarse); err != nil {
		UnlinkDataset(ds, target.Path)
		return nil, err
	}
	return ds, nil
}

func warpOptions(ref GeoReference, target Target) []string {
	ext := ref.Extent()
	options := []string{
		"-t_srs", ref.WKT,
		"-te", toS(ext[0]), toS(ext[1]), toS(ext[2]), toS(ext[3]),
		"-ts", toS(float64(ref.Width)), toS(float64(ref.Height)),
		"-r", "bilinear",
		"-ot", target.dataType().String(),
		"-srcnodata", "nan",
		"-dstnodata", "nan",
		"-wo", "INIT_DEST=NO_DATA",
		"-wm", "500",
		"-nomd",
		"-multi",
	}
	if target.Path == "" {
		return append(options, "-of", "MEM")
	}
	options = append(options, "-of", "GTiff")
	for _, co := range gtiffOptions(ref.Width, ref.Height) {
		options = append(options, "-co", co)
	}
	for _, co := range target.CreationOptions {
		options = append(options, "-co", co)
	}
	return options
}

// applyStrictNoData sets to NaN the pixels of ds that the bilinear kernel computed
// from a partial set of valid coarse cells.
func applyStrictNoData(ctx context.Context, ds *godal.Dataset, coarse *Coarse, ref GeoReference, toCoarse *godal.Transform) error {
	band := ds.Bands()[0]
	crsToCoarse := coarse.Ref.PixToCRS.Inverse()
	w, h := ref.Width, ref.Height
	buf := make([]float64, w*stripHeight)
	xs, ys, zs := make([]float64, w), make([]float64, w), make([]float64, w)
	ok := make([]bool, w)

	for y0 := 0; y0 < h; y0 += stripHeight {
		if err := ctx.Err(); err != nil {
			return err
		}
		sh := stripHeight
		if y0+sh > h {
			sh = h - y0
		}
		strip := buf[:w*sh]
		if err := band.Read(0, y0, strip, w, sh); err != nil {
			return angles.NewResamplingError("", "read rows %d-%d: %v", y0, y0+sh, err)
		}
		changed := false
		for r := 0; r < sh; r++ {
			pixelCenters(ref.PixToCRS, y0+r, xs, ys)
			if toCoarse != nil {
				for i := range ok {
					ok[i] = true
					zs[i] = 0
				}
				if err := toCoarse.TransformEx(xs, ys, zs, ok); err != nil {
					return angles.NewResamplingError("", "transform row %d: %v", y0+r, err)
				}
			}
			row := strip[r*w : (r+1)*w]
			for c := range row {
				if math.IsNaN(row[c]) {
					continue
				}
				if (toCoarse != nil && !ok[c]) || !coarse.validAt(crsToCoarse, xs[c], ys[c]) {
					row[c] = math.NaN()
					changed = true
				}
			}
		}
		if changed {
			if err := band.Write(0, y0, strip, w, sh); err != nil {
				return angles.NewResamplingError("", "write rows %d-%d: %v", y0, y0+sh, err)
			}
		}
	}
	return nil
}

// pixelCenters fills xs, ys with the crs coordinates of the centers of the pixels of row
func pixelCenters(pixToCRS *affine.Affine, row int, xs, ys []float64) {
	for c := range xs {
		xs[c], ys[c] = pixToCRS.TransformFast(float64(c)+0.5, float64(row)+0.5)
	}
}

// validAt returns true if the point x, y is inside the coarse extent and
// all the coarse cells contributing to its bilinear interpolation are valid
func (c *Coarse) validAt(crsToCoarse *affine.Affine, x, y float64) bool {
	cu, cv := crsToCoarse.TransformFast(x, y)
	w, h := c.Ref.Width, c.Ref.Height
	if math.IsNaN(cu) || math.IsNaN(cv) || cu < 0 || cv < 0 || cu > float64(w) || cv > float64(h) {
		return false
	}
	u, v := cu-0.5, cv-0.5
	i0, j0 := int(math.Floor(u)), int(math.Floor(v))
	fu, fv := u-float64(i0), v-float64(j0)
	for _, n := range [4]struct {
		i, j int
		w    float64
	}{
		{i0, j0, (1 - fu) * (1 - fv)},
		{i0 + 1, j0, fu * (1 - fv)},
		{i0, j0 + 1, (1 - fu) * fv},
		{i0 + 1, j0 + 1, fu * fv},
	} {
		if n.w <= minWeight || n.i < 0 || n.j < 0 || n.i >= w || n.j >= h {
			continue
		}
		if math.IsNaN(c.At(n.i, n.j)) {
			return false
		}
	}
	return true
}

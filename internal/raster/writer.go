package raster

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/google/uuid"
)

// OutputFormat is the encoding of the angle rasters
type OutputFormat string

const (
	// Float32 angles in degrees, nodata NaN
	Float32 OutputFormat = "float32"
	// Int32 angles in hundredths of degrees, nodata -9999
	Int32 OutputFormat = "int32"
)

// Int32NoData is the nodata value of the Int32 format
const Int32NoData = -9999

// ParseOutputFormat returns the format named s
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case Float32, Int32:
		return f, nil
	case "":
		return Float32, nil
	}
	return "", angles.NewConfigurationError("unknown output format: %s", s)
}

// DataType returns the gdal type of the band
func (f OutputFormat) DataType() godal.DataType {
	if f == Int32 {
		return godal.Int32
	}
	return godal.Float32
}

// NoData returns the nodata value of the band
func (f OutputFormat) NoData() float64 {
	if f == Int32 {
		return Int32NoData
	}
	return math.NaN()
}

// encode converts an angle in degrees to the value stored in the band
func (f OutputFormat) encode(v float64) float64 {
	if f != Int32 {
		return v
	}
	if math.IsNaN(v) {
		return Int32NoData
	}
	return math.Round(v * 100)
}

// WriteOptions of WriteAngleRaster
type WriteOptions struct {
	Format OutputFormat
	// COG rewrites the file as a Cloud Optimized GeoTIFF with overviews
	COG bool
}

// gtiffOptions returns the creation options of a tiled GTiff of width x height pixels
func gtiffOptions(width, height int) []string {
	options := []string{
		"TILED=YES",
		"SPARSE_OK=TRUE",
		"BLOCKXSIZE=512",
		"BLOCKYSIZE=512",
	}
	if width*height >= 10000*10000 {
		options = append(options, "BIGTIFF=YES")
	}
	return options
}

func deflateOptions(width, height int, format OutputFormat) []string {
	options := append(gtiffOptions(width, height), "COMPRESS=DEFLATE", "NUM_THREADS=ALL_CPUS")
	if format == Int32 {
		return append(options, "PREDICTOR=2")
	}
	return append(options, "PREDICTOR=3")
}

// WriteAngleRaster writes the first band of ds into a DEFLATE-compressed GeoTIFF at path,
// with the geotransform and the crs of ds, encoded as opts.Format with an explicit nodata.
func WriteAngleRaster(ctx context.Context, ds *godal.Dataset, path string, opts WriteOptions) error {
	format, err := ParseOutputFormat(string(opts.Format))
	if err != nil {
		return err
	}
	if !opts.COG {
		if err := writeGTiff(ctx, ds, path, format); err != nil {
			return fmt.Errorf("WriteAngleRaster[%s]: %w", filepath.Base(path), err)
		}
		return nil
	}

	tmp := "/vsimem/" + uuid.New().String() + ".tif"
	defer godal.VSIUnlink(tmp)
	if err := writeGTiff(ctx, ds, tmp, format); err != nil {
		return fmt.Errorf("WriteAngleRaster[%s]: %w", filepath.Base(path), err)
	}
	if err := rewriteCOG(tmp, path); err != nil {
		return fmt.Errorf("WriteAngleRaster[%s]: %w", filepath.Base(path), err)
	}
	return nil
}

func writeGTiff(ctx context.Context, src *godal.Dataset, path string, format OutputFormat) (err error) {
	st := src.Structure()
	gt, err := src.GeoTransform()
	if err != nil {
		return fmt.Errorf("no geotransform: %w", err)
	}

	dst, err := godal.Create(godal.GTiff, path, 1, format.DataType(), st.SizeX, st.SizeY,
		godal.CreationOption(deflateOptions(st.SizeX, st.SizeY, format)...), ErrLogger)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()

	if err := dst.SetGeoTransform(gt); err != nil {
		return fmt.Errorf("SetGeoTransform: %w", err)
	}
	if wkt := src.Projection(); wkt != "" {
		if err := dst.SetProjection(wkt); err != nil {
			return fmt.Errorf("SetProjection: %w", err)
		}
	}
	out := dst.Bands()[0]
	if err := out.SetNoData(format.NoData()); err != nil {
		return fmt.Errorf("SetNoData: %w", err)
	}
	return copyStrips(ctx, src.Bands()[0], out, st.SizeX, st.SizeY, format)
}

func copyStrips(ctx context.Context, src, dst godal.Band, width, height int, format OutputFormat) error {
	in := make([]float64, width*stripHeight)
	var f32 []float32
	var i32 []int32
	if format == Int32 {
		i32 = make([]int32, width*stripHeight)
	} else {
		f32 = make([]float32, width*stripHeight)
	}
	for y0 := 0; y0 < height; y0 += stripHeight {
		if err := ctx.Err(); err != nil {
			return err
		}
		sh := stripHeight
		if y0+sh > height {
			sh = height - y0
		}
		n := width * sh
		if err := src.Read(0, y0, in[:n], width, sh); err != nil {
			return fmt.Errorf("read rows %d-%d: %w", y0, y0+sh, err)
		}
		var err error
		if format == Int32 {
			for i, v := range in[:n] {
				i32[i] = int32(format.encode(v))
			}
			err = dst.Write(0, y0, i32[:n], width, sh)
		} else {
			for i, v := range in[:n] {
				f32[i] = float32(v)
			}
			err = dst.Write(0, y0, f32[:n], width, sh)
		}
		if err != nil {
			return fmt.Errorf("write rows %d-%d: %w", y0, y0+sh, err)
		}
	}
	return nil
}

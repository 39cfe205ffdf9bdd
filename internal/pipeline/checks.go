package pipeline

import (
	"context"
	"math"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/airbusgeo/s2angles/internal/log"
	"github.com/airbusgeo/s2angles/internal/metadata"
	"github.com/airbusgeo/s2angles/internal/raster"
	"github.com/airbusgeo/s2angles/internal/utils/affine"
	"github.com/airbusgeo/s2angles/internal/utils/proj"
	"go.uber.org/zap"
)

// originTolerance is the maximum distance (in crs units) between the declared and the actual
// upper-left corner of the tile
const originTolerance = 1.

// checkGeocoding compares the geocoding declared in the tile metadata with the grid of the reference band.
// Inconsistencies are only logged: the rasters are always computed on the grid of the reference band.
func checkGeocoding(ctx context.Context, tile *metadata.Tile, ref raster.GeoReference, edge raster.EdgePolicy) {
	logger := log.Logger(ctx)

	if ref.PixToCRS.IsRotated() {
		logger.Warn("reference grid is rotated", zap.Stringer("grid", ref))
	}
	refCRS, err := ref.SpatialRef()
	if err != nil {
		logger.Warn("unknown reference crs", zap.Error(err))
		return
	}

	tileCRS := refCRS
	if tile.CRSCode != "" {
		crs, tileSrid, err := proj.CRSFromUserInput(tile.CRSCode)
		switch {
		case err != nil:
			logger.Warn("unknown tile crs", zap.String("crs", tile.CRSCode), zap.Error(err))
		case tileSrid != proj.Srid(refCRS):
			logger.Warn("tile and reference crs differ",
				zap.String("tile", tile.CRSCode), zap.Int("reference", proj.Srid(refCRS)))
			tileCRS = crs
		}
	}

	rx, _ := ref.Resolution()
	if geopos, ok := tile.Geoposition(int(math.Round(rx))); ok {
		ox, oy := ref.PixToCRS.Origin()
		if math.Abs(geopos.ULX-ox) > originTolerance || math.Abs(geopos.ULY-oy) > originTolerance {
			logger.Warn("tile and reference origins differ",
				zap.Float64("tile_ulx", geopos.ULX), zap.Float64("tile_uly", geopos.ULY),
				zap.Float64("reference_ulx", ox), zap.Float64("reference_uly", oy))
		}
		checkCoverage(ctx, affine.NorthUp(geopos.ULX, geopos.ULY, angles.GridStep), edge, tileCRS, ref, refCRS)
	} else {
		logger.Sugar().Debugf("no geoposition at %vm in the tile metadata", rx)
	}

	if lon, lat, err := proj.CenterLonLat(ref.PixToCRS, ref.Width, ref.Height, refCRS); err == nil {
		logger.Debug("reference grid", zap.Stringer("grid", ref), zap.Float64("lon", lon), zap.Float64("lat", lat))
	}
}

// checkCoverage warns if the angle grid anchored at gridToCRS does not cover the reference grid.
// Uncovered pixels are nodata in the angle rasters.
func checkCoverage(ctx context.Context, gridToCRS *affine.Affine, edge raster.EdgePolicy, gridCRS *godal.SpatialRef,
	ref raster.GeoReference, refCRS *godal.SpatialRef) {
	size := edge.Size()
	footprint, err := proj.Footprint(gridToCRS, size, size, gridCRS, refCRS)
	if err != nil {
		log.Logger(ctx).Warn("cannot compute the footprint of the angle grid", zap.Error(err))
		return
	}
	if !proj.Covers(footprint, ref.Footprint(), originTolerance) {
		b, ext := footprint.Bounds(), ref.Extent()
		log.Logger(ctx).Warn("angle grid does not cover the reference grid",
			zap.Float64s("grid_bounds", []float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)}),
			zap.Float64s("reference_bounds", ext[:]))
	}
}

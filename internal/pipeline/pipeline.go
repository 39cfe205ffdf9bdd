// Package pipeline generates the angle rasters of a Sentinel-2 L2A product
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/airbusgeo/s2angles/internal/archive"
	"github.com/airbusgeo/s2angles/internal/log"
	"github.com/airbusgeo/s2angles/internal/metadata"
	"github.com/airbusgeo/s2angles/internal/metrics"
	"github.com/airbusgeo/s2angles/internal/product"
	"github.com/airbusgeo/s2angles/internal/raster"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pipeline generates the solar and view angle rasters of a product, on the grid of its red band
type Pipeline struct {
	cfg     Config
	reducer angles.Reducer
	metrics *metrics.Collector
}

// New creates a pipeline. It returns a ConfigurationError if cfg is not valid.
// m is optional.
func New(cfg Config, m *metrics.Collector) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	reducer, err := angles.NewReducer(cfg.Policy, cfg.Band)
	if err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if m == nil {
		m = metrics.NewCollector()
	}
	return &Pipeline{cfg: cfg, reducer: reducer, metrics: m}, nil
}

// scene is the state of a run once the product is parsed
type scene struct {
	id        string
	layout    product.Layout
	reference string
	ref       raster.GeoReference
	tile      *metadata.Tile
	view      angles.AnglePair
	staged    Outputs
}

// Generate computes the four angle rasters of the product at input and writes them in outputDir.
// input is a .SAFE folder, a .zip archive (local or gs://), a folder or a tile metadata file.
// If outputDir is empty, the rasters are written in the ANG_DATA folder of the granule
// (or next to the archive).
// Errors are returned as a *StageError wrapping an angles.Error.
func (p *Pipeline) Generate(ctx context.Context, input, outputDir string) (outputs Outputs, err error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	ctx = log.With(ctx, "input", input)
	defer func() {
		if err == nil {
			p.metrics.RecordSuccess()
			return
		}
		stage, _ := FailedStage(err)
		code := "Unknown"
		if c, ok := angles.Code(err); ok {
			code = c.String()
		}
		p.metrics.RecordFailure(string(stage), code)
	}()

	ws, err := newWorkspace(p.cfg.workDir())
	if err != nil {
		return Outputs{}, fail(Located, err)
	}
	defer ws.clean(ctx)
	ctx = log.With(ctx, "workspace", ws.root)

	sc, err := p.locate(ctx, ws, input)
	if err != nil {
		return Outputs{}, err
	}
	if outputDir == "" {
		outputDir = sc.layout.DefaultOutput
		if sc.layout.Kind == product.Archive {
			outputDir = parentOf(input)
		}
	}

	if err := p.stage(ctx, Parsed, func() error { return p.parse(ctx, sc) }); err != nil {
		return Outputs{}, err
	}
	ctx = log.With(ctx, "scene", sc.id)

	if err := p.stage(ctx, Reduced, func() error { return p.reduce(ctx, sc) }); err != nil {
		return Outputs{}, err
	}
	if err := p.stage(ctx, Resampled, func() error { return p.resample(ctx, ws, sc) }); err != nil {
		return Outputs{}, err
	}
	var final Outputs
	if err := p.stage(ctx, Finalized, func() error {
		var err error
		final, err = transfer(ctx, sc.staged, sc.id, outputDir, p.cfg.StorageClass, p.cfg.storageOptions()...)
		return err
	}); err != nil {
		return Outputs{}, err
	}
	return final, nil
}

// stage runs the transition to s: the context is checked first and the duration is recorded
func (p *Pipeline) stage(ctx context.Context, s Stage, f func() error) error {
	if err := ctx.Err(); err != nil {
		return fail(s, err)
	}
	timer := p.metrics.StageTimer(string(s))
	if err := f(); err != nil {
		return fail(s, err)
	}
	d := timer.ObserveDuration()
	log.Logger(ctx).Info(string(s), zap.Duration("duration", d))
	return nil
}

// locate resolves the metadata files and the reference band of the input,
// extracting it into the workspace if it's an archive
func (p *Pipeline) locate(ctx context.Context, ws *workspace, input string) (*scene, error) {
	local, err := ws.fetch(ctx, input, p.cfg.storageOptions()...)
	if err != nil {
		if strings.Contains(input, "://") {
			return nil, fail(Extracted, err)
		}
		return nil, fail(Located, err)
	}
	kind, err := product.DetectInput(local)
	if err != nil {
		return nil, fail(Located, err)
	}
	extracted := kind == product.Archive
	if extracted {
		if err := p.stage(ctx, Extracted, func() error {
			dest, err := ws.mkdir("product")
			if err != nil {
				return err
			}
			if local, err = archive.Extract(ctx, local, dest); err != nil {
				return err
			}
			kind, err = product.DetectInput(local)
			return err
		}); err != nil {
			return nil, err
		}
	}

	sc := &scene{}
	if err := p.stage(ctx, Located, func() error {
		var err error
		if sc.layout, err = product.Locate(kind, local); err != nil {
			return err
		}
		if sc.reference, err = product.FindReference(sc.layout.ImgDir); err != nil {
			return err
		}
		log.Logger(ctx).Sugar().Debugf("%s input: tile metadata %s, reference band %s", sc.layout.Kind, sc.layout.TileXML, sc.reference)
		return nil
	}); err != nil {
		return nil, err
	}
	if extracted {
		sc.layout.Kind = product.Archive
	}
	return sc, nil
}

func (p *Pipeline) parse(ctx context.Context, sc *scene) error {
	var err error
	if sc.tile, err = metadata.ParseTileFile(sc.layout.TileXML); err != nil {
		return err
	}
	sc.id = sc.tile.TileID
	if sc.layout.ProductXML != "" {
		if sc.id, err = metadata.ParseProductFile(sc.layout.ProductXML); err != nil {
			return err
		}
	} else {
		log.Logger(ctx).Sugar().Warnf("no product metadata: the rasters are named after the tile %s", sc.id)
	}
	if sc.id == "" {
		return angles.NewParseError(sc.layout.TileXML, "no scene identifier")
	}
	if info, err := metadata.SceneInfo(sc.id); err == nil {
		log.Logger(ctx).Info("scene",
			zap.String("mission", info["MISSION_ID"]),
			zap.String("tile", info["TILE"]),
			zap.String("date", info["DATE"]))
	}
	if sc.tile.HasMeanSun {
		log.Logger(ctx).Sugar().Infof("mean sun angles: zenith %.4f, azimuth %.4f", sc.tile.MeanSun.Zenith, sc.tile.MeanSun.Azimuth)
	}

	if sc.ref, err = raster.OpenReference(sc.reference); err != nil {
		return err
	}
	checkGeocoding(ctx, sc.tile, sc.ref, p.cfg.Edge)
	return nil
}

func (p *Pipeline) reduce(ctx context.Context, sc *scene) error {
	var err error
	if sc.view, err = p.reducer.Reduce(sc.tile.View); err != nil {
		return angles.WithPath(err, sc.layout.TileXML)
	}
	log.Logger(ctx).Sugar().Debugf("view angles reduced with policy %s (band %d) from %d bands", p.reducer.Policy(), p.reducer.Band(), len(sc.tile.View))
	return nil
}

// resample produces the four angle rasters in the staging folder of the workspace
func (p *Pipeline) resample(ctx context.Context, ws *workspace, sc *scene) error {
	staging, err := ws.mkdir("staging")
	if err != nil {
		return err
	}
	paths := make([]string, len(angles.Kinds))
	if p.cfg.Workers <= 1 {
		for i, k := range angles.Kinds {
			if paths[i], err = p.produce(ctx, k, sc, staging); err != nil {
				return err
			}
		}
	} else {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(p.cfg.Workers)
		for i, k := range angles.Kinds {
			g.Go(func() error {
				var err error
				paths[i], err = p.produce(gCtx, k, sc, staging)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	for i, k := range angles.Kinds {
		sc.staged.set(k, paths[i])
	}
	return nil
}

// produce builds the coarse raster of one kind of angle, warps it on the reference grid
// and writes it in staging
func (p *Pipeline) produce(ctx context.Context, k angles.Kind, sc *scene, staging string) (string, error) {
	coarse, err := raster.BuildCoarse(angles.Select(k, sc.tile.Sun, sc.view), sc.ref, p.cfg.Edge)
	if err != nil {
		return "", fmt.Errorf("%s: %w", k, err)
	}
	defer coarse.Close()

	warped := filepath.Join(staging, k.Suffix()+".warp.tif")
	ds, err := raster.Resample(ctx, coarse, sc.ref, raster.Target{Path: warped, DataType: godal.Float32})
	if err != nil {
		return "", fmt.Errorf("%s: %w", k, angles.WithPath(err, sc.reference))
	}
	defer func() {
		if err := raster.UnlinkDataset(ds, warped); err != nil {
			log.Logger(ctx).Sugar().Warnf("failed to remove %s: %v", warped, err)
		}
	}()

	out := filepath.Join(staging, angles.OutputName(sc.id, k))
	if err := raster.WriteAngleRaster(ctx, ds, out, raster.WriteOptions{Format: p.cfg.Format, COG: p.cfg.COG}); err != nil {
		return "", fmt.Errorf("%s: %w", k, err)
	}
	p.metrics.RecordOutput(k.Suffix())
	log.Logger(ctx).Sugar().Debugf("%s staged in %s", k, out)
	return out, nil
}

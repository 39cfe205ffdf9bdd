package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/airbusgeo/s2angles/interface/storage"
	"github.com/airbusgeo/s2angles/interface/storage/uri"
	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/airbusgeo/s2angles/internal/log"
	"github.com/airbusgeo/s2angles/internal/utils"
)

const tiffContentType = "image/tiff"

// Outputs are the paths (or uris) of the angle rasters of a run
type Outputs struct {
	SolarZenith  string
	SolarAzimuth string
	ViewZenith   string
	ViewAzimuth  string
}

func (o *Outputs) set(k angles.Kind, path string) {
	switch k {
	case angles.SolarZenith:
		o.SolarZenith = path
	case angles.SolarAzimuth:
		o.SolarAzimuth = path
	case angles.ViewZenith:
		o.ViewZenith = path
	case angles.ViewAzimuth:
		o.ViewAzimuth = path
	}
}

// Get returns the path of the raster of kind k
func (o Outputs) Get(k angles.Kind) string {
	switch k {
	case angles.SolarZenith:
		return o.SolarZenith
	case angles.SolarAzimuth:
		return o.SolarAzimuth
	case angles.ViewZenith:
		return o.ViewZenith
	case angles.ViewAzimuth:
		return o.ViewAzimuth
	}
	return ""
}

// Paths returns the four paths, in the order of angles.Kinds
func (o Outputs) Paths() []string {
	paths := make([]string, 0, len(angles.Kinds))
	for _, k := range angles.Kinds {
		paths = append(paths, o.Get(k))
	}
	return paths
}

// transfer moves the staged rasters to outputDir. Existing rasters are overwritten.
// If one of the transfers fails, the files already transferred are deleted.
func transfer(ctx context.Context, staged Outputs, sceneID, outputDir, storageClass string, opts ...storage.Option) (Outputs, error) {
	outURI, err := uri.ParseUri(outputDir)
	if err != nil {
		return Outputs{}, angles.NewConfigurationError("invalid output location %q: %v", outputDir, err)
	}
	strategy, err := outURI.NewStorageStrategy(ctx)
	if err != nil {
		return Outputs{}, angles.NewConfigurationError("%v", err)
	}
	createdDir := outURI.IsLocal() && !utils.IsDir(outURI.Path())

	uploadOpts := append([]storage.Option{storage.ContentType(tiffContentType), storage.StorageClass(storageClass)}, opts...)
	var outputs Outputs
	var transferred []string
	for _, k := range angles.Kinds {
		dest := outURI.Join(angles.OutputName(sceneID, k)).String()
		exists, eerr := strategy.Exist(ctx, dest)
		switch {
		case exists:
			log.Logger(ctx).Sugar().Infof("overwriting %s", dest)
		case eerr != nil && !errors.Is(eerr, storage.ErrFileNotFound):
			log.Logger(ctx).Sugar().Warnf("cannot check if %s exists: %s", dest, eerr.Error())
		}
		if err = strategy.UploadFile(ctx, dest, staged.Get(k), uploadOpts...); err != nil {
			err = fmt.Errorf("failed to transfer %s to %s: %w", staged.Get(k), dest, err)
			break
		}
		log.Logger(ctx).Sugar().Debugf("%s written", dest)
		transferred = append(transferred, dest)
		outputs.set(k, dest)
	}
	if err == nil {
		return outputs, nil
	}

	for _, dest := range transferred {
		if derr := strategy.Delete(ctx, dest, append(opts, storage.IgnoreNotFound())...); derr != nil {
			log.Logger(ctx).Sugar().Errorf("failed to rollback %s: %s", dest, derr.Error())
		}
	}
	if createdDir {
		// only removed if empty
		_ = os.Remove(outURI.Path())
	}
	return Outputs{}, err
}

package pipeline

import (
	"os"
	"time"

	"github.com/airbusgeo/s2angles/interface/storage"
	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/airbusgeo/s2angles/internal/raster"
)

// Config of a Pipeline
type Config struct {
	// Policy to reduce the view angles of the bands
	Policy angles.Policy
	// Band kept by the FixedBand policy
	Band angles.BandID
	// Edge is the number of rows and columns of the metadata grids used
	Edge raster.EdgePolicy
	// Format of the angle rasters
	Format raster.OutputFormat
	// COG writes the angle rasters as Cloud Optimized GeoTIFF
	COG bool
	// Workers is the number of angle rasters processed concurrently
	Workers int
	// WorkDir is the parent folder of the workspaces. Default: os.TempDir()
	WorkDir string
	// Timeout of a run. No timeout if 0
	Timeout time.Duration

	// StorageTries is the maximum number of tries of a transfer from or to a bucket. Default: 10
	StorageTries int
	// StorageRetryDelay is the delay before the first retry of a transfer. It doubles at each retry. Default: 1s
	StorageRetryDelay time.Duration
	// StorageClass of the angle rasters uploaded to a bucket. Default: the class of the bucket
	StorageClass string
}

// DefaultConfig returns the configuration of the canonical product:
// view angles of band 7, full grid, float32 rasters
func DefaultConfig() Config {
	return Config{
		Policy:  angles.FixedBand,
		Band:    angles.DefaultBand,
		Edge:    raster.Edge23,
		Format:  raster.Float32,
		Workers: 1,
	}
}

func (c Config) validate() error {
	if _, err := angles.NewReducer(c.Policy, c.Band); err != nil {
		return err
	}
	if _, err := raster.ParseEdgePolicy(int(c.Edge)); err != nil {
		return err
	}
	if _, err := raster.ParseOutputFormat(string(c.Format)); err != nil {
		return err
	}
	if c.Workers < 0 {
		return angles.NewConfigurationError("workers must be positive, got %d", c.Workers)
	}
	if c.Timeout < 0 {
		return angles.NewConfigurationError("timeout must be positive, got %v", c.Timeout)
	}
	if c.StorageTries < 0 || c.StorageRetryDelay < 0 {
		return angles.NewConfigurationError("storage tries and retry delay must be positive, got %d and %v", c.StorageTries, c.StorageRetryDelay)
	}
	return nil
}

// storageOptions returns the options of the transfers from or to a storage location
func (c Config) storageOptions() []storage.Option {
	var opts []storage.Option
	if c.StorageTries > 0 {
		opts = append(opts, storage.MaxTries(c.StorageTries))
	}
	if c.StorageRetryDelay > 0 {
		opts = append(opts, storage.OnErrorRetryDelay(c.StorageRetryDelay))
	}
	return opts
}

func (c Config) workDir() string {
	if c.WorkDir == "" {
		return os.TempDir()
	}
	return c.WorkDir
}

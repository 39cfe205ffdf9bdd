package main

import (
	"fmt"
	"time"

	"github.com/airbusgeo/s2angles/cmd"
	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/airbusgeo/s2angles/internal/log"
	"github.com/airbusgeo/s2angles/internal/pipeline"
	"github.com/airbusgeo/s2angles/internal/raster"
	"github.com/caarlos0/env/v10"
)

const envPrefix = "S2ANGLES_"

// Config of the command, loaded from the S2ANGLES_* environment variables
type Config struct {
	// InputDir is the input mount: relative input paths are resolved from it, if it exists
	InputDir string `env:"INPUT_DIR" envDefault:"/mnt/input-dir"`
	// OutputDir is the output mount, used if it exists
	OutputDir string `env:"OUTPUT_DIR" envDefault:"/mnt/output-dir"`
	// WorkDir is the parent of the temporary workspaces. Default: os.TempDir()
	WorkDir string `env:"WORK_DIR" envDefault:""`

	ViewPolicy   string        `env:"VIEW_POLICY" envDefault:"band"`
	ViewBand     int           `env:"VIEW_BAND" envDefault:"7"`
	GridEdge     int           `env:"GRID_EDGE" envDefault:"23"`
	OutputFormat string        `env:"OUTPUT_FORMAT" envDefault:"float32"`
	COG          bool          `env:"COG" envDefault:"false"`
	Workers      int           `env:"WORKERS" envDefault:"1"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"0s"`

	// Transfers from and to the buckets
	StorageMaxTries   int           `env:"STORAGE_MAX_TRIES" envDefault:"10"`
	StorageRetryDelay time.Duration `env:"STORAGE_RETRY_DELAY" envDefault:"1s"`
	StorageClass      string        `env:"STORAGE_CLASS" envDefault:""`

	// MetricsFile is written in the textfile collector format at the end of the run, if defined
	MetricsFile string `env:"METRICS_FILE" envDefault:""`

	Log  LogConfig      `envPrefix:"LOG_"`
	GDAL cmd.GDALConfig `envPrefix:"GDAL_"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// LoadConfig parses the configuration from the environment.
// It returns a ConfigurationError if a value is missing or invalid.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	opts := env.Options{
		Prefix:          envPrefix,
		RequiredIfNoDef: true,
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, angles.NewConfigurationError("failed to parse configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values of the configuration
func (c *Config) Validate() error {
	if _, err := c.Pipeline(); err != nil {
		return err
	}
	switch log.Format(c.Log.Format) {
	case log.FormatJSON, log.FormatConsole:
	default:
		return angles.NewConfigurationError("log format must be %q or %q, got %q", log.FormatJSON, log.FormatConsole, c.Log.Format)
	}
	if err := c.GDAL.Validate(); err != nil {
		return angles.NewConfigurationError("%v", err)
	}
	return nil
}

// Pipeline returns the configuration of the pipeline
func (c *Config) Pipeline() (pipeline.Config, error) {
	policy, err := angles.ParsePolicy(c.ViewPolicy)
	if err != nil {
		return pipeline.Config{}, err
	}
	if _, err := angles.NewReducer(policy, angles.BandID(c.ViewBand)); err != nil {
		return pipeline.Config{}, err
	}
	edge, err := raster.ParseEdgePolicy(c.GridEdge)
	if err != nil {
		return pipeline.Config{}, err
	}
	format, err := raster.ParseOutputFormat(c.OutputFormat)
	if err != nil {
		return pipeline.Config{}, err
	}
	if c.Workers < 1 {
		return pipeline.Config{}, angles.NewConfigurationError("workers must be at least 1, got %d", c.Workers)
	}
	if c.Timeout < 0 {
		return pipeline.Config{}, angles.NewConfigurationError("timeout must be positive, got %s", c.Timeout)
	}
	if c.StorageMaxTries < 1 {
		return pipeline.Config{}, angles.NewConfigurationError("storage max tries must be at least 1, got %d", c.StorageMaxTries)
	}
	if c.StorageRetryDelay < 0 {
		return pipeline.Config{}, angles.NewConfigurationError("storage retry delay must be positive, got %s", c.StorageRetryDelay)
	}
	return pipeline.Config{
		Policy:  policy,
		Band:    angles.BandID(c.ViewBand),
		Edge:    edge,
		Format:  format,
		COG:     c.COG,
		Workers: c.Workers,
		WorkDir: c.WorkDir,
		Timeout: c.Timeout,

		StorageTries:      c.StorageMaxTries,
		StorageRetryDelay: c.StorageRetryDelay,
		StorageClass:      c.StorageClass,
	}, nil
}

func (c *Config) String() string {
	return fmt.Sprintf("policy=%s band=%d edge=%d format=%s cog=%t workers=%d timeout=%s",
		c.ViewPolicy, c.ViewBand, c.GridEdge, c.OutputFormat, c.COG, c.Workers, c.Timeout)
}

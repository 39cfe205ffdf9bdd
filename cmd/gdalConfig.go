package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/airbusgeo/godal"
)

type GDALConfig struct {
	// CacheMax is the size of the raster block cache, in MB. GDAL default if 0
	CacheMax int `env:"CACHEMAX" envDefault:"0"`
	// NumThreads used by the warper and the compression. GDAL default if empty
	NumThreads string `env:"NUM_THREADS" envDefault:"ALL_CPUS"`
}

// Validate checks the values of the configuration
func (c GDALConfig) Validate() error {
	if c.CacheMax < 0 {
		return fmt.Errorf("gdal cache size must be positive, got %d", c.CacheMax)
	}
	if c.NumThreads != "" && c.NumThreads != "ALL_CPUS" {
		if n, err := strconv.Atoi(c.NumThreads); err != nil || n <= 0 {
			return fmt.Errorf("gdal number of threads must be ALL_CPUS or a positive integer, got %q", c.NumThreads)
		}
	}
	return nil
}

// InitGDAL configures and registers the GDAL drivers. To be called once, before any raster is opened
func InitGDAL(gdalConfig GDALConfig) error {
	if err := gdalConfig.Validate(); err != nil {
		return err
	}
	os.Setenv("GDAL_DISABLE_READDIR_ON_OPEN", "EMPTY_DIR")
	if gdalConfig.CacheMax > 0 {
		os.Setenv("GDAL_CACHEMAX", strconv.Itoa(gdalConfig.CacheMax))
	}
	if gdalConfig.NumThreads != "" {
		os.Setenv("GDAL_NUM_THREADS", gdalConfig.NumThreads)
	}

	godal.RegisterAll()
	return nil
}

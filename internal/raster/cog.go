package raster

import (
	"fmt"
	"io"
	"os"

	"github.com/airbusgeo/cogger"
	"github.com/airbusgeo/godal"
	"github.com/google/tiff"
)

// overviewsMinSize is the size under which no more overview is built
const overviewsMinSize = 256

// rewriteCOG builds the overviews of the GTiff src and rewrites it as a Cloud Optimized GeoTIFF in dest
func rewriteCOG(src, dest string) error {
	ds, err := godal.Open(src, godal.Update(), ErrLogger)
	if err != nil {
		return fmt.Errorf("rewriteCOG.Open: %w", err)
	}
	if err := ds.BuildOverviews(godal.Resampling(godal.Average), godal.MinSize(overviewsMinSize)); err != nil {
		ds.Close()
		return fmt.Errorf("failed to build overviews: %w", err)
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("failed to close tiff file: %w", err)
	}

	file, fdesc, err := openDatasetTiffs(src)
	if err != nil {
		return fmt.Errorf("failed to open dataset tiffs: %w", err)
	}
	defer fdesc.Close()

	cogFile, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to rewrite cog: %w", err)
	}
	if err := cogger.Rewrite(cogFile, file); err != nil {
		cogFile.Close()
		return fmt.Errorf("failed to rewrite cog: %w", err)
	}
	return cogFile.Close()
}

func openDatasetTiffs(datasetFileName string) (tiff.ReadAtReadSeeker, io.Closer, error) {
	fd, err := godal.VSIOpen(datasetFileName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return tiff.NewReadAtReadSeeker(fd), fd, nil
}

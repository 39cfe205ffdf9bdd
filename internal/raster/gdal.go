package raster

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/s2angles/internal/utils"
)

// ErrLogger turns GDAL errors into go errors and ignores the warnings
var ErrLogger = godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
	if ec <= godal.CE_Warning {
		return nil
	}
	return fmt.Errorf("GDAL %d: %s", code, msg)
})

// UnlinkDataset closes and unlinks dataset whether it's a /vsimem or physical uri
func UnlinkDataset(dataset *godal.Dataset, uri string) error {
	if dataset != nil {
		if err := dataset.Close(); err != nil {
			return err
		}
	}
	if uri == "" {
		return nil
	}
	return godal.VSIUnlink(uri)
}

func toS(f float64) string {
	return utils.F64ToS(f)
}

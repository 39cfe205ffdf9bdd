// Package product locates the files of a Sentinel-2 product on disk
package product

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/airbusgeo/s2angles/internal/angles"
)

// FindFiles walks root and returns the files whose base name matches, sorted lexicographically
func FindFiles(root string, match func(name string) bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && match(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// IsReferenceBand returns true if name is the file of the red band (B04 at 10m):
// *B04*.jp2, *B04*.tif(f) or *band4*.tif(f), case insensitive
func IsReferenceBand(name string) bool {
	lname := strings.ToLower(name)
	switch filepath.Ext(lname) {
	case ".jp2":
		return strings.Contains(lname, "b04")
	case ".tif", ".tiff":
		return strings.Contains(lname, "b04") || strings.Contains(lname, "band4")
	}
	return false
}

// FindReference returns the first reference band file found under root.
// It returns a MissingInputError if there is none.
func FindReference(root string) (string, error) {
	files, err := FindFiles(root, IsReferenceBand)
	if err != nil {
		return "", angles.NewMissingInputError(root, "cannot search the reference band: %v", err)
	}
	if len(files) == 0 {
		return "", angles.NewMissingInputError(root, "missing reference band (B04, red)")
	}
	return files[0], nil
}

// globFirst returns the first file (sorted) matching pattern, or "" if none
func globFirst(pattern string) string {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return ""
	}
	sort.Strings(matches)
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && !fi.IsDir() {
			return m
		}
	}
	return ""
}

// Package archive extracts zipped Sentinel-2 products
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/airbusgeo/s2angles/internal/log"
	"go.uber.org/zap"
)

// macOSMetadata is the folder of resource forks added by the macOS archiver
const macOSMetadata = "__MACOSX"

// Extract extracts the zip archive into dest and returns the path of its root folder:
// the first path segment of the first entry of the archive (usually the .SAFE folder),
// or dest if the first entry is a file at the top level.
// Any error is an ArchiveError.
func Extract(ctx context.Context, zipPath, dest string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", angles.NewArchiveError(zipPath, "cannot open archive: %v", err)
	}
	defer r.Close()

	root, err := rootOf(r.File)
	if err != nil {
		return "", angles.NewArchiveError(zipPath, "%v", err)
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", angles.NewArchiveError(zipPath, "cannot create destination: %v", err)
	}
	cleanDest := filepath.Clean(dest) + string(os.PathSeparator)

	n := 0
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if isMacOSMetadata(f.Name) {
			continue
		}
		fpath := filepath.Join(dest, f.Name)
		// ZipSlip
		if !strings.HasPrefix(fpath, cleanDest) {
			return "", angles.NewArchiveError(zipPath, "illegal file path: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, 0755); err != nil {
				return "", angles.NewArchiveError(zipPath, "%v", err)
			}
			continue
		}
		if err := extractFile(f, fpath); err != nil {
			return "", angles.NewArchiveError(zipPath, "%s: %v", f.Name, err)
		}
		n++
	}
	log.Logger(ctx).Debug("archive extracted", zap.String("archive", zipPath), zap.Int("files", n), zap.String("root", root))

	if root == "" {
		return dest, nil
	}
	return filepath.Join(dest, root), nil
}

// rootOf returns the top-level folder of the first entry, or "" if it is a file
func rootOf(files []*zip.File) (string, error) {
	for _, f := range files {
		if isMacOSMetadata(f.Name) {
			continue
		}
		name := strings.TrimPrefix(filepath.ToSlash(f.Name), "./")
		i := strings.Index(name, "/")
		if i < 0 {
			return "", nil
		}
		if i == 0 || name[:i] == ".." {
			return "", fmt.Errorf("illegal file path: %s", f.Name)
		}
		return name[:i], nil
	}
	return "", fmt.Errorf("empty archive")
}

func isMacOSMetadata(name string) bool {
	return strings.HasPrefix(name, macOSMetadata)
}

func extractFile(f *zip.File, fpath string) error {
	if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	outFile, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(outFile, rc); err != nil {
		outFile.Close()
		return err
	}
	return outFile.Close()
}

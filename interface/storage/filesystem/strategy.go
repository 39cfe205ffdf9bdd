package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/s2angles/interface/storage"
)

type fileSystemStrategy struct {
}

func NewFileSystemStrategy(ctx context.Context) (storage.Strategy, error) {
	return fileSystemStrategy{}, nil
}

func formatError(err error) error {
	var epath *os.PathError
	if errors.As(err, &epath) && os.IsNotExist(epath) {
		return storage.ErrFileNotFound
	}
	return err
}

func localPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

// copyFile copies source to destination through a temporary file, so that destination is never partially written
func copyFile(ctx context.Context, source, destination string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sourceFile, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", formatError(err))
	}
	defer sourceFile.Close()

	if err := os.MkdirAll(filepath.Dir(destination), os.ModePerm); err != nil {
		return err
	}

	tmp := destination + ".part"
	destFile, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	if _, err = io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		os.Remove(tmp)
		return err
	}
	if err = destFile.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err = os.Rename(tmp, destination); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (s fileSystemStrategy) DownloadToFile(ctx context.Context, source, destination string, options ...storage.Option) error {
	return copyFile(ctx, localPath(source), localPath(destination))
}

func (s fileSystemStrategy) UploadFile(ctx context.Context, uri string, source string, options ...storage.Option) error {
	dest := localPath(uri)
	if filepath.Clean(dest) == filepath.Clean(source) {
		return nil
	}
	return copyFile(ctx, source, dest)
}

func (s fileSystemStrategy) Delete(ctx context.Context, uri string, options ...storage.Option) error {
	opts := storage.Apply(options...)

	if err := os.Remove(localPath(uri)); err != nil {
		if !opts.IgnoreNotFound || !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove file: %w", formatError(err))
		}
	}

	return nil
}

func (s fileSystemStrategy) Exist(ctx context.Context, uri string) (bool, error) {
	if _, err := os.Stat(localPath(uri)); err != nil {
		if os.IsNotExist(err) {
			return false, storage.ErrFileNotFound
		}
		return false, err
	}
	return true, nil
}

func (s fileSystemStrategy) GetAttrs(ctx context.Context, uri string) (storage.Attrs, error) {
	f, err := os.Open(localPath(uri))
	if err != nil {
		return storage.Attrs{}, fmt.Errorf("failed to open file: %w", formatError(err))
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return storage.Attrs{}, err
	}

	// Only the first 512 bytes are used to sniff the content type.
	buffer := make([]byte, 512)
	b, err := f.Read(buffer)
	if err != nil && err != io.EOF {
		return storage.Attrs{}, err
	}

	// Always returns a valid content-type and "application/octet-stream"
	// if no others seemed to match.
	return storage.Attrs{
		ContentType:  http.DetectContentType(buffer[:b]),
		StorageClass: "filesystem",
		Size:         fi.Size(),
	}, nil
}

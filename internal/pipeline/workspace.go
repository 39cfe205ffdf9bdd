package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/s2angles/interface/storage"
	"github.com/airbusgeo/s2angles/interface/storage/uri"
	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/airbusgeo/s2angles/internal/log"
	"github.com/google/uuid"
)

const workspacePrefix = "s2angles-"

// workspace is the temporary folder owned by a run
type workspace struct {
	root string
}

func newWorkspace(workDir string) (*workspace, error) {
	root := filepath.Join(workDir, workspacePrefix+uuid.New().String())
	if err := os.MkdirAll(root, 0777); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &workspace{root: root}, nil
}

func (w *workspace) path(name string) string {
	return filepath.Join(w.root, name)
}

func (w *workspace) mkdir(name string) (string, error) {
	dir := w.path(name)
	if err := os.MkdirAll(dir, 0777); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return dir, nil
}

// clean removes the workspace. Failures are logged only.
func (w *workspace) clean(ctx context.Context) {
	if err := os.RemoveAll(w.root); err != nil {
		log.Logger(ctx).Sugar().Errorf("failed to clean workspace %s: %s", w.root, err.Error())
		return
	}
	log.Logger(ctx).Sugar().Debugf("workspace %s cleaned", w.root)
}

// fetch downloads a remote input into the workspace and returns its local path.
// Local inputs are returned unchanged.
func (w *workspace) fetch(ctx context.Context, input string, opts ...storage.Option) (string, error) {
	inputURI, err := uri.ParseUri(input)
	if err != nil {
		return "", angles.NewConfigurationError("invalid input %q: %v", input, err)
	}
	if inputURI.IsLocal() {
		return inputURI.String(), nil
	}
	if !strings.HasSuffix(strings.ToLower(inputURI.FileName()), ".zip") {
		return "", angles.NewConfigurationError("unsupported remote input %s: only .zip archives can be downloaded", input)
	}
	strategy, err := inputURI.NewStorageStrategy(ctx)
	if err != nil {
		return "", angles.NewConfigurationError("%v", err)
	}
	local := w.path(inputURI.FileName())
	if err := download(ctx, strategy, input, local, opts...); err != nil {
		return "", err
	}
	return local, nil
}

// download copies the archive at input to local, after checking that it exists and is not empty
func download(ctx context.Context, strategy storage.Strategy, input, local string, opts ...storage.Option) error {
	attrs, err := strategy.GetAttrs(ctx, input)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return angles.NewMissingInputError(input, "archive not found")
		}
		return angles.NewArchiveError(input, "cannot read the attributes: %v", err)
	}
	if attrs.Size == 0 {
		return angles.NewArchiveError(input, "empty archive")
	}
	log.Logger(ctx).Sugar().Infof("downloading %s (%d bytes, %s)", input, attrs.Size, attrs.ContentType)
	if err := strategy.DownloadToFile(ctx, input, local, opts...); err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return angles.NewMissingInputError(input, "archive not found")
		}
		return angles.NewArchiveError(input, "download failed: %v", err)
	}
	return nil
}

// parentOf returns the folder of a local path or a storage uri
func parentOf(input string) string {
	if !strings.Contains(input, "://") {
		return filepath.Dir(input)
	}
	return input[:strings.LastIndex(strings.TrimSuffix(input, "/"), "/")]
}

package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	s2storage "github.com/airbusgeo/s2angles/interface/storage"
	"github.com/airbusgeo/s2angles/internal/utils"
	"google.golang.org/api/option"
)

// gsStrategy reads the product archives from and writes the angle rasters to Google Cloud Storage.
// Transient failures are retried by the strategy only: the retries of the client are disabled.
type gsStrategy struct {
	client *storage.Client
}

// transientMessages are the messages of the errors of the http and oauth2 transports
// that do not carry their temporary status
var transientMessages = []string{
	"cannot assign requested address",
	"connection refused",
	"connection reset",
	"broken pipe",
	"client connection lost",
	"client connection force closed",
	"502 Bad Gateway",
	"unexpected EOF",
}

// classify marks the transient errors of the transports as temporary
func classify(err error) error {
	if err == nil || utils.Temporary(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := err.Error()
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return utils.MakeTemporary(err)
		}
	}
	return err
}

func temporary(err error) bool {
	return utils.Temporary(classify(err))
}

// NewGsStrategy creates a strategy on a new client.
// opts are passed to the client (endpoint, credentials...)
func NewGsStrategy(ctx context.Context, opts ...option.ClientOption) (s2storage.Strategy, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gs client: %w", err)
	}
	client.SetRetry(storage.WithPolicy(storage.RetryNever))
	return gsStrategy{client: client}, nil
}

func (s gsStrategy) object(uri string) (*storage.ObjectHandle, error) {
	bucket, object, err := Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to decode URI %s: %w", uri, err)
	}
	return s.client.Bucket(bucket).Object(object), nil
}

// DownloadToFile downloads the object at source. An interrupted download restarts where it stopped.
func (s gsStrategy) DownloadToFile(ctx context.Context, source, destination string, options ...s2storage.Option) error {
	obj, err := s.object(source)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0777); err != nil {
		return err
	}
	f, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destination, err)
	}

	var offset int64
	err = s2storage.Apply(options...).Retry(ctx, "download "+source, temporary, func() error {
		r, err := obj.NewRangeReader(ctx, offset, -1)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return s2storage.ErrFileNotFound
		}
		if err != nil {
			return fmt.Errorf("newreader: %w", classify(err))
		}
		defer r.Close()
		n, err := io.Copy(f, r)
		offset += n
		if err != nil {
			return fmt.Errorf("copy: %w", classify(err))
		}
		return nil
	})
	if err != nil {
		f.Close()
		os.Remove(destination)
		return err
	}
	return f.Close()
}

// UploadFile uploads source to uri. The upload restarts from the beginning on a transient failure.
func (s gsStrategy) UploadFile(ctx context.Context, uri string, source string, options ...s2storage.Option) error {
	obj, err := s.object(uri)
	if err != nil {
		return err
	}
	f, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("UploadFile: %w", err)
	}
	defer f.Close()

	op := s2storage.Apply(options...)
	return op.Retry(ctx, "upload "+uri, temporary, func() error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("seek: %w", err)
		}
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()
		w := obj.NewWriter(wctx)
		w.StorageClass = op.StorageClass
		w.ContentType = op.ContentType
		if _, err := io.Copy(w, f); err != nil {
			// cancelling the context aborts the upload
			cancel()
			w.Close()
			return fmt.Errorf("copy: %w", classify(err))
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("close: %w", classify(err))
		}
		return nil
	})
}

func (s gsStrategy) Delete(ctx context.Context, uri string, options ...s2storage.Option) error {
	obj, err := s.object(uri)
	if err != nil {
		return err
	}
	op := s2storage.Apply(options...)
	return op.Retry(ctx, "delete "+uri, temporary, func() error {
		err := obj.Delete(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, storage.ErrObjectNotExist):
			if op.IgnoreNotFound {
				return nil
			}
			return s2storage.ErrFileNotFound
		}
		return fmt.Errorf("delete: %w", classify(err))
	})
}

func (s gsStrategy) Exist(ctx context.Context, uri string) (bool, error) {
	if _, err := s.GetAttrs(ctx, uri); err != nil {
		return false, err
	}
	return true, nil
}

func (s gsStrategy) GetAttrs(ctx context.Context, uri string) (s2storage.Attrs, error) {
	obj, err := s.object(uri)
	if err != nil {
		return s2storage.Attrs{}, err
	}
	var attrs *storage.ObjectAttrs
	err = s2storage.Apply().Retry(ctx, "attrs "+uri, temporary, func() error {
		var err error
		attrs, err = obj.Attrs(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, storage.ErrObjectNotExist):
			return s2storage.ErrFileNotFound
		case errors.Is(err, storage.ErrBucketNotExist):
			return fmt.Errorf("bucket not found: %w", err)
		}
		return fmt.Errorf("attrs: %w", classify(err))
	})
	if err != nil {
		return s2storage.Attrs{}, err
	}
	return s2storage.Attrs{
		StorageClass: attrs.StorageClass,
		ContentType:  attrs.ContentType,
		Size:         attrs.Size,
	}, nil
}

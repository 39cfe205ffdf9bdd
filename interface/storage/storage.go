package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrFileNotFound = errors.New("file not found")
)

// Strategy transfers files between the local filesystem and a storage location
type Strategy interface {
	DownloadToFile(ctx context.Context, source string, destination string, options ...Option) error
	UploadFile(ctx context.Context, uri string, source string, options ...Option) error
	Delete(ctx context.Context, uri string, options ...Option) error
	Exist(ctx context.Context, uri string) (bool, error)
	GetAttrs(ctx context.Context, uri string) (Attrs, error)
}

type Option func(o *option)

type option struct {
	MaxTries       int
	Delay          time.Duration
	StorageClass   string
	ContentType    string
	IgnoreNotFound bool
}

type Attrs struct {
	ContentType  string
	StorageClass string
	Size         int64
}

func MaxTries(n int) Option {
	if n <= 0 {
		n = 1
	}
	return func(o *option) {
		o.MaxTries = n
	}
}

func OnErrorRetryDelay(d time.Duration) Option {
	if d < 0 {
		d = 0
	}
	return func(o *option) {
		o.Delay = d
	}
}

func StorageClass(cl string) Option {
	return func(o *option) {
		o.StorageClass = cl
	}
}

func ContentType(ct string) Option {
	return func(o *option) {
		o.ContentType = ct
	}
}

// IgnoreNotFound makes Delete succeed when the file does not exist
func IgnoreNotFound() Option {
	return func(o *option) {
		o.IgnoreNotFound = true
	}
}

func Apply(opts ...Option) option {
	opt := option{
		MaxTries: 10,
		Delay:    time.Second,
	}
	for _, o := range opts {
		o(&opt)
	}
	return opt
}

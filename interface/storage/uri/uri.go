package uri

import (
	"context"
	"fmt"
	pathPkg "path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/airbusgeo/s2angles/interface/storage"
	"github.com/airbusgeo/s2angles/interface/storage/filesystem"
	"github.com/airbusgeo/s2angles/interface/storage/gcs"
	"github.com/airbusgeo/s2angles/internal/utils"
)

var (
	BadUriErr = fmt.Errorf("badly formatted storage uri")
	uriRegex  = regexp.MustCompile("^(?P<Protocol>.+)://(?P<BucketName>.+?)(/(?P<Path>(?:.*/)*(?P<FileName>.*)))?$")
)

// ParseUri parse a storage uri (e.g. gs://bucket-name/path/to/file) or a local path
func ParseUri(rawURI string) (DefaultUri, error) {
	if rawURI == "" {
		return DefaultUri{}, BadUriErr
	}
	if !strings.Contains(rawURI, "://") {
		//local path
		return DefaultUri{
			path:     rawURI,
			fileName: filepath.Base(rawURI),
		}, nil
	}
	matches, err := utils.FindRegexGroups(uriRegex, rawURI)
	if err != nil {
		return DefaultUri{}, BadUriErr
	}

	protocol := matches["Protocol"]
	bucket := matches["BucketName"]
	path := matches["Path"]
	fileName := matches["FileName"]

	if protocol == "file" {
		// file:///path/to/file
		return DefaultUri{
			protocol: protocol,
			path:     "/" + strings.TrimPrefix(pathPkg.Join(bucket, path), "/"),
			fileName: fileName,
		}, nil
	}
	return DefaultUri{
		protocol: protocol,
		bucket:   bucket,
		path:     path,
		fileName: fileName,
	}, nil
}

type DefaultUri struct {
	protocol string
	bucket   string
	path     string
	fileName string
}

func (u DefaultUri) Protocol() string {
	return u.protocol
}

func (u DefaultUri) Bucket() string {
	return u.bucket
}

func (u DefaultUri) Path() string {
	return u.path
}

func (u DefaultUri) FileName() string {
	return u.fileName
}

// IsLocal returns true if the uri is a path of the local filesystem
func (u DefaultUri) IsLocal() bool {
	return u.protocol == "" || u.protocol == "file"
}

// Join returns the uri of the file name in the folder u
func (u DefaultUri) Join(name string) DefaultUri {
	res := u
	if u.IsLocal() {
		res.path = filepath.Join(u.path, name)
	} else {
		res.path = pathPkg.Join(u.path, name)
	}
	res.fileName = pathPkg.Base(name)
	return res
}

func (u DefaultUri) String() string {
	if u.IsLocal() {
		return u.path
	}
	return fmt.Sprintf("%s://%s/%s", u.protocol, u.bucket, u.path)
}

// NewStorageStrategy returns the strategy handling the protocol of the uri
func (u DefaultUri) NewStorageStrategy(ctx context.Context) (storage.Strategy, error) {
	switch strings.ToLower(u.protocol) {
	case "gs":
		return gcs.NewGsStrategy(ctx)
	case "file", "":
		return filesystem.NewFileSystemStrategy(ctx)
	default:
		return nil, fmt.Errorf("failed to determine storage strategy: unsupported protocol %s", u.protocol)
	}
}

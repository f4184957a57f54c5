package rastreader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
)

// Object is an opened raster or layer document.
type Object interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// Store resolves names relative to a storage root.
type Store interface {
	Open(ctx context.Context, name string) (Object, error)
}

// OpenStore returns the store for basePath: a GCS bucket for "gs://bucket/prefix"
// paths, the local filesystem otherwise.
func OpenStore(ctx context.Context, basePath string, opts ...option.ClientOption) (Store, error) {
	if !strings.HasPrefix(basePath, "gs://") {
		return FileStore{Root: basePath}, nil
	}

	bucket, prefix, _ := strings.Cut(strings.TrimPrefix(basePath, "gs://"), "/")
	if bucket == "" {
		return nil, eris.Wrapf(ErrConfiguration, "base path %q: missing bucket name", basePath)
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrapf(ErrIO, "creating storage client: %v", err)
	}
	return &BucketStore{client: client, bucket: client.Bucket(bucket), prefix: prefix}, nil
}

// FileStore reads from a directory of the local filesystem.
type FileStore struct {
	Root string
}

type fileObject struct {
	*os.File
	size int64
}

func (f fileObject) Size() int64 { return f.size }

// Open opens name under the store root.
func (s FileStore) Open(_ context.Context, name string) (Object, error) {
	p := filepath.Join(s.Root, filepath.FromSlash(name))

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrapf(ErrDatasetNotFound, "%s", p)
		}
		return nil, eris.Wrapf(ErrIO, "opening %s: %v", p, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, eris.Wrapf(ErrIO, "stat %s: %v", p, err)
	}
	if fi.IsDir() {
		f.Close()
		return nil, eris.Wrapf(ErrDatasetNotFound, "%s is a directory", p)
	}

	return fileObject{File: f, size: fi.Size()}, nil
}

// BucketStore reads whole objects from a Google Cloud Storage bucket.
type BucketStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

type memObject struct {
	*bytes.Reader
}

func (memObject) Close() error { return nil }

// Open downloads the object name below the store prefix.
func (s *BucketStore) Open(ctx context.Context, name string) (Object, error) {
	objName := path.Join(s.prefix, name)

	r, err := s.bucket.Object(objName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, eris.Wrapf(ErrDatasetNotFound, "object %s", objName)
		}
		return nil, eris.Wrapf(ErrIO, "creating object reader: %s: %v", objName, err)
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return nil, eris.Wrapf(ErrIO, "reading from object: %s: %v", objName, err)
	}

	return memObject{bytes.NewReader(data)}, nil
}

// Close releases the storage client.
func (s *BucketStore) Close() error {
	return s.client.Close()
}

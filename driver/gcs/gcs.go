// Package gcs provides the cloudfs backend for Google Cloud Storage. The
// first path segment names the bucket.
package gcs

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/gobeaver/cloudfs"
)

// BackendID is the registry id of this backend
const BackendID = "gcs"

// ErrNoProject is returned for operations on the bucket list when no
// project is configured.
var ErrNoProject = errors.New("gcs project id is required to list or create buckets")

// Adapter provides a Google Cloud Storage implementation of cloudfs.Backend
type Adapter struct {
	client    *storage.Client
	projectID string

	// buckets already known to exist
	buckets sync.Map
}

// AdapterOption is a function that configures GCS Adapter
type AdapterOption func(*Adapter)

// WithProject sets the project used to list buckets at "/" and to create
// missing buckets on write
func WithProject(projectID string) AdapterOption {
	return func(a *Adapter) {
		a.projectID = projectID
	}
}

var _ cloudfs.Backend = (*Adapter)(nil)

// New creates a new GCS backend
func New(client *storage.Client, options ...AdapterOption) *Adapter {
	adapter := &Adapter{
		client: client,
	}

	// Apply options
	for _, option := range options {
		option(adapter)
	}

	return adapter
}

// List implements cloudfs.Backend
func (a *Adapter) List(ctx context.Context, dir string) iter.Seq2[cloudfs.FsNode, error] {
	return func(yield func(cloudfs.FsNode, error) bool) {
		bucket, prefix := splitPath(dir)
		if bucket == "" {
			a.listBuckets(ctx, yield)
			return
		}
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}

		it := a.client.Bucket(bucket).Objects(ctx, &storage.Query{
			Prefix:    prefix,
			Delimiter: "/",
		})
		for {
			attrs, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield(cloudfs.FsNode{}, mapGCSError("list", dir, err))
				return
			}

			var node cloudfs.FsNode
			if attrs.Prefix != "" {
				node.IsDir = true
				node.Name = strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, prefix), "/")
			} else {
				node.Name = strings.TrimPrefix(attrs.Name, prefix)
				node.ContentType = attrs.ContentType
				node.ContentLength = cloudfs.Int64(attrs.Size)
			}
			// Skip the directory placeholder itself
			if node.Name == "" || strings.Contains(node.Name, "/") {
				continue
			}
			if !yield(node, nil) {
				return
			}
		}
	}
}

func (a *Adapter) listBuckets(ctx context.Context, yield func(cloudfs.FsNode, error) bool) {
	if a.projectID == "" {
		yield(cloudfs.FsNode{}, cloudfs.NewPathError("list", "/", ErrNoProject))
		return
	}
	it := a.client.Buckets(ctx, a.projectID)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return
		}
		if err != nil {
			yield(cloudfs.FsNode{}, mapGCSError("list", "/", err))
			return
		}
		if !yield(cloudfs.FsNode{IsDir: true, Name: attrs.Name}, nil) {
			return
		}
	}
}

// Exists implements cloudfs.Backend
func (a *Adapter) Exists(ctx context.Context, filePath string) (bool, error) {
	bucket, key := splitPath(filePath)
	switch {
	case bucket == "":
		return true, nil
	case key == "":
		return a.bucketExists(ctx, bucket)
	case strings.HasSuffix(key, "/"):
		it := a.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: key})
		_, err := it.Next()
		if errors.Is(err, iterator.Done) || isNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, mapGCSError("exists", filePath, err)
		}
		return true, nil
	}

	_, err := a.client.Bucket(bucket).Object(key).Attrs(ctx)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, mapGCSError("exists", filePath, err)
	}
	return true, nil
}

// OpenRead implements cloudfs.Backend
func (a *Adapter) OpenRead(ctx context.Context, filePath string) (*cloudfs.ReadResponse, error) {
	bucket, key := splitPath(filePath)
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return nil, cloudfs.NewPathError("open", filePath, cloudfs.ErrInvalidPath)
	}

	r, err := a.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, mapGCSError("open", filePath, err)
	}

	return &cloudfs.ReadResponse{
		Stream:        r,
		ContentType:   r.Attrs.ContentType,
		ContentLength: cloudfs.Int64(r.Attrs.Size),
	}, nil
}

// WriteFrom implements cloudfs.Backend. A failed copy cancels the upload so
// no partial object is committed.
func (a *Adapter) WriteFrom(ctx context.Context, filePath string, in *cloudfs.ReadResponse) error {
	bucket, key := splitPath(filePath)
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return cloudfs.NewPathError("write", filePath, cloudfs.ErrInvalidPath)
	}

	if err := a.ensureBucket(ctx, bucket); err != nil {
		return err
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := a.client.Bucket(bucket).Object(key).NewWriter(wctx)
	w.ContentType = in.ContentType

	if _, err := io.Copy(w, in.Stream); err != nil {
		cancel()
		_ = w.Close()
		return mapGCSError("write", filePath, err)
	}
	if err := w.Close(); err != nil {
		return mapGCSError("write", filePath, err)
	}
	return nil
}

func (a *Adapter) bucketExists(ctx context.Context, bucket string) (bool, error) {
	if _, ok := a.buckets.Load(bucket); ok {
		return true, nil
	}
	_, err := a.client.Bucket(bucket).Attrs(ctx)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, mapGCSError("exists", "/"+bucket, err)
	}
	a.buckets.Store(bucket, struct{}{})
	return true, nil
}

func (a *Adapter) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := a.bucketExists(ctx, bucket)
	if err != nil || exists {
		return err
	}
	if a.projectID == "" {
		return cloudfs.NewPathError("create-bucket", "/"+bucket, ErrNoProject)
	}
	if err := a.client.Bucket(bucket).Create(ctx, a.projectID, nil); err != nil {
		return mapGCSError("create-bucket", "/"+bucket, err)
	}
	a.buckets.Store(bucket, struct{}{})
	return nil
}

// splitPath turns "/bucket/a/b" into ("bucket", "a/b").
func splitPath(p string) (bucket, key string) {
	p = strings.TrimPrefix(p, "/")
	bucket, key, _ = strings.Cut(p, "/")
	return bucket, key
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist)
}

// mapGCSError maps GCS errors to cloudfs errors
func mapGCSError(op, path string, err error) error {
	if isNotFound(err) {
		return cloudfs.NewPathError(op, path, cloudfs.ErrNotExist)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &cloudfs.BackendError{Backend: BackendID, Op: op, Path: path, Err: err}
}

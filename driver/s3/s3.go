// Package s3 provides the cloudfs backend for Amazon S3 and S3-compatible
// stores. The first path segment names the bucket: "/" lists buckets and
// "/bucket/a/b.txt" is object "a/b.txt" in "bucket".
package s3

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/gobeaver/cloudfs"
)

// BackendID is the registry id of this backend
const BackendID = "aws"

// Client is the subset of *s3.Client the adapter calls.
type Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Adapter provides an S3 implementation of cloudfs.Backend
type Adapter struct {
	client   Client
	uploader *manager.Uploader
	region   string

	// buckets already known to exist
	buckets sync.Map
}

// AdapterOption is a function that configures Adapter
type AdapterOption func(*Adapter)

// WithRegion sets the location constraint used when a bucket has to be
// created on write
func WithRegion(region string) AdapterOption {
	return func(a *Adapter) {
		a.region = region
	}
}

// WithPartSize sets the multipart upload part size
func WithPartSize(size int64) AdapterOption {
	return func(a *Adapter) {
		a.uploader.PartSize = size
	}
}

var _ cloudfs.Backend = (*Adapter)(nil)

// New creates a new S3 backend
func New(client Client, options ...AdapterOption) *Adapter {
	adapter := &Adapter{
		client:   client,
		uploader: manager.NewUploader(client),
	}

	// Apply options
	for _, option := range options {
		option(adapter)
	}

	return adapter
}

// List implements cloudfs.Backend. The root lists buckets; below it, common
// prefixes are directories and objects are files.
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

		paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
			Bucket:    aws.String(bucket),
			Prefix:    aws.String(prefix),
			Delimiter: aws.String("/"),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(cloudfs.FsNode{}, mapS3Error("list", dir, err))
				return
			}

			for _, p := range page.CommonPrefixes {
				name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(p.Prefix), prefix), "/")
				if name == "" {
					continue
				}
				if !yield(cloudfs.FsNode{IsDir: true, Name: name}, nil) {
					return
				}
			}

			for _, obj := range page.Contents {
				name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
				// Skip the directory marker itself
				if name == "" || strings.Contains(name, "/") {
					continue
				}
				node := cloudfs.FsNode{
					Name:        name,
					ContentType: cloudfs.DetectContentType(name),
				}
				if obj.Size != nil {
					node.ContentLength = cloudfs.Int64(*obj.Size)
				}
				if !yield(node, nil) {
					return
				}
			}
		}
	}
}

func (a *Adapter) listBuckets(ctx context.Context, yield func(cloudfs.FsNode, error) bool) {
	resp, err := a.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		yield(cloudfs.FsNode{}, mapS3Error("list", "/", err))
		return
	}
	for _, b := range resp.Buckets {
		if !yield(cloudfs.FsNode{IsDir: true, Name: aws.ToString(b.Name)}, nil) {
			return
		}
	}
}

// Exists implements cloudfs.Backend. A bucket path checks the bucket and a
// path ending in "/" checks for any object under that prefix.
func (a *Adapter) Exists(ctx context.Context, filePath string) (bool, error) {
	bucket, key := splitPath(filePath)
	switch {
	case bucket == "":
		return true, nil
	case key == "":
		return a.bucketExists(ctx, bucket)
	case strings.HasSuffix(key, "/"):
		resp, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(bucket),
			Prefix:  aws.String(key),
			MaxKeys: aws.Int32(1),
		})
		if err != nil {
			if isNotFound(err) {
				return false, nil
			}
			return false, mapS3Error("exists", filePath, err)
		}
		return len(resp.Contents) > 0, nil
	}

	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, mapS3Error("exists", filePath, err)
	}
	return true, nil
}

// OpenRead implements cloudfs.Backend
func (a *Adapter) OpenRead(ctx context.Context, filePath string) (*cloudfs.ReadResponse, error) {
	bucket, key := splitPath(filePath)
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return nil, cloudfs.NewPathError("open", filePath, cloudfs.ErrInvalidPath)
	}

	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapS3Error("open", filePath, err)
	}

	out := &cloudfs.ReadResponse{
		Stream:      resp.Body,
		ContentType: aws.ToString(resp.ContentType),
	}
	if resp.ContentLength != nil {
		out.ContentLength = cloudfs.Int64(*resp.ContentLength)
	}
	return out, nil
}

// WriteFrom implements cloudfs.Backend. The bucket is created when it does
// not exist yet; the body is streamed through the multipart upload manager
// so its length does not need to be known.
func (a *Adapter) WriteFrom(ctx context.Context, filePath string, in *cloudfs.ReadResponse) error {
	bucket, key := splitPath(filePath)
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return cloudfs.NewPathError("write", filePath, cloudfs.ErrInvalidPath)
	}

	if err := a.ensureBucket(ctx, bucket); err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   io.Reader(in.Stream),
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}

	if _, err := a.uploader.Upload(ctx, input); err != nil {
		return mapS3Error("write", filePath, err)
	}
	return nil
}

func (a *Adapter) bucketExists(ctx context.Context, bucket string) (bool, error) {
	if _, ok := a.buckets.Load(bucket); ok {
		return true, nil
	}
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, mapS3Error("exists", "/"+bucket, err)
	}
	a.buckets.Store(bucket, struct{}{})
	return true, nil
}

func (a *Adapter) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := a.bucketExists(ctx, bucket)
	if err != nil || exists {
		return err
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if a.region != "" && a.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(a.region),
		}
	}
	if _, err := a.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if !errors.As(err, &owned) {
			return mapS3Error("create-bucket", "/"+bucket, err)
		}
	}
	a.buckets.Store(bucket, struct{}{})
	return nil
}

// splitPath turns "/bucket/a/b" into ("bucket", "a/b"). A trailing "/" on
// the key is kept.
func splitPath(p string) (bucket, key string) {
	p = strings.TrimPrefix(p, "/")
	bucket, key, _ = strings.Cut(p, "/")
	return bucket, key
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nsb *types.NoSuchBucket
	var notFound *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nsb) || errors.As(err, &notFound)
}

// mapS3Error maps S3 errors to cloudfs errors
func mapS3Error(op, filePath string, err error) error {
	if isNotFound(err) {
		return cloudfs.NewPathError(op, filePath, cloudfs.ErrNotExist)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &cloudfs.BackendError{Backend: BackendID, Op: op, Path: filePath, Err: err}
}

// Package azure provides the cloudfs backend for Azure Blob Storage. The
// first path segment names the container: "/" lists containers and
// "/media/a/b.png" is blob "a/b.png" in container "media".
package azure

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/gobeaver/cloudfs"
)

// BackendID is the registry id of this backend
const BackendID = "az"

// directoryContentType marks zero-length directory placeholder blobs
const directoryContentType = "application/x-directory"

// Adapter provides an Azure Blob Storage implementation of cloudfs.Backend
type Adapter struct {
	client *azblob.Client

	// containers already known to exist
	containers sync.Map
}

var _ cloudfs.Backend = (*Adapter)(nil)

// New creates a new Azure Blob Storage backend
func New(client *azblob.Client) *Adapter {
	return &Adapter{client: client}
}

// List implements cloudfs.Backend. The root lists containers; below it the
// hierarchy pager turns blob prefixes into directories.
func (a *Adapter) List(ctx context.Context, dir string) iter.Seq2[cloudfs.FsNode, error] {
	return func(yield func(cloudfs.FsNode, error) bool) {
		containerName, prefix := splitPath(dir)
		if containerName == "" {
			a.listContainers(ctx, yield)
			return
		}
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}

		containerClient := a.client.ServiceClient().NewContainerClient(containerName)
		pager := containerClient.NewListBlobsHierarchyPager("/", &container.ListBlobsHierarchyOptions{
			Prefix: &prefix,
		})

		for pager.More() {
			resp, err := pager.NextPage(ctx)
			if err != nil {
				yield(cloudfs.FsNode{}, mapAzureError("list", dir, err))
				return
			}

			for _, p := range resp.Segment.BlobPrefixes {
				if p.Name == nil {
					continue
				}
				name := strings.TrimSuffix(strings.TrimPrefix(*p.Name, prefix), "/")
				if name == "" {
					continue
				}
				if !yield(cloudfs.FsNode{IsDir: true, Name: name}, nil) {
					return
				}
			}

			for _, item := range resp.Segment.BlobItems {
				if item.Name == nil {
					continue
				}
				name := strings.TrimPrefix(*item.Name, prefix)
				// Skip the directory itself
				if name == "" || strings.Contains(name, "/") {
					continue
				}
				node := cloudfs.FsNode{Name: name}
				if props := item.Properties; props != nil {
					if props.ContentType != nil && *props.ContentType == directoryContentType {
						node.IsDir = true
					} else {
						node.ContentType = derefString(props.ContentType)
						if props.ContentLength != nil {
							node.ContentLength = cloudfs.Int64(*props.ContentLength)
						}
					}
				}
				if !yield(node, nil) {
					return
				}
			}
		}
	}
}

func (a *Adapter) listContainers(ctx context.Context, yield func(cloudfs.FsNode, error) bool) {
	pager := a.client.NewListContainersPager(nil)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			yield(cloudfs.FsNode{}, mapAzureError("list", "/", err))
			return
		}
		for _, c := range resp.ContainerItems {
			if c.Name == nil {
				continue
			}
			if !yield(cloudfs.FsNode{IsDir: true, Name: *c.Name}, nil) {
				return
			}
		}
	}
}

// Exists implements cloudfs.Backend
func (a *Adapter) Exists(ctx context.Context, filePath string) (bool, error) {
	containerName, blobName := splitPath(filePath)
	if containerName == "" {
		return true, nil
	}

	containerClient := a.client.ServiceClient().NewContainerClient(containerName)
	if blobName == "" {
		if _, ok := a.containers.Load(containerName); ok {
			return true, nil
		}
		_, err := containerClient.GetProperties(ctx, nil)
		if err != nil {
			if isNotFound(err) {
				return false, nil
			}
			return false, mapAzureError("exists", filePath, err)
		}
		a.containers.Store(containerName, struct{}{})
		return true, nil
	}

	_, err := containerClient.NewBlobClient(strings.TrimSuffix(blobName, "/")).GetProperties(ctx, nil)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, mapAzureError("exists", filePath, err)
	}
	return true, nil
}

// OpenRead implements cloudfs.Backend
func (a *Adapter) OpenRead(ctx context.Context, filePath string) (*cloudfs.ReadResponse, error) {
	containerName, blobName := splitPath(filePath)
	if containerName == "" || blobName == "" || strings.HasSuffix(blobName, "/") {
		return nil, cloudfs.NewPathError("open", filePath, cloudfs.ErrInvalidPath)
	}

	// Download the blob
	resp, err := a.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, mapAzureError("open", filePath, err)
	}

	out := &cloudfs.ReadResponse{
		Stream:      resp.Body,
		ContentType: derefString(resp.ContentType),
	}
	if resp.ContentLength != nil {
		out.ContentLength = cloudfs.Int64(*resp.ContentLength)
	}
	return out, nil
}

// WriteFrom implements cloudfs.Backend. The container is created if it does
// not exist and the body is uploaded in blocks as it is read.
func (a *Adapter) WriteFrom(ctx context.Context, filePath string, in *cloudfs.ReadResponse) error {
	containerName, blobName := splitPath(filePath)
	if containerName == "" || blobName == "" || strings.HasSuffix(blobName, "/") {
		return cloudfs.NewPathError("write", filePath, cloudfs.ErrInvalidPath)
	}

	if err := a.ensureContainer(ctx, containerName); err != nil {
		return err
	}

	opts := &azblob.UploadStreamOptions{}
	if in.ContentType != "" {
		contentType := in.ContentType
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}

	if _, err := a.client.UploadStream(ctx, containerName, blobName, in.Stream, opts); err != nil {
		return mapAzureError("write", filePath, err)
	}
	return nil
}

func (a *Adapter) ensureContainer(ctx context.Context, containerName string) error {
	if _, ok := a.containers.Load(containerName); ok {
		return nil
	}
	_, err := a.client.CreateContainer(ctx, containerName, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return mapAzureError("create-container", "/"+containerName, err)
	}
	a.containers.Store(containerName, struct{}{})
	return nil
}

// splitPath turns "/container/a/b" into ("container", "a/b").
func splitPath(p string) (containerName, blobName string) {
	p = strings.TrimPrefix(p, "/")
	containerName, blobName, _ = strings.Cut(p, "/")
	return containerName, blobName
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isNotFound(err error) bool {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound) {
		return true
	}
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// mapAzureError maps Azure errors to cloudfs errors
func mapAzureError(op, path string, err error) error {
	if isNotFound(err) {
		return cloudfs.NewPathError(op, path, cloudfs.ErrNotExist)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &cloudfs.BackendError{Backend: BackendID, Op: op, Path: path, Err: err}
}

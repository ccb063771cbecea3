// Package local provides the cloudfs backend for a directory tree on the
// local disk.
package local

import (
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobeaver/cloudfs"
)

// Adapter serves backend paths from a root directory on the local disk
type Adapter struct {
	root string
}

var _ cloudfs.Backend = (*Adapter)(nil)

// New creates a new local filesystem adapter
func New(root string) (*Adapter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	// Ensure the root directory exists
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, err
	}

	return &Adapter{
		root: absRoot,
	}, nil
}

// Root returns the absolute directory backing "/".
func (a *Adapter) Root() string {
	return a.root
}

// List implements cloudfs.Backend. Entries come in directory order as
// returned by os.ReadDir, which sorts by name.
func (a *Adapter) List(ctx context.Context, dir string) iter.Seq2[cloudfs.FsNode, error] {
	return func(yield func(cloudfs.FsNode, error) bool) {
		fullPath, err := a.resolve("list", dir)
		if err != nil {
			yield(cloudfs.FsNode{}, err)
			return
		}

		entries, err := os.ReadDir(fullPath)
		if err != nil {
			yield(cloudfs.FsNode{}, a.wrap("list", dir, err))
			return
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				yield(cloudfs.FsNode{}, err)
				return
			}

			// Stat follows symlinks so a linked directory is listed as one
			info, err := os.Stat(filepath.Join(fullPath, entry.Name()))
			if err != nil {
				if !yield(cloudfs.FsNode{}, a.wrap("list", filepath.Join(dir, entry.Name()), err)) {
					return
				}
				continue
			}

			node := cloudfs.FsNode{
				IsDir: info.IsDir(),
				Name:  entry.Name(),
			}
			if !node.IsDir {
				node.ContentType = cloudfs.DetectContentType(entry.Name())
				node.ContentLength = cloudfs.Int64(info.Size())
			}
			if !yield(node, nil) {
				return
			}
		}
	}
}

// Exists implements cloudfs.Backend. Directories count as existing.
func (a *Adapter) Exists(ctx context.Context, path string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("exists", path)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, a.wrap("exists", path, err)
	}
	return true, nil
}

// OpenRead implements cloudfs.Backend
func (a *Adapter) OpenRead(ctx context.Context, path string) (*cloudfs.ReadResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("open", path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, a.wrap("open", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, a.wrap("open", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, cloudfs.NewPathError("open", path, cloudfs.ErrInvalidPath)
	}

	return &cloudfs.ReadResponse{
		Stream:        f,
		ContentType:   cloudfs.DetectContentType(fullPath),
		ContentLength: cloudfs.Int64(info.Size()),
	}, nil
}

// WriteFrom implements cloudfs.Backend. Content goes to a temporary file in
// the target directory which is renamed into place once complete, so a
// failed transfer never leaves a partial file behind.
func (a *Adapter) WriteFrom(ctx context.Context, path string, in *cloudfs.ReadResponse) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("write", path)
	if err != nil {
		return err
	}
	if fullPath == a.root {
		return cloudfs.NewPathError("write", path, cloudfs.ErrInvalidPath)
	}

	// Ensure the directory exists
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return a.wrap("write", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".cloudfs-*")
	if err != nil {
		return a.wrap("write", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: in.Stream}); err != nil {
		tmp.Close()
		return a.wrap("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		return a.wrap("write", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return a.wrap("write", path, err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		return a.wrap("write", path, err)
	}
	return nil
}

// resolve maps a backend path onto the disk, refusing anything that would
// escape the root.
func (a *Adapter) resolve(op, path string) (string, error) {
	fullPath := filepath.Join(a.root, filepath.FromSlash(filepath.Clean("/"+path)))
	if !isPathUnderRoot(a.root, fullPath) {
		return "", cloudfs.NewPathError(op, path, cloudfs.ErrInvalidPath)
	}
	return fullPath, nil
}

func (a *Adapter) wrap(op, path string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return cloudfs.NewPathError(op, path, cloudfs.ErrNotExist)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return &cloudfs.BackendError{Backend: "local", Op: op, Path: path, Err: err}
}

// isPathUnderRoot checks if a path is under a given root directory
func isPathUnderRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return !filepath.IsAbs(rel) && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

package cloudfs

import (
	"context"
	"io"
	"iter"
)

// FsNode is one direct child of a listed directory.
//
// Name is a single path segment when a backend emits it. Only List builds
// composite (slash-joined) names when flattening a subtree.
type FsNode struct {
	IsDir bool
	Name  string

	// ContentType is empty when the backend does not know it.
	ContentType string

	// ContentLength is nil when the backend does not know it.
	ContentLength *int64
}

// ReadResponse is an open stream plus the content metadata known for it.
type ReadResponse struct {
	Stream        io.ReadCloser
	ContentType   string
	ContentLength *int64
}

// Close closes the underlying stream.
func (r *ReadResponse) Close() error {
	if r == nil || r.Stream == nil {
		return nil
	}
	return r.Stream.Close()
}

// ============================================================================
// Backend Capability
// ============================================================================

// Backend is the capability every storage provider exposes to the core.
// Paths are backend-relative and start with "/".
type Backend interface {
	// List yields the direct children of dir, one level only.
	List(ctx context.Context, dir string) iter.Seq2[FsNode, error]

	// Exists reports whether a file exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// OpenRead opens path for a streaming read.
	OpenRead(ctx context.Context, path string) (*ReadResponse, error)

	// WriteFrom streams in to path. Implementations create any missing
	// parent container (directory, bucket, blob container) themselves.
	WriteFrom(ctx context.Context, path string, in *ReadResponse) error
}

// Int64 returns a pointer to v, for filling FsNode.ContentLength.
func Int64(v int64) *int64 {
	return &v
}

// sameLength reports whether two optional lengths disagree only when both
// are known.
func sameLength(a, b *int64) bool {
	if a == nil || b == nil {
		return true
	}
	return *a == *b
}

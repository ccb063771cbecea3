package cloudfs

import (
	"context"
	"errors"
	"iter"
)

// ErrReadOnly is returned when a write is attempted on a read-only backend.
var ErrReadOnly = errors.New("backend is read-only")

// ============================================================================
// ReadOnlyBackend Decorator
// ============================================================================

// ReadOnlyBackend wraps a Backend so that WriteFrom always fails.
//
// Example:
//
//	src := cloudfs.NewReadOnly(localFS)
//	report, err := cloudfs.Copy(ctx, src, "/photos/", s3FS, "/backup/")
type ReadOnlyBackend struct {
	backend Backend
	opts    ReadOnlyOptions
}

// ReadOnlyOptions configures the ReadOnlyBackend behavior.
type ReadOnlyOptions struct {
	// OnWriteAttempt is called when a write is attempted.
	// If nil, the write fails with ErrReadOnly.
	// If this function returns nil, the write is allowed (use carefully).
	OnWriteAttempt func(path string) error
}

// ReadOnlyOption is a functional option for configuring ReadOnlyBackend.
type ReadOnlyOption func(*ReadOnlyOptions)

// WithWriteAttemptHandler sets a custom handler for write attempts.
func WithWriteAttemptHandler(handler func(path string) error) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.OnWriteAttempt = handler
	}
}

// NewReadOnly creates a read-only view of backend. Wrapping an already
// read-only backend returns it unchanged.
func NewReadOnly(backend Backend, opts ...ReadOnlyOption) *ReadOnlyBackend {
	if ro, ok := backend.(*ReadOnlyBackend); ok && len(opts) == 0 {
		return ro
	}
	options := ReadOnlyOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return &ReadOnlyBackend{backend: backend, opts: options}
}

// Unwrap returns the underlying Backend.
func (r *ReadOnlyBackend) Unwrap() Backend {
	return r.backend
}

func (r *ReadOnlyBackend) readOnlyError(path string) error {
	if r.opts.OnWriteAttempt != nil {
		if err := r.opts.OnWriteAttempt(path); err != nil {
			return &PathError{Op: "write", Path: path, Err: err}
		}
		return nil
	}
	return &PathError{Op: "write", Path: path, Err: ErrReadOnly}
}

// List passes through.
func (r *ReadOnlyBackend) List(ctx context.Context, dir string) iter.Seq2[FsNode, error] {
	return r.backend.List(ctx, dir)
}

// Exists passes through.
func (r *ReadOnlyBackend) Exists(ctx context.Context, path string) (bool, error) {
	return r.backend.Exists(ctx, path)
}

// OpenRead passes through.
func (r *ReadOnlyBackend) OpenRead(ctx context.Context, path string) (*ReadResponse, error) {
	return r.backend.OpenRead(ctx, path)
}

// WriteFrom fails with ErrReadOnly unless a write attempt handler allows it.
func (r *ReadOnlyBackend) WriteFrom(ctx context.Context, path string, in *ReadResponse) error {
	if err := r.readOnlyError(path); err != nil {
		return err
	}
	return r.backend.WriteFrom(ctx, path, in)
}

var _ Backend = (*ReadOnlyBackend)(nil)

// IsReadOnlyError checks if an error is due to read-only restrictions.
func IsReadOnlyError(err error) bool {
	return errors.Is(err, ErrReadOnly)
}

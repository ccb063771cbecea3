package cloudfs

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrMalformedPath  = errors.New("malformed virtual path")
	ErrUnknownBackend = errors.New("unknown backend")
	ErrNotExist       = errors.New("file does not exist")
	ErrNotDir         = errors.New("not a directory")
	ErrInvalidPath    = errors.New("invalid path")
	ErrNotSupported   = errors.New("operation not supported")
)

// PathError records an error and the operation and virtual path that caused it
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError returns a *PathError for op on path.
func NewPathError(op, path string, err error) error {
	return &PathError{Op: op, Path: path, Err: err}
}

// BackendError is any failure surfaced by a backend's list, exists, read or
// write call. The core does not interpret Err beyond errors.Is checks.
type BackendError struct {
	Backend string
	Op      string
	Path    string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s:%s: %v", e.Op, e.Backend, e.Path, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// DiscoveryError is a traversal failure in the background discovery task
// of Copy or Compare. Files discovered before the failure were still
// processed.
type DiscoveryError struct {
	Root       string
	Discovered int64
	Err        error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery under %s stopped after %d files: %v", e.Root, e.Discovered, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// IsNotExist reports whether an error indicates that a file or directory
// does not exist
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsMalformedPath reports whether err was caused by an unparsable virtual path.
func IsMalformedPath(err error) bool {
	return errors.Is(err, ErrMalformedPath)
}

// IsUnknownBackend reports whether err names an unregistered backend.
func IsUnknownBackend(err error) bool {
	return errors.Is(err, ErrUnknownBackend)
}

func backendErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Path: path, Err: err}
}

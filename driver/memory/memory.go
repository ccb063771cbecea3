// Package memory provides an in-memory cloudfs backend. It is used by the
// core package tests and is handy as a scratch destination.
package memory

import (
	"bytes"
	"context"
	"io"
	"iter"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobeaver/cloudfs"
)

// memoryFile represents a file stored in memory
type memoryFile struct {
	content     []byte
	contentType string
	modTime     time.Time
}

// memoryDir represents a directory in memory
type memoryDir struct {
	modTime time.Time
}

// Adapter provides an in-memory implementation of cloudfs.Backend
type Adapter struct {
	mu      sync.RWMutex
	files   map[string]*memoryFile
	dirs    map[string]*memoryDir
	maxSize int64 // Maximum total storage size (0 = unlimited)
	size    int64 // Current total size
}

// Config holds configuration for the memory adapter
type Config struct {
	// MaxSize is the maximum total storage size in bytes (0 = unlimited)
	MaxSize int64
}

var _ cloudfs.Backend = (*Adapter)(nil)

// New creates a new in-memory backend
func New(cfg ...Config) *Adapter {
	var maxSize int64
	if len(cfg) > 0 {
		maxSize = cfg[0].MaxSize
	}

	a := &Adapter{
		files:   make(map[string]*memoryFile),
		dirs:    make(map[string]*memoryDir),
		maxSize: maxSize,
	}
	a.dirs[""] = &memoryDir{modTime: time.Now()}
	return a
}

// List implements cloudfs.Backend. Children are yielded sorted by name.
func (a *Adapter) List(ctx context.Context, dir string) iter.Seq2[cloudfs.FsNode, error] {
	return func(yield func(cloudfs.FsNode, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(cloudfs.FsNode{}, err)
			return
		}

		// Snapshot under the lock; the consumer may call back into the
		// adapter while ranging.
		nodes, err := a.children(normalizePath(dir))
		if err != nil {
			yield(cloudfs.FsNode{}, err)
			return
		}
		for _, node := range nodes {
			if !yield(node, nil) {
				return
			}
		}
	}
}

func (a *Adapter) children(dir string) ([]cloudfs.FsNode, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, exists := a.dirs[dir]; !exists {
		if _, isFile := a.files[dir]; isFile {
			return nil, cloudfs.NewPathError("list", dir, cloudfs.ErrNotDir)
		}
		return nil, cloudfs.NewPathError("list", dir, cloudfs.ErrNotExist)
	}

	var nodes []cloudfs.FsNode
	for p, f := range a.files {
		if parentOf(p) == dir {
			nodes = append(nodes, cloudfs.FsNode{
				Name:          path.Base(p),
				ContentType:   f.contentType,
				ContentLength: cloudfs.Int64(int64(len(f.content))),
			})
		}
	}
	for p := range a.dirs {
		if p != "" && parentOf(p) == dir {
			nodes = append(nodes, cloudfs.FsNode{IsDir: true, Name: path.Base(p)})
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

// Exists implements cloudfs.Backend
func (a *Adapter) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, ok := a.files[p]; ok {
		return true, nil
	}
	_, ok := a.dirs[p]
	return ok, nil
}

// OpenRead implements cloudfs.Backend. The stream reads a private copy of
// the content.
func (a *Adapter) OpenRead(ctx context.Context, p string) (*cloudfs.ReadResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	f, ok := a.files[p]
	if !ok {
		if _, isDir := a.dirs[p]; isDir {
			return nil, cloudfs.NewPathError("open", p, cloudfs.ErrInvalidPath)
		}
		return nil, cloudfs.NewPathError("open", p, cloudfs.ErrNotExist)
	}

	content := bytes.Clone(f.content)
	return &cloudfs.ReadResponse{
		Stream:        io.NopCloser(bytes.NewReader(content)),
		ContentType:   f.contentType,
		ContentLength: cloudfs.Int64(int64(len(content))),
	}, nil
}

// WriteFrom implements cloudfs.Backend. Missing parent directories are
// created and an existing file is replaced.
func (a *Adapter) WriteFrom(ctx context.Context, p string, in *cloudfs.ReadResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p = normalizePath(p)
	if !isValidPath(p) {
		return cloudfs.NewPathError("write", p, cloudfs.ErrInvalidPath)
	}

	data, err := io.ReadAll(in.Stream)
	if err != nil {
		return cloudfs.NewPathError("write", p, err)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = cloudfs.DetectContentType(p)
	}
	return a.store(p, data, contentType)
}

// Put stores content at p, creating parent directories. It is the
// synchronous counterpart of WriteFrom for seeding test trees.
func (a *Adapter) Put(p string, content []byte) error {
	p = normalizePath(p)
	if !isValidPath(p) {
		return cloudfs.NewPathError("put", p, cloudfs.ErrInvalidPath)
	}
	return a.store(p, bytes.Clone(content), cloudfs.DetectContentType(p))
}

// MkdirAll creates a directory and its parents.
func (a *Adapter) MkdirAll(p string) error {
	p = normalizePath(p)
	if !isValidPath(p) {
		return cloudfs.NewPathError("mkdir", p, cloudfs.ErrInvalidPath)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, isFile := a.files[p]; isFile {
		return cloudfs.NewPathError("mkdir", p, cloudfs.ErrNotDir)
	}
	a.ensureParentDirs(p)
	a.dirs[p] = &memoryDir{modTime: time.Now()}
	return nil
}

// ReadAll returns a copy of the content stored at p.
func (a *Adapter) ReadAll(p string) ([]byte, error) {
	p = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	f, ok := a.files[p]
	if !ok {
		return nil, cloudfs.NewPathError("read", p, cloudfs.ErrNotExist)
	}
	return bytes.Clone(f.content), nil
}

func (a *Adapter) store(p string, data []byte, contentType string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, isDir := a.dirs[p]; isDir {
		return cloudfs.NewPathError("write", p, cloudfs.ErrInvalidPath)
	}

	newSize := a.size + int64(len(data))
	if existing, ok := a.files[p]; ok {
		newSize -= int64(len(existing.content))
	}
	if a.maxSize > 0 && newSize > a.maxSize {
		return cloudfs.NewPathError("write", p, ErrNoSpace)
	}

	a.ensureParentDirs(p)
	a.files[p] = &memoryFile{
		content:     data,
		contentType: contentType,
		modTime:     time.Now(),
	}
	a.size = newSize
	return nil
}

// Clear removes all files and directories
func (a *Adapter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.files = make(map[string]*memoryFile)
	a.dirs = map[string]*memoryDir{"": {modTime: time.Now()}}
	a.size = 0
}

// Size returns the current total size of all files
func (a *Adapter) Size() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.size
}

// FileCount returns the number of files
func (a *Adapter) FileCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.files)
}

// ensureParentDirs creates all parent directories for a path.
// Caller holds a.mu.
func (a *Adapter) ensureParentDirs(p string) {
	for dir := parentOf(p); dir != ""; dir = parentOf(dir) {
		if _, exists := a.dirs[dir]; !exists {
			a.dirs[dir] = &memoryDir{modTime: time.Now()}
		}
	}
}

// normalizePath maps "/a/b/", "a/b" and "/a/./b" to "a/b"; the root is "".
func normalizePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return ""
	}
	return path.Clean(p)
}

// isValidPath checks if a path is valid (no directory traversal)
func isValidPath(p string) bool {
	return p != "" && p != ".." && !strings.HasPrefix(p, "../")
}

func parentOf(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

package cloudfs_test

import (
	"bytes"
	"context"
	"io"
	"iter"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gobeaver/cloudfs"
	"github.com/gobeaver/cloudfs/driver/memory"
)

// faultyBackend wraps a backend and fails selected calls by exact path.
type faultyBackend struct {
	cloudfs.Backend

	mu        sync.Mutex
	listErr   map[string]error
	existsErr map[string]error
	openErr   map[string]error
	writeErr  map[string]error

	lists  atomic.Int64
	opens  atomic.Int64
	writes atomic.Int64
}

func newFaulty(b cloudfs.Backend) *faultyBackend {
	return &faultyBackend{
		Backend:   b,
		listErr:   map[string]error{},
		existsErr: map[string]error{},
		openErr:   map[string]error{},
		writeErr:  map[string]error{},
	}
}

func (f *faultyBackend) lookup(m map[string]error, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return m[p]
}

func (f *faultyBackend) List(ctx context.Context, dir string) iter.Seq2[cloudfs.FsNode, error] {
	f.lists.Add(1)
	if err := f.lookup(f.listErr, dir); err != nil {
		return func(yield func(cloudfs.FsNode, error) bool) {
			yield(cloudfs.FsNode{}, err)
		}
	}
	return f.Backend.List(ctx, dir)
}

func (f *faultyBackend) Exists(ctx context.Context, p string) (bool, error) {
	if err := f.lookup(f.existsErr, p); err != nil {
		return false, err
	}
	return f.Backend.Exists(ctx, p)
}

func (f *faultyBackend) OpenRead(ctx context.Context, p string) (*cloudfs.ReadResponse, error) {
	f.opens.Add(1)
	if err := f.lookup(f.openErr, p); err != nil {
		return nil, err
	}
	return f.Backend.OpenRead(ctx, p)
}

func (f *faultyBackend) WriteFrom(ctx context.Context, p string, in *cloudfs.ReadResponse) error {
	f.writes.Add(1)
	if err := f.lookup(f.writeErr, p); err != nil {
		return err
	}
	return f.Backend.WriteFrom(ctx, p, in)
}

// seed builds a memory backend holding files (path -> content).
func seed(t *testing.T, files map[string]string) *memory.Adapter {
	t.Helper()
	m := memory.New()
	for p, content := range files {
		if err := m.Put(p, []byte(content)); err != nil {
			t.Fatalf("Put(%q): %v", p, err)
		}
	}
	return m
}

func names(t *testing.T, seq iter.Seq2[cloudfs.FsNode, error]) []string {
	t.Helper()
	var out []string
	for node, err := range seq {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out = append(out, node.Name)
	}
	return out
}

func readFile(t *testing.T, m *memory.Adapter, p string) string {
	t.Helper()
	data, err := m.ReadAll(p)
	if err != nil {
		t.Fatalf("ReadAll(%q): %v", p, err)
	}
	return string(data)
}

func nopCloser(data []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(data))
}

package cloudfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Factory builds the backend for one identifier.
type Factory func(ctx context.Context) (Backend, error)

// Registry maps backend identifiers to lazily constructed backends. The set
// of identifiers is fixed when the registry is built; each backend is
// constructed at most once and cached for the registry's lifetime.
type Registry struct {
	factories map[string]Factory
	ids       []string

	mu       sync.Mutex
	backends map[string]*registryEntry
}

type registryEntry struct {
	once    sync.Once
	backend Backend
	err     error
}

// NewRegistry creates a registry over a static factory table.
//
// Example:
//
//	reg := cloudfs.NewRegistry(map[string]cloudfs.Factory{
//	    "local": func(ctx context.Context) (cloudfs.Backend, error) { return local.New("/") },
//	})
func NewRegistry(factories map[string]Factory) *Registry {
	r := &Registry{
		factories: make(map[string]Factory, len(factories)),
		backends:  make(map[string]*registryEntry),
	}
	for id, f := range factories {
		if id == "" || f == nil {
			continue
		}
		r.factories[id] = f
		r.ids = append(r.ids, id)
	}
	sort.Strings(r.ids)
	return r
}

// IDs returns the known backend identifiers in sorted order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// ListRoot returns one directory node per known backend. No backend is
// constructed.
func (r *Registry) ListRoot() []FsNode {
	nodes := make([]FsNode, 0, len(r.ids))
	for _, id := range r.ids {
		nodes = append(nodes, FsNode{IsDir: true, Name: id})
	}
	return nodes
}

// Get returns the backend for id, constructing it on first use. A factory
// failure is returned to every waiting caller and is not cached, so a later
// call retries construction.
func (r *Registry) Get(ctx context.Context, id string) (Backend, error) {
	factory, ok := r.factories[id]
	if !ok {
		return nil, NewPathError("backend", id, ErrUnknownBackend)
	}

	r.mu.Lock()
	entry, ok := r.backends[id]
	if !ok {
		entry = &registryEntry{}
		r.backends[id] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.backend, entry.err = factory(ctx)
		if entry.err == nil && entry.backend == nil {
			entry.err = fmt.Errorf("backend %s: factory returned nil", id)
		}
	})

	if entry.err != nil {
		r.mu.Lock()
		if r.backends[id] == entry {
			delete(r.backends, id)
		}
		r.mu.Unlock()
		return nil, fmt.Errorf("create backend %s: %w", id, entry.err)
	}
	return entry.backend, nil
}

// Close closes every constructed backend that holds resources.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, entry := range r.backends {
		if entry.backend == nil {
			continue
		}
		if c, ok := entry.backend.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close backend %s: %w", id, err))
			}
		}
		delete(r.backends, id)
	}
	return errors.Join(errs...)
}

package cloudfs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRegistryLazyConstruction(t *testing.T) {
	var calls atomic.Int64
	backend := &stubBackend{name: "mem"}
	reg := NewRegistry(map[string]Factory{
		"mem": func(context.Context) (Backend, error) {
			calls.Add(1)
			return backend, nil
		},
	})

	if calls.Load() != 0 {
		t.Fatal("factory ran before first use")
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := reg.Get(context.Background(), "mem")
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			if b != backend {
				t.Error("Get returned a different instance")
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("factory calls = %d, want 1", got)
	}
}

func TestRegistryUnknownBackend(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.Get(context.Background(), "nope")
	if !IsUnknownBackend(err) {
		t.Errorf("error = %v, want unknown backend", err)
	}
}

func TestRegistryFailureIsRetried(t *testing.T) {
	var calls atomic.Int64
	boom := errors.New("no credentials")
	reg := NewRegistry(map[string]Factory{
		"aws": func(context.Context) (Backend, error) {
			if calls.Add(1) == 1 {
				return nil, boom
			}
			return &stubBackend{name: "aws"}, nil
		},
	})

	if _, err := reg.Get(context.Background(), "aws"); !errors.Is(err, boom) {
		t.Fatalf("first Get error = %v, want %v", err, boom)
	}
	if _, err := reg.Get(context.Background(), "aws"); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("factory calls = %d, want 2", got)
	}
}

func TestRegistryNilBackend(t *testing.T) {
	reg := NewRegistry(map[string]Factory{
		"broken": func(context.Context) (Backend, error) { return nil, nil },
	})
	if _, err := reg.Get(context.Background(), "broken"); err == nil {
		t.Error("expected an error for a nil backend")
	}
}

func TestRegistryListRoot(t *testing.T) {
	f := func(context.Context) (Backend, error) { return &stubBackend{}, nil }
	reg := NewRegistry(map[string]Factory{"gcs": f, "aws": f, "az": f, "": f, "nil": nil})

	want := []string{"aws", "az", "gcs"}
	ids := reg.IDs()
	if len(ids) != len(want) {
		t.Fatalf("IDs = %v, want %v", ids, want)
	}
	nodes := reg.ListRoot()
	for i, id := range want {
		if ids[i] != id {
			t.Errorf("IDs[%d] = %q, want %q", i, ids[i], id)
		}
		if !nodes[i].IsDir || nodes[i].Name != id {
			t.Errorf("ListRoot[%d] = %+v, want directory %q", i, nodes[i], id)
		}
	}
}

func TestRegistryClose(t *testing.T) {
	a, b := &stubBackend{name: "a"}, &stubBackend{name: "b"}
	reg := NewRegistry(map[string]Factory{
		"a": func(context.Context) (Backend, error) { return a, nil },
		"b": func(context.Context) (Backend, error) { return b, nil },
	})
	if _, err := reg.Get(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}

	if err := reg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.closed.Load() {
		t.Error("constructed backend was not closed")
	}
	if b.closed.Load() {
		t.Error("unconstructed backend should not be touched")
	}
}

func TestSessionBackend(t *testing.T) {
	backend := &stubBackend{name: "local"}
	reg := NewRegistry(map[string]Factory{
		"local": func(context.Context) (Backend, error) { return backend, nil },
	})
	s := NewSession(reg)
	if s.Registry() != reg {
		t.Fatal("Registry() returned a different registry")
	}

	vp, err := s.ResolvePath("/local/tmp/")
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Backend(context.Background(), vp)
	if err != nil {
		t.Fatalf("Backend: %v", err)
	}
	if got != backend {
		t.Error("Backend returned a different instance")
	}
}

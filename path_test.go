package cloudfs

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
)

// stubBackend is a minimal backend for registry and session tests.
type stubBackend struct {
	name   string
	closed atomic.Bool
}

func (s *stubBackend) List(context.Context, string) iter.Seq2[FsNode, error] {
	return func(func(FsNode, error) bool) {}
}

func (s *stubBackend) Exists(context.Context, string) (bool, error) { return false, nil }

func (s *stubBackend) OpenRead(context.Context, string) (*ReadResponse, error) {
	return nil, ErrNotExist
}

func (s *stubBackend) WriteFrom(context.Context, string, *ReadResponse) error { return nil }

func (s *stubBackend) Close() error {
	s.closed.Store(true)
	return nil
}

var _ io.Closer = (*stubBackend)(nil)

func TestSessionResolve(t *testing.T) {
	tests := []struct {
		name    string
		cwd     string
		raw     string
		want    Target
		wantErr error
	}{
		{name: "root", cwd: "/", raw: "/", want: Target{Root: true}},
		{name: "empty at root", cwd: "/", raw: "", want: Target{Root: true}},
		{name: "absolute file", cwd: "/", raw: "/az/photos/a.jpg", want: Target{VirtualPath: VirtualPath{Backend: "az", Path: "/photos/a.jpg"}}},
		{name: "absolute dir keeps marker", cwd: "/", raw: "/az/photos/", want: Target{VirtualPath: VirtualPath{Backend: "az", Path: "/photos/"}}},
		{name: "backend root", cwd: "/", raw: "/az/", want: Target{VirtualPath: VirtualPath{Backend: "az", Path: "/"}}},
		{name: "backend without slash", cwd: "/", raw: "/az", wantErr: ErrMalformedPath},
		{name: "relative", cwd: "/az/x", raw: "y.txt", want: Target{VirtualPath: VirtualPath{Backend: "az", Path: "/x/y.txt"}}},
		{name: "empty is cwd", cwd: "/az/x", raw: "", want: Target{VirtualPath: VirtualPath{Backend: "az", Path: "/x"}}},
		{name: "dot", cwd: "/az/x", raw: ".", want: Target{VirtualPath: VirtualPath{Backend: "az", Path: "/x/"}}},
		{name: "dot dot", cwd: "/az/x/y", raw: "../z", want: Target{VirtualPath: VirtualPath{Backend: "az", Path: "/x/z"}}},
		{name: "dot dot past root", cwd: "/az", raw: "../../..", want: Target{Root: true}},
		{name: "backslashes", cwd: "/", raw: `\aws\bucket\key.txt`, want: Target{VirtualPath: VirtualPath{Backend: "aws", Path: "/bucket/key.txt"}}},
		{name: "relative from root names backend", cwd: "/", raw: "local/tmp/", want: Target{VirtualPath: VirtualPath{Backend: "local", Path: "/tmp/"}}},
		{name: "duplicate slashes", cwd: "/", raw: "/gcs//b///o", want: Target{VirtualPath: VirtualPath{Backend: "gcs", Path: "/b/o"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(nil)
			s.ChangeDirectory(tt.cwd)

			got, err := s.Resolve(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSessionChangeDirectory(t *testing.T) {
	s := NewSession(nil)
	if got := s.WorkingDirectory(); got != "/" {
		t.Fatalf("initial cwd = %q, want /", got)
	}

	steps := []struct {
		dir  string
		want string
	}{
		{"/az/", "/az/"},
		{"photos", "/az/photos"},
		{"", "/az/photos"},
		{"2024/", "/az/photos/2024/"},
		{"..", "/az/photos/"},
		{"/local/tmp", "/local/tmp"},
		{"/", "/"},
	}
	for _, step := range steps {
		s.ChangeDirectory(step.dir)
		if got := s.WorkingDirectory(); got != step.want {
			t.Errorf("after cd %q: cwd = %q, want %q", step.dir, got, step.want)
		}
	}
}

func TestSessionResolvePath(t *testing.T) {
	s := NewSession(nil)
	if _, err := s.ResolvePath("/"); !IsMalformedPath(err) {
		t.Errorf("ResolvePath(/) error = %v, want malformed", err)
	}
	vp, err := s.ResolvePath("/aws/bucket/")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if !vp.IsDir() || vp.String() != "/aws/bucket/" {
		t.Errorf("got %+v, want directory /aws/bucket/", vp)
	}
}

func TestSessionConcurrentAccess(t *testing.T) {
	s := NewSession(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.ChangeDirectory("/local/tmp/")
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Resolve("a.txt")
		}()
	}
	wg.Wait()
	if got := s.WorkingDirectory(); got != "/local/tmp/" {
		t.Errorf("cwd = %q", got)
	}
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		dir, name, want string
	}{
		{"/", "a", "/a"},
		{"/src/", "a/b.txt", "/src/a/b.txt"},
		{"/src", "a", "/src/a"},
		{"/src/", "", "/src/"},
		{"/src/", "/a", "/src/a"},
	}
	for _, tt := range tests {
		if got := JoinPath(tt.dir, tt.name); got != tt.want {
			t.Errorf("JoinPath(%q, %q) = %q, want %q", tt.dir, tt.name, got, tt.want)
		}
	}
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"/a/b.txt": "b.txt",
		"/a/b/":    "b",
		"b.txt":    "b.txt",
		"/":        "",
	}
	for in, want := range tests {
		if got := BaseName(in); got != want {
			t.Errorf("BaseName(%q) = %q, want %q", in, got, want)
		}
	}
}

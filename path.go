package cloudfs

import (
	"context"
	"strings"
	"sync"
)

// RootPath is the synthetic root that lists every known backend.
const RootPath = "/"

// VirtualPath is a backend-qualified path. Path always starts with "/" and
// keeps a trailing "/" when the caller gave one.
type VirtualPath struct {
	Backend string
	Path    string
}

// String renders the path back into /<backend><path> form.
func (v VirtualPath) String() string {
	return "/" + v.Backend + v.Path
}

// IsDir reports whether the path carries the trailing "/" directory marker.
func (v VirtualPath) IsDir() bool {
	return strings.HasSuffix(v.Path, "/")
}

// Target is the result of resolving a raw path: either the synthetic root or
// a concrete VirtualPath.
type Target struct {
	Root bool
	VirtualPath
}

// Session holds the working directory and the registry used to resolve
// backends. A zero working directory means "/".
type Session struct {
	mu       sync.RWMutex
	cwd      string
	registry *Registry
}

// NewSession creates a session rooted at "/".
func NewSession(registry *Registry) *Session {
	return &Session{
		cwd:      RootPath,
		registry: registry,
	}
}

// Registry returns the registry the session resolves backends with.
func (s *Session) Registry() *Registry {
	return s.registry
}

// WorkingDirectory returns the current working directory.
func (s *Session) WorkingDirectory() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cwd == "" {
		return RootPath
	}
	return s.cwd
}

// ChangeDirectory replaces (absolute dir) or extends (relative dir) the
// working directory. Empty input is a no-op. Existence is not checked.
func (s *Session) ChangeDirectory(dir string) {
	if dir == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cwd := s.cwd
	if cwd == "" {
		cwd = RootPath
	}
	s.cwd = joinVirtual(cwd, dir)
}

// Resolve turns raw into a Target. An empty raw resolves the working
// directory.
//
// Example:
//
//	s.Resolve("/az/photos/")  // {Backend: "az", Path: "/photos/"}
//	s.Resolve("/")            // {Root: true}
//	s.Resolve("/az")          // ErrMalformedPath
func (s *Session) Resolve(raw string) (Target, error) {
	p := joinVirtual(s.WorkingDirectory(), raw)
	return parseVirtual(p)
}

// ResolvePath is Resolve for callers that need a concrete backend path.
// The synthetic root is reported as ErrMalformedPath.
func (s *Session) ResolvePath(raw string) (VirtualPath, error) {
	t, err := s.Resolve(raw)
	if err != nil {
		return VirtualPath{}, err
	}
	if t.Root {
		return VirtualPath{}, NewPathError("resolve", raw, ErrMalformedPath)
	}
	return t.VirtualPath, nil
}

// Backend resolves vp.Backend through the session registry.
func (s *Session) Backend(ctx context.Context, vp VirtualPath) (Backend, error) {
	return s.registry.Get(ctx, vp.Backend)
}

// parseVirtual splits an absolute, normalized virtual path.
func parseVirtual(p string) (Target, error) {
	if p == RootPath {
		return Target{Root: true}, nil
	}
	rest := strings.TrimPrefix(p, "/")
	sep := strings.Index(rest, "/")
	if sep <= 0 {
		return Target{}, NewPathError("resolve", p, ErrMalformedPath)
	}
	return Target{VirtualPath: VirtualPath{
		Backend: rest[:sep],
		Path:    rest[sep:],
	}}, nil
}

// joinVirtual joins raw onto base segment-wise. Backslashes count as
// separators, "." is dropped and ".." pops one segment but never leaves the
// root. A trailing separator on raw is kept.
func joinVirtual(base, raw string) string {
	raw = strings.ReplaceAll(raw, `\`, "/")
	if raw == "" {
		raw = base
		base = RootPath
	}

	var segments []string
	if !strings.HasPrefix(raw, "/") {
		segments = appendSegments(segments, strings.ReplaceAll(base, `\`, "/"))
	}
	segments = appendSegments(segments, raw)

	if len(segments) == 0 {
		return RootPath
	}
	out := "/" + strings.Join(segments, "/")
	if strings.HasSuffix(raw, "/") || strings.HasSuffix(raw, "/.") || strings.HasSuffix(raw, "/..") || raw == "." || raw == ".." {
		out += "/"
	}
	return out
}

func appendSegments(segments []string, p string) []string {
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
		default:
			segments = append(segments, seg)
		}
	}
	return segments
}

// JoinPath joins a backend-relative directory and a composite name.
func JoinPath(dir, name string) string {
	if name == "" {
		return dir
	}
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return dir + strings.TrimPrefix(name, "/")
}

// BaseName returns the last segment of a backend-relative path.
func BaseName(p string) string {
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

package cloudfs

import (
	"github.com/gobwas/glob"
)

// ============================================================================
// Selector Interface
// ============================================================================

// Selector filters nodes during recursive listing. Name is the composite
// name relative to the listed root.
//
// Example:
//
//	// Only JSON files, anywhere below the root
//	for node, err := range cloudfs.List(ctx, b, "/", true, cloudfs.WithSelector(cloudfs.MustGlob("**.json"))) {
//	    ...
//	}
type Selector interface {
	// Match returns true if the node should be yielded.
	Match(node *FsNode) bool

	// Traverse returns true if a directory's descendants should be listed.
	// Only called for directories.
	Traverse(node *FsNode) bool
}

// AllSelector matches every node and traverses every directory.
type AllSelector struct{}

func (AllSelector) Match(*FsNode) bool    { return true }
func (AllSelector) Traverse(*FsNode) bool { return true }

// All returns a selector that matches everything.
func All() Selector {
	return AllSelector{}
}

// ============================================================================
// Glob
// ============================================================================

type globSelector struct {
	pattern string
	g       glob.Glob
}

// Glob compiles a selector matching composite names against pattern, with
// "/" as the separator: "*" stays within a segment, "**" crosses segments.
// Directories are always traversed and are yielded only when they match.
//
// Examples:
//
//	Glob("*.txt")        // .txt files directly under the root
//	Glob("**.txt")       // .txt files at any depth
//	Glob("logs/2024-*")  // entries of logs/ starting with 2024-
func Glob(pattern string) (Selector, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, NewPathError("glob", pattern, err)
	}
	return &globSelector{pattern: pattern, g: g}, nil
}

// MustGlob is Glob that panics on an invalid pattern.
func MustGlob(pattern string) Selector {
	s, err := Glob(pattern)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *globSelector) Match(node *FsNode) bool {
	return s.g.Match(node.Name)
}

func (s *globSelector) Traverse(*FsNode) bool {
	return true
}

// ============================================================================
// Composition
// ============================================================================

type funcSelector struct {
	match    func(*FsNode) bool
	traverse func(*FsNode) bool
}

// FuncSelector matches nodes with fn and traverses every directory.
func FuncSelector(fn func(*FsNode) bool) Selector {
	return &funcSelector{match: fn, traverse: func(*FsNode) bool { return true }}
}

func (s *funcSelector) Match(node *FsNode) bool    { return s.match(node) }
func (s *funcSelector) Traverse(node *FsNode) bool { return s.traverse(node) }

type andSelector struct {
	selectors []Selector
}

// And matches when every selector matches, and traverses when every
// selector traverses.
func And(selectors ...Selector) Selector {
	return &andSelector{selectors: selectors}
}

func (s *andSelector) Match(node *FsNode) bool {
	for _, sel := range s.selectors {
		if !sel.Match(node) {
			return false
		}
	}
	return true
}

func (s *andSelector) Traverse(node *FsNode) bool {
	for _, sel := range s.selectors {
		if !sel.Traverse(node) {
			return false
		}
	}
	return true
}

type notSelector struct {
	selector Selector
}

// Not inverts Match. Traversal is unchanged.
func Not(selector Selector) Selector {
	return &notSelector{selector: selector}
}

func (s *notSelector) Match(node *FsNode) bool    { return !s.selector.Match(node) }
func (s *notSelector) Traverse(node *FsNode) bool { return s.selector.Traverse(node) }

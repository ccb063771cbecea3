package cloudfs

import (
	"context"
	"iter"
)

// ListOption configures List.
type ListOption func(*listOptions)

type listOptions struct {
	selector Selector
}

// WithSelector filters the nodes List yields and the directories it
// descends into.
func WithSelector(selector Selector) ListOption {
	return func(o *listOptions) {
		if selector != nil {
			o.selector = selector
		}
	}
}

// List lazily lists dir on b.
//
// Without recursion it yields exactly what b.List(dir) yields. With
// recursion it walks depth-first in pre-order: each child is yielded, then,
// for a directory, its descendants with Name rewritten to
// "child/descendant". Every call issues fresh backend calls; the returned
// sequence is single-pass.
//
// A backend error is yielded as is and ends the sequence.
func List(ctx context.Context, b Backend, dir string, recursive bool, opts ...ListOption) iter.Seq2[FsNode, error] {
	o := listOptions{selector: All()}
	for _, opt := range opts {
		opt(&o)
	}

	return func(yield func(FsNode, error) bool) {
		walk(ctx, b, dir, "", recursive, o.selector, yield)
	}
}

// walk lists dir and yields its children under prefix. It returns false
// once the consumer stopped or an error was yielded.
func walk(ctx context.Context, b Backend, dir, prefix string, recursive bool, sel Selector, yield func(FsNode, error) bool) bool {
	for node, err := range b.List(ctx, dir) {
		if err != nil {
			yield(FsNode{}, err)
			return false
		}
		if err := ctx.Err(); err != nil {
			yield(FsNode{}, err)
			return false
		}

		child := node.Name
		if prefix != "" {
			node.Name = prefix + "/" + node.Name
		}

		if sel.Match(&node) {
			if !yield(node, nil) {
				return false
			}
		}

		if recursive && node.IsDir && sel.Traverse(&node) {
			if !walk(ctx, b, JoinPath(dir, child), node.Name, recursive, sel, yield) {
				return false
			}
		}
	}
	return true
}

package cloudfs

import (
	"context"
	"sync/atomic"
)

// transferQueue carries discovered files from the discovery goroutine to the
// single consumer of one pipeline run. Only discovery sends and closes; only
// the consumer receives.
type transferQueue struct {
	items      chan FsNode
	discovered atomic.Int64
	done       atomic.Bool

	// err is written by discovery before items is closed and read by the
	// consumer after it observed the close.
	err *DiscoveryError
}

func newTransferQueue(size int) *transferQueue {
	return &transferQueue{items: make(chan FsNode, size)}
}

// discover walks root and enqueues every file in pre-order. A traversal
// failure is kept in q.err rather than returned, so the consumer still
// drains what was found. Only cancellation is returned as an error.
func (q *transferQueue) discover(ctx context.Context, b Backend, root string, recursive bool, sel Selector) error {
	defer close(q.items)
	defer q.done.Store(true)

	for node, err := range List(ctx, b, root, recursive, WithSelector(sel)) {
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.err = &DiscoveryError{Root: root, Discovered: q.discovered.Load(), Err: err}
			return nil
		}
		if node.IsDir {
			continue
		}

		q.discovered.Add(1)
		select {
		case q.items <- node:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (q *transferQueue) progress(path string, processed int64) Progress {
	return Progress{
		Path:          path,
		Processed:     processed,
		Discovered:    q.discovered.Load(),
		DiscoveryDone: q.done.Load(),
	}
}

package cloudfs

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gobeaver/cloudfs/internal/metrics"
)

// CompareState classifies a source file against its destination.
type CompareState string

const (
	// StateDifferent means both sides exist and their content differs
	StateDifferent CompareState = "different"
	// StateSourceOnly means the destination has no file at that path
	StateSourceOnly CompareState = "source-only"
	// StateIdentical means both sides have the same content
	StateIdentical CompareState = "identical"
)

// Reasons reported with StateDifferent
const (
	ReasonContentLength = "content-length"
	ReasonContentType   = "content-type"
	ReasonHash          = "hash"
)

// CompareItem is one classified source file. Path is relative to the
// compared root.
type CompareItem struct {
	Path   string       `yaml:"path" json:"path"`
	State  CompareState `yaml:"state" json:"state"`
	Reason string       `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// CompareOptions selects what Compare walks and reports.
type CompareOptions struct {
	// Recursive descends into subdirectories of the source root
	Recursive bool

	// ShowIdentical emits StateIdentical items; they are dropped otherwise
	ShowIdentical bool

	// Algorithm hashes both streams; defaults to ChecksumSHA1
	Algorithm ChecksumAlgorithm

	// IgnoreContentType skips the content-type check, for backends that
	// guess types differently
	IgnoreContentType bool
}

// Compare lazily classifies every file under srcPath on src against the
// same relative path under dstPath on dst.
//
// A srcPath ending in "/" compares a directory; discovery runs in its own
// goroutine while items are produced in discovery order. Without the
// trailing "/" a single file is compared and its item Path is its base name.
//
// A per-file failure is yielded as (CompareItem{Path: ...}, err) and the
// engine moves on to the next file. A traversal failure is yielded last as
// a *DiscoveryError. Breaking out of the loop stops discovery.
//
// Example:
//
//	for item, err := range cloudfs.Compare(ctx, src, "/data/", dst, "/data/", cloudfs.CompareOptions{Recursive: true}) {
//	    if err != nil {
//	        log.Println(err)
//	        continue
//	    }
//	    fmt.Println(item.State, item.Path, item.Reason)
//	}
func Compare(ctx context.Context, src Backend, srcPath string, dst Backend, dstPath string, copts CompareOptions, options ...Option) iter.Seq2[CompareItem, error] {
	opts := processOptions(options...)
	if copts.Algorithm == "" {
		copts.Algorithm = ChecksumSHA1
	}
	cmp := &comparer{src: src, dst: dst, copts: copts, opts: opts}

	return func(yield func(CompareItem, error) bool) {
		if _, err := NewHasher(copts.Algorithm); err != nil {
			yield(CompareItem{}, err)
			return
		}

		if !strings.HasSuffix(srcPath, "/") {
			target := dstPath
			if strings.HasSuffix(target, "/") {
				target = JoinPath(target, BaseName(srcPath))
			}
			item, emit, err := cmp.compareFile(ctx, BaseName(srcPath), srcPath, target)
			if err != nil || emit {
				yield(item, err)
			}
			return
		}

		if !strings.HasSuffix(dstPath, "/") {
			dstPath += "/"
		}

		ctx, cancel := context.WithCancel(ctx)
		q := newTransferQueue(opts.QueueSize)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return q.discover(gctx, src, srcPath, copts.Recursive, opts.Selector)
		})
		defer func() {
			cancel()
			_ = g.Wait()
		}()

		var processed int64
		for node := range q.items {
			if err := gctx.Err(); err != nil {
				yield(CompareItem{}, err)
				return
			}
			item, emit, err := cmp.compareFile(gctx, node.Name, JoinPath(srcPath, node.Name), JoinPath(dstPath, node.Name))
			processed++
			if opts.Progress != nil {
				opts.Progress(q.progress(node.Name, processed))
			}
			if err == nil && !emit {
				continue
			}
			if !yield(item, err) {
				return
			}
		}

		if err := g.Wait(); err != nil {
			yield(CompareItem{}, fmt.Errorf("compare %s: %w", srcPath, err))
			return
		}
		if q.err != nil {
			opts.Metrics.DiscoveryFailed(metrics.OpCompare)
			opts.Logger.Error("source traversal stopped early, comparison is partial",
				zap.String("root", srcPath),
				zap.Int64("discovered", q.err.Discovered),
				zap.Error(q.err.Err))
			yield(CompareItem{}, q.err)
		}
	}
}

type comparer struct {
	src   Backend
	dst   Backend
	copts CompareOptions
	opts  *Options
}

// compareFile classifies one file. emit is false for identical files when
// identical items were not requested.
func (c *comparer) compareFile(ctx context.Context, name, srcPath, dstPath string) (item CompareItem, emit bool, err error) {
	started := time.Now()
	item = CompareItem{Path: name}

	defer func() {
		outcome := metrics.OutcomeFailed
		if err == nil {
			switch item.State {
			case StateSourceOnly:
				outcome = metrics.OutcomeSourceOnly
			case StateDifferent:
				outcome = metrics.OutcomeDifferent
			default:
				outcome = metrics.OutcomeIdentical
			}
		} else {
			c.opts.Logger.Warn("compare failed", zap.String("path", name), zap.Error(err))
		}
		c.opts.Metrics.ObserveFile(metrics.OpCompare, outcome, started)
	}()

	exists, err := c.dst.Exists(ctx, dstPath)
	if err != nil {
		return item, false, NewPathError("compare", name, backendErr("exists", dstPath, err))
	}
	if !exists {
		item.State = StateSourceOnly
		return item, true, nil
	}

	srcIn, dstIn, err := openBoth(ctx, c.src, srcPath, c.dst, dstPath)
	if err != nil {
		return item, false, NewPathError("compare", name, err)
	}
	defer srcIn.Close()
	defer dstIn.Close()

	if !sameLength(srcIn.ContentLength, dstIn.ContentLength) {
		item.State = StateDifferent
		item.Reason = ReasonContentLength
		return item, true, nil
	}

	if !c.copts.IgnoreContentType && srcIn.ContentType != "" && dstIn.ContentType != "" &&
		srcIn.ContentType != dstIn.ContentType {
		item.State = StateDifferent
		item.Reason = ReasonContentType
		return item, true, nil
	}

	var srcSum, dstSum string
	var g errgroup.Group
	g.Go(func() (err error) {
		srcSum, err = CalculateChecksum(srcIn.Stream, c.copts.Algorithm)
		return backendErr("read", srcPath, err)
	})
	g.Go(func() (err error) {
		dstSum, err = CalculateChecksum(dstIn.Stream, c.copts.Algorithm)
		return backendErr("read", dstPath, err)
	})
	if err := g.Wait(); err != nil {
		return item, false, NewPathError("compare", name, err)
	}

	if srcSum != dstSum {
		item.State = StateDifferent
		item.Reason = ReasonHash
		return item, true, nil
	}

	item.State = StateIdentical
	return item, c.copts.ShowIdentical, nil
}

// openBoth opens the two streams concurrently. On error any stream that did
// open is closed.
func openBoth(ctx context.Context, src Backend, srcPath string, dst Backend, dstPath string) (*ReadResponse, *ReadResponse, error) {
	var srcIn, dstIn *ReadResponse
	var g errgroup.Group
	g.Go(func() (err error) {
		srcIn, err = src.OpenRead(ctx, srcPath)
		return backendErr("open", srcPath, err)
	})
	g.Go(func() (err error) {
		dstIn, err = dst.OpenRead(ctx, dstPath)
		return backendErr("open", dstPath, err)
	})
	if err := g.Wait(); err != nil {
		srcIn.Close()
		dstIn.Close()
		return nil, nil, err
	}
	return srcIn, dstIn, nil
}

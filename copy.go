package cloudfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gobeaver/cloudfs/internal/metrics"
)

// CopyReport summarizes one Copy run.
type CopyReport struct {
	// Total is the number of files seen under the source
	Total int64

	// Skipped counts files that already existed at the destination
	Skipped int64

	// Copied counts files streamed to the destination
	Copied int64

	// Failed counts files whose transfer returned an error
	Failed int64

	// Bytes is the number of bytes streamed to the destination
	Bytes int64

	// Errors holds one error per failed file, in processing order
	Errors []error

	// Discovery is set when the source traversal stopped early. The files
	// found before the failure were still processed.
	Discovery *DiscoveryError
}

// Partial reports whether the run did not cover the whole source.
func (r *CopyReport) Partial() bool {
	return r.Discovery != nil || r.Failed > 0
}

// Err joins the discovery error and every per-file error, or returns nil.
func (r *CopyReport) Err() error {
	errs := make([]error, 0, len(r.Errors)+1)
	if r.Discovery != nil {
		errs = append(errs, r.Discovery)
	}
	errs = append(errs, r.Errors...)
	return errors.Join(errs...)
}

// Copy streams srcPath on src to dstPath on dst. Files that already exist at
// the destination are never overwritten.
//
// A srcPath without a trailing "/" names a single file; a dstPath ending in
// "/" then receives the source base name. A srcPath ending in "/" copies the
// whole subtree: a discovery goroutine walks the source while the calling
// operation transfers files one at a time in discovery order.
//
// Copy returns the report together with report.Err() when any file failed or
// discovery stopped early; successfully copied files are kept in that case.
//
// Example:
//
//	report, err := cloudfs.Copy(ctx, localFS, "/photos/", s3FS, "/backup/photos/")
//	fmt.Printf("%d copied, %d skipped\n", report.Copied, report.Skipped)
func Copy(ctx context.Context, src Backend, srcPath string, dst Backend, dstPath string, options ...Option) (*CopyReport, error) {
	opts := processOptions(options...)
	report := &CopyReport{}

	if !strings.HasSuffix(srcPath, "/") {
		if strings.HasSuffix(dstPath, "/") {
			dstPath = JoinPath(dstPath, BaseName(srcPath))
		}
		report.Total = 1
		c := &copier{src: src, dst: dst, opts: opts, report: report}
		c.transfer(ctx, BaseName(srcPath), srcPath, dstPath)
		if opts.Progress != nil {
			opts.Progress(Progress{Path: BaseName(srcPath), Processed: 1, Discovered: 1, DiscoveryDone: true})
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		return report, report.Err()
	}

	if !strings.HasSuffix(dstPath, "/") {
		dstPath += "/"
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := newTransferQueue(opts.QueueSize)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return q.discover(gctx, src, srcPath, true, opts.Selector)
	})

	g.Go(func() error {
		c := &copier{src: src, dst: dst, opts: opts, report: report}
		var processed int64
		for node := range q.items {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.transfer(gctx, node.Name, JoinPath(srcPath, node.Name), JoinPath(dstPath, node.Name))
			processed++
			if opts.Progress != nil {
				opts.Progress(q.progress(node.Name, processed))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		report.Total = q.discovered.Load()
		return report, fmt.Errorf("copy %s: %w", srcPath, err)
	}

	report.Total = q.discovered.Load()
	report.Discovery = q.err
	if q.err != nil {
		opts.Metrics.DiscoveryFailed(metrics.OpCopy)
		opts.Logger.Error("source traversal stopped early, copy is partial",
			zap.String("root", srcPath),
			zap.Int64("discovered", q.err.Discovered),
			zap.Error(q.err.Err))
	}

	opts.Logger.Info("copy finished",
		zap.String("source", srcPath),
		zap.String("destination", dstPath),
		zap.Int64("total", report.Total),
		zap.Int64("copied", report.Copied),
		zap.Int64("skipped", report.Skipped),
		zap.Int64("failed", report.Failed))

	return report, report.Err()
}

// copier transfers single files and records outcomes in report. It is used
// by exactly one goroutine.
type copier struct {
	src    Backend
	dst    Backend
	opts   *Options
	report *CopyReport
}

func (c *copier) transfer(ctx context.Context, name, srcPath, dstPath string) {
	started := time.Now()

	skipped, n, err := copyFile(ctx, c.src, srcPath, c.dst, dstPath)
	switch {
	case err != nil:
		c.report.Failed++
		c.report.Errors = append(c.report.Errors, NewPathError("copy", name, err))
		c.opts.Metrics.ObserveFile(metrics.OpCopy, metrics.OutcomeFailed, started)
		c.opts.Logger.Warn("copy failed",
			zap.String("path", name),
			zap.Error(err))
	case skipped:
		c.report.Skipped++
		c.opts.Metrics.ObserveFile(metrics.OpCopy, metrics.OutcomeSkipped, started)
		c.opts.Logger.Info("destination exists, skipping",
			zap.String("path", name),
			zap.String("destination", dstPath))
	default:
		c.report.Copied++
		c.report.Bytes += n
		c.opts.Metrics.AddBytes(n)
		c.opts.Metrics.ObserveFile(metrics.OpCopy, metrics.OutcomeCopied, started)
		c.opts.Logger.Debug("copied",
			zap.String("path", name),
			zap.Int64("bytes", n))
	}
}

// copyFile copies one file unless the destination exists. It returns the
// number of bytes read from the source.
func copyFile(ctx context.Context, src Backend, srcPath string, dst Backend, dstPath string) (skipped bool, n int64, err error) {
	exists, err := dst.Exists(ctx, dstPath)
	if err != nil {
		return false, 0, backendErr("exists", dstPath, err)
	}
	if exists {
		return true, 0, nil
	}

	in, err := src.OpenRead(ctx, srcPath)
	if err != nil {
		return false, 0, backendErr("open", srcPath, err)
	}
	defer in.Close()

	counter := &countingReader{r: in.Stream}
	err = dst.WriteFrom(ctx, dstPath, &ReadResponse{
		Stream:        counter,
		ContentType:   in.ContentType,
		ContentLength: in.ContentLength,
	})
	if err != nil {
		return false, counter.n, backendErr("write", dstPath, err)
	}
	return false, counter.n, nil
}

type countingReader struct {
	r io.ReadCloser
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) Close() error {
	return c.r.Close()
}

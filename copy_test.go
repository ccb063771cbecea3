package cloudfs_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gobeaver/cloudfs"
	"github.com/gobeaver/cloudfs/driver/memory"
	"github.com/gobeaver/cloudfs/internal/metrics"
)

var tree = map[string]string{
	"/src/a/b.txt":   "bee",
	"/src/a/c/d.txt": "dee",
	"/src/e.json":    `{"e":1}`,
}

func TestCopySingleFile(t *testing.T) {
	ctx := context.Background()
	src := seed(t, map[string]string{"/foo.txt": "hi"})

	t.Run("explicit destination", func(t *testing.T) {
		dst := memory.New()
		report, err := cloudfs.Copy(ctx, src, "/foo.txt", dst, "/out/bar.txt")
		if err != nil {
			t.Fatalf("Copy: %v", err)
		}
		if report.Copied != 1 || report.Total != 1 || report.Bytes != 2 {
			t.Errorf("report = %+v", report)
		}
		if got := readFile(t, dst, "/out/bar.txt"); got != "hi" {
			t.Errorf("content = %q, want hi", got)
		}
	})

	t.Run("destination directory gets base name", func(t *testing.T) {
		dst := memory.New()
		if _, err := cloudfs.Copy(ctx, src, "/foo.txt", dst, "/out/"); err != nil {
			t.Fatalf("Copy: %v", err)
		}
		if got := readFile(t, dst, "/out/foo.txt"); got != "hi" {
			t.Errorf("content = %q, want hi", got)
		}
	})

	t.Run("existing destination is not overwritten", func(t *testing.T) {
		dst := seed(t, map[string]string{"/foo.txt": "original"})
		report, err := cloudfs.Copy(ctx, src, "/foo.txt", dst, "/foo.txt")
		if err != nil {
			t.Fatalf("Copy: %v", err)
		}
		if report.Skipped != 1 || report.Copied != 0 {
			t.Errorf("report = %+v, want one skipped", report)
		}
		if got := readFile(t, dst, "/foo.txt"); got != "original" {
			t.Errorf("content = %q, want original", got)
		}
	})

	t.Run("missing source", func(t *testing.T) {
		report, err := cloudfs.Copy(ctx, src, "/nope.txt", memory.New(), "/nope.txt")
		if !cloudfs.IsNotExist(err) {
			t.Errorf("expected not-exist error, got %v", err)
		}
		var be *cloudfs.BackendError
		if !errors.As(err, &be) || be.Op != "open" {
			t.Errorf("expected *BackendError for open, got %v", err)
		}
		if report.Failed != 1 {
			t.Errorf("Failed = %d, want 1", report.Failed)
		}
	})
}

func TestCopyDirectory(t *testing.T) {
	ctx := context.Background()
	src := seed(t, tree)
	dst := memory.New()

	var mu sync.Mutex
	var progress []cloudfs.Progress
	report, err := cloudfs.Copy(ctx, src, "/src/", dst, "/backup",
		cloudfs.WithQueueSize(1),
		cloudfs.WithProgress(func(p cloudfs.Progress) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
		}))
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}

	if report.Total != 3 || report.Copied != 3 || report.Skipped != 0 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	if report.Partial() {
		t.Error("expected a complete run")
	}
	for p, content := range map[string]string{
		"/backup/a/b.txt":   "bee",
		"/backup/a/c/d.txt": "dee",
		"/backup/e.json":    `{"e":1}`,
	} {
		if got := readFile(t, dst, p); got != content {
			t.Errorf("%s = %q, want %q", p, got, content)
		}
	}

	// Files are processed in discovery order
	wantOrder := []string{"a/b.txt", "a/c/d.txt", "e.json"}
	if len(progress) != len(wantOrder) {
		t.Fatalf("progress calls = %d, want %d", len(progress), len(wantOrder))
	}
	for i, p := range progress {
		if p.Path != wantOrder[i] || p.Processed != int64(i+1) {
			t.Errorf("progress %d = %+v, want path %s", i, p, wantOrder[i])
		}
	}
	if last := progress[len(progress)-1]; last.Discovered != 3 {
		t.Errorf("final Discovered = %d, want 3", last.Discovered)
	}
}

func TestCopyIdempotent(t *testing.T) {
	ctx := context.Background()
	src := seed(t, tree)
	dst := newFaulty(memory.New())

	if _, err := cloudfs.Copy(ctx, src, "/src/", dst, "/backup/"); err != nil {
		t.Fatalf("first Copy: %v", err)
	}
	writes := dst.writes.Load()
	snapshot := map[string]string{}
	for _, p := range []string{"/backup/a/b.txt", "/backup/a/c/d.txt", "/backup/e.json"} {
		snapshot[p] = readFile(t, dst.Backend.(*memory.Adapter), p)
	}

	report, err := cloudfs.Copy(ctx, src, "/src/", dst, "/backup/")
	if err != nil {
		t.Fatalf("second Copy: %v", err)
	}
	if report.Skipped != 3 || report.Copied != 0 || report.Bytes != 0 {
		t.Errorf("second report = %+v, want every file skipped", report)
	}
	if dst.writes.Load() != writes {
		t.Errorf("second run wrote %d files", dst.writes.Load()-writes)
	}
	for p, content := range snapshot {
		if got := readFile(t, dst.Backend.(*memory.Adapter), p); got != content {
			t.Errorf("%s changed: %q -> %q", p, content, got)
		}
	}
}

func TestCopyContinuesAfterFileError(t *testing.T) {
	ctx := context.Background()
	src := newFaulty(seed(t, tree))
	boom := errors.New("read failed")
	src.openErr["/src/a/b.txt"] = boom
	dst := memory.New()

	report, err := cloudfs.Copy(ctx, src, "/src/", dst, "/backup/")
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want it to wrap %v", err, boom)
	}
	if report.Failed != 1 || report.Copied != 2 || len(report.Errors) != 1 {
		t.Errorf("report = %+v", report)
	}
	var pe *cloudfs.PathError
	if !errors.As(report.Errors[0], &pe) || pe.Path != "a/b.txt" {
		t.Errorf("per-file error = %v, want path a/b.txt", report.Errors[0])
	}
	if ok, _ := dst.Exists(ctx, "/backup/e.json"); !ok {
		t.Error("files after the failure should still be copied")
	}
}

func TestCopyDiscoveryFailureKeepsPartialResults(t *testing.T) {
	ctx := context.Background()
	src := newFaulty(seed(t, tree))
	boom := errors.New("listing failed")
	src.listErr["/src/a/c"] = boom
	dst := memory.New()

	report, err := cloudfs.Copy(ctx, src, "/src/", dst, "/backup/")
	var de *cloudfs.DiscoveryError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want *DiscoveryError", err)
	}
	if !errors.Is(err, boom) || de.Root != "/src/" || de.Discovered != 1 {
		t.Errorf("discovery error = %+v", de)
	}
	if report.Discovery == nil || !report.Partial() {
		t.Error("report should mark the run partial")
	}
	if report.Copied != 1 {
		t.Errorf("Copied = %d, want 1", report.Copied)
	}
	if got := readFile(t, dst, "/backup/a/b.txt"); got != "bee" {
		t.Errorf("partial result lost: %q", got)
	}
}

func TestCopyCancelled(t *testing.T) {
	src := seed(t, tree)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cloudfs.Copy(ctx, src, "/src/", memory.New(), "/backup/")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestCopyWithFilter(t *testing.T) {
	ctx := context.Background()
	src := seed(t, tree)
	dst := memory.New()

	report, err := cloudfs.Copy(ctx, src, "/src/", dst, "/backup/", cloudfs.WithFilter(cloudfs.MustGlob("**.txt")))
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if report.Total != 2 || report.Copied != 2 {
		t.Errorf("report = %+v", report)
	}
	if ok, _ := dst.Exists(ctx, "/backup/e.json"); ok {
		t.Error("filtered file was copied")
	}
}

func TestCopyMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatal(err)
	}

	src := seed(t, tree)
	dst := seed(t, map[string]string{"/backup/e.json": "old"})

	if _, err := cloudfs.Copy(ctx, src, "/src/", dst, "/backup/", cloudfs.WithMetrics(m)); err != nil {
		t.Fatalf("Copy: %v", err)
	}

	if got := testutil.ToFloat64(m.FilesTotal.WithLabelValues(metrics.OpCopy, metrics.OutcomeCopied)); got != 2 {
		t.Errorf("copied = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.FilesTotal.WithLabelValues(metrics.OpCopy, metrics.OutcomeSkipped)); got != 1 {
		t.Errorf("skipped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BytesCopied); got != 6 {
		t.Errorf("bytes = %v, want 6", got)
	}
}

package cloudfs_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/gobeaver/cloudfs"
)

func TestListNonRecursive(t *testing.T) {
	m := seed(t, map[string]string{
		"/a/b.txt":   "b",
		"/a/c/d.txt": "d",
		"/e.txt":     "e",
	})

	got := names(t, cloudfs.List(context.Background(), m, "/", false))
	want := []string{"a", "e.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List = %v, want %v", got, want)
	}
}

func TestListRecursiveOrder(t *testing.T) {
	m := seed(t, map[string]string{
		"/a/b.txt":   "b",
		"/a/c/d.txt": "dd",
	})

	var got []cloudfs.FsNode
	for node, err := range cloudfs.List(context.Background(), m, "/", true) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		got = append(got, node)
	}

	want := []struct {
		name  string
		isDir bool
	}{
		{"a", true},
		{"a/b.txt", false},
		{"a/c", true},
		{"a/c/d.txt", false},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d nodes, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Name != w.name || got[i].IsDir != w.isDir {
			t.Errorf("node %d = {%q dir=%v}, want {%q dir=%v}", i, got[i].Name, got[i].IsDir, w.name, w.isDir)
		}
	}

	// Metadata belongs to each node, not to its top-level ancestor
	if l := got[3].ContentLength; l == nil || *l != 2 {
		t.Errorf("a/c/d.txt ContentLength = %v, want 2", l)
	}
}

func TestListFreshCallsPerSequence(t *testing.T) {
	f := newFaulty(seed(t, map[string]string{"/x/y.txt": "y"}))
	seq := cloudfs.List(context.Background(), f, "/", true)

	first := names(t, seq)
	afterFirst := f.lists.Load()
	second := names(t, cloudfs.List(context.Background(), f, "/", true))

	if !reflect.DeepEqual(first, second) {
		t.Errorf("sequences differ: %v vs %v", first, second)
	}
	if f.lists.Load() != 2*afterFirst {
		t.Errorf("expected fresh backend calls, got %d then %d", afterFirst, f.lists.Load())
	}
}

func TestListLazy(t *testing.T) {
	f := newFaulty(seed(t, map[string]string{"/a/b.txt": "b"}))
	_ = cloudfs.List(context.Background(), f, "/", true)
	if n := f.lists.Load(); n != 0 {
		t.Errorf("expected no backend calls before iteration, got %d", n)
	}
}

func TestListPropagatesBackendError(t *testing.T) {
	boom := errors.New("listing exploded")
	f := newFaulty(seed(t, map[string]string{
		"/a/c/d.txt": "d",
		"/z.txt":     "z",
	}))
	f.listErr["/a"] = boom

	var got []string
	var gotErr error
	for node, err := range cloudfs.List(context.Background(), f, "/", true) {
		if err != nil {
			gotErr = err
			continue
		}
		got = append(got, node.Name)
	}

	if gotErr != boom {
		t.Errorf("error = %v, want the backend error unchanged", gotErr)
	}
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("nodes before failure = %v, want [a]", got)
	}
}

func TestListEarlyBreak(t *testing.T) {
	m := seed(t, map[string]string{"/a/b.txt": "b", "/c.txt": "c"})
	n := 0
	for range cloudfs.List(context.Background(), m, "/", true) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterations = %d, want 2", n)
	}
}

func TestListCancelled(t *testing.T) {
	m := seed(t, map[string]string{"/a/b.txt": "b"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, err := range cloudfs.List(ctx, m, "/", true) {
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	}
}

func TestListWithSelector(t *testing.T) {
	m := seed(t, map[string]string{
		"/a/b.txt":    "b",
		"/a/c/d.json": "{}",
		"/a/c/e.txt":  "e",
		"/skip/f.txt": "f",
		"/top.txt":    "t",
	})
	ctx := context.Background()

	t.Run("glob", func(t *testing.T) {
		got := names(t, cloudfs.List(ctx, m, "/", true, cloudfs.WithSelector(cloudfs.MustGlob("**.txt"))))
		want := []string{"a/b.txt", "a/c/e.txt", "skip/f.txt", "top.txt"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("prune", func(t *testing.T) {
		sel := &pruneSelector{skip: "skip"}
		got := names(t, cloudfs.List(ctx, m, "/", true, cloudfs.WithSelector(sel)))
		for _, n := range got {
			if strings.HasPrefix(n, "skip/") {
				t.Errorf("descended into pruned directory: %v", got)
			}
		}
		if len(got) != 7 {
			t.Errorf("got %v", got)
		}
	})
}

type pruneSelector struct{ skip string }

func (s *pruneSelector) Match(*cloudfs.FsNode) bool { return true }
func (s *pruneSelector) Traverse(n *cloudfs.FsNode) bool {
	return n.Name != s.skip
}

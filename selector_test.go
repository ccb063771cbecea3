package cloudfs

import "testing"

func TestGlobSelector(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*.txt", "a.txt", true},
		{"*.txt", "dir/a.txt", false},
		{"**.txt", "dir/sub/a.txt", true},
		{"logs/2024-*", "logs/2024-01.log", true},
		{"logs/2024-*", "logs/2023-12.log", false},
		{"{a,b}/*", "b/x", true},
		{"photo?.jpg", "photo1.jpg", true},
	}
	for _, tt := range tests {
		sel := MustGlob(tt.pattern)
		node := &FsNode{Name: tt.name}
		if got := sel.Match(node); got != tt.want {
			t.Errorf("Glob(%q).Match(%q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
		if !sel.Traverse(&FsNode{IsDir: true, Name: "any"}) {
			t.Errorf("Glob(%q) should traverse every directory", tt.pattern)
		}
	}
}

func TestGlobInvalid(t *testing.T) {
	if _, err := Glob("[unclosed"); err == nil {
		t.Error("expected an error for an invalid pattern")
	}
	defer func() {
		if recover() == nil {
			t.Error("MustGlob should panic on an invalid pattern")
		}
	}()
	MustGlob("[unclosed")
}

func TestSelectorComposition(t *testing.T) {
	txt := MustGlob("**.txt")
	small := FuncSelector(func(n *FsNode) bool {
		return n.ContentLength != nil && *n.ContentLength < 10
	})

	tests := []struct {
		name string
		sel  Selector
		node FsNode
		want bool
	}{
		{"all", All(), FsNode{Name: "x"}, true},
		{"and both", And(txt, small), FsNode{Name: "a.txt", ContentLength: Int64(3)}, true},
		{"and one", And(txt, small), FsNode{Name: "a.txt", ContentLength: Int64(30)}, false},
		{"and empty", And(), FsNode{Name: "x"}, true},
		{"not", Not(txt), FsNode{Name: "a.json"}, true},
		{"not matching", Not(txt), FsNode{Name: "a.txt"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := tt.node
			if got := tt.sel.Match(&node); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}

	dir := &FsNode{IsDir: true, Name: "d"}
	if !Not(txt).Traverse(dir) || !And(txt, small).Traverse(dir) {
		t.Error("composed selectors should keep traversal of their parts")
	}
}

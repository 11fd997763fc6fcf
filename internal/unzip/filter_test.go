package unzip

import (
	"testing"

	"github.com/keithlinneman/lambda-utility/internal/pathutil"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		pred Predicate
		path string
		want bool
	}{
		{"regex search", MustRegex(`b/c`), "a/b/c.txt", true},
		{"regex anchored", MustRegex(`^b/`), "a/b/c.txt", false},
		{"regex sees normalized path", MustRegex(`^a/b\.txt$`), `a\b.txt`, true},
		{"ext match", Ext("png", ".jpg"), "x/y.JPG", true},
		{"ext miss", Ext("png"), "x/y.png.bak", false},
		{"ext none", Ext(), "x/y.png", false},
		{"under", Under("a/b"), "a/b/c.txt", true},
		{"under is element-wise", Under("a/b"), "a/bc/d.txt", false},
		{"under root", Under(""), "anything", true},
		{"func", Func(func(p pathutil.Path) bool { return p.Base() == "c.txt" }), "a/b/c.txt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred.Match(pathutil.NewPath(tt.path)); got != tt.want {
				t.Fatalf("Match(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestMatchAllAny_EmptySets(t *testing.T) {
	p := pathutil.NewPath("a.txt")
	if !matchAll(nil, p) {
		t.Error("matchAll(nil) should accept")
	}
	if matchAny(nil, p) {
		t.Error("matchAny(nil) should reject")
	}
}

func TestCompact(t *testing.T) {
	var nilFunc Func
	got := compact([]Predicate{nil, nilFunc, Regex(nil), Ext("txt")})
	if len(got) != 1 {
		t.Fatalf("compact kept %d predicates, want 1", len(got))
	}
}

func TestMustRegex_PanicsOnInvalid(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustRegex(`(`)
}

package pathutil

import (
	"reflect"
	"testing"
)

func TestNewPath_Normalizes(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantDir bool
	}{
		{"a/b/c.png", "a/b/c.png", false},
		{"a//b/./c.png", "a/b/c.png", false},
		{`a\b\c.png`, "a/b/c.png", false},
		{"a/b/", "a/b", true},
		{"", "", false},
	}
	for _, tt := range tests {
		p := NewPath(tt.in)
		if p.String() != tt.want {
			t.Errorf("NewPath(%q).String() = %q, want %q", tt.in, p.String(), tt.want)
		}
		if p.IsDir() != tt.wantDir {
			t.Errorf("NewPath(%q).IsDir() = %v, want %v", tt.in, p.IsDir(), tt.wantDir)
		}
		if p.Raw() != tt.in {
			t.Errorf("NewPath(%q).Raw() = %q", tt.in, p.Raw())
		}
	}
}

func TestPath_Components(t *testing.T) {
	p := NewPath("renders/shot_010/frame_0007.PNG")

	if got := p.Base(); got != "frame_0007.PNG" {
		t.Errorf("Base = %q", got)
	}
	if got := p.Dir(); got != "renders/shot_010" {
		t.Errorf("Dir = %q", got)
	}
	if got := p.Ext(); got != ".PNG" {
		t.Errorf("Ext = %q", got)
	}
	if got := p.Stem(); got != "frame_0007" {
		t.Errorf("Stem = %q", got)
	}
	if got := p.Parts(); !reflect.DeepEqual(got, []string{"renders", "shot_010", "frame_0007.PNG"}) {
		t.Errorf("Parts = %v", got)
	}
}

func TestPath_HasPrefix(t *testing.T) {
	p := NewPath("renders/shot_010/frame.png")

	for _, dir := range []string{"renders", "renders/", "renders/shot_010", "", "."} {
		if !p.HasPrefix(dir) {
			t.Errorf("HasPrefix(%q) = false, want true", dir)
		}
	}
	for _, dir := range []string{"render", "renders/shot_01", "other"} {
		if p.HasPrefix(dir) {
			t.Errorf("HasPrefix(%q) = true, want false", dir)
		}
	}
}

func TestPath_MatchAndSuffix(t *testing.T) {
	p := NewPath("a/frame_001.png")

	if !p.Match("frame_*.png") {
		t.Error("Match(frame_*.png) = false")
	}
	if p.Match("[") {
		t.Error("malformed pattern should not match")
	}
	if !p.HasSuffixFold("PNG") || !p.HasSuffixFold(".png") {
		t.Error("HasSuffixFold should ignore case and leading dot")
	}
	if p.HasSuffixFold("") || p.HasSuffixFold("jpg") {
		t.Error("HasSuffixFold matched wrong extension")
	}
}

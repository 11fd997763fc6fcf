package version_test

import (
	"strings"
	"testing"

	v "github.com/keithlinneman/lambda-utility/internal/version"
)

func TestVCSDirtyTriState(t *testing.T) {
	orig := v.VCSDirty
	t.Cleanup(func() { v.VCSDirty = orig })

	trueVal := true
	v.VCSDirty = &trueVal
	if info := v.Get(); info.VCSDirty == nil || !*info.VCSDirty {
		t.Fatalf("VCSDirty = %v, want true", info.VCSDirty)
	}

	falseVal := false
	v.VCSDirty = &falseVal
	if info := v.Get(); info.VCSDirty == nil || *info.VCSDirty {
		t.Fatalf("VCSDirty = %v, want false", info.VCSDirty)
	}
}

func TestInfoString(t *testing.T) {
	dirty := true
	info := v.Info{AppName: "lambda-utility", Version: "1.4.0", Commit: "abc123", GoVersion: "go1.24", VCSDirty: &dirty}

	s := info.String()
	for _, want := range []string{"lambda-utility 1.4.0", "commit=abc123", "go=go1.24", "dirty=true"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

func TestGet_Defaults(t *testing.T) {
	info := v.Get()
	if info.AppName != v.AppName {
		t.Fatalf("AppName = %q", info.AppName)
	}
	if info.Version == "" || info.Commit == "" {
		t.Fatalf("Version/Commit should never be empty: %+v", info)
	}
}

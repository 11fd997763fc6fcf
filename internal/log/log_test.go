package log

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseLevel_Invalid(t *testing.T) {
	for _, in := range []string{"", "trace", "fatal", "info error"} {
		_, err := ParseLevel(in)
		if err == nil {
			t.Errorf("ParseLevel(%q) should fail", in)
			continue
		}
		if !strings.Contains(err.Error(), "debug|info|warn|error") {
			t.Errorf("error should list valid levels: %v", err)
		}
	}
}

func TestNoop(t *testing.T) {
	var l Logger = Noop{}
	ctx := context.Background()
	l.Debug(ctx, "m")
	l.Info(ctx, "m")
	l.Warn(ctx, "m")
	l.Error(ctx, errors.New("e"), "m")
	l.Error(ctx, nil, "m")
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if _, ok := l.With("a", 1).With("b", 2).(Noop); !ok {
		t.Fatal("With should return Noop")
	}
	if _, ok := Nop().(Noop); !ok {
		t.Fatal("Nop should return Noop")
	}
}

func TestContext(t *testing.T) {
	if _, ok := FromContext(context.Background()).(Noop); !ok {
		t.Fatal("empty context should yield Noop")
	}

	l, err := New(Options{App: "lu", Writer: io.Discard})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	parent := context.Background()
	child := WithContext(parent, l)
	if FromContext(child) != l {
		t.Fatal("child context should carry the logger")
	}
	if FromContext(parent) == l {
		t.Fatal("parent context should be unaffected")
	}

	other := l.With("k", "v")
	if FromContext(WithContext(child, other)) != other {
		t.Fatal("second WithContext should win")
	}

	var nilLogger Logger
	if _, ok := FromContext(WithContext(parent, nilLogger)).(Noop); !ok {
		t.Fatal("nil logger should fall back to Noop")
	}
}

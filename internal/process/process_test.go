package process

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"strings"
	"testing"
	"time"
)

type stringer string

func (s stringer) String() string { return "<" + string(s) + ">" }

func TestOptionize(t *testing.T) {
	tests := []struct {
		name   string
		params []any
		want   []string
	}{
		{
			name:   "mixed",
			params: []any{"-y", Flag{"-pix_fmt", "yuv420p"}, Flag{"-framerate", 29.97}, Flag{"-condition", true}, Flag{"-condition2", false}, Flag{"-condition3", nil}},
			want:   []string{"-y", "-pix_fmt", "yuv420p", "-framerate", "29.97", "-condition"},
		},
		{
			name:   "numbers",
			params: []any{1, int64(-2), 0.5, float32(2.25)},
			want:   []string{"1", "-2", "0.5", "2.25"},
		},
		{
			name:   "stringer and flag value stringer",
			params: []any{stringer("a"), Flag{"-v", stringer("b")}},
			want:   []string{"<a>", "-v", "<b>"},
		},
		{
			name:   "slices flatten",
			params: []any{[]string{"-i", "in.mp4"}, []any{"-crf", 23}},
			want:   []string{"-i", "in.mp4", "-crf", "23"},
		},
		{
			name:   "nil skipped",
			params: []any{nil, "x"},
			want:   []string{"x"},
		},
		{
			name:   "empty",
			params: nil,
			want:   []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Optionize(tt.params...); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Optionize = %q, want %q", got, tt.want)
			}
		})
	}
}

func needShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

type recorder struct {
	program string
	err     error
	n       int
}

func (r *recorder) ObserveSubprocess(program string, err error) {
	r.program, r.err = program, err
	r.n++
}

func TestRun_CapturesOutput(t *testing.T) {
	needShell(t)
	obs := &recorder{}

	out, errOut, err := Runner{Observer: obs}.Run(context.Background(), "sh", "-c", "echo hello; echo warn >&2")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(out) != "hello\n" || string(errOut) != "warn\n" {
		t.Fatalf("stdout=%q stderr=%q", out, errOut)
	}
	if obs.n != 1 || obs.program != "sh" || obs.err != nil {
		t.Fatalf("observer = %+v", obs)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	needShell(t)

	_, _, err := Run(context.Background(), "sh", "-c", "echo partial; echo first >&2; echo boom >&2; exit 3")
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("err %T is not *Error: %v", err, err)
	}
	if perr.ExitCode != 3 {
		t.Errorf("ExitCode = %d", perr.ExitCode)
	}
	if perr.Command != "sh -c echo partial; echo first >&2; echo boom >&2; exit 3" {
		t.Errorf("Command = %q", perr.Command)
	}
	if string(perr.Stdout) != "partial\n" || !strings.Contains(string(perr.Stderr), "boom") {
		t.Errorf("stdout=%q stderr=%q", perr.Stdout, perr.Stderr)
	}
	if !strings.HasSuffix(err.Error(), "exit status 3: boom") {
		t.Errorf("Error() = %q", err)
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Error("should unwrap to *exec.ExitError")
	}
}

func TestRun_NotFound(t *testing.T) {
	_, _, err := Run(context.Background(), "definitely-not-a-real-program-7f3a")
	if err == nil {
		t.Fatal("expected error")
	}
	var perr *Error
	if errors.As(err, &perr) {
		t.Fatal("a start failure is not an exit failure")
	}
	if !errors.Is(err, exec.ErrNotFound) {
		t.Fatalf("err = %v, want exec.ErrNotFound", err)
	}
}

func TestRun_ContextCanceled(t *testing.T) {
	needShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := Run(ctx, "sh", "-c", "exec sleep 10")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("process was not killed")
	}
}

func TestRunner_DirAndEnv(t *testing.T) {
	needShell(t)
	dir := t.TempDir()

	out, _, err := Runner{Dir: dir, Env: []string{"FRAME=42"}}.Run(context.Background(), "/bin/sh", "-c", "pwd; echo $FRAME")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 2 || lines[0] != dir || lines[1] != "42" {
		t.Fatalf("output = %q", out)
	}
}

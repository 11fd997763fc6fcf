// Package process runs external programs and builds their argument lists.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/keithlinneman/lambda-utility/internal/log"
	"github.com/keithlinneman/lambda-utility/internal/xerrors"
)

// Error is returned when a program exits non-zero.
type Error struct {
	ExitCode int
	// Command is the full command line, space-joined.
	Command string
	Stdout  []byte
	Stderr  []byte

	err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("command failed: %s: exit status %d", e.Command, e.ExitCode)
	if s := lastLine(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *Error) Unwrap() error { return e.err }

func lastLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// Observer is implemented by the metrics package.
type Observer interface {
	ObserveSubprocess(program string, err error)
}

type Runner struct {
	// Dir is the working directory; empty means the current one.
	Dir string

	// Env replaces the environment when non-nil.
	Env []string

	Observer Observer
}

// Run uses a zero Runner.
func Run(ctx context.Context, command string, args ...string) (stdout, stderr []byte, err error) {
	return Runner{}.Run(ctx, command, args...)
}

// Run executes command and waits for it. Output is captured in full. A
// non-zero exit yields *Error; a canceled ctx kills the process and the
// returned error also matches ctx.Err().
func (r Runner) Run(ctx context.Context, command string, args ...string) (stdout, stderr []byte, err error) {
	line := strings.Join(append([]string{command}, args...), " ")
	l := log.FromContext(ctx)
	l.Debug(ctx, "subprocess run", "command", line)

	defer func() {
		if r.Observer != nil {
			r.Observer.ObserveSubprocess(command, err)
		}
	}()

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = r.Dir
	cmd.Env = r.Env
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stdout, stderr = outBuf.Bytes(), errBuf.Bytes()

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return stdout, stderr, xerrors.Mark(xerrors.Wrapf(runErr, "run %s", command), ctx.Err())
		}
		perr := &Error{
			ExitCode: exitErr.ExitCode(),
			Command:  line,
			Stdout:   stdout,
			Stderr:   stderr,
			err:      runErr,
		}
		if cerr := ctx.Err(); cerr != nil {
			return stdout, stderr, xerrors.Mark(perr, cerr)
		}
		return stdout, stderr, xerrors.WithStack(perr)
	}

	l.Debug(ctx, "subprocess stdout", "stdout", string(stdout))
	l.Debug(ctx, "subprocess stderr", "stderr", string(stderr))
	return stdout, stderr, nil
}

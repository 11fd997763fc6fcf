package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

type withStack struct {
	err error
	pcs []uintptr
}

func (w *withStack) Error() string       { return w.err.Error() }
func (w *withStack) Unwrap() error       { return w.err }
func (w *withStack) StackPCs() []uintptr { return w.pcs }
func (w *withStack) IsXerrorsWrapper()   {}

func captureStack(skip int) []uintptr {
	const maxDepth = 64
	pcs := make([]uintptr, maxDepth)
	// value of 2 means skip runtime.Callers + captureStack
	n := runtime.Callers(2+skip, pcs)
	return pcs[:n]
}

func withStackSkip(err error, skip int) error {
	if err == nil {
		return nil
	}
	return &withStack{err: err, pcs: captureStack(skip)}
}

func WithStack(err error) error { return withStackSkip(err, 2) }

// EnsureTrace adds a stack to err unless something in its chain already carries one.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	type hasStack interface{ StackPCs() []uintptr }
	var hs hasStack
	if errors.As(err, &hs) && hs != nil && len(hs.StackPCs()) > 0 {
		return err
	}
	return withStackSkip(err, 2)
}

type wrap struct {
	err error
	msg string
	pc  uintptr
}

func (w *wrap) Error() string     { return w.msg + ": " + w.err.Error() }
func (w *wrap) Unwrap() error     { return w.err }
func (w *wrap) PC() uintptr       { return w.pc }
func (w *wrap) IsXerrorsWrapper() {}

func callerPC(skip int) uintptr {
	var pcs [1]uintptr
	// value of 2 means skip runtime.Callers + callerPC
	if n := runtime.Callers(2+skip, pcs[:]); n == 0 {
		return 0
	}
	return pcs[0]
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrap{err: err, msg: msg, pc: callerPC(1)}
}
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrap{err: err, msg: fmt.Sprintf(format, args...), pc: callerPC(1)}
}

func New(msg string) error             { return withStackSkip(errors.New(msg), 2) }
func Newf(f string, args ...any) error { return withStackSkip(fmt.Errorf(f, args...), 2) }

// marked tags a cause with a sentinel kind. The message is the cause's message,
// errors.Is matches both the kind and anything in the cause chain.
type marked struct {
	err  error
	kind error
	pc   uintptr
}

func (m *marked) Error() string     { return m.err.Error() }
func (m *marked) Unwrap() []error   { return []error{m.err, m.kind} }
func (m *marked) PC() uintptr       { return m.pc }
func (m *marked) Kind() error       { return m.kind }
func (m *marked) IsXerrorsWrapper() {}

// Mark returns err tagged with kind so callers can classify it with errors.Is
// without losing the original cause. A nil err stays nil; a nil kind returns err.
func Mark(err, kind error) error {
	if err == nil {
		return nil
	}
	if kind == nil {
		return err
	}
	return &marked{err: err, kind: kind, pc: callerPC(1)}
}

// Markf is Mark over a formatted message: the result reads "msg: kind".
func Markf(kind error, format string, args ...any) error {
	return &marked{
		err:  fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind),
		kind: kind,
		pc:   callerPC(1),
	}
}

// KindOf returns the kind attached by the outermost Mark in err's chain, or nil.
func KindOf(err error) error {
	type hasKind interface{ Kind() error }
	var hk hasKind
	if errors.As(err, &hk) {
		return hk.Kind()
	}
	return nil
}

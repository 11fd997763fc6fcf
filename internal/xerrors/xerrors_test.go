package xerrors

import (
	"errors"
	"io/fs"
	"runtime"
	"strings"
	"testing"
)

var (
	errSentinel = errors.New("sentinel")
	errKind     = errors.New("member not found")
	errOther    = errors.New("other kind")
)

// stackContains checks if any frame in PCs contains the given function name substring.
func stackContains(pcs []uintptr, substr string) bool {
	frames := runtime.CallersFrames(pcs)
	for {
		fr, more := frames.Next()
		if strings.Contains(fr.Function, substr) {
			return true
		}
		if !more {
			break
		}
	}
	return false
}

// New / Newf

func TestNew_StackContainsCaller(t *testing.T) {
	err := New("test")

	var hs interface{ StackPCs() []uintptr }
	if !errors.As(err, &hs) {
		t.Fatal("New error should have StackPCs")
	}
	if !stackContains(hs.StackPCs(), "TestNew_StackContainsCaller") {
		t.Fatal("stack should contain calling function")
	}
}

func TestNewf_FormatsMessage(t *testing.T) {
	err := Newf("open %s: %d members", "frames.zip", 3)
	want := "open frames.zip: 3 members"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

// Wrap / Wrapf

func TestWrap_NilReturnsNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Fatal("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Fatal("Wrapf(nil) should return nil")
	}
}

func TestWrapf_FormatsAndUnwraps(t *testing.T) {
	err := Wrapf(errSentinel, "extract %q", "a/001.png")

	want := `extract "a/001.png": sentinel`
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, errSentinel) {
		t.Fatal("should unwrap to sentinel")
	}

	var hp interface{ PC() uintptr }
	if !errors.As(err, &hp) || hp.PC() == 0 {
		t.Fatal("Wrapf should capture a non-zero PC")
	}
}

func TestChainedWrap_ErrorMessage(t *testing.T) {
	base := errors.New("eof")
	w1 := Wrap(base, "read member")
	w2 := Wrap(w1, "extract archive")

	want := "extract archive: read member: eof"
	if w2.Error() != want {
		t.Fatalf("Error() = %q, want %q", w2.Error(), want)
	}
	if !errors.Is(w2, base) {
		t.Fatal("should unwrap through full chain")
	}
}

// EnsureTrace

func TestEnsureTrace(t *testing.T) {
	if EnsureTrace(nil) != nil {
		t.Fatal("EnsureTrace(nil) should return nil")
	}

	traced := EnsureTrace(errSentinel)
	var hs interface{ StackPCs() []uintptr }
	if !errors.As(traced, &hs) || len(hs.StackPCs()) == 0 {
		t.Fatal("should add stack to plain error")
	}
	if !errors.Is(traced, errSentinel) {
		t.Fatal("should still unwrap to sentinel")
	}

	first := New("already traced")
	if EnsureTrace(first) != first { //nolint:errorlint // testing error identity
		t.Fatal("EnsureTrace should return same error if already stacked")
	}
}

// Mark / Markf / KindOf

func TestMark_NilCases(t *testing.T) {
	if Mark(nil, errKind) != nil {
		t.Fatal("Mark(nil, kind) should return nil")
	}
	if got := Mark(errSentinel, nil); got != errSentinel { //nolint:errorlint // testing identity
		t.Fatalf("Mark(err, nil) = %v, want original error", got)
	}
}

func TestMark_MatchesKindAndCause(t *testing.T) {
	cause := &fs.PathError{Op: "open", Path: "/tmp/x", Err: fs.ErrPermission}
	err := Mark(cause, errKind)

	if err.Error() != cause.Error() {
		t.Fatalf("Error() = %q, want cause message %q", err.Error(), cause.Error())
	}
	if !errors.Is(err, errKind) {
		t.Fatal("should match kind")
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatal("should match cause chain")
	}
	if errors.Is(err, errOther) {
		t.Fatal("should not match unrelated kind")
	}

	var pe *fs.PathError
	if !errors.As(err, &pe) || pe.Path != "/tmp/x" {
		t.Fatal("errors.As should reach the cause")
	}
}

func TestMark_SurvivesWrap(t *testing.T) {
	err := Wrap(Mark(errSentinel, errKind), "extract")

	if !errors.Is(err, errKind) {
		t.Fatal("kind should survive outer Wrap")
	}
	if KindOf(err) != errKind { //nolint:errorlint // testing identity
		t.Fatalf("KindOf = %v, want %v", KindOf(err), errKind)
	}
}

func TestMarkf_Message(t *testing.T) {
	err := Markf(errKind, "extract %q", "x.txt")

	want := `extract "x.txt": member not found`
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, errKind) {
		t.Fatal("should match kind")
	}

	var hp interface{ PC() uintptr }
	if !errors.As(err, &hp) || hp.PC() == 0 {
		t.Fatal("Markf should capture a non-zero PC")
	}
}

func TestKindOf_Unmarked(t *testing.T) {
	if KindOf(errSentinel) != nil {
		t.Fatal("unmarked error should have nil kind")
	}
	if KindOf(nil) != nil {
		t.Fatal("nil error should have nil kind")
	}
}

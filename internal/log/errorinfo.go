package log

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

type hasPC interface {
	PC() uintptr
}

type hasKind interface {
	Kind() error
}

// unwrapOne follows the primary cause. For multi-errors that is the first
// entry, which is where xerrors.Mark keeps the cause.
func unwrapOne(err error) error {
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return u.Unwrap()
	case interface{ Unwrap() []error }:
		if errs := u.Unwrap(); len(errs) > 0 {
			return errs[0]
		}
	}
	return nil
}

func errorFields(err error, links bool, maxLinks int) []any {
	surface, root := classifyTypes(err)
	kv := []any{
		"err", err,
		"error_type", surface,
		"cause_type", root,
	}
	var hk hasKind
	if errors.As(err, &hk) && hk.Kind() != nil {
		kv = append(kv, "error_kind", hk.Kind().Error())
	}
	if chain := errorChain(err); len(chain) > 1 {
		kv = append(kv, "error_chain", chain)
	}
	if links {
		kv = append(kv, "error_links", chainLinks(err, maxLinks))
	}
	return kv
}

// stackOf returns the first captured stack in err's chain.
func stackOf(err error) []uintptr {
	for e := err; e != nil; e = unwrapOne(e) {
		if hs, ok := e.(hasStack); ok {
			if pcs := hs.StackPCs(); len(pcs) > 0 {
				return pcs
			}
		}
	}
	return nil
}

// errorChain lists distinct messages from the outermost error inwards.
func errorChain(err error) []string {
	var out []string
	var prev string
	for e := err; e != nil; e = unwrapOne(e) {
		if msg := e.Error(); msg != prev {
			out = append(out, msg)
			prev = msg
		}
	}
	// errors.Join and multi-%w: the loop above only followed the first branch
	if j, ok := err.(interface{ Unwrap() []error }); ok && !isXerrors(err) {
		errs := j.Unwrap()
		for i := 1; i < len(errs); i++ {
			e := errs[i]
			if msg := e.Error(); msg != prev {
				out = append(out, msg)
				prev = msg
			}
		}
	}
	return out
}

// chainLinks records where each wrapping layer was created.
func chainLinks(err error, max int) []map[string]any {
	var links []map[string]any
	depth := 0
	for e := err; e != nil && (max <= 0 || depth < max); e = unwrapOne(e) {
		link := map[string]any{"msg": e.Error()}
		fn, file, line, ok := "", "", 0, false
		switch v := e.(type) {
		case hasPC:
			fn, file, line, ok = frameFromPC(v.PC())
		case hasStack:
			fn, file, line, ok = firstExtFrame(v.StackPCs())
		}
		if ok {
			link["func"], link["file"], link["line"] = fn, file, line
		}
		if depth == 0 || ok {
			links = append(links, link)
		}
		depth++
	}
	return links
}

func frameFromPC(pc uintptr) (fn, file string, line int, ok bool) {
	if pc == 0 {
		return "", "", 0, false
	}
	fr, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	return fr.Function, fr.File, fr.Line, true
}

func firstExtFrame(pcs []uintptr) (fn, file string, line int, ok bool) {
	frames := runtime.CallersFrames(pcs)
	for {
		fr, more := frames.Next()
		if fr.Function != "" && !strings.HasPrefix(fr.Function, "runtime.") && !internalFrame(fr.Function) {
			return fr.Function, fr.File, fr.Line, true
		}
		if !more {
			return "", "", 0, false
		}
	}
}

func isXerrors(err error) bool {
	_, ok := err.(interface{ IsXerrorsWrapper() })
	return ok
}

// classifyTypes returns the first non-wrapper type in the chain and the type
// of the innermost cause.
func classifyTypes(err error) (surface, root string) {
	if err == nil {
		return "", ""
	}
	var last error
	for e := err; e != nil; e = unwrapOne(e) {
		last = e
		if surface != "" || isXerrors(e) {
			continue
		}
		t := reflect.TypeOf(e)
		u := t
		for u.Kind() == reflect.Ptr {
			u = u.Elem()
		}
		if u.PkgPath() == "fmt" && u.Name() == "wrapError" {
			continue
		}
		surface = t.String()
	}
	if surface == "" {
		surface = fmt.Sprintf("%T", err)
	}
	return surface, fmt.Sprintf("%T", last)
}

package unzip

import (
	"regexp"

	"github.com/keithlinneman/lambda-utility/internal/pathutil"
)

// Predicate decides whether a member path is selected.
type Predicate interface {
	Match(p pathutil.Path) bool
}

// Func adapts an ordinary function to a Predicate.
type Func func(p pathutil.Path) bool

func (f Func) Match(p pathutil.Path) bool { return f(p) }

type regexPredicate struct{ re *regexp.Regexp }

func (r regexPredicate) Match(p pathutil.Path) bool { return r.re.MatchString(p.String()) }

func (r regexPredicate) String() string { return r.re.String() }

// Regex returns a Predicate that accepts a path when re matches anywhere in it.
func Regex(re *regexp.Regexp) Predicate { return regexPredicate{re: re} }

// MustRegex compiles expr and panics if it is invalid.
func MustRegex(expr string) Predicate { return Regex(regexp.MustCompile(expr)) }

// Ext accepts paths whose extension is one of exts, case-insensitively.
func Ext(exts ...string) Predicate {
	return Func(func(p pathutil.Path) bool {
		for _, e := range exts {
			if p.HasSuffixFold(e) {
				return true
			}
		}
		return false
	})
}

// Under accepts paths inside dir.
func Under(dir string) Predicate {
	return Func(func(p pathutil.Path) bool { return p.HasPrefix(dir) })
}

// compact drops nil predicates so callers can build sets conditionally.
func compact(preds []Predicate) []Predicate {
	out := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		switch v := p.(type) {
		case nil:
			continue
		case Func:
			if v == nil {
				continue
			}
		case regexPredicate:
			if v.re == nil {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// matchAll is true when every predicate accepts p; an empty set accepts everything.
func matchAll(preds []Predicate, p pathutil.Path) bool {
	for _, pred := range preds {
		if !pred.Match(p) {
			return false
		}
	}
	return true
}

// matchAny is true when at least one predicate accepts p; an empty set accepts nothing.
func matchAny(preds []Predicate, p pathutil.Path) bool {
	for _, pred := range preds {
		if pred.Match(p) {
			return true
		}
	}
	return false
}

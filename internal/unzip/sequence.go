package unzip

import (
	"regexp"
	"sort"
	"strings"

	"github.com/keithlinneman/lambda-utility/internal/xerrors"
)

// SequenceNames returns the valid names ending in "<digits>.<ext>" ordered by
// the numeric value of the digits. Names without such a suffix are skipped.
// Two names with the same number fail with a *DuplicateSequenceError.
func (a *Archive) SequenceNames(ext string) ([]string, error) {
	names, err := a.ValidNames()
	if err != nil {
		return nil, err
	}

	ext = strings.TrimLeft(ext, ".")
	re, err := regexp.Compile(`(?i)(\d+)\.` + regexp.QuoteMeta(ext) + `$`)
	if err != nil {
		return nil, xerrors.Wrapf(err, "compile sequence pattern for %q", ext)
	}

	type entry struct {
		num  string
		name string
	}
	seen := make(map[string]string)
	entries := make([]entry, 0, len(names))
	for _, name := range names {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		num := canonicalDigits(m[1])
		if prev, dup := seen[num]; dup {
			return nil, xerrors.WithStack(&DuplicateSequenceError{Number: num, First: prev, Second: name})
		}
		seen[num] = name
		entries = append(entries, entry{num: num, name: name})
	}

	sort.Slice(entries, func(i, j int) bool {
		return lessDigits(entries[i].num, entries[j].num)
	})

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out, nil
}

// canonicalDigits strips leading zeros so "007" and "7" compare equal.
// Digit runs are kept as strings so arbitrarily long numbers never overflow.
func canonicalDigits(s string) string {
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	return s
}

// lessDigits orders canonical digit strings numerically.
func lessDigits(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

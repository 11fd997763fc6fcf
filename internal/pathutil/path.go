package pathutil

import (
	"path"
	"strings"
)

// Path is a normalized, forward-slash archive path. Filter functions receive
// a Path rather than the raw member name so they can use the helpers below
// without re-parsing.
type Path struct {
	raw   string
	clean string
	dir   bool
}

// NewPath normalizes p: backslashes become slashes, duplicate separators and
// "." segments are removed. A trailing slash marks a directory and is kept
// visible through IsDir but not through String.
func NewPath(p string) Path {
	s := strings.ReplaceAll(p, "\\", "/")
	dir := strings.HasSuffix(s, "/")
	c := path.Clean(s)
	if c == "." && s == "" {
		c = ""
	}
	return Path{raw: p, clean: c, dir: dir}
}

// String returns the normalized path. Regex predicates match against this.
func (p Path) String() string { return p.clean }

// Raw returns the name as it was stored in the archive.
func (p Path) Raw() string { return p.raw }

// IsDir reports whether the raw name ended with a separator.
func (p Path) IsDir() bool { return p.dir }

// Base is the final element, "report.csv" for "a/b/report.csv".
func (p Path) Base() string {
	if p.clean == "" {
		return ""
	}
	return path.Base(p.clean)
}

// Dir is everything before the final element, "." when there is none.
func (p Path) Dir() string { return path.Dir(p.clean) }

// Ext is the final extension including the dot, "" when there is none.
func (p Path) Ext() string { return path.Ext(p.clean) }

// Stem is Base without Ext.
func (p Path) Stem() string { return strings.TrimSuffix(p.Base(), p.Ext()) }

// Parts splits the path into its elements.
func (p Path) Parts() []string {
	if p.clean == "" || p.clean == "." {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p.clean, "/"), "/")
}

// HasPrefix reports whether p lies under dir (element-wise, not byte-wise).
func (p Path) HasPrefix(dir string) bool {
	d := strings.Trim(path.Clean(strings.ReplaceAll(dir, "\\", "/")), "/")
	if d == "" || d == "." {
		return true
	}
	c := strings.TrimPrefix(p.clean, "/")
	return c == d || strings.HasPrefix(c, d+"/")
}

// Match reports whether Base matches the shell pattern. Malformed patterns never match.
func (p Path) Match(pattern string) bool {
	ok, err := path.Match(pattern, p.Base())
	return err == nil && ok
}

// HasSuffixFold reports whether p ends with ext, ignoring case; ext may omit the dot.
func (p Path) HasSuffixFold(ext string) bool {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return false
	}
	return strings.EqualFold(strings.TrimPrefix(p.Ext(), "."), ext)
}

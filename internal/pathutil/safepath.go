package pathutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/keithlinneman/lambda-utility/internal/xerrors"
)

// HasParentSegments reports whether any path segment is "..". A "."
// segment names the current directory and is harmless.
func HasParentSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// SafeJoin joins an archive member name onto dst, refusing names that are
// absolute or would resolve outside dst.
func SafeJoin(dst, name string) (string, error) {
	if name == "" {
		return "", xerrors.New("empty member name")
	}
	slashed := strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", xerrors.Newf("absolute path in archive: %s", name)
	}
	if HasParentSegments(slashed) {
		return "", xerrors.Newf("path traversal in archive: %s", name)
	}

	target := filepath.Join(dst, filepath.FromSlash(slashed))

	// double-check the result is within dst
	cleanDst := filepath.Clean(dst)
	cleanTarget := filepath.Clean(target)
	if cleanTarget != cleanDst && !strings.HasPrefix(cleanTarget+string(os.PathSeparator), cleanDst+string(os.PathSeparator)) {
		return "", xerrors.Newf("path escapes destination: %s", name)
	}

	return target, nil
}

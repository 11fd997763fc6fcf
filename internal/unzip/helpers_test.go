package unzip

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/yeka/zip"
)

// testEntry is one member of an archive built by makeZip. A name ending in
// "/" becomes a directory entry; a non-empty password encrypts the member
// with enc, AES-256 when unset.
type testEntry struct {
	name     string
	body     string
	password string
	enc      zip.EncryptionMethod
}

// makeZip builds a zip archive in memory, preserving entry order.
func makeZip(t *testing.T, entries ...testEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, e := range entries {
		var (
			w   io.Writer
			err error
		)
		if e.password != "" {
			enc := e.enc
			if enc == 0 {
				enc = zip.AES256Encryption
			}
			w, err = zw.Encrypt(e.name, e.password, enc)
		} else {
			w, err = zw.Create(e.name)
		}
		if err != nil {
			t.Fatalf("create %q: %v", e.name, err)
		}
		if e.body != "" {
			if _, err := w.Write([]byte(e.body)); err != nil {
				t.Fatalf("write %q: %v", e.name, err)
			}
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// files builds plain entries whose body is their own name.
func files(names ...string) []testEntry {
	out := make([]testEntry, len(names))
	for i, n := range names {
		out[i] = testEntry{name: n, body: "content of " + n}
	}
	return out
}

// writeTempZip writes data to a temp file and returns its path.
func writeTempZip(t *testing.T, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "archive.zip")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write temp zip: %v", err)
	}
	return p
}

// openArchive opens data with opts and closes it when the test ends.
func openArchive(t *testing.T, data []byte, opts Options) *Archive {
	t.Helper()
	a := New(FromBytes(data), opts)
	if err := a.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// walkFiles returns the slash-separated relative paths of regular files under root, sorted.
func walkFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	sort.Strings(out)
	return out
}

// countingSource is a Source double that counts opens, reads and closes.
type countingSource struct {
	data   []byte
	opens  int
	reads  int
	closes int
}

func (s *countingSource) String() string { return "counting-source" }

func (s *countingSource) Open() (Handle, error) {
	s.opens++
	return &countingHandle{r: bytes.NewReader(s.data), src: s}, nil
}

// open handles not yet closed
func (s *countingSource) leaked() int { return s.opens - s.closes }

type countingHandle struct {
	r   *bytes.Reader
	src *countingSource
}

func (h *countingHandle) ReadAt(p []byte, off int64) (int, error) {
	h.src.reads++
	return h.r.ReadAt(p, off)
}

func (h *countingHandle) Size() int64 { return h.r.Size() }

func (h *countingHandle) Close() error {
	h.src.closes++
	return nil
}

// fakeMetrics records observations from an Archive.
type fakeMetrics struct {
	opens     int
	extracted int
	bytes     int64
	errors    map[string]int
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{errors: map[string]int{}} }

func (m *fakeMetrics) IncArchiveOpen()             { m.opens++ }
func (m *fakeMetrics) AddMembersExtracted(n int)   { m.extracted += n }
func (m *fakeMetrics) AddBytesExtracted(n int64)   { m.bytes += n }
func (m *fakeMetrics) IncExtractError(kind string) { m.errors[kind]++ }

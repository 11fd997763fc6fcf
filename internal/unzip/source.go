package unzip

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Handle is an open, random-access view of archive bytes.
type Handle interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// Source produces a fresh Handle each time an Archive is opened.
type Source interface {
	Open() (Handle, error)
	String() string
}

// FromPath returns a Source backed by a file on disk.
func FromPath(path string) Source { return pathSource(path) }

type pathSource string

func (p pathSource) String() string { return string(p) }

func (p pathSource) Open() (Handle, error) {
	f, err := os.Open(string(p))
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", p)
	}
	return &fileHandle{File: f, size: fi.Size()}, nil
}

type fileHandle struct {
	*os.File
	size int64
}

func (h *fileHandle) Size() int64 { return h.size }

// FromBytes returns a Source over an in-memory archive. The slice must not
// be modified while an Archive opened from it is in use.
func FromBytes(data []byte) Source { return bytesSource(data) }

type bytesSource []byte

func (b bytesSource) String() string { return fmt.Sprintf("<memory:%d bytes>", len(b)) }

func (b bytesSource) Open() (Handle, error) {
	return bytesHandle{Reader: bytes.NewReader(b)}, nil
}

type bytesHandle struct {
	*bytes.Reader
}

func (bytesHandle) Close() error { return nil }

package unzip

import (
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
	"github.com/yeka/zip"
)

// Compression methods beyond Store and Deflate.
const (
	MethodBzip2 uint16 = 12
	MethodLZMA  uint16 = 14
)

// maxLZMADict caps the dictionary a member header may ask for.
const maxLZMADict = 128 << 20

var supportedMethods = map[uint16]bool{
	zip.Store:   true,
	zip.Deflate: true,
	MethodBzip2: true,
	MethodLZMA:  true,
}

func init() {
	zip.RegisterDecompressor(MethodBzip2, func(r io.Reader) io.ReadCloser {
		return io.NopCloser(bzip2.NewReader(r))
	})
	zip.RegisterDecompressor(MethodLZMA, newLZMAReader)
}

// SupportedMethod reports whether members compressed with method can be extracted.
func SupportedMethod(method uint16) bool {
	return supportedMethods[method]
}

// newLZMAReader reads a zip LZMA member: a 4-byte version/size header and
// the 5 property bytes, then the raw stream. The stream must end with an
// end-of-stream marker (general purpose flag bit 1), as zip writers emit by
// default; the uncompressed size is not available to a decompressor.
func newLZMAReader(r io.Reader) io.ReadCloser {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return errReader{fmt.Errorf("lzma header: %w", err)}
	}
	if n := binary.LittleEndian.Uint16(hdr[2:]); n != 5 {
		return errReader{fmt.Errorf("lzma header: properties size %d, want 5", n)}
	}

	// classic .lzma header: properties, dictionary size, then an unknown
	// uncompressed size (all ones)
	var classic [13]byte
	if _, err := io.ReadFull(r, classic[:5]); err != nil {
		return errReader{fmt.Errorf("lzma properties: %w", err)}
	}
	for i := 5; i < len(classic); i++ {
		classic[i] = 0xff
	}
	lr, err := lzma.ReaderConfig{DictCap: maxLZMADict}.NewReader(io.MultiReader(bytes.NewReader(classic[:]), r))
	if err != nil {
		return errReader{fmt.Errorf("lzma: %w", err)}
	}
	return io.NopCloser(lr)
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
func (e errReader) Close() error             { return nil }

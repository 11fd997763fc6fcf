package cryptoutil

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"io"
	"strings"

	"github.com/keithlinneman/lambda-utility/internal/xerrors"
)

// HashEqual compares two hex digests in constant time. Both sides are
// normalized first, so case and a "sha256:" prefix do not matter.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(normalize(a)), []byte(normalize(b))) == 1
}

// SHA256Hex computes the SHA-256 hash of data as lowercase hex.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ParseSHA256 validates a hex SHA-256 digest, optionally prefixed with
// "sha256:", and returns it in canonical lowercase form.
func ParseSHA256(s string) (string, error) {
	n := normalize(s)
	if len(n) != sha256.Size*2 {
		return "", xerrors.Newf("sha256 digest %q: want %d hex characters, got %d", s, sha256.Size*2, len(n))
	}
	if _, err := hex.DecodeString(n); err != nil {
		return "", xerrors.Wrapf(err, "sha256 digest %q", s)
	}
	return n, nil
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimPrefix(s, "sha256:")
}

// Hasher is an io.Writer that tracks the SHA-256 and length of what passes through it.
type Hasher struct {
	h hash.Hash
	n int64
}

func NewHasher() *Hasher { return &Hasher{h: sha256.New()} }

func (h *Hasher) Write(p []byte) (int, error) {
	n, _ := h.h.Write(p)
	h.n += int64(n)
	return n, nil
}

// Sum returns the hex digest of everything written so far.
func (h *Hasher) Sum() string { return hex.EncodeToString(h.h.Sum(nil)) }

func (h *Hasher) Len() int64 { return h.n }

// CopyWithHash copies src to dst and returns the byte count and hex digest.
func CopyWithHash(dst io.Writer, src io.Reader) (int64, string, error) {
	h := NewHasher()
	n, err := io.Copy(io.MultiWriter(dst, h), src)
	if err != nil {
		return n, "", err
	}
	return n, h.Sum(), nil
}

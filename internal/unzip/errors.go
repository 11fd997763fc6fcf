package unzip

import (
	"errors"
	"fmt"

	"github.com/yeka/zip"

	"github.com/keithlinneman/lambda-utility/internal/xerrors"
)

// Error kinds. Match with errors.Is; the underlying cause stays in the chain.
var (
	ErrArchiveOpen       = errors.New("archive open failed")
	ErrMemberNotFound    = errors.New("member not found")
	ErrBadPassword       = errors.New("bad password")
	ErrIOWrite           = errors.New("destination write failed")
	ErrDuplicateSequence = errors.New("duplicate sequence number")
	ErrUnsafePath        = errors.New("unsafe member path")
	ErrCorruptMember     = errors.New("corrupt member")
	ErrUnsupported       = errors.New("unsupported compression method")
	ErrNotOpen           = errors.New("archive not open")
	ErrAlreadyOpen       = errors.New("archive already open")
)

// DuplicateSequenceError reports two valid names that resolve to the same
// sequence number. Number is the canonical decimal form (no leading zeros).
type DuplicateSequenceError struct {
	Number string
	First  string
	Second string
}

func (e *DuplicateSequenceError) Error() string {
	return fmt.Sprintf("duplicate sequence number %s: %q, %q", e.Number, e.First, e.Second)
}

func (e *DuplicateSequenceError) Is(target error) bool { return target == ErrDuplicateSequence }

// classifyRead maps a decryption/decompression failure for f onto an error
// kind. A ZipCrypto member decrypted with the wrong key usually survives the
// one-byte header check and then fails decompression or the CRC, so any read
// failure of an encrypted member counts as a bad password.
func classifyRead(f *zip.File, err error) error {
	switch {
	case f.IsEncrypted():
		return xerrors.Mark(xerrors.Wrapf(err, "decrypt %q", f.Name), ErrBadPassword)
	default:
		return xerrors.Mark(xerrors.Wrapf(err, "read %q", f.Name), ErrCorruptMember)
	}
}

// metricKind is the label used when counting errors of a given kind.
func metricKind(err error) string {
	switch {
	case errors.Is(err, ErrMemberNotFound):
		return "not_found"
	case errors.Is(err, ErrBadPassword):
		return "bad_password"
	case errors.Is(err, ErrIOWrite):
		return "io_write"
	case errors.Is(err, ErrUnsafePath):
		return "unsafe_path"
	case errors.Is(err, ErrCorruptMember):
		return "corrupt"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrArchiveOpen):
		return "open"
	default:
		return "other"
	}
}

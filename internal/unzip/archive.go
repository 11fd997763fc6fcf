package unzip

import (
	"context"
	"slices"
	"time"

	"github.com/yeka/zip"

	"github.com/keithlinneman/lambda-utility/internal/log"
	"github.com/keithlinneman/lambda-utility/internal/pathutil"
	"github.com/keithlinneman/lambda-utility/internal/xerrors"
)

// Metrics is implemented by the metrics package to observe archive activity.
type Metrics interface {
	IncArchiveOpen()
	AddMembersExtracted(n int)
	AddBytesExtracted(n int64)
	IncExtractError(kind string)
}

type Options struct {
	// Includes: a member is kept only if every predicate accepts it.
	Includes []Predicate

	// Excludes: a member is dropped if any predicate accepts it.
	Excludes []Predicate

	Logger  log.Logger
	Metrics Metrics
}

// Member is one central-directory entry.
type Member struct {
	Name           string
	IsDir          bool
	Size           uint64
	CompressedSize uint64
	Modified       time.Time
	Encrypted      bool
	Method         uint16
}

// Archive is a filtered, cached view over a zip archive. See the package
// documentation for the lifecycle.
type Archive struct {
	src      Source
	includes []Predicate
	excludes []Predicate
	logger   log.Logger
	metrics  Metrics

	// valid between Open and Close
	handle Handle
	zr     *zip.Reader
	index  map[string]*zip.File

	// write-once caches, dropped on Close
	members    []Member
	haveMember bool
	valid      []string
	haveValid  bool
}

// New records configuration; it does not touch src.
func New(src Source, opts Options) *Archive {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &Archive{
		src:      src,
		includes: compact(opts.Includes),
		excludes: compact(opts.Excludes),
		logger:   opts.Logger.With("archive", src.String()),
		metrics:  opts.Metrics,
	}
}

// Do opens src, runs fn and closes the archive on every exit path,
// including a panic inside fn. A close error is returned only if fn succeeded.
func Do(ctx context.Context, src Source, opts Options, fn func(a *Archive) error) (err error) {
	a := New(src, opts)
	if err := a.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

// Open acquires the underlying handle and reads the central directory.
func (a *Archive) Open(ctx context.Context) error {
	if a.zr != nil {
		return xerrors.Markf(ErrAlreadyOpen, "open %s", a.src)
	}

	h, err := a.src.Open()
	if err != nil {
		return a.openFailed(ctx, xerrors.Mark(xerrors.Wrapf(err, "open archive %s", a.src), ErrArchiveOpen))
	}

	zr, err := zip.NewReader(h, h.Size())
	if err != nil {
		h.Close()
		return a.openFailed(ctx, xerrors.Mark(xerrors.Wrapf(err, "read central directory of %s", a.src), ErrArchiveOpen))
	}

	index := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		// later entries with the same name shadow earlier ones
		index[f.Name] = f
	}

	a.handle, a.zr, a.index = h, zr, index

	if a.metrics != nil {
		a.metrics.IncArchiveOpen()
	}
	a.logger.Debug(ctx, "opened archive", "members", len(zr.File), "bytes", h.Size())
	return nil
}

func (a *Archive) openFailed(ctx context.Context, err error) error {
	if a.metrics != nil {
		a.metrics.IncExtractError(metricKind(err))
	}
	a.logger.Debug(ctx, "open archive failed", "error", err)
	return err
}

// Close releases the handle and drops the caches. Closing a closed archive is a no-op.
func (a *Archive) Close() error {
	if a.handle == nil {
		return nil
	}
	err := a.handle.Close()
	a.handle, a.zr, a.index = nil, nil, nil
	a.members, a.haveMember = nil, false
	a.valid, a.haveValid = nil, false
	return xerrors.Wrapf(err, "close archive %s", a.src)
}

// IsOpen reports whether the archive currently holds a handle.
func (a *Archive) IsOpen() bool { return a.zr != nil }

// Members returns the raw central-directory listing in storage order.
func (a *Archive) Members() ([]Member, error) {
	if a.zr == nil {
		return nil, xerrors.Markf(ErrNotOpen, "list %s", a.src)
	}
	if !a.haveMember {
		out := make([]Member, 0, len(a.zr.File))
		for _, f := range a.zr.File {
			out = append(out, Member{
				Name:           f.Name,
				IsDir:          f.FileInfo().IsDir(),
				Size:           f.UncompressedSize64,
				CompressedSize: f.CompressedSize64,
				Modified:       f.ModTime(),
				Encrypted:      f.IsEncrypted(),
				Method:         f.Method,
			})
		}
		a.members, a.haveMember = out, true
	}
	return slices.Clone(a.members), nil
}

// ValidNames returns the names of non-directory members that pass every
// include and no exclude, in storage order.
func (a *Archive) ValidNames() ([]string, error) {
	if a.zr == nil {
		return nil, xerrors.Markf(ErrNotOpen, "list %s", a.src)
	}
	if !a.haveValid {
		members, err := a.Members()
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(members))
		for _, m := range members {
			if m.IsDir {
				continue
			}
			p := pathutil.NewPath(m.Name)
			if !matchAll(a.includes, p) || matchAny(a.excludes, p) {
				continue
			}
			out = append(out, m.Name)
		}
		a.valid, a.haveValid = out, true
	}
	return slices.Clone(a.valid), nil
}

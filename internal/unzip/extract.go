package unzip

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/yeka/zip"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/lambda-utility/internal/pathutil"
	"github.com/keithlinneman/lambda-utility/internal/xerrors"
)

var tracer = otel.Tracer("github.com/keithlinneman/lambda-utility/internal/unzip")

type ExtractOptions struct {
	// Dest is the target directory; empty means the current working directory.
	Dest string

	// Files lists archive paths to extract; nil means ValidNames().
	Files []string

	// Password decrypts encrypted members.
	Password []byte
}

// Extract writes the requested members under Dest, preserving their archive
// paths, and returns the names in request order. On error the names written so
// far are returned alongside it; nothing is rolled back and the archive stays usable.
func (a *Archive) Extract(ctx context.Context, opts ExtractOptions) ([]string, error) {
	if a.zr == nil {
		return nil, xerrors.Markf(ErrNotOpen, "extract from %s", a.src)
	}

	files := opts.Files
	if files == nil {
		var err error
		if files, err = a.ValidNames(); err != nil {
			return nil, err
		}
	} else {
		files = slices.Clone(files)
	}

	dest := opts.Dest
	if dest == "" {
		dest = "."
	}

	ctx, span := tracer.Start(ctx, "unzip.Extract", trace.WithAttributes(
		attribute.String("unzip.source", a.src.String()),
		attribute.String("unzip.dest", dest),
		attribute.Int("unzip.files", len(files)),
	))
	defer span.End()

	extracted, written, err := a.extract(ctx, dest, files, opts.Password)

	if a.metrics != nil {
		a.metrics.AddMembersExtracted(len(extracted))
		a.metrics.AddBytesExtracted(written)
	}
	span.SetAttributes(attribute.Int64("unzip.bytes_written", written))

	if err != nil {
		if a.metrics != nil {
			a.metrics.IncExtractError(metricKind(err))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, metricKind(err))
		a.logger.Warn(ctx, "extract failed",
			"dest", dest,
			"requested", len(files),
			"extracted", len(extracted),
			"error", err,
		)
		return extracted, err
	}

	a.logger.Info(ctx, "extracted archive members",
		"dest", dest,
		"members", len(extracted),
		"bytes", written,
	)
	return extracted, nil
}

func (a *Archive) extract(ctx context.Context, dest string, files []string, password []byte) ([]string, int64, error) {
	// resolve every name up front so a typo fails before anything is written
	targets := make([]*zip.File, len(files))
	for i, name := range files {
		f, ok := a.index[name]
		if !ok {
			return nil, 0, xerrors.Markf(ErrMemberNotFound, "extract %q from %s", name, a.src)
		}
		targets[i] = f
	}

	extracted := make([]string, 0, len(files))
	var total int64
	for i, f := range targets {
		if err := ctx.Err(); err != nil {
			return extracted, total, xerrors.Wrap(err, "extract")
		}
		n, err := extractMember(f, dest, password)
		total += n
		if err != nil {
			return extracted, total, err
		}
		extracted = append(extracted, files[i])
	}
	return extracted, total, nil
}

// extractMember writes one member under dest and returns the bytes written.
func extractMember(f *zip.File, dest string, password []byte) (int64, error) {
	target, err := pathutil.SafeJoin(dest, f.Name)
	if err != nil {
		return 0, xerrors.Mark(err, ErrUnsafePath)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return 0, xerrors.Mark(xerrors.Wrapf(err, "create directory %s", target), ErrIOWrite)
		}
		return 0, nil
	}

	if !SupportedMethod(f.Method) {
		return 0, xerrors.Markf(ErrUnsupported, "extract %q: method %d", f.Name, f.Method)
	}

	// the password goes on a copy so it never outlives this call
	if f.IsEncrypted() {
		if len(password) == 0 {
			return 0, xerrors.Markf(ErrBadPassword, "extract %q: password required", f.Name)
		}
		fc := *f
		fc.SetPassword(string(password))
		f = &fc
	}

	rc, err := f.Open()
	if err != nil {
		return 0, classifyRead(f, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, xerrors.Mark(xerrors.Wrapf(err, "create directory for %s", target), ErrIOWrite)
	}

	perm := f.Mode().Perm()
	if perm&0o600 != 0o600 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return 0, xerrors.Mark(xerrors.Wrapf(err, "create %s", target), ErrIOWrite)
	}

	w := &trackingWriter{w: out}
	n, copyErr := io.Copy(w, rc)
	closeErr := out.Close()

	switch {
	case w.err != nil:
		return n, xerrors.Mark(xerrors.Wrapf(w.err, "write %s", target), ErrIOWrite)
	case copyErr != nil:
		return n, classifyRead(f, copyErr)
	case closeErr != nil:
		return n, xerrors.Mark(xerrors.Wrapf(closeErr, "close %s", target), ErrIOWrite)
	}
	return n, nil
}

// trackingWriter remembers the first write error so a failed copy can be
// attributed to the destination rather than the archive.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil && t.err == nil {
		t.err = err
	}
	return n, err
}

package main

import (
	"context"
	"encoding/base64"
	"flag"
	"regexp"
	"time"

	"github.com/keithlinneman/lambda-utility/internal/bundle"
	"github.com/keithlinneman/lambda-utility/internal/unzip"
	"github.com/keithlinneman/lambda-utility/internal/xerrors"
)

// archiveFlags selects an archive (local file or S3 object) and the member filters.
type archiveFlags struct {
	path        string
	s3URL       string
	sha256      string
	sha256Param string
	maxBytes    int64
	signKey     string
	signature   string

	includes listFlag
	excludes listFlag
	exts     listFlag
	under    string
}

func (a *archiveFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&a.path, "archive", "", "path to a local zip archive (or give it as the first argument)")
	fs.StringVar(&a.s3URL, "s3", "", "s3://bucket/key of a zip archive to fetch into memory")
	fs.StringVar(&a.sha256, "sha256", "", "expected SHA-256 of the S3 archive")
	fs.StringVar(&a.sha256Param, "sha256-param", "", "SSM parameter holding the expected SHA-256 of the S3 archive")
	fs.Int64Var(&a.maxBytes, "max-bytes", bundle.DefaultMaxBytes, "size limit for S3 archives")
	fs.StringVar(&a.signKey, "sign-key", "", "KMS key id, ARN or alias the S3 archive must be signed with")
	fs.StringVar(&a.signature, "signature", "", "base64 signature of the S3 archive (default: read <key>"+bundle.SignatureSuffix+")")
	fs.Var(&a.includes, "include", "keep members whose path matches this regex (repeatable, all must match)")
	fs.Var(&a.excludes, "exclude", "drop members whose path matches this regex (repeatable, any drops)")
	fs.Var(&a.exts, "ext", "keep members with this extension (repeatable, any may match)")
	fs.StringVar(&a.under, "under", "", "keep members under this directory")
}

func (a *archiveFlags) resolvePositional(fs *flag.FlagSet) error {
	if fs.NArg() > 1 {
		return usagef("%s: unexpected arguments %q", fs.Name(), fs.Args()[1:])
	}
	if fs.NArg() == 1 {
		if a.path != "" {
			return usagef("%s: archive given twice", fs.Name())
		}
		a.path = fs.Arg(0)
	}
	switch {
	case a.path == "" && a.s3URL == "":
		return usagef("%s: one of -archive or -s3 is required", fs.Name())
	case a.path != "" && a.s3URL != "":
		return usagef("%s: -archive and -s3 are mutually exclusive", fs.Name())
	case a.signature != "" && a.signKey == "":
		return usagef("%s: -signature needs -sign-key", fs.Name())
	}
	return nil
}

func (a *archiveFlags) options(e *env) (unzip.Options, error) {
	o := unzip.Options{Logger: e.logger, Metrics: e.metrics}
	for _, expr := range a.includes {
		re, err := regexp.Compile(expr)
		if err != nil {
			return o, usagef("-include %q: %v", expr, err)
		}
		o.Includes = append(o.Includes, unzip.Regex(re))
	}
	if len(a.exts) > 0 {
		o.Includes = append(o.Includes, unzip.Ext(a.exts...))
	}
	if a.under != "" {
		o.Includes = append(o.Includes, unzip.Under(a.under))
	}
	for _, expr := range a.excludes {
		re, err := regexp.Compile(expr)
		if err != nil {
			return o, usagef("-exclude %q: %v", expr, err)
		}
		o.Excludes = append(o.Excludes, unzip.Regex(re))
	}
	return o, nil
}

func (a *archiveFlags) source(ctx context.Context, e *env) (unzip.Source, error) {
	if a.path != "" {
		return unzip.FromPath(a.path), nil
	}
	var sig []byte
	if a.signature != "" {
		var err error
		if sig, err = base64.StdEncoding.DecodeString(a.signature); err != nil {
			return nil, usagef("-signature must be base64: %v", err)
		}
	}
	f, err := e.fetcher(ctx)
	if err != nil {
		return nil, err
	}
	b, err := f.Fetch(ctx, a.s3URL, bundle.Options{
		MaxBytes:       a.maxBytes,
		ExpectedSHA256: a.sha256,
		SHA256Param:    a.sha256Param,
		SignKeyID:      a.signKey,
		Signature:      sig,
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// withArchive parses args, runs check (if any) on the parsed flags, opens
// the selected archive and runs fn on it.
func withArchive(ctx context.Context, e *env, fs *flag.FlagSet, af *archiveFlags, args []string, check func() error, fn func(*unzip.Archive) error) error {
	af.register(fs)
	if err := parseFlags(e, fs, args); err != nil {
		return err
	}
	if err := af.resolvePositional(fs); err != nil {
		return err
	}
	if check != nil {
		if err := check(); err != nil {
			return err
		}
	}
	opts, err := af.options(e)
	if err != nil {
		return err
	}
	src, err := af.source(ctx, e)
	if err != nil {
		return err
	}
	return unzip.Do(ctx, src, opts, fn)
}

type memberJSON struct {
	Name           string    `json:"name"`
	IsDir          bool      `json:"dir,omitempty"`
	Size           uint64    `json:"size"`
	CompressedSize uint64    `json:"compressed_size"`
	Modified       time.Time `json:"modified"`
	Encrypted      bool      `json:"encrypted,omitempty"`
	Method         uint16    `json:"method"`
}

func cmdList(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "list")
	var af archiveFlags
	var long, all bool
	fs.BoolVar(&long, "long", false, "print one JSON object per member instead of names")
	fs.BoolVar(&all, "all", false, "list every central-directory entry, ignoring filters (implies -long)")

	return withArchive(ctx, e, fs, &af, args, nil, func(a *unzip.Archive) error {
		if all {
			members, err := a.Members()
			if err != nil {
				return err
			}
			for _, m := range members {
				if err := writeJSON(e.stdout, memberJSON(m)); err != nil {
					return err
				}
			}
			return nil
		}

		names, err := a.ValidNames()
		if err != nil {
			return err
		}
		if !long {
			return writeLines(e.stdout, names)
		}
		members, err := a.Members()
		if err != nil {
			return err
		}
		byName := make(map[string]unzip.Member, len(members))
		for _, m := range members {
			byName[m.Name] = m
		}
		for _, n := range names {
			if err := writeJSON(e.stdout, memberJSON(byName[n])); err != nil {
				return err
			}
		}
		return nil
	})
}

func cmdExtract(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "extract")
	var af archiveFlags
	var dest, password string
	var files listFlag
	fs.StringVar(&dest, "dest", ".", "destination directory")
	fs.StringVar(&password, "password", "", "password for encrypted members (env LAMBDA_UTILITY_PASSWORD)")
	fs.Var(&files, "file", "extract only this member (repeatable, exact archive path)")

	return withArchive(ctx, e, fs, &af, args, nil, func(a *unzip.Archive) error {
		opts := unzip.ExtractOptions{Dest: dest}
		if len(files) > 0 {
			opts.Files = files
		}
		if password != "" {
			opts.Password = []byte(password)
		}
		written, err := a.Extract(ctx, opts)
		if werr := writeLines(e.stdout, written); werr != nil && err == nil {
			err = werr
		}
		if err != nil {
			return xerrors.Wrapf(err, "extracted %d of the requested members", len(written))
		}
		e.logger.Info(ctx, "extracted", "members", len(written), "dest", dest)
		return nil
	})
}

func cmdSequence(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "sequence")
	var af archiveFlags
	var seqExt string
	fs.StringVar(&seqExt, "seq-ext", "", "extension of the numbered members, e.g. png (required)")

	check := func() error {
		if seqExt == "" {
			return usagef("sequence: -seq-ext is required")
		}
		return nil
	}
	return withArchive(ctx, e, fs, &af, args, check, func(a *unzip.Archive) error {
		names, err := a.SequenceNames(seqExt)
		if err != nil {
			return err
		}
		return writeLines(e.stdout, names)
	})
}

// Package bundle fetches zip archives from S3 into memory, optionally pinning
// them to a SHA-256 digest held inline or in an SSM parameter and checking a
// KMS signature over the archive bytes.
package bundle

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.opentelemetry.io/otel/attribute"

	"github.com/keithlinneman/lambda-utility/internal/awsx"
	"github.com/keithlinneman/lambda-utility/internal/cryptoutil"
	"github.com/keithlinneman/lambda-utility/internal/log"
	"github.com/keithlinneman/lambda-utility/internal/unzip"
	"github.com/keithlinneman/lambda-utility/internal/xerrors"
)

// DefaultMaxBytes caps an in-memory download.
const DefaultMaxBytes int64 = 512 << 20

// SignatureSuffix is appended to the archive key to find a detached signature.
const SignatureSuffix = ".sig"

const maxSignatureBytes = 16 << 10

var (
	ErrBadURL           = errors.New("invalid s3 url")
	ErrTooLarge         = errors.New("archive exceeds size limit")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type Options struct {
	// Zero means DefaultMaxBytes.
	MaxBytes int64

	// ExpectedSHA256 pins the archive to a digest. It wins over SHA256Param.
	ExpectedSHA256 string

	// SHA256Param names an SSM parameter holding the expected digest.
	SHA256Param string

	// VersionID selects a specific object version.
	VersionID string

	// SignKeyID is the KMS key (id, ARN or alias) the archive must be signed
	// with. Empty skips signature checking.
	SignKeyID string

	// Signature is the raw signature. When empty the base64 signature is read
	// from the object at key+SignatureSuffix in the same bucket.
	Signature []byte
}

// Bundle is a downloaded archive. It implements unzip.Source.
type Bundle struct {
	Bucket    string
	Key       string
	VersionID string
	SHA256    string
	Verified  bool
	Signed    bool
	FetchedAt time.Time

	data []byte
}

var _ unzip.Source = (*Bundle)(nil)

func (b *Bundle) String() string { return "s3://" + b.Bucket + "/" + b.Key }

func (b *Bundle) Size() int64 { return int64(len(b.data)) }

func (b *Bundle) Bytes() []byte { return b.data }

func (b *Bundle) Open() (unzip.Handle, error) { return unzip.FromBytes(b.data).Open() }

type Fetcher struct {
	s3     S3API
	ssm    SSMAPI
	kms    cryptoutil.KeyFetcher
	obs    awsx.CallObserver
	logger log.Logger
}

// New returns a Fetcher. ssmAPI is only needed when SHA256Param is used; obs
// and logger may be nil.
func New(s3API S3API, ssmAPI SSMAPI, obs awsx.CallObserver, logger log.Logger) *Fetcher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Fetcher{s3: s3API, ssm: ssmAPI, obs: obs, logger: logger}
}

func NewFromConfig(cfg aws.Config, obs awsx.CallObserver, logger log.Logger) *Fetcher {
	return New(s3.NewFromConfig(cfg), ssm.NewFromConfig(cfg), obs, logger).WithKMS(kms.NewFromConfig(cfg))
}

// WithKMS sets the client used to fetch signing public keys.
func (f *Fetcher) WithKMS(api cryptoutil.KeyFetcher) *Fetcher {
	f.kms = api
	return f
}

// ParseS3URL splits s3://bucket/key. The key may contain slashes but must not be empty.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", xerrors.Mark(err, ErrBadURL)
	}
	if u.Scheme != "s3" {
		return "", "", xerrors.Markf(ErrBadURL, "%q: scheme must be s3", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", xerrors.Markf(ErrBadURL, "%q: want s3://bucket/key", raw)
	}
	return u.Host, key, nil
}

// ExpectedHash resolves the digest the archive must match, or "" when unpinned.
func (f *Fetcher) ExpectedHash(ctx context.Context, o Options) (string, error) {
	if o.ExpectedSHA256 != "" {
		return cryptoutil.ParseSHA256(o.ExpectedSHA256)
	}
	if o.SHA256Param == "" {
		return "", nil
	}
	if f.ssm == nil {
		return "", xerrors.New("SSM client is required to resolve a digest parameter")
	}

	ctx, done := awsx.Track(ctx, f.obs, "ssm", "GetParameter", attribute.String("aws.ssm.parameter", o.SHA256Param))
	out, err := f.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(o.SHA256Param),
		WithDecryption: aws.Bool(true),
	})
	done(err)
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", o.SHA256Param)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", o.SHA256Param)
	}
	h, err := cryptoutil.ParseSHA256(*out.Parameter.Value)
	if err != nil {
		return "", xerrors.Wrapf(err, "SSM parameter %s", o.SHA256Param)
	}
	return h, nil
}

// Fetch downloads s3://bucket/key into memory and verifies it when pinned.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, o Options) (*Bundle, error) {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return nil, err
	}
	limit := o.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	want, err := f.ExpectedHash(ctx, o)
	if err != nil {
		return nil, err
	}

	f.logger.Info(ctx, "downloading archive",
		"bucket", bucket,
		"key", key,
		"expected_hash", want,
	)

	in := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if o.VersionID != "" {
		in.VersionId = aws.String(o.VersionID)
	}

	tctx, done := awsx.Track(ctx, f.obs, "s3", "GetObject",
		attribute.String("aws.s3.bucket", bucket),
		attribute.String("aws.s3.key", key),
	)
	out, err := f.s3.GetObject(tctx, in)
	if err != nil {
		done(err)
		return nil, xerrors.Wrapf(err, "get S3 object s3://%s/%s", bucket, key)
	}
	defer out.Body.Close()

	if n := aws.ToInt64(out.ContentLength); n > limit {
		err := xerrors.Markf(ErrTooLarge, "s3://%s/%s is %d bytes, limit %d", bucket, key, n, limit)
		done(err)
		return nil, err
	}

	var buf bytes.Buffer
	if n := aws.ToInt64(out.ContentLength); n > 0 {
		buf.Grow(int(n))
	}
	// one byte over the limit tells an exact fit from an overflow
	n, sum, err := cryptoutil.CopyWithHash(&buf, io.LimitReader(out.Body, limit+1))
	if err == nil && n > limit {
		err = xerrors.Markf(ErrTooLarge, "s3://%s/%s exceeds %d bytes", bucket, key, limit)
	}
	done(err)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		return nil, xerrors.Wrapf(err, "download s3://%s/%s", bucket, key)
	}

	f.logger.Info(ctx, "downloaded archive",
		"bytes", n,
		"actual_hash", sum,
	)

	b := &Bundle{
		Bucket:    bucket,
		Key:       key,
		VersionID: aws.ToString(out.VersionId),
		SHA256:    sum,
		FetchedAt: time.Now().UTC(),
		data:      buf.Bytes(),
	}
	if want != "" {
		if !cryptoutil.HashEqual(sum, want) {
			return nil, xerrors.Mark(fmt.Errorf("s3://%s/%s: expected %s, got %s", bucket, key, want, sum), ErrChecksumMismatch)
		}
		b.Verified = true
	}
	if o.SignKeyID != "" {
		if err := f.verifySignature(ctx, b, o); err != nil {
			return nil, err
		}
		b.Signed = true
	}
	return b, nil
}

func (f *Fetcher) verifySignature(ctx context.Context, b *Bundle, o Options) error {
	if f.kms == nil {
		return xerrors.New("KMS client is required to check a signature")
	}
	sig := o.Signature
	if len(sig) == 0 {
		var err error
		if sig, err = f.fetchSignature(ctx, b.Bucket, b.Key+SignatureSuffix); err != nil {
			return err
		}
	}

	v := cryptoutil.NewKMSVerifier(f.kms, o.SignKeyID)
	tctx, done := awsx.Track(ctx, f.obs, "kms", "GetPublicKey", attribute.String("aws.kms.key_id", o.SignKeyID))
	_, err := v.PublicKey(tctx)
	done(err)
	if err != nil {
		return err
	}
	if err := v.VerifySignature(ctx, b.data, sig); err != nil {
		return xerrors.Wrapf(err, "%s signed by %s", b, o.SignKeyID)
	}
	f.logger.Info(ctx, "archive signature verified", "key_id", o.SignKeyID)
	return nil
}

// fetchSignature reads a base64 detached signature, as written by
// "aws kms sign --output text --query Signature".
func (f *Fetcher) fetchSignature(ctx context.Context, bucket, key string) ([]byte, error) {
	tctx, done := awsx.Track(ctx, f.obs, "s3", "GetObject",
		attribute.String("aws.s3.bucket", bucket),
		attribute.String("aws.s3.key", key),
	)
	out, err := f.s3.GetObject(tctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		done(err)
		return nil, xerrors.Wrapf(err, "get signature s3://%s/%s", bucket, key)
	}
	defer out.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(out.Body, maxSignatureBytes))
	done(err)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read signature s3://%s/%s", bucket, key)
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, xerrors.Mark(xerrors.Wrapf(err, "signature s3://%s/%s is not base64", bucket, key), cryptoutil.ErrBadSignature)
	}
	return sig, nil
}

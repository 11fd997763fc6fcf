// Package lambdafn invokes Lambda functions and decodes the response.
package lambdafn

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"go.opentelemetry.io/otel/attribute"

	"github.com/keithlinneman/lambda-utility/internal/awsx"
	"github.com/keithlinneman/lambda-utility/internal/xerrors"
)

var (
	ErrInvalidInvocationType = errors.New("invalid invocation type")
	ErrInvalidLogType        = errors.New("invalid log type")
	ErrFunctionError         = errors.New("function returned an error")
)

// API is the subset of *lambda.Client used here.
type API interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

type InvokeInput struct {
	FunctionName string

	// Event, RequestResponse or DryRun; empty means RequestResponse.
	InvocationType string

	// None or Tail; empty means None. Tail only applies to synchronous calls.
	LogType string

	Payload   []byte
	Qualifier string
}

type InvokeResult struct {
	StatusCode      int32
	FunctionError   string
	ExecutedVersion string

	// LogTail is the decoded last 4 KB of the execution log when LogType was Tail.
	LogTail string

	Payload []byte
}

// Failed reports whether the function itself raised; the call still succeeded.
func (r *InvokeResult) Failed() bool { return r.FunctionError != "" }

// Err returns ErrFunctionError carrying the function's error type and payload
// when the function raised, nil otherwise.
func (r *InvokeResult) Err() error {
	if !r.Failed() {
		return nil
	}
	return xerrors.Markf(ErrFunctionError, "%s: %s", r.FunctionError, r.Payload)
}

type Invoker struct {
	api API
	obs awsx.CallObserver
}

// New returns an Invoker. obs may be nil.
func New(api API, obs awsx.CallObserver) *Invoker {
	return &Invoker{api: api, obs: obs}
}

// NewFromConfig builds the SDK client from cfg.
func NewFromConfig(cfg aws.Config, obs awsx.CallObserver) *Invoker {
	return New(lambda.NewFromConfig(cfg), obs)
}

// Invoke calls the function. A function error is not a call error: inspect
// InvokeResult.FunctionError or use Err.
func (i *Invoker) Invoke(ctx context.Context, in InvokeInput) (*InvokeResult, error) {
	if in.FunctionName == "" {
		return nil, xerrors.New("function name is required")
	}
	invType, err := parseInvocationType(in.InvocationType)
	if err != nil {
		return nil, err
	}
	logType, err := parseLogType(in.LogType)
	if err != nil {
		return nil, err
	}

	req := &lambda.InvokeInput{
		FunctionName:   aws.String(in.FunctionName),
		InvocationType: invType,
		LogType:        logType,
		Payload:        in.Payload,
	}
	if in.Qualifier != "" {
		req.Qualifier = aws.String(in.Qualifier)
	}

	ctx, done := awsx.Track(ctx, i.obs, "lambda", "Invoke",
		attribute.String("faas.invoked_name", in.FunctionName),
		attribute.String("faas.invocation_type", string(invType)),
	)
	out, err := i.api.Invoke(ctx, req)
	done(err)
	if err != nil {
		return nil, xerrors.Wrapf(err, "invoke %s", in.FunctionName)
	}

	res := &InvokeResult{
		StatusCode:      out.StatusCode,
		FunctionError:   aws.ToString(out.FunctionError),
		ExecutedVersion: aws.ToString(out.ExecutedVersion),
		Payload:         out.Payload,
	}
	if lr := aws.ToString(out.LogResult); lr != "" {
		tail, err := base64.StdEncoding.DecodeString(lr)
		if err != nil {
			return res, xerrors.Wrapf(err, "decode log result from %s", in.FunctionName)
		}
		res.LogTail = string(tail)
	}
	return res, nil
}

func parseInvocationType(s string) (types.InvocationType, error) {
	if s == "" {
		return types.InvocationTypeRequestResponse, nil
	}
	for _, v := range types.InvocationType("").Values() {
		if string(v) == s {
			return v, nil
		}
	}
	return "", xerrors.Markf(ErrInvalidInvocationType, "%q (want Event|RequestResponse|DryRun)", s)
}

func parseLogType(s string) (types.LogType, error) {
	if s == "" {
		return types.LogTypeNone, nil
	}
	for _, v := range types.LogType("").Values() {
		if string(v) == s {
			return v, nil
		}
	}
	return "", xerrors.Markf(ErrInvalidLogType, "%q (want None|Tail)", s)
}

// Package awsx builds the AWS SDK configuration shared by every service client
// and carries the per-call bookkeeping (span, metrics) those clients use.
package awsx

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/keithlinneman/lambda-utility/internal/xerrors"
)

const DefaultTimeout = 300 * time.Second

type Options struct {
	Region   string
	Endpoint string
	Profile  string

	// zero means DefaultTimeout
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// Instrument, if set, wraps the SDK's HTTP client.
	Instrument func(aws.HTTPClient) aws.HTTPClient
}

// LoadConfig resolves credentials and region through the SDK default chain,
// applying any explicit overrides in o.
func LoadConfig(ctx context.Context, o Options) (aws.Config, error) {
	var client aws.HTTPClient = HTTPClient(o)
	if o.Instrument != nil {
		client = o.Instrument(client)
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(client),
	}
	if o.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.Region))
	}
	if o.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(o.Profile))
	}
	if o.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(o.Endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, xerrors.Wrap(err, "load AWS config")
	}
	return cfg, nil
}

// HTTPClient is the SDK's buildable client with connect and read timeouts
// applied. The read timeout bounds the wait for response headers, so long
// Lambda invocations and SQS long polls must fit inside it.
func HTTPClient(o Options) *awshttp.BuildableClient {
	connect := o.ConnectTimeout
	if connect <= 0 {
		connect = DefaultTimeout
	}
	read := o.ReadTimeout
	if read <= 0 {
		read = DefaultTimeout
	}
	return awshttp.NewBuildableClient().
		WithDialerOptions(func(d *net.Dialer) {
			d.Timeout = connect
		}).
		WithTransportOptions(func(t *http.Transport) {
			t.TLSHandshakeTimeout = connect
			t.ResponseHeaderTimeout = read
		})
}

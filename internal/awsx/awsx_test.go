package awsx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

func TestHTTPClient_Timeouts(t *testing.T) {
	tests := []struct {
		name          string
		opts          Options
		connect, read time.Duration
	}{
		{"defaults", Options{}, DefaultTimeout, DefaultTimeout},
		{"explicit", Options{ConnectTimeout: 5 * time.Second, ReadTimeout: time.Minute}, 5 * time.Second, time.Minute},
		{"negative falls back", Options{ConnectTimeout: -1}, DefaultTimeout, DefaultTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := HTTPClient(tt.opts)
			if got := c.GetDialer().Timeout; got != tt.connect {
				t.Errorf("dial timeout = %s, want %s", got, tt.connect)
			}
			if got := c.GetTransport().ResponseHeaderTimeout; got != tt.read {
				t.Errorf("response header timeout = %s, want %s", got, tt.read)
			}
		})
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")

	wrapped := false
	cfg, err := LoadConfig(context.Background(), Options{
		Region:   "eu-west-1",
		Endpoint: "http://localhost:4566",
		Instrument: func(next aws.HTTPClient) aws.HTTPClient {
			wrapped = true
			return next
		},
	})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Region != "eu-west-1" {
		t.Errorf("Region = %q", cfg.Region)
	}
	if cfg.BaseEndpoint == nil || *cfg.BaseEndpoint != "http://localhost:4566" {
		t.Errorf("BaseEndpoint = %v", cfg.BaseEndpoint)
	}
	if !wrapped {
		t.Error("Instrument was not applied")
	}

	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if creds.AccessKeyID != "AKIDEXAMPLE" {
		t.Errorf("AccessKeyID = %q", creds.AccessKeyID)
	}
}

func TestLoadConfig_MissingProfile(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")

	_, err := LoadConfig(context.Background(), Options{Profile: "does-not-exist"})
	if err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

type recordingObserver struct {
	service, operation string
	err                error
	calls              int
}

func (r *recordingObserver) ObserveCall(service, operation string, d time.Duration, err error) {
	r.service, r.operation, r.err = service, operation, err
	r.calls++
}

func TestTrack(t *testing.T) {
	obs := &recordingObserver{}
	boom := errors.New("boom")

	ctx, done := Track(context.Background(), obs, "sqs", "SendMessage")
	if ctx == nil {
		t.Fatal("nil context")
	}
	done(boom)

	if obs.calls != 1 || obs.service != "sqs" || obs.operation != "SendMessage" || !errors.Is(obs.err, boom) {
		t.Fatalf("observer = %+v", obs)
	}

	_, done = Track(context.Background(), nil, "lambda", "Invoke")
	done(nil)
}

// compile-time check: the buildable client satisfies the SDK's client shape
var _ aws.HTTPClient = HTTPClient(Options{})

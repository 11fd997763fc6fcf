package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/keithlinneman/lambda-utility/internal/log"
)

// EnvPrefix is prepended to upper-cased flag names when reading the environment.
const EnvPrefix = "LAMBDA_UTILITY_"

// App holds the global flags shared by every subcommand.
type App struct {
	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	EnableTracing bool
	OTLPEndpoint  string
	TraceSample   float64

	AWSRegion      string
	AWSEndpoint    string
	AWSProfile     string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	PushgatewayURL  string
	PushJob         string
	MetricsTextfile string
}

// Register binds all global config fields to fs with defaults inline.
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false), written to stderr")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", false, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 1.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.AWSRegion, "aws-region", "", "AWS region, empty uses the SDK default chain")
	fs.StringVar(&c.AWSEndpoint, "aws-endpoint", "", "override AWS service endpoint URL (localstack, VPC endpoints)")
	fs.StringVar(&c.AWSProfile, "aws-profile", "", "shared config profile")
	fs.DurationVar(&c.ConnectTimeout, "aws-connect-timeout", 300*time.Second, "AWS connect timeout")
	fs.DurationVar(&c.ReadTimeout, "aws-read-timeout", 300*time.Second, "AWS read (response header) timeout")
	fs.StringVar(&c.PushgatewayURL, "pushgateway-url", "", "Prometheus Pushgateway URL; empty disables metrics push")
	fs.StringVar(&c.PushJob, "push-job", "lambda_utility", "Pushgateway job name")
	fs.StringVar(&c.MetricsTextfile, "metrics-textfile", "", "write metrics to this file for the node_exporter textfile collector")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := EnvKey(prefix, f.Name)
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			_ = fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// EnvKey is the environment variable consulted for flag name.
func EnvKey(prefix, name string) string {
	return prefix + strings.ReplaceAll(strings.ToUpper(name), "-", "_")
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}
	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}
	// grpc exporter wants host:port, no scheme
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if c.AWSEndpoint != "" && !isURL(c.AWSEndpoint) {
		errs = append(errs, fmt.Errorf("AWS_ENDPOINT must be a URL (got %q)", c.AWSEndpoint))
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("AWS_CONNECT_TIMEOUT must be positive (got %s)", c.ConnectTimeout))
	}
	if c.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("AWS_READ_TIMEOUT must be positive (got %s)", c.ReadTimeout))
	}

	if c.PushgatewayURL != "" {
		if !isURL(c.PushgatewayURL) {
			errs = append(errs, fmt.Errorf("PUSHGATEWAY_URL must be a URL (got %q)", c.PushgatewayURL))
		}
		if c.PushJob == "" {
			errs = append(errs, fmt.Errorf("PUSH_JOB required when PUSHGATEWAY_URL is set"))
		}
	}

	if c.MetricsTextfile != "" && !strings.HasSuffix(c.MetricsTextfile, ".prom") {
		errs = append(errs, fmt.Errorf("METRICS_TEXTFILE must end in .prom (got %q)", c.MetricsTextfile))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

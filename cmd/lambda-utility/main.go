package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/keithlinneman/lambda-utility/internal/awsx"
	"github.com/keithlinneman/lambda-utility/internal/bundle"
	"github.com/keithlinneman/lambda-utility/internal/cfg"
	"github.com/keithlinneman/lambda-utility/internal/cryptoutil"
	"github.com/keithlinneman/lambda-utility/internal/lambdafn"
	"github.com/keithlinneman/lambda-utility/internal/log"
	"github.com/keithlinneman/lambda-utility/internal/metrics"
	"github.com/keithlinneman/lambda-utility/internal/otelx"
	"github.com/keithlinneman/lambda-utility/internal/queue"
	v "github.com/keithlinneman/lambda-utility/internal/version"
)

var tracer = otel.Tracer("github.com/keithlinneman/lambda-utility/cmd/lambda-utility")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	fs := flag.NewFlagSet(v.AppName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.Register(fs, &conf)
	fs.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if showVersion {
		fmt.Fprintln(stdout, vi.String())
		return 0
	}

	cfg.FillFromEnv(fs, cfg.EnvPrefix, func(format string, args ...any) {
		fmt.Fprintf(stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(stderr, "config error:", err)
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		usage(fs)
		return 2
	}
	cmd, ok := lookup(rest[0])
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", rest[0])
		usage(fs)
		return 2
	}

	// levels were checked by Validate
	lvl, _ := log.ParseLevel(conf.LogLevel)
	stackLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Command:           cmd.name,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JSON:              conf.LogJSON,
		IncludeErrorLinks: conf.IncludeErrorLinks,
		MaxErrorLinks:     conf.MaxErrorLinks,
		Writer:            stderr,
	})
	if err != nil {
		fmt.Fprintln(stderr, "logger init error:", err)
		return 1
	}
	defer lg.Sync()
	ctx = log.WithContext(ctx, lg)

	lg.Debug(ctx, "starting",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"enable_tracing", conf.EnableTracing,
		"aws_region", conf.AWSRegion,
		"aws_endpoint", conf.AWSEndpoint,
		"pushgateway_url", conf.PushgatewayURL,
	)

	// Insecure: the collector is expected on localhost or a sidecar
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: cmd.name,
		Version:   vi.Version,
	})
	if err != nil {
		lg.Error(ctx, err, "otel init failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTEL(sctx)
	}()

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, cmd.name, vi)

	e := &env{
		conf:    conf,
		logger:  lg,
		metrics: m,
		stdout:  stdout,
		stderr:  stderr,
	}

	start := time.Now()
	cctx, span := tracer.Start(ctx, cmd.name)
	err = cmd.run(cctx, e, rest[1:])
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	m.ObserveCommand(cmd.name, time.Since(start), err)

	e.flushMetrics(cmd.name)

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)
		return 2
	default:
		lg.Error(ctx, err, "command failed")
		return 1
	}
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "usage: %s [global flags] <command> [command flags]\n\ncommands:\n", v.AppName)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-15s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w, "\nglobal flags (env "+cfg.EnvPrefix+"<FLAG>):")
	fs.PrintDefaults()
}

// env is what a subcommand gets to work with. The API fields are nil in
// normal runs and built from the shared AWS config on first use.
type env struct {
	conf    cfg.App
	logger  log.Logger
	metrics *metrics.CLIMetrics
	stdout  io.Writer
	stderr  io.Writer

	awsCfg *aws.Config

	lambdaAPI lambdafn.API
	sqsAPI    queue.API
	s3API     bundle.S3API
	ssmAPI    bundle.SSMAPI
	kmsAPI    cryptoutil.KeyFetcher
	slackHTTP metrics.Doer
	slackURL  string
}

func (e *env) awsConfig(ctx context.Context) (aws.Config, error) {
	if e.awsCfg != nil {
		return *e.awsCfg, nil
	}
	c, err := awsx.LoadConfig(ctx, awsx.Options{
		Region:         e.conf.AWSRegion,
		Endpoint:       e.conf.AWSEndpoint,
		Profile:        e.conf.AWSProfile,
		ConnectTimeout: e.conf.ConnectTimeout,
		ReadTimeout:    e.conf.ReadTimeout,
		Instrument: func(next aws.HTTPClient) aws.HTTPClient {
			return e.metrics.InstrumentDoer("aws", next)
		},
	})
	if err != nil {
		return aws.Config{}, err
	}
	e.awsCfg = &c
	return c, nil
}

func (e *env) invoker(ctx context.Context) (*lambdafn.Invoker, error) {
	if e.lambdaAPI != nil {
		return lambdafn.New(e.lambdaAPI, e.metrics), nil
	}
	c, err := e.awsConfig(ctx)
	if err != nil {
		return nil, err
	}
	return lambdafn.NewFromConfig(c, e.metrics), nil
}

func (e *env) queue(ctx context.Context) (*queue.Client, error) {
	if e.sqsAPI != nil {
		return queue.New(e.sqsAPI, e.metrics), nil
	}
	c, err := e.awsConfig(ctx)
	if err != nil {
		return nil, err
	}
	return queue.NewFromConfig(c, e.metrics), nil
}

func (e *env) fetcher(ctx context.Context) (*bundle.Fetcher, error) {
	if e.s3API != nil {
		return bundle.New(e.s3API, e.ssmAPI, e.metrics, e.logger).WithKMS(e.kmsAPI), nil
	}
	c, err := e.awsConfig(ctx)
	if err != nil {
		return nil, err
	}
	return bundle.NewFromConfig(c, e.metrics, e.logger), nil
}

func (e *env) slackClient() metrics.Doer {
	if e.slackHTTP != nil {
		return e.slackHTTP
	}
	return e.metrics.InstrumentDoer("slack", tracedClient("slack", 30*time.Second))
}

// tracedClient is an http.Client whose requests become client spans.
func tracedClient(name string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return name + " " + r.Method + " " + r.URL.Path
			}),
		),
	}
}

// flushMetrics pushes and writes the registry once the command is done.
// Failures are logged, never fatal.
func (e *env) flushMetrics(command string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if e.conf.PushgatewayURL != "" {
		err := e.metrics.Push(ctx, metrics.PushOptions{
			URL:      e.conf.PushgatewayURL,
			Job:      e.conf.PushJob,
			Grouping: map[string]string{"command": command},
			Client:   tracedClient("pushgateway", 10*time.Second),
		})
		if err != nil {
			e.logger.Warn(ctx, "metrics push failed", "error", err)
		}
	}
	if err := e.metrics.WriteTextfile(e.conf.MetricsTextfile); err != nil {
		e.logger.Warn(ctx, "metrics textfile write failed", "error", err)
	}
}

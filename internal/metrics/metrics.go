package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/keithlinneman/lambda-utility/internal/version"
)

// CLIMetrics is the registry for one CLI run. Nothing is scraped; the
// registry is pushed or written out when the command finishes.
type CLIMetrics struct {
	reg       *prometheus.Registry
	buildInfo *prometheus.GaugeVec

	archiveOpens     prometheus.Counter
	membersExtracted prometheus.Counter
	bytesExtracted   prometheus.Counter
	archiveErrors    *prometheus.CounterVec

	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec

	outboundInflight *prometheus.GaugeVec
	outboundTotal    *prometheus.CounterVec
	outboundDuration *prometheus.HistogramVec

	commandRuns        *prometheus.CounterVec
	commandDuration    *prometheus.HistogramVec
	commandLastSuccess *prometheus.GaugeVec

	subprocessRuns *prometheus.CounterVec
}

// New returns a fresh registry with the Go and process collectors and the CLI metrics.
func New() *CLIMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &CLIMetrics{
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		archiveOpens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archive_opens_total",
			Help: "Total archives opened successfully",
		}),
		membersExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archive_members_extracted_total",
			Help: "Total archive members written to disk",
		}),
		bytesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archive_bytes_extracted_total",
			Help: "Total uncompressed bytes written to disk",
		}),
		archiveErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archive_errors_total",
			Help: "Archive open and extract failures by kind",
		}, []string{"kind"}),
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloud_calls_total",
			Help: "Cloud API calls by service, operation and outcome",
		}, []string{"service", "operation", "outcome"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cloud_call_duration_seconds",
			Help:    "Cloud API call latency by service and operation",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"service", "operation"}),
		outboundInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "outbound_inflight_requests",
			Help: "Current number of in-flight outbound HTTP requests by client",
		}, []string{"client"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbound_requests_total",
			Help: "Total outbound HTTP requests by client, method and status",
		}, []string{"client", "method", "code"}),
		outboundDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outbound_request_duration_seconds",
			Help:    "Outbound HTTP request latency by client and method",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"client", "method", "code"}),
		commandRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "command_runs_total",
			Help: "CLI subcommand runs by command and outcome",
		}, []string{"command", "outcome"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Wall time of a CLI subcommand",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900},
		}, []string{"command"}),
		commandLastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "command_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful run of a subcommand",
		}, []string{"command"}),
		subprocessRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subprocess_runs_total",
			Help: "External commands run by program and outcome",
		}, []string{"program", "outcome"}),
	}
	reg.MustRegister(
		m.buildInfo,
		m.archiveOpens,
		m.membersExtracted,
		m.bytesExtracted,
		m.archiveErrors,
		m.callsTotal,
		m.callDuration,
		m.outboundInflight,
		m.outboundTotal,
		m.outboundDuration,
		m.commandRuns,
		m.commandDuration,
		m.commandLastSuccess,
		m.subprocessRuns,
	)
	m.reg = reg
	return m
}

// Registry exposes the underlying registry for pushing and tests.
func (m *CLIMetrics) Registry() *prometheus.Registry { return m.reg }

// set once at startup.
func (m *CLIMetrics) SetBuildInfoFromVersion(app, component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *CLIMetrics) IncArchiveOpen() {
	m.archiveOpens.Inc()
}

func (m *CLIMetrics) AddMembersExtracted(n int) {
	m.membersExtracted.Add(float64(n))
}

func (m *CLIMetrics) AddBytesExtracted(n int64) {
	m.bytesExtracted.Add(float64(n))
}

func (m *CLIMetrics) IncExtractError(kind string) {
	m.archiveErrors.WithLabelValues(kind).Inc()
}

// ObserveCall records one cloud API call.
func (m *CLIMetrics) ObserveCall(service, operation string, d time.Duration, err error) {
	m.callsTotal.WithLabelValues(service, operation, outcome(err)).Inc()
	m.callDuration.WithLabelValues(service, operation).Observe(d.Seconds())
}

// ObserveCommand records a finished subcommand.
func (m *CLIMetrics) ObserveCommand(command string, d time.Duration, err error) {
	m.commandRuns.WithLabelValues(command, outcome(err)).Inc()
	m.commandDuration.WithLabelValues(command).Observe(d.Seconds())
	if err == nil {
		m.commandLastSuccess.WithLabelValues(command).SetToCurrentTime()
	}
}

// ObserveSubprocess records one external command run.
func (m *CLIMetrics) ObserveSubprocess(program string, err error) {
	m.subprocessRuns.WithLabelValues(program, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

// RoundTripper instruments outbound requests made through next, labelled
// with client so Slack and AWS traffic can be told apart.
func (m *CLIMetrics) RoundTripper(client string, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	labels := prometheus.Labels{"client": client}
	exemplar := promhttp.WithExemplarFromContext(traceExemplar)

	rt := promhttp.InstrumentRoundTripperDuration(m.outboundDuration.MustCurryWith(labels), next, exemplar)
	rt = promhttp.InstrumentRoundTripperCounter(m.outboundTotal.MustCurryWith(labels), rt, exemplar)
	return promhttp.InstrumentRoundTripperInFlight(m.outboundInflight.With(labels), rt)
}

// Doer is the single-method client shape the AWS SDK and slack-go accept.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(*http.Request) (*http.Response, error)

func (f DoerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

// InstrumentDoer wraps a Doer that is not an *http.Client, such as the SDK's
// BuildableClient, with the same instrumentation as RoundTripper.
func (m *CLIMetrics) InstrumentDoer(client string, next Doer) Doer {
	rt := m.RoundTripper(client, promhttp.RoundTripperFunc(next.Do))
	return DoerFunc(rt.RoundTrip)
}

// if a sampled trace is present attach its trace_id as an exemplar
func traceExemplar(ctx context.Context) prometheus.Labels {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || !sc.IsSampled() {
		return nil
	}
	return prometheus.Labels{"trace_id": sc.TraceID().String()}
}

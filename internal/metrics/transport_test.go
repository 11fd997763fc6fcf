package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestRoundTripper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	m := New()
	c := &http.Client{Transport: m.RoundTripper("slack", nil)}

	for _, p := range []string{"/api/chat.postMessage", "/api/chat.postMessage", "/missing"} {
		resp, err := c.Post(srv.URL+p, "application/json", nil)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
	}

	ok := labeled(t, m.reg, "outbound_requests_total", map[string]string{"client": "slack", "code": "200", "method": "post"})
	if ok.GetCounter().GetValue() != 2 {
		t.Errorf("200s = %v", ok.GetCounter().GetValue())
	}
	nf := labeled(t, m.reg, "outbound_requests_total", map[string]string{"client": "slack", "code": "404"})
	if nf.GetCounter().GetValue() != 1 {
		t.Errorf("404s = %v", nf.GetCounter().GetValue())
	}
	h := labeled(t, m.reg, "outbound_request_duration_seconds", map[string]string{"client": "slack", "code": "200"})
	if h.GetHistogram().GetSampleCount() != 2 {
		t.Errorf("duration samples = %d", h.GetHistogram().GetSampleCount())
	}
	if g := labeled(t, m.reg, "outbound_inflight_requests", map[string]string{"client": "slack"}); g.GetGauge().GetValue() != 0 {
		t.Errorf("inflight after completion = %v", g.GetGauge().GetValue())
	}
}

func TestInstrumentDoer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := New()
	calls := 0
	inner := DoerFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		return http.DefaultClient.Do(r)
	})

	d := m.InstrumentDoer("aws", inner)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := d.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if calls != 1 {
		t.Fatalf("inner Do called %d times", calls)
	}
	labeled(t, m.reg, "outbound_requests_total", map[string]string{"client": "aws", "code": "202", "method": "get"})
}

func TestTraceExemplar(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")

	sampled := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))
	if l := traceExemplar(sampled); l["trace_id"] != "0102030405060708090a0b0c0d0e0f10" {
		t.Fatalf("exemplar = %v", l)
	}

	unsampled := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID,
	}))
	if l := traceExemplar(unsampled); l != nil {
		t.Fatalf("unsampled exemplar = %v", l)
	}
	if l := traceExemplar(context.Background()); l != nil {
		t.Fatalf("no-trace exemplar = %v", l)
	}
}

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/keithlinneman/lambda-utility/internal/version"
)

func gatherMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

// counterValue returns the value of the first metric in a counter family.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	f := gatherMetric(t, reg, name)
	if f == nil {
		t.Fatalf("metric %q not found", name)
	}
	if len(f.GetMetric()) == 0 {
		t.Fatalf("metric %q has no samples", name)
	}
	return f.GetMetric()[0].GetCounter().GetValue()
}

// labeled returns the metric in family name whose labels include all of want.
func labeled(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) *dto.Metric {
	t.Helper()
	f := gatherMetric(t, reg, name)
	if f == nil {
		t.Fatalf("metric %q not found", name)
	}
	for _, m := range f.GetMetric() {
		got := map[string]string{}
		for _, lp := range m.GetLabel() {
			got[lp.GetName()] = lp.GetValue()
		}
		match := true
		for k, v := range want {
			if got[k] != v {
				match = false
				break
			}
		}
		if match {
			return m
		}
	}
	t.Fatalf("metric %q has no sample with labels %v", name, want)
	return nil
}

func TestNew_Collectors(t *testing.T) {
	m := New()
	for _, name := range []string{"go_goroutines", "archive_opens_total", "archive_members_extracted_total"} {
		if gatherMetric(t, m.Registry(), name) == nil {
			t.Errorf("metric %q missing", name)
		}
	}
}

func TestNew_IsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.IncArchiveOpen()
	if v := counterValue(t, b.Registry(), "archive_opens_total"); v != 0 {
		t.Fatalf("second registry saw %v opens", v)
	}
}

func TestArchiveMetrics(t *testing.T) {
	m := New()
	m.IncArchiveOpen()
	m.AddMembersExtracted(3)
	m.AddMembersExtracted(2)
	m.AddBytesExtracted(1024)
	m.IncExtractError("bad_password")
	m.IncExtractError("bad_password")
	m.IncExtractError("not_found")

	if v := counterValue(t, m.reg, "archive_opens_total"); v != 1 {
		t.Errorf("opens = %v", v)
	}
	if v := counterValue(t, m.reg, "archive_members_extracted_total"); v != 5 {
		t.Errorf("members = %v", v)
	}
	if v := counterValue(t, m.reg, "archive_bytes_extracted_total"); v != 1024 {
		t.Errorf("bytes = %v", v)
	}
	if v := labeled(t, m.reg, "archive_errors_total", map[string]string{"kind": "bad_password"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("bad_password errors = %v", v)
	}
}

func TestObserveCall(t *testing.T) {
	m := New()
	m.ObserveCall("sqs", "SendMessage", 20*time.Millisecond, nil)
	m.ObserveCall("sqs", "SendMessage", 30*time.Millisecond, errors.New("throttled"))
	m.ObserveCall("lambda", "Invoke", time.Second, nil)

	ok := labeled(t, m.reg, "cloud_calls_total", map[string]string{"service": "sqs", "operation": "SendMessage", "outcome": "ok"})
	if ok.GetCounter().GetValue() != 1 {
		t.Errorf("sqs ok = %v", ok.GetCounter().GetValue())
	}
	failed := labeled(t, m.reg, "cloud_calls_total", map[string]string{"service": "sqs", "outcome": "error"})
	if failed.GetCounter().GetValue() != 1 {
		t.Errorf("sqs error = %v", failed.GetCounter().GetValue())
	}
	h := labeled(t, m.reg, "cloud_call_duration_seconds", map[string]string{"service": "sqs"})
	if h.GetHistogram().GetSampleCount() != 2 {
		t.Errorf("sqs duration samples = %d", h.GetHistogram().GetSampleCount())
	}
}

func TestObserveCommand(t *testing.T) {
	m := New()
	m.ObserveCommand("extract", 2*time.Second, errors.New("boom"))
	if f := gatherMetric(t, m.reg, "command_last_success_timestamp_seconds"); f != nil && len(f.GetMetric()) > 0 {
		t.Fatal("failed run should not set last success")
	}

	before := time.Now().Unix()
	m.ObserveCommand("extract", time.Second, nil)

	ts := labeled(t, m.reg, "command_last_success_timestamp_seconds", map[string]string{"command": "extract"}).GetGauge().GetValue()
	if int64(ts) < before {
		t.Fatalf("last success = %v, want >= %d", ts, before)
	}
	if v := labeled(t, m.reg, "command_runs_total", map[string]string{"outcome": "error"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("error runs = %v", v)
	}
}

func TestObserveSubprocess(t *testing.T) {
	m := New()
	m.ObserveSubprocess("ffmpeg", nil)
	m.ObserveSubprocess("ffmpeg", errors.New("exit 1"))
	if v := labeled(t, m.reg, "subprocess_runs_total", map[string]string{"program": "ffmpeg", "outcome": "error"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("ffmpeg errors = %v", v)
	}
}

func TestSetBuildInfoFromVersion(t *testing.T) {
	m := New()

	dirty := true
	m.SetBuildInfoFromVersion("lambda-utility", "cli", version.Info{
		Version:   "1.2.3",
		Commit:    "abc123",
		BuildId:   "build-42",
		GoVersion: "go1.24.0",
		VCSDirty:  &dirty,
	})

	got := labeled(t, m.reg, "build_info", map[string]string{
		"app":        "lambda-utility",
		"component":  "cli",
		"version":    "1.2.3",
		"commit":     "abc123",
		"build_id":   "build-42",
		"go_version": "go1.24.0",
		"vcs_dirty":  "true",
	})
	if got.GetGauge().GetValue() != 1 {
		t.Fatalf("build_info value = %v", got.GetGauge().GetValue())
	}

	m2 := New()
	m2.SetBuildInfoFromVersion("a", "b", version.Info{Version: "dev"})
	labeled(t, m2.reg, "build_info", map[string]string{"vcs_dirty": "unknown"})
}

package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/keithlinneman/lambda-utility/internal/xerrors"
)

type PushOptions struct {
	URL      string
	Job      string
	Grouping map[string]string
	Client   *http.Client
}

// Push replaces the job's metric group on a Pushgateway with the current registry.
func (m *CLIMetrics) Push(ctx context.Context, o PushOptions) error {
	if o.URL == "" {
		return nil
	}
	p := push.New(o.URL, o.Job).Gatherer(m.reg)
	for k, v := range o.Grouping {
		p = p.Grouping(k, v)
	}
	if o.Client != nil {
		p = p.Client(o.Client)
	}
	return xerrors.Wrapf(p.PushContext(ctx), "push metrics to %s (job %s)", o.URL, o.Job)
}

// WriteTextfile writes the registry in the text exposition format for the
// node_exporter textfile collector. The file is replaced atomically.
func (m *CLIMetrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return xerrors.Wrapf(prometheus.WriteToTextfile(path, m.reg), "write metrics textfile %s", path)
}

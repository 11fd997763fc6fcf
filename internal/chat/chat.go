// Package chat posts messages to Slack.
package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/lambda-utility/internal/xerrors"
)

var tracer = otel.Tracer("github.com/keithlinneman/lambda-utility/internal/chat")

var ErrNoToken = errors.New("slack token is required")

// Doer matches *http.Client and the instrumented clients from the metrics package.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

type Options struct {
	// APIURL overrides https://slack.com/api/, mostly for tests.
	APIURL string

	HTTPClient Doer

	// ThreadTS posts as a reply in an existing thread.
	ThreadTS string

	Username  string
	IconEmoji string

	DisableUnfurl bool
}

// Posted identifies a message Slack accepted.
type Posted struct {
	Channel   string
	Timestamp string
}

// Post sends text to channel using chat.postMessage.
func Post(ctx context.Context, token, channel, text string, o Options) (Posted, error) {
	if token == "" {
		return Posted{}, xerrors.WithStack(ErrNoToken)
	}
	if channel == "" {
		return Posted{}, xerrors.New("slack channel is required")
	}

	var copts []slack.Option
	if o.APIURL != "" {
		u := o.APIURL
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		copts = append(copts, slack.OptionAPIURL(u))
	}
	if o.HTTPClient != nil {
		copts = append(copts, slack.OptionHTTPClient(o.HTTPClient))
	} else {
		copts = append(copts, slack.OptionHTTPClient(&http.Client{Timeout: 30 * time.Second}))
	}
	api := slack.New(token, copts...)

	mopts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if o.ThreadTS != "" {
		mopts = append(mopts, slack.MsgOptionTS(o.ThreadTS))
	}
	if o.Username != "" {
		mopts = append(mopts, slack.MsgOptionUsername(o.Username))
	}
	if o.IconEmoji != "" {
		mopts = append(mopts, slack.MsgOptionIconEmoji(o.IconEmoji))
	}
	if o.DisableUnfurl {
		mopts = append(mopts, slack.MsgOptionDisableLinkUnfurl())
	}

	ctx, span := tracer.Start(ctx, "slack.chat.postMessage",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("messaging.destination.name", channel)),
	)
	defer span.End()

	ch, ts, err := api.PostMessageContext(ctx, channel, mopts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Posted{}, xerrors.Wrapf(err, "post to slack channel %s", channel)
	}
	return Posted{Channel: ch, Timestamp: ts}, nil
}

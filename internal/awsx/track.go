package awsx

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/keithlinneman/lambda-utility/internal/awsx")

// CallObserver is implemented by the metrics package.
type CallObserver interface {
	ObserveCall(service, operation string, d time.Duration, err error)
}

// Track starts a client span for one service call. The returned func ends the
// span and reports the outcome to obs, which may be nil.
func Track(ctx context.Context, obs CallObserver, service, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	attrs = append(attrs,
		attribute.String("rpc.system", "aws-api"),
		attribute.String("rpc.service", service),
		attribute.String("rpc.method", operation),
	)
	ctx, span := tracer.Start(ctx, service+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if obs != nil {
			obs.ObserveCall(service, operation, time.Since(start), err)
		}
	}
}

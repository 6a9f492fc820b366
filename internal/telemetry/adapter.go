package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/loomworks/loom/internal/tracker"
	"github.com/loomworks/loom/internal/types"
)

const trackerScopeName = "github.com/loomworks/loom/tracker"

// InstrumentedAdapter wraps a tracker adapter with OTel tracing and metrics.
// Every remote call gets a span and is counted in loom.tracker.* metrics.
// Use WrapAdapter to create one; it returns the original adapter unchanged
// when telemetry is disabled.
type InstrumentedAdapter struct {
	inner tracker.Adapter
	trace trace.Tracer
	ops   metric.Int64Counter
	dur   metric.Float64Histogram
	errs  metric.Int64Counter
}

// WrapAdapter returns a decorated with OTel instrumentation.
// When telemetry is disabled, a is returned as-is with zero overhead.
func WrapAdapter(a tracker.Adapter) tracker.Adapter {
	if !Enabled() {
		return a
	}
	m := Meter(trackerScopeName)
	ops, _ := m.Int64Counter("loom.tracker.operations",
		metric.WithDescription("Total tracker API operations executed"),
	)
	dur, _ := m.Float64Histogram("loom.tracker.operation.duration",
		metric.WithDescription("Tracker API operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("loom.tracker.errors",
		metric.WithDescription("Total tracker API operation errors"),
	)
	return &InstrumentedAdapter{
		inner: a,
		trace: Tracer(trackerScopeName),
		ops:   ops,
		dur:   dur,
		errs:  errs,
	}
}

func (a *InstrumentedAdapter) Name() string                 { return a.inner.Name() }
func (a *InstrumentedAdapter) DisplayName() string          { return a.inner.DisplayName() }
func (a *InstrumentedAdapter) Mapper() tracker.StatusMapper { return a.inner.Mapper() }

// op starts a span and records a metric for the named tracker operation.
func (a *InstrumentedAdapter) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{
		attribute.String("loom.tracker", a.inner.Name()),
		attribute.String("loom.operation", name),
	}, attrs...)
	ctx, span := a.trace.Start(ctx, "tracker."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	a.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, recording duration and any error.
func (a *InstrumentedAdapter) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	a.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (a *InstrumentedAdapter) FetchRemoteStatus(ctx context.Context, remoteID string) (*tracker.RemoteStatus, error) {
	attrs := []attribute.KeyValue{attribute.String("loom.remote_id", remoteID)}
	ctx, span, start := a.op(ctx, "fetch", attrs...)
	remote, err := a.inner.FetchRemoteStatus(ctx, remoteID)
	a.done(ctx, span, start, err, attrs...)
	return remote, err
}

func (a *InstrumentedAdapter) ApplyStatus(ctx context.Context, remoteID string, status types.Status) error {
	attrs := []attribute.KeyValue{
		attribute.String("loom.remote_id", remoteID),
		attribute.String("loom.status", string(status)),
	}
	ctx, span, start := a.op(ctx, "apply", attrs...)
	err := a.inner.ApplyStatus(ctx, remoteID, status)
	a.done(ctx, span, start, err, attrs...)
	return err
}

func (a *InstrumentedAdapter) PostAuditComment(ctx context.Context, remoteID string, from, to types.Status) error {
	attrs := []attribute.KeyValue{attribute.String("loom.remote_id", remoteID)}
	ctx, span, start := a.op(ctx, "comment", attrs...)
	err := a.inner.PostAuditComment(ctx, remoteID, from, to)
	a.done(ctx, span, start, err, attrs...)
	return err
}

package observer

import (
	"context"
	"time"

	"github.com/switchboardhq/switchboard"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedAgent wraps any Agent to emit OTEL lifecycle spans, metrics, and
// logs. The wrapper creates a parent span for each dispatch that contains all
// inner operations (LLM calls, retrieval) as child spans via context
// propagation.
type ObservedAgent struct {
	inner switchboard.Agent
	inst  *Instruments
}

var (
	_ switchboard.Agent          = (*ObservedAgent)(nil)
	_ switchboard.StreamingAgent = (*ObservedAgent)(nil)
)

// WrapAgent returns an instrumented Agent that emits lifecycle telemetry.
func WrapAgent(inner switchboard.Agent, inst *Instruments) *ObservedAgent {
	return &ObservedAgent{inner: inner, inst: inst}
}

func (o *ObservedAgent) ID() string          { return o.inner.ID() }
func (o *ObservedAgent) Name() string        { return o.inner.Name() }
func (o *ObservedAgent) Description() string { return o.inner.Description() }
func (o *ObservedAgent) SaveChat() bool      { return o.inner.SaveChat() }

// Streaming reports whether the wrapped agent streams. The wrapper always
// satisfies StreamingAgent; this keeps the router's streaming decision on the
// inner agent.
func (o *ObservedAgent) Streaming() bool { return o.inner.Streaming() }

// ProcessRequest wraps the inner agent's ProcessRequest with an
// agent.process span that serves as the parent for all inner operations.
func (o *ObservedAgent) ProcessRequest(ctx context.Context, req switchboard.AgentRequest) (switchboard.ConversationMessage, error) {
	ctx, span := o.startSpan(ctx, "agent.process")
	defer span.End()
	start := time.Now()

	span.AddEvent("agent.started")
	reply, err := o.inner.ProcessRequest(ctx, req)
	o.finish(ctx, span, start, err)
	return reply, err
}

// ProcessRequestStream delegates to the inner agent when it streams; a
// non-streaming inner agent is served with a blocking call and an empty
// token stream.
func (o *ObservedAgent) ProcessRequestStream(ctx context.Context, req switchboard.AgentRequest, ch chan<- switchboard.StreamEvent) (switchboard.ConversationMessage, error) {
	ctx, span := o.startSpan(ctx, "agent.process_stream")
	defer span.End()
	start := time.Now()

	span.AddEvent("agent.started")
	var (
		reply switchboard.ConversationMessage
		err   error
	)
	if sa, ok := o.inner.(switchboard.StreamingAgent); ok {
		reply, err = sa.ProcessRequestStream(ctx, req, ch)
	} else {
		reply, err = o.inner.ProcessRequest(ctx, req)
		close(ch)
	}
	o.finish(ctx, span, start, err)
	return reply, err
}

func (o *ObservedAgent) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return o.inst.Tracer.Start(ctx, name, trace.WithAttributes(
		AttrAgentID.String(o.inner.ID()),
		AttrAgentName.String(o.inner.Name()),
	))
}

func (o *ObservedAgent) finish(ctx context.Context, span trace.Span, start time.Time, err error) {
	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"

	if ctx.Err() != nil && err != nil {
		status = "cancelled"
		span.AddEvent("agent.cancelled")
		span.SetStatus(codes.Error, "cancelled")
	} else if err != nil {
		status = "error"
		span.AddEvent("agent.failed", trace.WithAttributes(
			attribute.String("error", err.Error()),
		))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.AddEvent("agent.completed")
	}
	span.SetAttributes(AttrAgentStatus.String(status))

	o.inst.AgentExecutions.Add(ctx, 1, metric.WithAttributes(
		AttrAgentID.String(o.inner.ID()),
		attribute.String("status", status),
	))
	o.inst.DispatchLatency.Record(ctx, durationMs, metric.WithAttributes(
		AttrAgentID.String(o.inner.ID()),
	))

	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("agent dispatch completed"))
	rec.AddAttributes(
		otellog.String("agent.id", o.inner.ID()),
		otellog.String("agent.name", o.inner.Name()),
		otellog.String("agent.status", status),
		otellog.Float64("duration_ms", durationMs),
	)
	o.inst.Logger.Emit(ctx, rec)
}

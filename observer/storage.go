package observer

import (
	"context"
	"time"

	"github.com/switchboardhq/switchboard"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// ObservedStorage wraps a switchboard.ChatStorage with OTEL instrumentation.
// Every operation emits a span and records an operation count and latency,
// tagged with the backend name supplied at wrap time.
type ObservedStorage struct {
	inner   switchboard.ChatStorage
	inst    *Instruments
	backend string
}

var _ switchboard.ChatStorage = (*ObservedStorage)(nil)

// WrapStorage returns an instrumented chat storage. backend names the
// underlying implementation ("memory", "sqlite", "postgres", "redis").
func WrapStorage(inner switchboard.ChatStorage, backend string, inst *Instruments) *ObservedStorage {
	return &ObservedStorage{inner: inner, inst: inst, backend: backend}
}

func (o *ObservedStorage) SaveMessage(ctx context.Context, userID, sessionID, agentID string, msg switchboard.ConversationMessage, maxHistory int) ([]switchboard.ConversationMessage, error) {
	ctx, finish := o.begin(ctx, "save_message", agentID)
	out, err := o.inner.SaveMessage(ctx, userID, sessionID, agentID, msg, maxHistory)
	finish(err)
	return out, err
}

func (o *ObservedStorage) SaveMessages(ctx context.Context, userID, sessionID, agentID string, msgs []switchboard.ConversationMessage, maxHistory int) ([]switchboard.ConversationMessage, error) {
	ctx, finish := o.begin(ctx, "save_messages", agentID)
	out, err := o.inner.SaveMessages(ctx, userID, sessionID, agentID, msgs, maxHistory)
	finish(err)
	return out, err
}

func (o *ObservedStorage) FetchChat(ctx context.Context, userID, sessionID, agentID string, maxHistory int) ([]switchboard.ConversationMessage, error) {
	ctx, finish := o.begin(ctx, "fetch_chat", agentID)
	out, err := o.inner.FetchChat(ctx, userID, sessionID, agentID, maxHistory)
	finish(err)
	return out, err
}

func (o *ObservedStorage) FetchAllChats(ctx context.Context, userID, sessionID string) ([]switchboard.ConversationMessage, error) {
	ctx, finish := o.begin(ctx, "fetch_all_chats", "")
	out, err := o.inner.FetchAllChats(ctx, userID, sessionID)
	finish(err)
	return out, err
}

// begin opens a span for one storage operation and returns a finish func
// that records status, count, and latency.
func (o *ObservedStorage) begin(ctx context.Context, op, agentID string) (context.Context, func(error)) {
	attrs := []attribute.KeyValue{
		AttrStorageOp.String(op),
		AttrStorageBackend.String(o.backend),
	}
	if agentID != "" {
		attrs = append(attrs, AttrAgentID.String(agentID))
	}
	ctx, span := o.inst.Tracer.Start(ctx, "storage."+op)
	span.SetAttributes(attrs...)
	start := time.Now()

	return ctx, func(err error) {
		defer span.End()
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		o.inst.StorageOps.Add(ctx, 1, metric.WithAttributes(
			AttrStorageOp.String(op),
			AttrStorageBackend.String(o.backend),
			attribute.String("status", status),
		))
		o.inst.StorageLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(
			AttrStorageOp.String(op),
			AttrStorageBackend.String(o.backend),
		))
	}
}

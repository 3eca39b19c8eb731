package tracing

import (
	"context"
	"sync"

	"github.com/kart-io/lifeline/pkg/supervisor"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys set on action spans.
const (
	AttrResource     = attribute.Key("lifeline.resource")
	AttrResourceType = attribute.Key("lifeline.resource.type")
	AttrAction       = attribute.Key("lifeline.action")
	AttrAttempt      = attribute.Key("lifeline.restart.attempt")
	AttrDelay        = attribute.Key("lifeline.restart.delay_ms")
)

type spanKey struct {
	resource string
	action   supervisor.Action
}

// Observer opens a span when an action begins and ends it when the action
// completes or times out. Other supervisor events are added to the open
// spans of the same resource.
type Observer struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[spanKey]trace.Span
}

// NewObserver creates an observer recording spans with tracer.
func NewObserver(tracer trace.Tracer) *Observer {
	return &Observer{tracer: tracer, spans: make(map[spanKey]trace.Span)}
}

// Observe records ev of a resource of the given type.
func (o *Observer) Observe(resourceType string, ev supervisor.Event) {
	key := spanKey{ev.Supervisor, ev.Action}

	switch ev.Type {
	case supervisor.EventActionBegin:
		_, span := o.tracer.Start(context.Background(), "lifeline."+ev.Action.String(),
			trace.WithTimestamp(ev.Time),
			trace.WithAttributes(
				AttrResource.String(ev.Supervisor),
				AttrResourceType.String(resourceType),
				AttrAction.String(ev.Action.String()),
			),
		)
		o.mu.Lock()
		if prev, ok := o.spans[key]; ok {
			prev.End(trace.WithTimestamp(ev.Time))
		}
		o.spans[key] = span
		o.mu.Unlock()

	case supervisor.EventActionComplete, supervisor.EventActionTimeout:
		o.mu.Lock()
		span, ok := o.spans[key]
		delete(o.spans, key)
		o.mu.Unlock()
		if !ok {
			return
		}
		if ev.Err != nil {
			span.RecordError(ev.Err, trace.WithTimestamp(ev.Time))
			span.SetStatus(codes.Error, ev.Err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End(trace.WithTimestamp(ev.Time))

	default:
		attrs := []attribute.KeyValue{AttrResource.String(ev.Supervisor)}
		if ev.Type == supervisor.EventRestartScheduled {
			attrs = append(attrs, AttrAttempt.Int(ev.Attempt), AttrDelay.Int64(ev.Delay.Milliseconds()))
		}
		o.mu.Lock()
		for k, span := range o.spans {
			if k.resource == ev.Supervisor {
				span.AddEvent(ev.Name(), trace.WithTimestamp(ev.Time), trace.WithAttributes(attrs...))
			}
		}
		o.mu.Unlock()
	}
}

// Open returns the number of spans not yet ended.
func (o *Observer) Open() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.spans)
}

package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const testTraceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

func sampledContext() context.Context {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestKafkaHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: HeaderEventType, Value: []byte("cart.snapshot.saved")}}
	carrier := &KafkaHeaderCarrier{headers: &headers}

	assert.Equal(t, "cart.snapshot.saved", carrier.Get(HeaderEventType))
	assert.Empty(t, carrier.Get("missing"))

	carrier.Set(HeaderSource, "cart-service")
	carrier.Set(HeaderEventType, "cart.cleared")

	assert.Equal(t, "cart.cleared", carrier.Get(HeaderEventType))
	assert.Equal(t, []string{HeaderEventType, HeaderSource}, carrier.Keys())
	assert.Len(t, headers, 2, "Set replaces in place")
}

func TestKafkaHeaderCarrier_Empty(t *testing.T) {
	var headers []kafka.Header
	carrier := &KafkaHeaderCarrier{headers: &headers}

	assert.Empty(t, carrier.Keys())
	assert.Empty(t, carrier.Get("traceparent"))
}

func TestInjectTraceContext_WritesTraceparent(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	headers := []kafka.Header{{Key: HeaderEventType, Value: []byte("cart.snapshot.saved")}}
	injectTraceContext(sampledContext(), &headers)

	carrier := &KafkaHeaderCarrier{headers: &headers}
	assert.Equal(t, testTraceparent, carrier.Get("traceparent"))
	assert.Equal(t, "cart.snapshot.saved", carrier.Get(HeaderEventType))
}

func TestInjectTraceContext_NoSpanAddsNothing(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	var headers []kafka.Header
	injectTraceContext(context.Background(), &headers)
	assert.Empty(t, headers)
}

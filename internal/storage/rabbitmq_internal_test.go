package storage

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestAMQPHeaderCarrierPropagatesTraceContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	prop := propagation.TraceContext{}
	headers := amqp.Table{}
	prop.Inject(ctx, amqpHeaderCarrier(headers))
	assert.Contains(t, headers, "traceparent")

	extracted := prop.Extract(context.Background(), amqpHeaderCarrier(headers))
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(extracted).TraceID())

	// 非字符串头部读作空值
	assert.Equal(t, "", amqpHeaderCarrier(amqp.Table{"x-retry": int32(3)}).Get("x-retry"))
	assert.Equal(t, "", amqpHeaderCarrier(nil).Get("traceparent"))
}

func TestSafeHandleRecoversPanic(t *testing.T) {
	ack := safeHandle(context.Background(), amqp.Delivery{}, func(context.Context, amqp.Delivery) bool {
		panic("boom")
	})
	assert.False(t, ack)

	ack = safeHandle(context.Background(), amqp.Delivery{}, func(context.Context, amqp.Delivery) bool { return true })
	assert.True(t, ack)
}

// Package tracing instruments one span per control-loop tick, tagged with
// this node's level and role, using the same stdout-exporter OTel setup
// cluster-bare-autoscaler wires in for its reconcile loop.
package tracing

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/jobpower/powerbalancer/pkg/vector"
)

const tracerName = "github.com/jobpower/powerbalancer/pkg/agent"

func Init(serviceName string) error {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	)

	otel.SetTracerProvider(tp)
	return nil
}

func Shutdown(ctx context.Context) error {
	if tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); ok {
		return tp.Shutdown(ctx)
	}
	return nil
}

// StartTick opens a span for one control-loop tick at the given tree level
// and role, returning the context to pass into the tick and the span to end
// when it completes.
func StartTick(ctx context.Context, level int, role string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "agent.tick",
		trace.WithAttributes(
			attribute.String("powerbalancer.role", role),
			attribute.String("powerbalancer.level", strconv.Itoa(level)),
		),
	)
}

// SetTickPolicy records this tick's trace surface (spec.md §6) on an
// already-started span: the policy tuple it descended with, and the
// enforced per-package power limit sum (0 for non-leaf agents, which
// enforce no limit of their own).
func SetTickPolicy(span trace.Span, policy vector.Policy, powerLimitSum float64) {
	span.SetAttributes(
		attribute.Float64("powerbalancer.policy.power_cap", policy.PowerCap),
		attribute.Int64("powerbalancer.policy.step_count", policy.StepCount),
		attribute.Float64("powerbalancer.policy.max_epoch_runtime", policy.MaxEpochRuntime),
		attribute.Float64("powerbalancer.policy.power_slack", policy.PowerSlack),
		attribute.Float64("powerbalancer.power_limit_sum", powerLimitSum),
	)
}

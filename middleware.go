package gobake

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies this library to OpenTelemetry providers.
const instrumentationName = "github.com/gobake/gobake"

// LoggingMiddleware creates a middleware that logs run outcomes and timing
func LoggingMiddleware() Middleware {
	return func(next RunnerFunc) RunnerFunc {
		return func(ctx context.Context, step Step, inputs, outputs PathMap, logger Logger) error {
			logger.Info("Middleware: Starting run of %s", step.Name())

			start := time.Now()
			err := next(ctx, step, inputs, outputs, logger)
			duration := time.Since(start)

			if err != nil {
				logger.Error("Middleware: Run of %s failed after %v: %v",
					step.Name(), duration.Round(time.Millisecond), err)
			} else {
				logger.Info("Middleware: Run of %s completed in %v",
					step.Name(), duration.Round(time.Millisecond))
			}

			return err
		}
	}
}

// TimeLimitMiddleware creates a middleware that enforces a time limit on a run
func TimeLimitMiddleware(limit time.Duration) Middleware {
	return func(next RunnerFunc) RunnerFunc {
		return func(ctx context.Context, step Step, inputs, outputs PathMap, logger Logger) error {
			ctx, cancel := context.WithTimeout(ctx, limit)
			defer cancel()

			return next(ctx, step, inputs, outputs, logger)
		}
	}
}

// MetricsMiddleware creates a middleware that records run counts and
// durations into the given metrics bundle
func MetricsMiddleware(m *Metrics) Middleware {
	return func(next RunnerFunc) RunnerFunc {
		return func(ctx context.Context, step Step, inputs, outputs PathMap, logger Logger) error {
			start := time.Now()
			err := next(ctx, step, inputs, outputs, logger)

			status := StatusCompleted
			if err != nil {
				status = StatusFailed
			}
			m.RecordRun(step.Name(), status, time.Since(start).Seconds())
			return err
		}
	}
}

// TracingMiddleware creates a middleware that emits an OpenTelemetry span
// per run plus a run counter, using the globally registered providers.
func TracingMiddleware() Middleware {
	tracer := otel.Tracer(instrumentationName)
	meter := otel.Meter(instrumentationName)
	runCounter, _ := meter.Int64Counter("gobake.runs",
		metric.WithDescription("Finished pipeline runs by status"))

	return func(next RunnerFunc) RunnerFunc {
		return func(ctx context.Context, step Step, inputs, outputs PathMap, logger Logger) error {
			ctx, span := tracer.Start(ctx, "gobake.run",
				trace.WithAttributes(
					attribute.String("gobake.step", step.Name()),
					attribute.Int("gobake.inputs", len(inputs)),
					attribute.Int("gobake.outputs", len(outputs)),
				))
			defer span.End()

			err := next(ctx, step, inputs, outputs, logger)

			status := StatusCompleted
			if err != nil {
				status = StatusFailed
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			runCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
			return err
		}
	}
}

// Package saga executes ordered step sequences with compensation-based
// rollback: all-or-nothing across heterogeneous stores with no shared
// transaction and no two-phase commit.
//
// Each step that mutates external state returns a compensation closure
// capturing exactly what it did. On the first failure the already-collected
// compensations run in strict reverse order, best-effort: a compensation
// failure is logged and counted but never masks the original step error,
// which is what the caller receives.
package saga

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"caretrip/internal/platform/metrics"
)

const tracerName = "caretrip/provisioning"

// CompensationFunc semantically undoes a completed step. Nil means the step
// performed no external mutation.
type CompensationFunc func(ctx context.Context) error

// Coordinator runs sagas. One Coordinator serves all requests; each Run gets
// its own Execution. The coordinator holds no locks across collaborator
// calls; coordination lives entirely in the stores' own constraints plus the
// compensation stack.
type Coordinator struct {
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	callTimeout time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for unwind reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithCallTimeout bounds every step (and every compensation) with its own
// deadline. A timed-out step fails like any other and triggers the same
// unwind.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.callTimeout = d
	}
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:      slog.New(slog.DiscardHandler),
		tracer:      otel.Tracer(tracerName),
		callTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type compensation struct {
	step string
	run  CompensationFunc
}

// Execution tracks one saga run: its name and the compensations collected so
// far. Not safe for concurrent use; a saga is one logical sequential task.
type Execution struct {
	coordinator *Coordinator
	name        string
	comps       []compensation
}

// Run executes fn as a saga. If fn returns an error, every compensation
// registered so far runs in reverse order and the original error is returned
// unchanged.
func (c *Coordinator) Run(ctx context.Context, name string, fn func(ctx context.Context, ex *Execution) error) error {
	ctx, span := c.tracer.Start(ctx, name)
	defer span.End()

	ex := &Execution{coordinator: c, name: name}
	if err := fn(ctx, ex); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "saga aborted")
		ex.unwind(ctx)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Step runs one named step, enforcing the per-call timeout and collecting the
// compensation on success. On failure it records the step name for metrics
// and returns the error untouched; the caller's Run invocation performs the
// unwind.
func Step[T any](ctx context.Context, ex *Execution, step string, fn func(ctx context.Context) (T, CompensationFunc, error)) (T, error) {
	c := ex.coordinator
	ctx, span := c.tracer.Start(ctx, step, trace.WithAttributes(attribute.String("saga", ex.name)))
	defer span.End()

	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	out, comp, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "step failed")
		if c.metrics != nil {
			c.metrics.StepFailures.WithLabelValues(ex.name, step).Inc()
		}
		var zero T
		return zero, err
	}
	if comp != nil {
		ex.comps = append(ex.comps, compensation{step: step, run: comp})
	}
	return out, nil
}

// Do is Step for steps without an output value.
func Do(ctx context.Context, ex *Execution, step string, fn func(ctx context.Context) (CompensationFunc, error)) error {
	_, err := Step(ctx, ex, step, func(ctx context.Context) (struct{}, CompensationFunc, error) {
		comp, err := fn(ctx)
		return struct{}{}, comp, err
	})
	return err
}

// unwind runs compensations newest-first. The request context may already be
// canceled or past its deadline; compensations still must run, so each gets
// a fresh deadline detached from the request's cancellation.
func (ex *Execution) unwind(ctx context.Context) {
	c := ex.coordinator
	base := context.WithoutCancel(ctx)

	for i := len(ex.comps) - 1; i >= 0; i-- {
		comp := ex.comps[i]
		if c.metrics != nil {
			c.metrics.CompensationsRun.Inc()
		}

		compCtx := base
		var cancel context.CancelFunc
		if c.callTimeout > 0 {
			compCtx, cancel = context.WithTimeout(base, c.callTimeout)
		}
		err := comp.run(compCtx)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			// Best-effort: log and keep unwinding. The caller gets the
			// original step error, never this one.
			if c.metrics != nil {
				c.metrics.CompensationFailures.Inc()
			}
			c.logger.ErrorContext(ctx, "compensation failed",
				"saga", ex.name,
				"step", comp.step,
				"error", err,
			)
			continue
		}
		c.logger.InfoContext(ctx, "compensated step",
			"saga", ex.name,
			"step", comp.step,
		)
	}
	ex.comps = nil
}

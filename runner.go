package gobake

import (
	"context"
	"fmt"
)

// Runner executes bound steps and manages the execution pipeline.
// It can be composed into other structures and supports middleware
// for adding cross-cutting concerns to step execution.
type Runner struct {
	// Middleware chain to apply during execution
	middleware []Middleware
	// defaultLogger used when no logger is provided
	defaultLogger Logger
	// overwrite is passed to the top-level step's build
	overwrite bool
}

// WithMiddleware adds middleware to the runner
func WithMiddleware(middleware ...Middleware) RunnerOption {
	return func(r *Runner) {
		r.middleware = append(r.middleware, middleware...)
	}
}

// WithLogger sets the default logger for the runner
func WithLogger(logger Logger) RunnerOption {
	return func(r *Runner) {
		r.defaultLogger = logger
	}
}

// WithOverwrite permits the top-level step to replace existing output
// files. Children of a sequence always run with overwrite permitted; this
// flag governs only the run's own boundary outputs.
func WithOverwrite(overwrite bool) RunnerOption {
	return func(r *Runner) {
		r.overwrite = overwrite
	}
}

// NewRunner creates a new step runner with the given options
func NewRunner(opts ...RunnerOption) *Runner {
	runner := &Runner{
		middleware:    []Middleware{},
		defaultLogger: NewDefaultLogger(),
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Use adds middleware to the runner's middleware chain
func (r *Runner) Use(middleware ...Middleware) {
	r.middleware = append(r.middleware, middleware...)
}

// Execute binds the step to the given boundary paths and builds it with
// the configured middleware chain.
func (r *Runner) Execute(ctx context.Context, step Step, inputs, outputs PathMap, logger Logger) error {
	if logger == nil {
		logger = r.defaultLogger
	}

	if ctx == nil {
		ctx = context.Background()
	}

	// Build the middleware chain
	var handler RunnerFunc = r.runStep

	// Apply middleware in reverse order
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}

	return handler(ctx, step, inputs, outputs, logger)
}

// runStep is the core execution logic: bind, then build.
func (r *Runner) runStep(ctx context.Context, step Step, inputs, outputs PathMap, logger Logger) error {
	instance, err := step.Bind(inputs, outputs)
	if err != nil {
		return fmt.Errorf("binding step %q: %w", step.Name(), err)
	}

	logger.Info("Starting step: %s", step.Name())
	if err := instance.Build(ctx, r.overwrite); err != nil {
		logger.Error("Step %s failed: %v", step.Name(), err)
		return err
	}
	logger.Info("Completed step: %s", step.Name())
	return nil
}

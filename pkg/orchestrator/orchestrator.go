// Package orchestrator launches auxiliary processes and blocks until every
// one of them is ready.
//
// The flow is a fan-out/fan-in barrier: all descriptors are launched without
// ordering between them, then the caller's Start blocks until every readiness
// signal has resolved or the first failure cancels the rest. There is no
// partial success: on failure everything already launched is torn down and
// Start returns the offending process's error with its buffered output.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jrepp/stagehand/pkg/manifest"
	"github.com/jrepp/stagehand/pkg/readiness"
)

const tracerName = "github.com/jrepp/stagehand/pkg/orchestrator"

// Orchestrator runs the readiness barrier for a list of process descriptors
type Orchestrator struct {
	handles []*handle
	logger  *slog.Logger
	metrics MetricsCollector
	tracer  trace.Tracer

	mu     sync.Mutex
	values map[string]string
}

// Option configures the Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetricsCollector sets the metrics collector
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *Orchestrator) {
		o.metrics = mc
	}
}

// New creates an orchestrator for the given descriptors. The descriptors are
// expected to come from a validated manifest; pattern compilation errors are
// still reported here for descriptors constructed directly.
func New(procs []manifest.Process, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		logger:  slog.Default(),
		metrics: NewNoopMetricsCollector(),
		tracer:  otel.Tracer(tracerName),
		values:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(o)
	}

	captureOwner := make(map[string]string)
	for _, proc := range procs {
		var matcher readiness.Matcher
		var captures []string
		if proc.Ready.Pattern != "" {
			pm, err := readiness.NewPatternMatcher(proc.Ready.Pattern)
			if err != nil {
				return nil, NewError(ErrorCodeInvalidManifest,
					"invalid readiness pattern").
					WithContext("process", proc.Name).
					WithCause(err)
			}
			matcher = pm
			captures = pm.Names()
		}
		for name := range proc.Reuse.Values {
			captures = append(captures, name)
		}

		// Manifest validation catches this for loaded manifests; descriptors
		// constructed directly get the same guarantee here.
		for _, name := range captures {
			if owner, taken := captureOwner[name]; taken && owner != proc.Name {
				return nil, NewError(ErrorCodeDuplicateCapture,
					"capture name claimed by more than one process").
					WithContext("capture", name).
					WithContext("processes", owner+", "+proc.Name)
			}
			captureOwner[name] = proc.Name
		}

		o.handles = append(o.handles, newHandle(proc, matcher))
	}

	return o, nil
}

// Start launches every descriptor and blocks until all are ready or one has
// failed. On failure, everything launched is torn down before Start returns;
// on success the caller owns teardown via Shutdown. The returned map holds
// every captured value, keyed by capture-group (or reuse value) name.
func (o *Orchestrator) Start(ctx context.Context) (map[string]string, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.start",
		trace.WithAttributes(attribute.Int("process.count", len(o.handles))))
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)

	for _, h := range o.handles {
		h := h
		g.Go(func() error {
			return o.awaitReady(gctx, h)
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		o.logger.Error("orchestration failed, tearing down", "error", err)

		// Pending waits are already cancelled via the group context;
		// tear down whatever was launched. The teardown gets its own
		// deadline since ctx may already be dead.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if terr := o.Shutdown(shutdownCtx); terr != nil {
			o.logger.Error("teardown after failure", "error", terr)
		}

		return nil, err
	}

	o.mu.Lock()
	values := make(map[string]string, len(o.values))
	for k, v := range o.values {
		values[k] = v
	}
	o.mu.Unlock()

	return values, nil
}

// awaitReady drives one descriptor to readiness: reuse probe, launch, then
// block on the first of pattern match, premature exit, timeout, or sibling
// failure.
func (o *Orchestrator) awaitReady(ctx context.Context, h *handle) error {
	proc := h.proc
	logger := o.logger.With("process", proc.Name)

	ctx, span := o.tracer.Start(ctx, "readiness.wait",
		trace.WithAttributes(attribute.String("process.name", proc.Name)))
	defer span.End()

	if proc.Reuse.Address != "" && readiness.Listening(proc.Reuse.Address, 0) {
		logger.Info("reusing existing listener", "address", proc.Reuse.Address)
		span.SetAttributes(attribute.Bool("process.reused", true))
		h.reused = true
		o.metrics.ProcessReused(proc.Name)
		o.publish(proc.Reuse.Values)
		return nil
	}

	start := time.Now()
	if err := h.launch(); err != nil {
		o.metrics.ProcessError(proc.Name, "launch_failed")
		return err
	}
	o.metrics.ProcessLaunched(proc.Name)
	logger.Info("launched", "pid", h.pid(), "command", proc.Command)

	// No pattern: the process is ready as soon as it is running
	if proc.Ready.Pattern == "" {
		o.metrics.ReadinessDuration(proc.Name, time.Since(start), nil)
		return nil
	}

	timeout := proc.Ready.Timeout.Std()
	if timeout <= 0 {
		timeout = manifest.DefaultReadyTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case values := <-h.watcher.Ready():
		elapsed := time.Since(start)
		o.metrics.ReadinessDuration(proc.Name, elapsed, nil)
		logger.Info("ready", "elapsed", elapsed, "captured", len(values))
		o.publish(values)
		return nil

	case <-h.exitDone:
		// The pipe's write end is closed before exitDone, so the watcher
		// drains to EOF promptly; wait for it so the tail is complete.
		<-h.watcher.Done()
		err := ErrPrematureExit(proc.Name, h.exitStatus(), h.watcher.Tail())
		o.metrics.ReadinessDuration(proc.Name, time.Since(start), err)
		o.metrics.ProcessError(proc.Name, "premature_exit")
		return err

	case <-timer.C:
		err := ErrReadinessTimeout(proc.Name, proc.Ready.Pattern, timeout, h.watcher.Tail())
		o.metrics.ReadinessDuration(proc.Name, time.Since(start), err)
		o.metrics.ProcessError(proc.Name, "readiness_timeout")
		return err

	case <-ctx.Done():
		// A sibling failed; our wait is cancelled
		return ctx.Err()
	}
}

// publish records captured values. Each key is owned by exactly one
// descriptor (enforced by manifest validation), so there is no write
// contention beyond the map itself.
func (o *Orchestrator) publish(values map[string]string) {
	if len(values) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for k, v := range values {
		o.values[k] = v
	}
}

// Values returns a copy of the captured values published so far
func (o *Orchestrator) Values() map[string]string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]string, len(o.values))
	for k, v := range o.values {
		out[k] = v
	}
	return out
}

// Shutdown tears down every launched process in reverse launch order.
// Reused processes are left running. Safe to call more than once.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	_, span := o.tracer.Start(ctx, "orchestrator.shutdown")
	defer span.End()

	var errs []error
	for i := len(o.handles) - 1; i >= 0; i-- {
		h := o.handles[i]
		if h.reused || !h.running() {
			continue
		}

		logger := o.logger.With("process", h.proc.Name)
		logger.Info("stopping", "signal", h.proc.Stop.Signal,
			"grace_period", h.proc.Stop.GracePeriod.Std())

		start := time.Now()
		if err := h.terminate(); err != nil {
			o.metrics.ProcessError(h.proc.Name, "termination_failed")
			logger.Error("teardown", "error", err)
			errs = append(errs, err)
		}
		o.metrics.TeardownDuration(h.proc.Name, time.Since(start))

		select {
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
			return errors.Join(errs...)
		default:
		}
	}

	return errors.Join(errs...)
}

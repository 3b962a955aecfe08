package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jrepp/stagehand/pkg/manifest"
	"github.com/jrepp/stagehand/pkg/orchestrator"
	"github.com/jrepp/stagehand/pkg/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch auxiliary processes, wait for readiness, run the dependent command",
	Long: `Run executes the full flow: the mode switch is read once, auxiliary
processes are launched (unless an existing listener is reused), readiness is
awaited with per-process timeouts, captured values are exported into the
dependent command's environment, and teardown runs after the command exits.

In debug mode (the manifest's debug.env_var is truthy) no auxiliary process
is launched and the dependent command runs with the manifest's debug
environment applied instead.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9090)")
	runCmd.Flags().Bool("trace", false, "Emit OpenTelemetry spans for the run to stdout")
}

func runRun(cmd *cobra.Command, args []string) error {
	m, err := manifest.Load(viper.GetString("manifest"))
	if err != nil {
		uiInstance.Error(fmt.Sprintf("Manifest invalid: %v", err))
		return err
	}

	logger := slog.Default().With("manifest", m.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if traceEnabled, _ := cmd.Flags().GetBool("trace"); traceEnabled {
		shutdown, err := orchestrator.SetupTracing("stagehand", version)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(flushCtx)
		}()
	}

	// Mode switch: decided once, before anything is launched
	if m.DebugActive() {
		logger.Info("debug mode active, auxiliary processes skipped", "env_var", m.Debug.EnvVar)
		uiInstance.Warn(fmt.Sprintf("Debug mode (%s set): running without auxiliary processes", m.Debug.EnvVar))

		env := mergeEnv(m.Run.Env, m.Debug.Env)
		code, err := runner.Run(ctx, logger, runner.Invocation{
			Command: m.Run.Command,
			Dir:     m.Run.Dir,
			Env:     env,
		})
		if err != nil {
			return err
		}
		exitCode = code
		return nil
	}

	metrics, metricsShutdown := setupMetrics(cmd, logger)
	defer metricsShutdown()

	orch, err := orchestrator.New(m.Processes,
		orchestrator.WithLogger(logger),
		orchestrator.WithMetricsCollector(metrics),
	)
	if err != nil {
		return err
	}

	values, err := orch.Start(ctx)
	if err != nil {
		reportOrchestrationError(err)
		return err
	}

	uiInstance.Success(fmt.Sprintf("%d process(es) ready", len(m.Processes)))
	for k, v := range values {
		uiInstance.KeyValue(k, v)
	}

	code, runErr := runner.Run(ctx, logger, runner.Invocation{
		Command: m.Run.Command,
		Dir:     m.Run.Dir,
		Env:     mergeEnv(m.Run.Env, values),
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Error("teardown", "error", err)
	}

	if runErr != nil {
		return runErr
	}
	exitCode = code
	return nil
}

// setupMetrics wires the Prometheus collector and, when requested, serves
// /metrics for the duration of the run.
func setupMetrics(cmd *cobra.Command, logger *slog.Logger) (orchestrator.MetricsCollector, func()) {
	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr == "" {
		return orchestrator.NewNoopMetricsCollector(), func() {}
	}

	pmc := orchestrator.NewPrometheusMetricsCollector("stagehand")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(pmc.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return pmc, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
}

// reportOrchestrationError surfaces the failure with the buffered output of
// the offending process.
func reportOrchestrationError(err error) {
	uiInstance.Error(fmt.Sprintf("Startup failed: %v", err))

	var oerr *orchestrator.Error
	if errors.As(err, &oerr) && len(oerr.Output) > 0 {
		uiInstance.Header("Process output (tail)")
		for _, line := range oerr.Output {
			uiInstance.Detail(line)
		}
	}
}

// mergeEnv layers b over a without mutating either
func mergeEnv(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

package orchestrator

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPrometheusCollector_Launches tests the launch counter
func TestPrometheusCollector_Launches(t *testing.T) {
	pmc := NewPrometheusMetricsCollector("test")

	pmc.ProcessLaunched("preview")
	pmc.ProcessLaunched("preview")
	pmc.ProcessLaunched("browser")

	expected := `
		# HELP test_process_launches_total Total number of auxiliary process launches
		# TYPE test_process_launches_total counter
		test_process_launches_total{process="browser"} 1
		test_process_launches_total{process="preview"} 2
	`
	err := testutil.GatherAndCompare(pmc.Registry(), strings.NewReader(expected),
		"test_process_launches_total")
	require.NoError(t, err)
}

// TestPrometheusCollector_ReuseHits tests the reuse counter
func TestPrometheusCollector_ReuseHits(t *testing.T) {
	pmc := NewPrometheusMetricsCollector("test")

	pmc.ProcessReused("preview")

	expected := `
		# HELP test_process_reuse_hits_total Total number of reuse hits (existing listener, no launch)
		# TYPE test_process_reuse_hits_total counter
		test_process_reuse_hits_total{process="preview"} 1
	`
	err := testutil.GatherAndCompare(pmc.Registry(), strings.NewReader(expected),
		"test_process_reuse_hits_total")
	require.NoError(t, err)
}

// TestPrometheusCollector_Errors tests the error counter labels
func TestPrometheusCollector_Errors(t *testing.T) {
	pmc := NewPrometheusMetricsCollector("test")

	pmc.ProcessError("preview", "readiness_timeout")
	pmc.ProcessError("preview", "readiness_timeout")
	pmc.ProcessError("browser", "premature_exit")

	expected := `
		# HELP test_process_errors_total Total number of process errors
		# TYPE test_process_errors_total counter
		test_process_errors_total{error_type="premature_exit",process="browser"} 1
		test_process_errors_total{error_type="readiness_timeout",process="preview"} 2
	`
	err := testutil.GatherAndCompare(pmc.Registry(), strings.NewReader(expected),
		"test_process_errors_total")
	require.NoError(t, err)
}

// TestPrometheusCollector_Durations tests that histogram observations land
// under the right label sets
func TestPrometheusCollector_Durations(t *testing.T) {
	pmc := NewPrometheusMetricsCollector("test")

	pmc.ReadinessDuration("preview", 120*time.Millisecond, nil)
	pmc.ReadinessDuration("browser", 10*time.Second, fmt.Errorf("timed out"))
	pmc.TeardownDuration("preview", 50*time.Millisecond)

	count, err := testutil.GatherAndCount(pmc.Registry(),
		"test_readiness_duration_seconds", "test_teardown_duration_seconds")
	require.NoError(t, err)
	// Two readiness label sets (success and error) plus one teardown
	assert.Equal(t, 3, count)
}

// TestPrometheusCollector_DefaultNamespace tests the namespace fallback
func TestPrometheusCollector_DefaultNamespace(t *testing.T) {
	pmc := NewPrometheusMetricsCollector("")
	pmc.ProcessLaunched("preview")

	count, err := testutil.GatherAndCount(pmc.Registry(), "stagehand_process_launches_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestNoopCollector tests that the noop collector is safe to call
func TestNoopCollector(t *testing.T) {
	mc := NewNoopMetricsCollector()
	mc.ProcessLaunched("p")
	mc.ProcessReused("p")
	mc.ReadinessDuration("p", time.Second, nil)
	mc.TeardownDuration("p", time.Second)
	mc.ProcessError("p", "launch_failed")
}

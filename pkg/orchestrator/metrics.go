package orchestrator

import (
	"time"
)

// MetricsCollector defines the interface for collecting orchestration metrics
type MetricsCollector interface {
	// ProcessLaunched records a process launch
	ProcessLaunched(process string)

	// ProcessReused records a reuse hit (existing listener, no launch)
	ProcessReused(process string)

	// ReadinessDuration records how long a process took to become ready
	ReadinessDuration(process string, duration time.Duration, err error)

	// TeardownDuration records how long teardown of a process took
	TeardownDuration(process string, duration time.Duration)

	// ProcessError records an error for a process
	ProcessError(process string, errorType string)
}

// noopMetricsCollector is a no-op implementation of MetricsCollector
type noopMetricsCollector struct{}

func (n *noopMetricsCollector) ProcessLaunched(process string)                                      {}
func (n *noopMetricsCollector) ProcessReused(process string)                                        {}
func (n *noopMetricsCollector) ReadinessDuration(process string, duration time.Duration, err error) {}
func (n *noopMetricsCollector) TeardownDuration(process string, duration time.Duration)             {}
func (n *noopMetricsCollector) ProcessError(process string, errorType string)                       {}

// NewNoopMetricsCollector creates a no-op metrics collector
func NewNoopMetricsCollector() MetricsCollector {
	return &noopMetricsCollector{}
}

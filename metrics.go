package spidpassport

import (
	"github.com/BeAdopt/spid-passport/internal/adapters/driven/metrics"
	"github.com/BeAdopt/spid-passport/internal/core/ports"
)

// Re-export MetricsRecorder port and adapters
type MetricsRecorder = ports.MetricsRecorder
type NoopMetricsRecorder = metrics.NoopMetricsRecorder
type PrometheusMetricsRecorder = metrics.PrometheusMetricsRecorder

var (
	NewNoopMetricsRecorder                   = metrics.NewNoopMetricsRecorder
	NewPrometheusMetricsRecorder             = metrics.NewPrometheusMetricsRecorder
	NewPrometheusMetricsRecorderWithRegistry = metrics.NewPrometheusMetricsRecorderWithRegistry
)

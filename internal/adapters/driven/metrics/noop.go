package metrics

import (
	"github.com/BeAdopt/spid-passport/internal/core/ports"
)

// NoopMetricsRecorder is a no-op implementation for when metrics are disabled.
// All methods are safe to call and do nothing.
type NoopMetricsRecorder struct{}

// NewNoopMetricsRecorder creates a new no-op metrics recorder.
func NewNoopMetricsRecorder() *NoopMetricsRecorder {
	return &NoopMetricsRecorder{}
}

// RecordAuthAttempt is a no-op.
func (n *NoopMetricsRecorder) RecordAuthAttempt(idpEntityID string, success bool) {}

// RecordAuthnRequest is a no-op.
func (n *NoopMetricsRecorder) RecordAuthnRequest(idpEntityID string) {}

// RecordLogout is a no-op.
func (n *NoopMetricsRecorder) RecordLogout(idpEntityID string) {}

// RecordMetadataGeneration is a no-op.
func (n *NoopMetricsRecorder) RecordMetadataGeneration(success bool) {}

// Ensure NoopMetricsRecorder implements ports.MetricsRecorder
var _ ports.MetricsRecorder = (*NoopMetricsRecorder)(nil)

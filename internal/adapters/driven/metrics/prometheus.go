package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/BeAdopt/spid-passport/internal/core/ports"
)

// PrometheusMetricsRecorder records metrics using Prometheus.
type PrometheusMetricsRecorder struct {
	authAttemptsTotal  *prometheus.CounterVec
	authnRequestsTotal *prometheus.CounterVec
	logoutsTotal       *prometheus.CounterVec
	metadataTotal      *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder creates a new Prometheus metrics recorder
// using the default Prometheus registry.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	return NewPrometheusMetricsRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsRecorderWithRegistry creates a new Prometheus metrics
// recorder with a custom registry. Use this for testing.
func NewPrometheusMetricsRecorderWithRegistry(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	authAttemptsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spid_auth_attempts_total",
		Help: "Total SPID authentication attempts",
	}, []string{"idp_entity_id", "result"})

	authnRequestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spid_authn_requests_total",
		Help: "Total AuthnRequests issued",
	}, []string{"idp_entity_id"})

	logoutsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spid_logouts_total",
		Help: "Total completed logout flows",
	}, []string{"idp_entity_id"})

	metadataTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spid_metadata_generation_total",
		Help: "Total SP metadata generation attempts",
	}, []string{"result"})

	reg.MustRegister(
		authAttemptsTotal,
		authnRequestsTotal,
		logoutsTotal,
		metadataTotal,
	)

	return &PrometheusMetricsRecorder{
		authAttemptsTotal:  authAttemptsTotal,
		authnRequestsTotal: authnRequestsTotal,
		logoutsTotal:       logoutsTotal,
		metadataTotal:      metadataTotal,
	}
}

// RecordAuthAttempt records the outcome of an authentication pass.
func (p *PrometheusMetricsRecorder) RecordAuthAttempt(idpEntityID string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	p.authAttemptsTotal.WithLabelValues(idpEntityID, result).Inc()
}

// RecordAuthnRequest records a new AuthnRequest issued towards an IdP.
func (p *PrometheusMetricsRecorder) RecordAuthnRequest(idpEntityID string) {
	p.authnRequestsTotal.WithLabelValues(idpEntityID).Inc()
}

// RecordLogout records a completed logout flow.
func (p *PrometheusMetricsRecorder) RecordLogout(idpEntityID string) {
	p.logoutsTotal.WithLabelValues(idpEntityID).Inc()
}

// RecordMetadataGeneration records a metadata generation attempt.
func (p *PrometheusMetricsRecorder) RecordMetadataGeneration(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	p.metadataTotal.WithLabelValues(result).Inc()
}

// Ensure PrometheusMetricsRecorder implements ports.MetricsRecorder
var _ ports.MetricsRecorder = (*PrometheusMetricsRecorder)(nil)

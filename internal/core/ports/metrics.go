package ports

// MetricsRecorder is the port interface for recording metrics.
// Implementations are adapters (PrometheusMetricsRecorder for production,
// NoopMetricsRecorder for disabled/testing).
type MetricsRecorder interface {
	// RecordAuthAttempt records the outcome of an authentication pass.
	RecordAuthAttempt(idpEntityID string, success bool)

	// RecordAuthnRequest records a new AuthnRequest issued towards an IdP.
	RecordAuthnRequest(idpEntityID string)

	// RecordLogout records a completed logout flow.
	RecordLogout(idpEntityID string)

	// RecordMetadataGeneration records a metadata generation attempt.
	RecordMetadataGeneration(success bool)
}

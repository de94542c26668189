package ports

import "time"

// RequestStore tracks issued AuthnRequest IDs to prevent replay attacks.
// Implementations must be safe for concurrent use.
type RequestStore interface {
	// Store saves a request ID with its expiry time. A failed save is a
	// hard error for the request being built: the ID must be durably
	// recorded before the AuthnRequest leaves the process.
	Store(requestID string, expiry time.Time) error

	// Valid checks if a request ID exists and is not expired.
	// Returns true only once per ID (single-use).
	Valid(requestID string) bool

	// GetAll returns all non-expired request IDs.
	// Used by the protocol engine for InResponseTo validation.
	GetAll() []string
}

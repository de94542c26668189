package ports

import (
	"context"
	"net/http"

	"github.com/BeAdopt/spid-passport/internal/core/domain"
)

// Responder receives the outcome of one pass through the strategy.
// Exactly one method is invoked per authenticate/logout call.
type Responder interface {
	// Success reports a verified identity.
	Success(profile *domain.Profile, info map[string]any)

	// Fail reports a non-fatal authentication failure.
	Fail(reason string)

	// Pass reports that the request completed without establishing or
	// rejecting an identity (e.g. a passive logout confirmation).
	Pass()

	// Error reports a fatal error in the flow.
	Error(err error)

	// Redirect continues the protocol at the given URL.
	Redirect(url string)
}

// VerifyFunc is the application's verification callback. It receives the
// extracted identity profile and returns the (possibly enriched) profile to
// establish, or a failure reason, or an error.
type VerifyFunc func(ctx context.Context, profile *domain.Profile) (*domain.Profile, map[string]any, error)

// VerifyRequestFunc is VerifyFunc with access to the inbound request.
// Used when the provider configuration sets PassReqToCallback.
type VerifyRequestFunc func(ctx context.Context, r *http.Request, profile *domain.Profile) (*domain.Profile, map[string]any, error)

// SessionEnder terminates the local application session during logout.
// Session storage itself is owned by the application, not by this layer.
type SessionEnder interface {
	End(r *http.Request) error
}

// SessionEnderFunc adapts a function to the SessionEnder interface.
type SessionEnderFunc func(r *http.Request) error

// End implements SessionEnder.
func (f SessionEnderFunc) End(r *http.Request) error { return f(r) }

package ports

import (
	"context"
	"time"

	"github.com/beevik/etree"

	"github.com/BeAdopt/spid-passport/internal/core/domain"
)

// Operation distinguishes the two flows a SAML message can belong to.
type Operation string

const (
	OperationLogin  Operation = "authorize"
	OperationLogout Operation = "logout"
)

// ValidationResult is the outcome of validating an inbound SAML message.
type ValidationResult struct {
	// Profile is the extracted identity. Nil for a bare logout
	// confirmation that carries no subject.
	Profile *domain.Profile

	// LoggedOut reports that the message completed a logout flow rather
	// than a login.
	LoggedOut bool
}

// ProtocolEngine is the port to the external SAML protocol engine. It owns
// everything cryptographic and wire-level: signature verification, assertion
// decryption, replay bookkeeping against the request store, deflate/base64
// encoding, and redirect URL construction. The orchestration layer treats it
// as an opaque capability.
type ProtocolEngine interface {
	// ValidatePostResponse validates a base64-encoded SAMLResponse POST
	// body against the trust set in cfg.
	ValidatePostResponse(ctx context.Context, encoded string, cfg *domain.EffectiveConfig) (*ValidationResult, error)

	// ValidatePostRequest validates a base64-encoded SAMLRequest POST
	// body (IdP-initiated logout) against the trust set in cfg.
	ValidatePostRequest(ctx context.Context, encoded string, cfg *domain.EffectiveConfig) (*ValidationResult, error)

	// LogoutURL builds the redirect URL starting SP-initiated logout for
	// the given authenticated profile.
	LogoutURL(ctx context.Context, profile *domain.Profile, cfg *domain.EffectiveConfig) (string, error)

	// LogoutResponseURL builds the redirect URL answering an
	// IdP-initiated logout request.
	LogoutResponseURL(ctx context.Context, profile *domain.Profile, cfg *domain.EffectiveConfig) (string, error)

	// RequestToURL serializes an AuthnRequest document into the redirect
	// URL that transmits it to the IdP.
	RequestToURL(ctx context.Context, doc *etree.Document, op Operation, relayState string, cfg *domain.EffectiveConfig) (string, error)

	// GenerateUniqueID returns a fresh protocol message identifier.
	GenerateUniqueID() string

	// GenerateInstant returns the issue instant for a new message.
	GenerateInstant() time.Time

	// CallbackURL returns the assertion consumer service URL for cfg.
	CallbackURL(cfg *domain.EffectiveConfig) string

	// AdditionalParams returns extra query parameters to append to a
	// redirect URL for the given operation.
	AdditionalParams(op Operation, relayState string, cfg *domain.EffectiveConfig) map[string]string
}

package spidpassport

import (
	"context"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/BeAdopt/spid-passport/internal/core/domain"
	"github.com/BeAdopt/spid-passport/internal/core/ports"
)

// instantFormat is the UTC millisecond form SAML issue instants use.
const instantFormat = "2006-01-02T15:04:05.000Z"

// DefaultRequestTTL is how long an issued AuthnRequest ID stays valid in
// the replay-prevention store.
const DefaultRequestTTL = 10 * time.Minute

// BuildAuthnRequest constructs the authentication-request document for the
// resolved per-request configuration. The ID and issue instant come from the
// protocol engine so uniqueness and timestamp guarantees stay centralized
// there. When a replay-prevention store is supplied, the ID is recorded
// before the document is returned; a failed save aborts construction.
func BuildAuthnRequest(ctx context.Context, cfg *domain.EffectiveConfig, engine ports.ProtocolEngine, store ports.RequestStore) (*etree.Document, error) {
	id := engine.GenerateUniqueID()
	if id == "" {
		return nil, domain.BuildError("protocol engine returned an empty request ID", nil)
	}
	instant := engine.GenerateInstant()

	if store != nil {
		if err := store.Store(id, instant.Add(DefaultRequestTTL)); err != nil {
			return nil, domain.BuildError("failed to record request ID for replay prevention", err)
		}
	}

	doc := etree.NewDocument()
	req := doc.CreateElement("samlp:AuthnRequest")
	req.CreateAttr("xmlns:samlp", "urn:oasis:names:tc:SAML:2.0:protocol")
	req.CreateAttr("xmlns:saml", "urn:oasis:names:tc:SAML:2.0:assertion")
	req.CreateAttr("ID", id)
	req.CreateAttr("Version", "2.0")
	req.CreateAttr("IssueInstant", instant.Format(instantFormat))
	req.CreateAttr("ProtocolBinding", "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST")
	req.CreateAttr("AssertionConsumerServiceURL", engine.CallbackURL(cfg))
	if cfg.EntryPoint != "" {
		req.CreateAttr("Destination", cfg.EntryPoint)
	}

	// ForceAuthn is emitted only when true; minimal-document convention.
	if cfg.ForceAuthn {
		req.CreateAttr("ForceAuthn", "true")
	}

	if index := cfg.Base.AttributeConsumingServiceIndex; index != nil {
		req.CreateAttr("AttributeConsumingServiceIndex", strconv.Itoa(*index))
	}

	if cfg.Base.ProviderName != "" {
		req.CreateAttr("ProviderName", cfg.Base.ProviderName)
	}

	issuer := req.CreateElement("saml:Issuer")
	issuer.CreateAttr("Format", "urn:oasis:names:tc:SAML:2.0:nameid-format:entity")
	issuer.CreateAttr("NameQualifier", cfg.Base.Issuer)
	issuer.SetText(cfg.Base.Issuer)

	if cfg.Base.IdentifierFormat != "" {
		policy := req.CreateElement("samlp:NameIDPolicy")
		policy.CreateAttr("Format", cfg.Base.IdentifierFormat)
	}

	if !cfg.Base.DisableRequestedAuthnContext && cfg.AuthnContextURI != "" {
		rac := req.CreateElement("samlp:RequestedAuthnContext")
		rac.CreateAttr("Comparison", "exact")
		rac.CreateElement("saml:AuthnContextClassRef").SetText(cfg.AuthnContextURI)
	}

	return doc, nil
}

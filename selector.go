package spidpassport

import (
	"go.uber.org/zap"

	"github.com/BeAdopt/spid-passport/internal/core/domain"
)

// ResolveIdP resolves the signing trust set and protocol entry point for a
// request. A named IdP yields exactly its configured entry point and
// certificates. With no entityID the trust set is the concatenation of every
// registered IdP's certificates, in registry order, so that a response of
// unknown origin can be validated against all trusted signers.
//
// An entityID that is not registered is a resolution failure: the request
// aborts with a configuration error instead of continuing with a missing
// entry (the lenient alternative would dereference nothing and fail later
// in a less diagnosable way).
func ResolveIdP(cfg *domain.ProviderConfig, entityID string) (entryPoint string, certs []string, err error) {
	if entityID == "" {
		return "", cfg.AllCertificates(), nil
	}

	idp, ok := cfg.FindIdP(entityID)
	if !ok {
		return "", nil, domain.IdPNotFoundError(entityID)
	}
	return idp.EntryPoint, idp.Certificates, nil
}

// ResolveEffectiveConfig derives the per-request configuration overlay from
// the immutable base: resolved entry point and certificate set, requested
// AuthnContext URI, and the ForceAuthn flag derived from the assurance-level
// order. The base configuration is never mutated.
//
// An unresolvable level token is a degraded-but-continuing condition: it is
// logged and the request proceeds without a requested context, since the
// RequestedAuthnContext element is optional protocol-wise.
func ResolveEffectiveConfig(cfg *domain.ProviderConfig, entityID, levelToken string, logger *zap.Logger) (*domain.EffectiveConfig, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	entryPoint, certs, err := ResolveIdP(cfg, entityID)
	if err != nil {
		return nil, err
	}

	effective := &domain.EffectiveConfig{
		Base:         cfg,
		EntryPoint:   entryPoint,
		Certificates: certs,
	}

	token := levelToken
	if token == "" {
		token = cfg.AuthnContext
	}

	level := domain.DefaultLevel
	if token != "" {
		resolved, ok := domain.ParseLevel(token)
		if !ok {
			logger.Warn("unknown authentication level token, proceeding without requested context",
				zap.String("auth_level", token))
			effective.ForceAuthn = domain.ForceAuthnFor(domain.DefaultLevel)
			return effective, nil
		}
		level = resolved
	}

	uri, _ := domain.LevelToURI(level)
	effective.AuthnContextURI = uri
	effective.ForceAuthn = domain.ForceAuthnFor(level)
	return effective, nil
}

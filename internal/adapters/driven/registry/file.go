// Package registry loads the IdP registry from SAML metadata documents,
// such as the aggregate the SPID federation registry publishes.
package registry

import (
	"encoding/xml"
	"fmt"
	"os"

	"github.com/crewjam/saml"
	"go.uber.org/zap"

	"github.com/BeAdopt/spid-passport/internal/core/domain"
	"github.com/BeAdopt/spid-passport/internal/core/ports"
)

// Loader parses IdP metadata into registry entries.
type Loader struct {
	verifier ports.SignatureVerifier
	logger   *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithSignatureVerifier enables signature verification: metadata is
// verified against the trusted certificates before parsing.
func WithSignatureVerifier(verifier ports.SignatureVerifier) Option {
	return func(l *Loader) {
		l.verifier = verifier
	}
}

// WithLogger sets the loader logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a metadata registry loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile reads a metadata file and returns the IdPs it describes.
func (l *Loader) LoadFile(path string) ([]domain.IdPConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}
	return l.Parse(data)
}

// Parse parses metadata XML, supporting both a single EntityDescriptor and
// an aggregate EntitiesDescriptor. Entities without an IdP role are
// skipped; an IdP without usable endpoints or certificates is skipped with
// a warning rather than failing the whole registry.
func (l *Loader) Parse(data []byte) ([]domain.IdPConfig, error) {
	if l.verifier != nil {
		verified, err := l.verifier.Verify(data)
		if err != nil {
			return nil, err
		}
		data = verified
	}

	var entities saml.EntitiesDescriptor
	if err := xml.Unmarshal(data, &entities); err == nil && len(entities.EntityDescriptors) > 0 {
		var idps []domain.IdPConfig
		for i := range entities.EntityDescriptors {
			if idp, ok := l.entityToIdP(&entities.EntityDescriptors[i]); ok {
				idps = append(idps, idp)
			}
		}
		if len(idps) == 0 {
			return nil, fmt.Errorf("metadata contains no usable identity providers")
		}
		return idps, nil
	}

	var entity saml.EntityDescriptor
	if err := xml.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	idp, ok := l.entityToIdP(&entity)
	if !ok {
		return nil, fmt.Errorf("metadata entity %q is not a usable identity provider", entity.EntityID)
	}
	return []domain.IdPConfig{idp}, nil
}

// entityToIdP extracts the registry entry from one entity descriptor.
func (l *Loader) entityToIdP(entity *saml.EntityDescriptor) (domain.IdPConfig, bool) {
	if len(entity.IDPSSODescriptors) == 0 {
		return domain.IdPConfig{}, false
	}
	descriptor := &entity.IDPSSODescriptors[0]

	idp := domain.IdPConfig{EntityID: entity.EntityID}

	// Prefer the redirect binding; fall back to whatever is first.
	for _, endpoint := range descriptor.SingleSignOnServices {
		if endpoint.Binding == saml.HTTPRedirectBinding {
			idp.EntryPoint = endpoint.Location
			break
		}
	}
	if idp.EntryPoint == "" && len(descriptor.SingleSignOnServices) > 0 {
		idp.EntryPoint = descriptor.SingleSignOnServices[0].Location
	}

	for _, kd := range descriptor.KeyDescriptors {
		if kd.Use != "" && kd.Use != "signing" {
			continue
		}
		for _, cert := range kd.KeyInfo.X509Data.X509Certificates {
			if cert.Data != "" {
				idp.Certificates = append(idp.Certificates, domain.CleanCertificate(cert.Data))
			}
		}
	}

	if idp.EntryPoint == "" || len(idp.Certificates) == 0 {
		l.logger.Warn("skipping identity provider with incomplete metadata",
			zap.String("entity_id", entity.EntityID))
		return domain.IdPConfig{}, false
	}

	return idp, true
}

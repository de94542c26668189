package domain

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// IdPConfig describes a single registered SPID Identity Provider.
type IdPConfig struct {
	// EntityID is the unique identifier for this IdP, matched against the
	// entityID query parameter of inbound login requests.
	EntityID string `json:"entity_id"`

	// EntryPoint is the IdP's Single Sign-On endpoint URL.
	EntryPoint string `json:"entry_point"`

	// Certificates are the IdP's signing certificates, base64 DER without
	// PEM envelope (the form SAML metadata embeds).
	Certificates []string `json:"certificates"`
}

// Organization describes the service provider organization for metadata.
type Organization struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
}

// FallbackFlow selects what a GET request without a SAML payload starts.
type FallbackFlow string

const (
	// FlowLoginRequest starts a new login by redirecting to the IdP.
	FlowLoginRequest FallbackFlow = "login-request"

	// FlowLogoutRequest starts an SP-initiated logout.
	FlowLogoutRequest FallbackFlow = "logout-request"
)

// ProviderConfig is the process-wide service-provider configuration.
// It is loaded once and never mutated; per-request state is derived into
// a fresh EffectiveConfig overlay.
type ProviderConfig struct {
	// Issuer is the SP entity ID.
	Issuer string `json:"issuer"`

	// CallbackURL is the assertion consumer service URL.
	CallbackURL string `json:"callback_url"`

	// LogoutCallbackURL is the single logout service URL (optional).
	LogoutCallbackURL string `json:"logout_callback_url,omitempty"`

	// PrivateKey is the SP signing key, PEM encoded.
	PrivateKey string `json:"private_key"`

	// DecryptionKey is the assertion decryption key, PEM encoded (optional).
	DecryptionKey string `json:"decryption_key,omitempty"`

	// Certificate is the SP certificate, PEM encoded.
	Certificate string `json:"certificate"`

	// IdentityProviders is the ordered IdP registry. Order is significant:
	// when no entityID is supplied, trusted certificates are concatenated
	// in registry order.
	IdentityProviders []IdPConfig `json:"identity_providers"`

	// AuthnContext is the default requested assurance level token
	// ("SpidL1".."SpidL3"). Empty means DefaultLevel.
	AuthnContext string `json:"authn_context,omitempty"`

	// DisableRequestedAuthnContext omits the RequestedAuthnContext element
	// from AuthnRequests entirely.
	DisableRequestedAuthnContext bool `json:"disable_requested_authn_context,omitempty"`

	// IdentifierFormat is the NameIDPolicy format (optional).
	IdentifierFormat string `json:"identifier_format,omitempty"`

	// AttributeConsumingServiceIndex selects the attribute consuming
	// service in AuthnRequests. Nil means absent; zero is a valid index.
	AttributeConsumingServiceIndex *int `json:"attribute_consuming_service_index,omitempty"`

	// RequestedAttributes lists the SPID attributes the SP consumes
	// (e.g. "name", "familyName", "fiscalNumber").
	RequestedAttributes []string `json:"requested_attributes,omitempty"`

	// AttributeServiceName labels the attribute consuming service block.
	AttributeServiceName string `json:"attribute_service_name,omitempty"`

	// Organization is the SP organization block for metadata (optional).
	Organization *Organization `json:"organization,omitempty"`

	// ProviderName is the human-readable SP name carried in AuthnRequests.
	ProviderName string `json:"provider_name,omitempty"`

	// PassReqToCallback passes the inbound request to the verify callback.
	PassReqToCallback bool `json:"pass_req_to_callback,omitempty"`

	// AdditionalParams are appended to every redirect URL.
	AdditionalParams map[string]string `json:"additional_params,omitempty"`

	// AdditionalAuthorizeParams are appended to login redirect URLs only.
	AdditionalAuthorizeParams map[string]string `json:"additional_authorize_params,omitempty"`

	// AdditionalLogoutParams are appended to logout redirect URLs only.
	AdditionalLogoutParams map[string]string `json:"additional_logout_params,omitempty"`

	// Fallback selects the flow started by a GET without a SAML payload.
	// Empty means FlowLoginRequest.
	Fallback FallbackFlow `json:"fallback,omitempty"`
}

// Validate checks the configuration invariants that every flow depends on.
func (c *ProviderConfig) Validate() error {
	if c.Issuer == "" {
		return ConfigError("issuer is required")
	}
	if c.CallbackURL == "" {
		return ConfigError("callback_url is required")
	}
	if len(c.IdentityProviders) == 0 {
		return ConfigError("at least one identity provider is required")
	}
	seen := make(map[string]bool, len(c.IdentityProviders))
	for _, idp := range c.IdentityProviders {
		if idp.EntityID == "" {
			return ConfigError("identity provider entity_id is required")
		}
		if seen[idp.EntityID] {
			return ConfigError(fmt.Sprintf("duplicate identity provider %q", idp.EntityID))
		}
		seen[idp.EntityID] = true
		if idp.EntryPoint == "" {
			return ConfigError(fmt.Sprintf("identity provider %q has no entry_point", idp.EntityID))
		}
		if len(idp.Certificates) == 0 {
			return ConfigError(fmt.Sprintf("identity provider %q has no certificates", idp.EntityID))
		}
	}
	switch c.Fallback {
	case "", FlowLoginRequest, FlowLogoutRequest:
	default:
		return ConfigError(fmt.Sprintf("unknown fallback flow %q", c.Fallback))
	}
	return nil
}

// FindIdP returns the registered IdP with the given entity ID.
func (c *ProviderConfig) FindIdP(entityID string) (*IdPConfig, bool) {
	for i := range c.IdentityProviders {
		if c.IdentityProviders[i].EntityID == entityID {
			return &c.IdentityProviders[i], true
		}
	}
	return nil, false
}

// AllCertificates concatenates every registered IdP's certificates in
// registry order. Used when the originating IdP is not known up front.
func (c *ProviderConfig) AllCertificates() []string {
	var certs []string
	for _, idp := range c.IdentityProviders {
		certs = append(certs, idp.Certificates...)
	}
	return certs
}

// EffectiveConfig is the per-request overlay derived from a ProviderConfig.
// It is created fresh for each request and discarded afterwards; the base
// configuration is never mutated.
type EffectiveConfig struct {
	Base *ProviderConfig

	// EntryPoint is the resolved IdP SSO endpoint (empty when the IdP is
	// not known, e.g. while validating a response of unknown origin).
	EntryPoint string

	// Certificates is the resolved trust set for signature validation.
	Certificates []string

	// AuthnContextURI is the resolved requested AuthnContext class
	// reference (empty when the requested context is disabled or the
	// level token could not be resolved).
	AuthnContextURI string

	// ForceAuthn is derived from the resolved assurance level.
	ForceAuthn bool
}

// LoadConfig reads and validates a JSON provider configuration file.
func LoadConfig(path string) (*ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg ProviderConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CleanCertificate strips the PEM envelope and line-ending noise from a
// certificate so it can be embedded in metadata key descriptors.
func CleanCertificate(cert string) string {
	cert = strings.ReplaceAll(cert, "-----BEGIN CERTIFICATE-----", "")
	cert = strings.ReplaceAll(cert, "-----END CERTIFICATE-----", "")
	cert = strings.ReplaceAll(cert, "\r", "")
	cert = strings.ReplaceAll(cert, "\n", "")
	return strings.TrimSpace(cert)
}

// ParseCertificate parses a certificate given either as PEM or as bare
// base64 DER (the form IdP metadata embeds).
func ParseCertificate(cert string) (*x509.Certificate, error) {
	if block, _ := pem.Decode([]byte(cert)); block != nil {
		return x509.ParseCertificate(block.Bytes)
	}
	cleaned := CleanCertificate(cert)
	if cleaned == "" {
		return nil, errors.New("empty certificate")
	}
	der, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode certificate: %w", err)
	}
	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return parsed, nil
}

// Package engine implements the SAML protocol engine port on top of
// crewjam/saml and goxmldsig. The orchestration layer never touches the
// wire formats directly; everything cryptographic lives here.
package engine

import (
	"bytes"
	"compress/flate"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/beevik/etree"
	"github.com/crewjam/saml"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BeAdopt/spid-passport/internal/adapters/driven/signature"
	"github.com/BeAdopt/spid-passport/internal/core/domain"
	"github.com/BeAdopt/spid-passport/internal/core/ports"
)

// instantFormat is the UTC millisecond form SAML issue instants use.
const instantFormat = "2006-01-02T15:04:05.000Z"

// rsaSHA256SigAlg identifies the redirect-binding signature algorithm.
const rsaSHA256SigAlg = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"

// Engine is the crewjam/saml-backed protocol engine.
type Engine struct {
	store  ports.RequestStore
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a protocol engine sharing the given replay-prevention
// store with the AuthnRequest builder.
func NewEngine(store ports.RequestStore, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GenerateUniqueID returns a fresh protocol message identifier.
// SAML IDs are of XML type xs:ID and may not start with a digit.
func (e *Engine) GenerateUniqueID() string {
	return "_" + uuid.NewString()
}

// GenerateInstant returns the issue instant for a new message.
func (e *Engine) GenerateInstant() time.Time {
	return time.Now().UTC()
}

// CallbackURL returns the assertion consumer service URL for cfg.
func (e *Engine) CallbackURL(cfg *domain.EffectiveConfig) string {
	return cfg.Base.CallbackURL
}

// AdditionalParams returns extra query parameters to append to a redirect
// URL: RelayState plus the configured global and per-operation extras.
func (e *Engine) AdditionalParams(op ports.Operation, relayState string, cfg *domain.EffectiveConfig) map[string]string {
	params := make(map[string]string)
	if relayState != "" {
		params["RelayState"] = relayState
	}
	for k, v := range cfg.Base.AdditionalParams {
		params[k] = v
	}
	var extra map[string]string
	switch op {
	case ports.OperationLogin:
		extra = cfg.Base.AdditionalAuthorizeParams
	case ports.OperationLogout:
		extra = cfg.Base.AdditionalLogoutParams
	}
	for k, v := range extra {
		params[k] = v
	}
	return params
}

// ValidatePostResponse validates a base64-encoded SAMLResponse POST body.
// A LogoutResponse completes an SP-initiated logout; anything else is a
// login response carrying an assertion.
func (e *Engine) ValidatePostResponse(ctx context.Context, encoded string, cfg *domain.EffectiveConfig) (*ports.ValidationResult, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, domain.BadRequestError("SAMLResponse is not valid base64")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, domain.BadRequestError("SAMLResponse is not valid XML")
	}
	root := doc.Root()
	if root == nil {
		return nil, domain.BadRequestError("SAMLResponse is empty")
	}

	if root.Tag == "LogoutResponse" {
		return e.validateLogoutResponse(encoded, cfg)
	}

	sp, err := e.buildServiceProvider(cfg)
	if err != nil {
		return nil, err
	}

	assertion, err := sp.ParseXMLResponse(raw, e.possibleRequestIDs())
	if err != nil {
		return nil, domain.AuthError("SAML response validation failed", err)
	}

	profile := profileFromAssertion(assertion)
	e.logger.Debug("saml response validated",
		zap.String("issuer", profile.Issuer),
		zap.String("authn_context", profile.AuthnContextURI))

	// Consume the InResponseTo ID so the response cannot be replayed.
	if assertion.Subject != nil {
		for _, sc := range assertion.Subject.SubjectConfirmations {
			if sc.SubjectConfirmationData != nil && sc.SubjectConfirmationData.InResponseTo != "" {
				e.store.Valid(sc.SubjectConfirmationData.InResponseTo)
			}
		}
	}

	return &ports.ValidationResult{Profile: profile}, nil
}

// ValidatePostRequest validates a base64-encoded SAMLRequest POST body,
// which in this flow is always an IdP-initiated LogoutRequest. The
// signature is checked against the effective trust set before any field
// is extracted.
func (e *Engine) ValidatePostRequest(ctx context.Context, encoded string, cfg *domain.EffectiveConfig) (*ports.ValidationResult, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, domain.BadRequestError("SAMLRequest is not valid base64")
	}

	certs, err := parseCertificates(cfg.Certificates)
	if err != nil {
		return nil, domain.AuthError("no usable trust certificates", err)
	}

	verifier := signature.NewXMLDsigVerifierWithCerts(certs)
	verifier.SetLogger(e.logger)
	validated, err := verifier.Verify(raw)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(validated); err != nil {
		return nil, domain.BadRequestError("SAMLRequest is not valid XML")
	}
	root := doc.Root()
	if root == nil || root.Tag != "LogoutRequest" {
		return nil, domain.BadRequestError("SAMLRequest is not a LogoutRequest")
	}

	profile := &domain.Profile{
		MessageID: root.SelectAttrValue("ID", ""),
	}
	if issuer := root.FindElement("./Issuer"); issuer != nil {
		profile.Issuer = issuer.Text()
	}
	if nameID := root.FindElement("./NameID"); nameID != nil {
		profile.NameID = nameID.Text()
		profile.NameIDFormat = nameID.SelectAttrValue("Format", "")
		profile.NameQualifier = nameID.SelectAttrValue("NameQualifier", "")
	}
	if si := root.FindElement("./SessionIndex"); si != nil {
		profile.SessionIndex = si.Text()
	}

	return &ports.ValidationResult{Profile: profile, LoggedOut: true}, nil
}

// RequestToURL serializes a protocol document into the HTTP-Redirect
// binding URL that transmits it to the IdP: deflate, base64, then query
// parameters, signed with the SP key when one is configured.
func (e *Engine) RequestToURL(ctx context.Context, doc *etree.Document, op ports.Operation, relayState string, cfg *domain.EffectiveConfig) (string, error) {
	if cfg.EntryPoint == "" {
		return "", domain.ConfigError("no identity provider entry point resolved")
	}

	serialized, err := doc.WriteToString()
	if err != nil {
		return "", domain.ServiceError("failed to serialize request document")
	}

	var deflated bytes.Buffer
	writer, err := flate.NewWriter(&deflated, flate.BestCompression)
	if err != nil {
		return "", fmt.Errorf("create deflate writer: %w", err)
	}
	if _, err := writer.Write([]byte(serialized)); err != nil {
		return "", fmt.Errorf("deflate request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("deflate request: %w", err)
	}

	target, err := url.Parse(cfg.EntryPoint)
	if err != nil {
		return "", domain.ConfigError(fmt.Sprintf("invalid entry point %q", cfg.EntryPoint))
	}

	query := url.Values{}
	query.Set("SAMLRequest", base64.StdEncoding.EncodeToString(deflated.Bytes()))
	for k, v := range e.AdditionalParams(op, relayState, cfg) {
		query.Set(k, v)
	}

	if cfg.Base.PrivateKey != "" {
		if err := e.signRedirectQuery(query, cfg.Base.PrivateKey); err != nil {
			return "", err
		}
	}

	target.RawQuery = query.Encode()
	return target.String(), nil
}

// signRedirectQuery adds SigAlg and Signature parameters over the
// canonical SAMLRequest[&RelayState]&SigAlg octet string.
func (e *Engine) signRedirectQuery(query url.Values, privateKeyPEM string) error {
	key, err := signature.ParsePrivateKey([]byte(privateKeyPEM))
	if err != nil {
		return domain.ConfigError("invalid service provider private key")
	}

	query.Set("SigAlg", rsaSHA256SigAlg)

	signed := "SAMLRequest=" + url.QueryEscape(query.Get("SAMLRequest"))
	if rs := query.Get("RelayState"); rs != "" {
		signed += "&RelayState=" + url.QueryEscape(rs)
	}
	signed += "&SigAlg=" + url.QueryEscape(rsaSHA256SigAlg)

	digest := sha256.Sum256([]byte(signed))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return fmt.Errorf("sign redirect query: %w", err)
	}
	query.Set("Signature", base64.StdEncoding.EncodeToString(sig))
	return nil
}

// LogoutURL builds the redirect URL starting SP-initiated logout for the
// given authenticated profile.
func (e *Engine) LogoutURL(ctx context.Context, profile *domain.Profile, cfg *domain.EffectiveConfig) (string, error) {
	if profile == nil {
		return "", domain.BadRequestError("no authenticated profile to log out")
	}

	doc := etree.NewDocument()
	req := doc.CreateElement("samlp:LogoutRequest")
	req.CreateAttr("xmlns:samlp", "urn:oasis:names:tc:SAML:2.0:protocol")
	req.CreateAttr("xmlns:saml", "urn:oasis:names:tc:SAML:2.0:assertion")
	req.CreateAttr("ID", e.GenerateUniqueID())
	req.CreateAttr("Version", "2.0")
	req.CreateAttr("IssueInstant", e.GenerateInstant().Format(instantFormat))
	req.CreateAttr("Destination", cfg.EntryPoint)

	issuer := req.CreateElement("saml:Issuer")
	issuer.CreateAttr("Format", "urn:oasis:names:tc:SAML:2.0:nameid-format:entity")
	issuer.CreateAttr("NameQualifier", cfg.Base.Issuer)
	issuer.SetText(cfg.Base.Issuer)

	nameID := req.CreateElement("saml:NameID")
	if profile.NameIDFormat != "" {
		nameID.CreateAttr("Format", profile.NameIDFormat)
	}
	if profile.NameQualifier != "" {
		nameID.CreateAttr("NameQualifier", profile.NameQualifier)
	}
	nameID.SetText(profile.NameID)

	if profile.SessionIndex != "" {
		req.CreateElement("samlp:SessionIndex").SetText(profile.SessionIndex)
	}

	return e.RequestToURL(ctx, doc, ports.OperationLogout, "", cfg)
}

// LogoutResponseURL builds the redirect URL answering an IdP-initiated
// logout request, referencing the inbound message ID.
func (e *Engine) LogoutResponseURL(ctx context.Context, profile *domain.Profile, cfg *domain.EffectiveConfig) (string, error) {
	if profile == nil {
		return "", domain.BadRequestError("no logout request profile")
	}

	doc := etree.NewDocument()
	resp := doc.CreateElement("samlp:LogoutResponse")
	resp.CreateAttr("xmlns:samlp", "urn:oasis:names:tc:SAML:2.0:protocol")
	resp.CreateAttr("xmlns:saml", "urn:oasis:names:tc:SAML:2.0:assertion")
	resp.CreateAttr("ID", e.GenerateUniqueID())
	resp.CreateAttr("Version", "2.0")
	resp.CreateAttr("IssueInstant", e.GenerateInstant().Format(instantFormat))
	resp.CreateAttr("Destination", cfg.EntryPoint)
	if profile.MessageID != "" {
		resp.CreateAttr("InResponseTo", profile.MessageID)
	}

	issuer := resp.CreateElement("saml:Issuer")
	issuer.SetText(cfg.Base.Issuer)

	status := resp.CreateElement("samlp:Status")
	statusCode := status.CreateElement("samlp:StatusCode")
	statusCode.CreateAttr("Value", "urn:oasis:names:tc:SAML:2.0:status:Success")

	return e.RequestToURL(ctx, doc, ports.OperationLogout, "", cfg)
}

// validateLogoutResponse confirms an SP-initiated logout completed.
func (e *Engine) validateLogoutResponse(encoded string, cfg *domain.EffectiveConfig) (*ports.ValidationResult, error) {
	sp, err := e.buildServiceProvider(cfg)
	if err != nil {
		return nil, err
	}
	if err := sp.ValidateLogoutResponseForm(encoded); err != nil {
		return nil, domain.AuthError("logout response validation failed", err)
	}
	return &ports.ValidationResult{LoggedOut: true}, nil
}

// buildServiceProvider assembles a crewjam/saml service provider whose IdP
// trust descriptor carries the effective certificate set.
func (e *Engine) buildServiceProvider(cfg *domain.EffectiveConfig) (*saml.ServiceProvider, error) {
	acsURL, err := url.Parse(cfg.Base.CallbackURL)
	if err != nil {
		return nil, domain.ConfigError(fmt.Sprintf("invalid callback URL %q", cfg.Base.CallbackURL))
	}

	sp := &saml.ServiceProvider{
		EntityID:        cfg.Base.Issuer,
		AcsURL:          *acsURL,
		IDPMetadata:     certificatesToEntityDescriptor(cfg),
		SignatureMethod: rsaSHA256SigAlg,
	}

	if cfg.Base.LogoutCallbackURL != "" {
		sloURL, err := url.Parse(cfg.Base.LogoutCallbackURL)
		if err != nil {
			return nil, domain.ConfigError(fmt.Sprintf("invalid logout callback URL %q", cfg.Base.LogoutCallbackURL))
		}
		sp.SloURL = *sloURL
	}

	if cfg.Base.PrivateKey != "" {
		key, err := signature.ParsePrivateKey([]byte(cfg.Base.PrivateKey))
		if err != nil {
			return nil, domain.ConfigError("invalid service provider private key")
		}
		sp.Key = key
	}
	if cfg.Base.Certificate != "" {
		cert, err := domain.ParseCertificate(cfg.Base.Certificate)
		if err != nil {
			return nil, domain.ConfigError("invalid service provider certificate")
		}
		sp.Certificate = cert
	}
	if cfg.Base.DecryptionKey != "" {
		key, err := signature.ParsePrivateKey([]byte(cfg.Base.DecryptionKey))
		if err != nil {
			return nil, domain.ConfigError("invalid assertion decryption key")
		}
		// crewjam/saml decrypts with the SP key; SPID deployments commonly
		// reuse the signing key pair, so the explicit decryption key wins.
		sp.Key = key
	}

	return sp, nil
}

// certificatesToEntityDescriptor wraps the effective trust set in the
// EntityDescriptor shape crewjam/saml validates against.
func certificatesToEntityDescriptor(cfg *domain.EffectiveConfig) *saml.EntityDescriptor {
	descriptor := saml.IDPSSODescriptor{
		SingleSignOnServices: []saml.Endpoint{{
			Binding:  saml.HTTPRedirectBinding,
			Location: cfg.EntryPoint,
		}},
	}
	for _, cert := range cfg.Certificates {
		descriptor.KeyDescriptors = append(descriptor.KeyDescriptors, saml.KeyDescriptor{
			Use: "signing",
			KeyInfo: saml.KeyInfo{
				X509Data: saml.X509Data{
					X509Certificates: []saml.X509Certificate{{Data: domain.CleanCertificate(cert)}},
				},
			},
		})
	}
	return &saml.EntityDescriptor{
		IDPSSODescriptors: []saml.IDPSSODescriptor{descriptor},
	}
}

// possibleRequestIDs returns the outstanding AuthnRequest IDs for
// InResponseTo validation.
func (e *Engine) possibleRequestIDs() []string {
	if e.store == nil {
		return nil
	}
	return e.store.GetAll()
}

// parseCertificates parses every certificate in the trust set, skipping
// entries that fail to parse. At least one parsed certificate is required.
func parseCertificates(certs []string) ([]*x509.Certificate, error) {
	var parsed []*x509.Certificate
	var lastErr error
	for _, cert := range certs {
		c, err := domain.ParseCertificate(cert)
		if err != nil {
			lastErr = err
			continue
		}
		parsed = append(parsed, c)
	}
	if len(parsed) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("empty certificate set")
		}
		return nil, lastErr
	}
	return parsed, nil
}

// profileFromAssertion maps a validated assertion to the identity profile.
func profileFromAssertion(assertion *saml.Assertion) *domain.Profile {
	profile := &domain.Profile{
		Issuer:     assertion.Issuer.Value,
		Attributes: make(map[string]string),
	}

	if assertion.Subject != nil && assertion.Subject.NameID != nil {
		profile.NameID = assertion.Subject.NameID.Value
		profile.NameIDFormat = assertion.Subject.NameID.Format
		profile.NameQualifier = assertion.Subject.NameID.NameQualifier
	}

	for _, stmt := range assertion.AuthnStatements {
		if stmt.SessionIndex != "" {
			profile.SessionIndex = stmt.SessionIndex
		}
		if stmt.AuthnContext.AuthnContextClassRef != nil {
			profile.AuthnContextURI = stmt.AuthnContext.AuthnContextClassRef.Value
		}
	}

	for _, stmt := range assertion.AttributeStatements {
		for _, attr := range stmt.Attributes {
			if len(attr.Values) == 0 {
				continue
			}
			key := attr.Name
			if key == "" {
				key = attr.FriendlyName
			}
			profile.Attributes[key] = attr.Values[0].Value
		}
	}

	return profile
}

// Ensure Engine implements ports.ProtocolEngine
var _ ports.ProtocolEngine = (*Engine)(nil)

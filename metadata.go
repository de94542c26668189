package spidpassport

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/BeAdopt/spid-passport/internal/adapters/driven/metrics"
	"github.com/BeAdopt/spid-passport/internal/adapters/driven/signature"
	"github.com/BeAdopt/spid-passport/internal/core/domain"
	"github.com/BeAdopt/spid-passport/internal/core/ports"
)

// Protocol constants for the SP metadata document.
const (
	metadataNamespace  = "urn:oasis:names:tc:SAML:2.0:metadata"
	dsigNamespace      = "http://www.w3.org/2000/09/xmldsig#"
	samlProtocol       = "urn:oasis:names:tc:SAML:2.0:protocol"
	httpPostBinding    = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
	transientNameID    = "urn:oasis:names:tc:SAML:2.0:nameid-format:transient"
	metadataLang       = "it"
)

// Declared assertion-encryption capabilities, strongest first.
var encryptionMethods = []string{
	"http://www.w3.org/2001/04/xmlenc#aes256-cbc",
	"http://www.w3.org/2001/04/xmlenc#aes128-cbc",
	"http://www.w3.org/2001/04/xmlenc#tripledes-cbc",
}

// attributeFriendlyNames maps the SPID attribute names the SP may request
// to their display names. Unrecognized attribute names simply get no
// FriendlyName; that is not an error.
var attributeFriendlyNames = map[string]string{
	"name":         "Name",
	"familyName":   "Family name",
	"fiscalNumber": "Fiscal number",
	"email":        "Email",
	"mobilePhone":  "Mobile phone",
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// MetadataGenerator builds and signs the service provider's federation
// trust document. It is invoked off the request path.
type MetadataGenerator struct {
	config  *domain.ProviderConfig
	engine  ports.ProtocolEngine
	signer  ports.MetadataSigner
	logger  *zap.Logger
	metrics ports.MetricsRecorder
}

// MetadataOption configures a MetadataGenerator.
type MetadataOption func(*MetadataGenerator)

// WithMetadataSigner overrides the signer built from the provider key pair.
func WithMetadataSigner(signer ports.MetadataSigner) MetadataOption {
	return func(g *MetadataGenerator) {
		g.signer = signer
	}
}

// WithMetadataLogger sets the generator logger.
func WithMetadataLogger(logger *zap.Logger) MetadataOption {
	return func(g *MetadataGenerator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetadataMetrics sets the metrics recorder.
func WithMetadataMetrics(recorder ports.MetricsRecorder) MetadataOption {
	return func(g *MetadataGenerator) {
		if recorder != nil {
			g.metrics = recorder
		}
	}
}

// NewMetadataGenerator creates a generator for the given provider
// configuration. Unless a signer is injected, one is built from the
// provider's private key and certificate when Generate runs.
func NewMetadataGenerator(cfg *domain.ProviderConfig, engine ports.ProtocolEngine, opts ...MetadataOption) *MetadataGenerator {
	g := &MetadataGenerator{
		config:  cfg,
		engine:  engine,
		logger:  zap.NewNop(),
		metrics: metrics.NewNoopMetricsRecorder(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds the entity descriptor and returns it signed. The returned
// document is always a complete, signed trust descriptor; no partial or
// unsigned document is ever returned on success.
//
// decryptionCert is the certificate matching the configured decryption key;
// it is required whenever a decryption key is configured.
func (g *MetadataGenerator) Generate(decryptionCert string) (string, error) {
	signed, err := g.generate(decryptionCert)
	g.metrics.RecordMetadataGeneration(err == nil)
	if err != nil {
		return "", err
	}
	return signed, nil
}

func (g *MetadataGenerator) generate(decryptionCert string) (string, error) {
	if g.config.DecryptionKey != "" && decryptionCert == "" {
		return "", domain.ConfigError("a decryption key is configured but no decryption certificate was supplied")
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	entity := doc.CreateElement("md:EntityDescriptor")
	entity.CreateAttr("xmlns:md", metadataNamespace)
	entity.CreateAttr("xmlns:ds", dsigNamespace)
	entity.CreateAttr("entityID", g.config.Issuer)
	entity.CreateAttr("ID", xmlSafeID(g.config.Issuer))

	descriptor := entity.CreateElement("md:SPSSODescriptor")
	descriptor.CreateAttr("protocolSupportEnumeration", samlProtocol)
	// Signing policy of this provider, not configurable at this layer.
	descriptor.CreateAttr("AuthnRequestsSigned", "true")
	descriptor.CreateAttr("WantAssertionsSigned", "true")

	if g.config.DecryptionKey != "" {
		appendKeyDescriptor(descriptor, decryptionCert)
	}

	if g.config.LogoutCallbackURL != "" {
		slo := descriptor.CreateElement("md:SingleLogoutService")
		slo.CreateAttr("Binding", httpPostBinding)
		slo.CreateAttr("Location", g.config.LogoutCallbackURL)
	}

	descriptor.CreateElement("md:NameIDFormat").SetText(transientNameID)

	acs := descriptor.CreateElement("md:AssertionConsumerService")
	acs.CreateAttr("index", "0")
	acs.CreateAttr("isDefault", "true")
	acs.CreateAttr("Binding", httpPostBinding)
	acs.CreateAttr("Location", g.engine.CallbackURL(&domain.EffectiveConfig{Base: g.config}))

	if len(g.config.RequestedAttributes) > 0 {
		appendAttributeConsumingService(descriptor, g.config)
	}

	if org := g.config.Organization; org != nil {
		appendOrganization(entity, org)
	}

	serialized, err := doc.WriteToBytes()
	if err != nil {
		return "", domain.ServiceError("failed to serialize metadata document")
	}

	signer, err := g.metadataSigner()
	if err != nil {
		return "", err
	}

	signed, err := signer.Sign(serialized)
	if err != nil {
		return "", &domain.AppError{
			Code:    domain.ErrCodeServiceError,
			Message: "failed to sign metadata document",
			Cause:   err,
		}
	}

	g.logger.Debug("sp metadata generated", zap.String("entity_id", g.config.Issuer))
	return string(signed), nil
}

// metadataSigner returns the injected signer, or builds one from the
// provider key pair.
func (g *MetadataGenerator) metadataSigner() (ports.MetadataSigner, error) {
	if g.signer != nil {
		return g.signer, nil
	}
	if g.config.PrivateKey == "" || g.config.Certificate == "" {
		return nil, domain.ConfigError("metadata signing requires a private key and certificate")
	}
	key, err := signature.ParsePrivateKey([]byte(g.config.PrivateKey))
	if err != nil {
		return nil, domain.ConfigError("invalid service provider private key")
	}
	cert, err := domain.ParseCertificate(g.config.Certificate)
	if err != nil {
		return nil, domain.ConfigError("invalid service provider certificate")
	}
	return signature.NewXMLDsigSigner(key, cert), nil
}

// appendKeyDescriptor emits the signing key descriptor carrying the cleaned
// certificate and the declared encryption capability set.
func appendKeyDescriptor(descriptor *etree.Element, cert string) {
	kd := descriptor.CreateElement("md:KeyDescriptor")
	kd.CreateAttr("use", "signing")

	keyInfo := kd.CreateElement("ds:KeyInfo")
	x509Data := keyInfo.CreateElement("ds:X509Data")
	x509Data.CreateElement("ds:X509Certificate").SetText(domain.CleanCertificate(cert))

	for _, algorithm := range encryptionMethods {
		method := kd.CreateElement("md:EncryptionMethod")
		method.CreateAttr("Algorithm", algorithm)
	}
}

// appendAttributeConsumingService maps each requested attribute to its
// friendly display name.
func appendAttributeConsumingService(descriptor *etree.Element, cfg *domain.ProviderConfig) {
	index := 0
	if cfg.AttributeConsumingServiceIndex != nil {
		index = *cfg.AttributeConsumingServiceIndex
	}

	acs := descriptor.CreateElement("md:AttributeConsumingService")
	acs.CreateAttr("index", strconv.Itoa(index))

	name := acs.CreateElement("md:ServiceName")
	name.CreateAttr("xml:lang", metadataLang)
	if cfg.AttributeServiceName != "" {
		name.SetText(cfg.AttributeServiceName)
	} else {
		name.SetText(fmt.Sprintf("%s attributes", cfg.Issuer))
	}

	for _, attribute := range cfg.RequestedAttributes {
		requested := acs.CreateElement("md:RequestedAttribute")
		requested.CreateAttr("Name", attribute)
		if friendly, ok := attributeFriendlyNames[attribute]; ok {
			requested.CreateAttr("FriendlyName", friendly)
		}
	}
}

// appendOrganization emits the organization block, localized to the single
// fixed language tag.
func appendOrganization(entity *etree.Element, org *domain.Organization) {
	block := entity.CreateElement("md:Organization")

	name := block.CreateElement("md:OrganizationName")
	name.CreateAttr("xml:lang", metadataLang)
	name.SetText(org.Name)

	display := block.CreateElement("md:OrganizationDisplayName")
	display.CreateAttr("xml:lang", metadataLang)
	display.SetText(org.DisplayName)

	orgURL := block.CreateElement("md:OrganizationURL")
	orgURL.CreateAttr("xml:lang", metadataLang)
	orgURL.SetText(org.URL)
}

// xmlSafeID derives an xs:ID-safe identifier from the entity ID by
// replacing every non-alphanumeric character.
func xmlSafeID(entityID string) string {
	return nonAlphanumeric.ReplaceAllString(entityID, "_")
}

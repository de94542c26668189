//go:build unit

package spidpassport

import (
	"strings"
	"testing"

	"github.com/beevik/etree"

	"github.com/BeAdopt/spid-passport/internal/adapters/driven/signature"
	"github.com/BeAdopt/spid-passport/internal/core/domain"
)

// passthroughSigner skips signing so tests can inspect the raw document.
type passthroughSigner struct{}

func (passthroughSigner) Sign(data []byte) ([]byte, error) { return data, nil }

func generateMetadata(t *testing.T, cfg *domain.ProviderConfig, decryptionCert string) *etree.Element {
	t.Helper()
	g := NewMetadataGenerator(cfg, &stubEngine{}, WithMetadataSigner(passthroughSigner{}))
	out, err := g.Generate(decryptionCert)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(out); err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "EntityDescriptor" {
		t.Fatalf("unexpected root: %v", root)
	}
	return root
}

func TestMetadata_EntityDescriptor(t *testing.T) {
	cfg := testProviderConfig()
	root := generateMetadata(t, cfg, "")

	if got := root.SelectAttrValue("entityID", ""); got != "https://sp.example.it" {
		t.Errorf("entityID = %q", got)
	}
	// ID must be xs:ID-safe: every non-alphanumeric replaced.
	if got := root.SelectAttrValue("ID", ""); got != "https___sp_example_it" {
		t.Errorf("ID = %q", got)
	}

	descriptor := root.FindElement("./SPSSODescriptor")
	if descriptor == nil {
		t.Fatal("missing SPSSODescriptor")
	}
	if got := descriptor.SelectAttrValue("AuthnRequestsSigned", ""); got != "true" {
		t.Errorf("AuthnRequestsSigned = %q", got)
	}
	if got := descriptor.SelectAttrValue("WantAssertionsSigned", ""); got != "true" {
		t.Errorf("WantAssertionsSigned = %q", got)
	}

	format := descriptor.FindElement("./NameIDFormat")
	if format == nil || format.Text() != "urn:oasis:names:tc:SAML:2.0:nameid-format:transient" {
		t.Errorf("NameIDFormat = %v", format)
	}

	acs := descriptor.FindElement("./AssertionConsumerService")
	if acs == nil {
		t.Fatal("missing AssertionConsumerService")
	}
	if acs.SelectAttrValue("index", "") != "0" || acs.SelectAttrValue("isDefault", "") != "true" {
		t.Errorf("ACS index/isDefault = %q/%q", acs.SelectAttrValue("index", ""), acs.SelectAttrValue("isDefault", ""))
	}
	if got := acs.SelectAttrValue("Location", ""); got != "https://sp.example.it/acs" {
		t.Errorf("ACS Location = %q", got)
	}
}

func TestMetadata_SingleLogoutService(t *testing.T) {
	cfg := testProviderConfig()
	root := generateMetadata(t, cfg, "")
	slo := root.FindElement("./SPSSODescriptor/SingleLogoutService")
	if slo == nil {
		t.Fatal("missing SingleLogoutService")
	}
	if got := slo.SelectAttrValue("Location", ""); got != "https://sp.example.it/slo" {
		t.Errorf("SLO Location = %q", got)
	}

	cfg = testProviderConfig()
	cfg.LogoutCallbackURL = ""
	root = generateMetadata(t, cfg, "")
	if root.FindElement("./SPSSODescriptor/SingleLogoutService") != nil {
		t.Error("SLO endpoint should be omitted without a logout callback URL")
	}
}

func TestMetadata_DecryptionKeyRequiresCertificate(t *testing.T) {
	cfg := testProviderConfig()
	cfg.DecryptionKey = "KEY"

	g := NewMetadataGenerator(cfg, &stubEngine{}, WithMetadataSigner(passthroughSigner{}))
	if _, err := g.Generate(""); err == nil {
		t.Fatal("decryption key without certificate must fail")
	}
}

func TestMetadata_KeyDescriptor(t *testing.T) {
	cfg := testProviderConfig()
	cfg.DecryptionKey = "KEY"
	cert := "-----BEGIN CERTIFICATE-----\nAAAA\nBBBB\n-----END CERTIFICATE-----"
	root := generateMetadata(t, cfg, cert)

	kd := root.FindElement("./SPSSODescriptor/KeyDescriptor")
	if kd == nil {
		t.Fatal("missing KeyDescriptor")
	}
	if got := kd.SelectAttrValue("use", ""); got != "signing" {
		t.Errorf("use = %q", got)
	}

	certEl := kd.FindElement("./KeyInfo/X509Data/X509Certificate")
	if certEl == nil || certEl.Text() != "AAAABBBB" {
		t.Errorf("X509Certificate = %v", certEl)
	}

	methods := kd.FindElements("./EncryptionMethod")
	want := []string{
		"http://www.w3.org/2001/04/xmlenc#aes256-cbc",
		"http://www.w3.org/2001/04/xmlenc#aes128-cbc",
		"http://www.w3.org/2001/04/xmlenc#tripledes-cbc",
	}
	if len(methods) != len(want) {
		t.Fatalf("got %d encryption methods, want %d", len(methods), len(want))
	}
	for i, method := range methods {
		if got := method.SelectAttrValue("Algorithm", ""); got != want[i] {
			t.Errorf("method[%d] = %q, want %q", i, got, want[i])
		}
	}
}

func TestMetadata_NoKeyDescriptorWithoutDecryptionKey(t *testing.T) {
	cfg := testProviderConfig()
	root := generateMetadata(t, cfg, "")
	if root.FindElement("./SPSSODescriptor/KeyDescriptor") != nil {
		t.Error("KeyDescriptor should be omitted without a decryption key")
	}
}

func TestMetadata_AttributeConsumingService(t *testing.T) {
	index := 2
	cfg := testProviderConfig()
	cfg.RequestedAttributes = []string{"fiscalNumber", "email", "customAttr"}
	cfg.AttributeServiceName = "Servizio di esempio"
	cfg.AttributeConsumingServiceIndex = &index
	root := generateMetadata(t, cfg, "")

	acs := root.FindElement("./SPSSODescriptor/AttributeConsumingService")
	if acs == nil {
		t.Fatal("missing AttributeConsumingService")
	}
	if got := acs.SelectAttrValue("index", ""); got != "2" {
		t.Errorf("index = %q", got)
	}

	name := acs.FindElement("./ServiceName")
	if name == nil || name.Text() != "Servizio di esempio" {
		t.Errorf("ServiceName = %v", name)
	}
	if got := name.SelectAttrValue("xml:lang", ""); got != "it" {
		t.Errorf("ServiceName lang = %q", got)
	}

	attrs := acs.FindElements("./RequestedAttribute")
	if len(attrs) != 3 {
		t.Fatalf("got %d requested attributes", len(attrs))
	}
	if got := attrs[0].SelectAttrValue("FriendlyName", ""); got != "Fiscal number" {
		t.Errorf("fiscalNumber FriendlyName = %q", got)
	}
	if got := attrs[1].SelectAttrValue("FriendlyName", ""); got != "Email" {
		t.Errorf("email FriendlyName = %q", got)
	}
	// Unknown attribute names carry no FriendlyName.
	if attr := attrs[2].SelectAttr("FriendlyName"); attr != nil {
		t.Errorf("customAttr FriendlyName = %q, want none", attr.Value)
	}
}

func TestMetadata_Organization(t *testing.T) {
	cfg := testProviderConfig()
	cfg.Organization = &domain.Organization{
		Name:        "Comune di Esempio",
		DisplayName: "Comune di Esempio - Servizi",
		URL:         "https://www.esempio.it",
	}
	root := generateMetadata(t, cfg, "")

	org := root.FindElement("./Organization")
	if org == nil {
		t.Fatal("missing Organization")
	}
	for _, tag := range []string{"OrganizationName", "OrganizationDisplayName", "OrganizationURL"} {
		el := org.FindElement("./" + tag)
		if el == nil {
			t.Fatalf("missing %s", tag)
		}
		if got := el.SelectAttrValue("xml:lang", ""); got != "it" {
			t.Errorf("%s lang = %q", tag, got)
		}
	}
}

func TestMetadata_SignedRoundTrip(t *testing.T) {
	keyPEM, certPEM := generateTestKeyPair(t)

	cfg := testProviderConfig()
	cfg.PrivateKey = keyPEM
	cfg.Certificate = certPEM

	g := NewMetadataGenerator(cfg, &stubEngine{})
	out, err := g.Generate("")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// Signature must be the first child of the EntityDescriptor.
	doc := etree.NewDocument()
	if err := doc.ReadFromString(out); err != nil {
		t.Fatalf("parse signed metadata: %v", err)
	}
	children := doc.Root().ChildElements()
	if len(children) == 0 || children[0].Tag != "Signature" {
		t.Fatalf("first child = %v, want Signature", children)
	}

	cert, err := domain.ParseCertificate(certPEM)
	if err != nil {
		t.Fatal(err)
	}
	verifier := signature.NewXMLDsigVerifier(cert)
	if _, err := verifier.Verify([]byte(out)); err != nil {
		t.Errorf("signed metadata failed verification: %v", err)
	}
}

func TestMetadata_SigningRequiresKeyPair(t *testing.T) {
	cfg := testProviderConfig()
	g := NewMetadataGenerator(cfg, &stubEngine{})
	_, err := g.Generate("")
	if err == nil {
		t.Fatal("signing without a key pair must fail")
	}
	if !strings.Contains(err.Error(), "private key") {
		t.Errorf("err = %v", err)
	}
}

func TestXMLSafeID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://sp.example.it", "https___sp_example_it"},
		{"plain", "plain"},
		{"a-b.c:d/e", "a_b_c_d_e"},
	}
	for _, tc := range tests {
		if got := xmlSafeID(tc.in); got != tc.want {
			t.Errorf("xmlSafeID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

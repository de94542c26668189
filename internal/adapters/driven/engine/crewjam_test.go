//go:build unit

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
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"io"
	"math/big"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"

	"github.com/BeAdopt/spid-passport/internal/adapters/driven/request"
	"github.com/BeAdopt/spid-passport/internal/adapters/driven/signature"
	"github.com/BeAdopt/spid-passport/internal/core/domain"
	"github.com/BeAdopt/spid-passport/internal/core/ports"
)

func generateKeyPair(t *testing.T) (*rsa.PrivateKey, *x509.Certificate, string, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}

	keyPEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
	certPEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: certDER,
	}))
	return key, cert, keyPEM, certPEM
}

func testEffectiveConfig() *domain.EffectiveConfig {
	base := &domain.ProviderConfig{
		Issuer:            "https://sp.example.it",
		CallbackURL:       "https://sp.example.it/acs",
		LogoutCallbackURL: "https://sp.example.it/slo",
		IdentityProviders: []domain.IdPConfig{{
			EntityID:     "https://idp.example.it",
			EntryPoint:   "https://idp.example.it/sso",
			Certificates: []string{"CERT"},
		}},
	}
	return &domain.EffectiveConfig{
		Base:         base,
		EntryPoint:   "https://idp.example.it/sso",
		Certificates: []string{"CERT"},
	}
}

// inflateParam decodes a SAMLRequest query parameter back to XML.
func inflateParam(t *testing.T, encoded string) string {
	t.Helper()
	deflated, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("base64 decode: %v", err)
	}
	inflated, err := io.ReadAll(flate.NewReader(bytes.NewReader(deflated)))
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	return string(inflated)
}

func TestGenerateUniqueID(t *testing.T) {
	e := NewEngine(nil)

	first := e.GenerateUniqueID()
	second := e.GenerateUniqueID()

	if !strings.HasPrefix(first, "_") {
		t.Errorf("ID %q must start with underscore (xs:ID)", first)
	}
	if first == second {
		t.Error("consecutive IDs must differ")
	}
}

func TestGenerateInstant_UTC(t *testing.T) {
	e := NewEngine(nil)
	if zone, _ := e.GenerateInstant().Zone(); zone != "UTC" {
		t.Errorf("instant zone = %q, want UTC", zone)
	}
}

func TestAdditionalParams(t *testing.T) {
	e := NewEngine(nil)
	cfg := testEffectiveConfig()
	cfg.Base.AdditionalParams = map[string]string{"shared": "1"}
	cfg.Base.AdditionalAuthorizeParams = map[string]string{"loginOnly": "2"}
	cfg.Base.AdditionalLogoutParams = map[string]string{"logoutOnly": "3"}

	login := e.AdditionalParams(ports.OperationLogin, "state", cfg)
	if login["RelayState"] != "state" || login["shared"] != "1" || login["loginOnly"] != "2" {
		t.Errorf("login params = %v", login)
	}
	if _, ok := login["logoutOnly"]; ok {
		t.Error("logout-only param leaked into login")
	}

	logout := e.AdditionalParams(ports.OperationLogout, "", cfg)
	if logout["logoutOnly"] != "3" || logout["shared"] != "1" {
		t.Errorf("logout params = %v", logout)
	}
	if _, ok := logout["RelayState"]; ok {
		t.Error("empty relay state must not emit a parameter")
	}
}

func TestRequestToURL_DeflateRoundTrip(t *testing.T) {
	e := NewEngine(nil)
	cfg := testEffectiveConfig()

	doc := etree.NewDocument()
	root := doc.CreateElement("samlp:AuthnRequest")
	root.CreateAttr("ID", "_round-trip")

	rawURL, err := e.RequestToURL(context.Background(), doc, ports.OperationLogin, "/after", cfg)
	if err != nil {
		t.Fatalf("RequestToURL: %v", err)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	if parsed.Host != "idp.example.it" || parsed.Path != "/sso" {
		t.Errorf("URL = %q", rawURL)
	}

	query := parsed.Query()
	if query.Get("RelayState") != "/after" {
		t.Errorf("RelayState = %q", query.Get("RelayState"))
	}

	xml := inflateParam(t, query.Get("SAMLRequest"))
	if !strings.Contains(xml, `ID="_round-trip"`) {
		t.Errorf("inflated request = %q", xml)
	}
}

func TestRequestToURL_NoEntryPoint(t *testing.T) {
	e := NewEngine(nil)
	cfg := testEffectiveConfig()
	cfg.EntryPoint = ""

	doc := etree.NewDocument()
	doc.CreateElement("samlp:AuthnRequest")

	if _, err := e.RequestToURL(context.Background(), doc, ports.OperationLogin, "", cfg); err == nil {
		t.Fatal("missing entry point must fail")
	}
}

func TestRequestToURL_SignedQuery(t *testing.T) {
	key, _, keyPEM, _ := generateKeyPair(t)

	e := NewEngine(nil)
	cfg := testEffectiveConfig()
	cfg.Base.PrivateKey = keyPEM

	doc := etree.NewDocument()
	doc.CreateElement("samlp:AuthnRequest")

	rawURL, err := e.RequestToURL(context.Background(), doc, ports.OperationLogin, "/deep", cfg)
	if err != nil {
		t.Fatalf("RequestToURL: %v", err)
	}

	parsed, _ := url.Parse(rawURL)
	query := parsed.Query()
	if query.Get("SigAlg") != "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256" {
		t.Errorf("SigAlg = %q", query.Get("SigAlg"))
	}

	sig, err := base64.StdEncoding.DecodeString(query.Get("Signature"))
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}

	// Reconstruct the canonical signed octet string.
	signed := "SAMLRequest=" + url.QueryEscape(query.Get("SAMLRequest")) +
		"&RelayState=" + url.QueryEscape(query.Get("RelayState")) +
		"&SigAlg=" + url.QueryEscape(query.Get("SigAlg"))
	digest := sha256.Sum256([]byte(signed))

	if err := rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], sig); err != nil {
		t.Errorf("redirect signature does not verify: %v", err)
	}
}

func TestLogoutURL(t *testing.T) {
	e := NewEngine(nil)
	cfg := testEffectiveConfig()

	profile := &domain.Profile{
		NameID:        "AAdzZWNyZXQx",
		NameIDFormat:  "urn:oasis:names:tc:SAML:2.0:nameid-format:transient",
		NameQualifier: "https://idp.example.it",
		SessionIndex:  "sess-42",
	}

	rawURL, err := e.LogoutURL(context.Background(), profile, cfg)
	if err != nil {
		t.Fatalf("LogoutURL: %v", err)
	}

	parsed, _ := url.Parse(rawURL)
	xml := inflateParam(t, parsed.Query().Get("SAMLRequest"))

	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		t.Fatalf("parse logout request: %v", err)
	}
	root := doc.Root()
	if root.Tag != "LogoutRequest" {
		t.Fatalf("root = %q", root.Tag)
	}
	if nameID := root.FindElement("./NameID"); nameID == nil || nameID.Text() != profile.NameID {
		t.Errorf("NameID = %v", nameID)
	}
	if si := root.FindElement("./SessionIndex"); si == nil || si.Text() != "sess-42" {
		t.Errorf("SessionIndex = %v", si)
	}
	if got := root.SelectAttrValue("Destination", ""); got != "https://idp.example.it/sso" {
		t.Errorf("Destination = %q", got)
	}
}

func TestLogoutURL_NilProfile(t *testing.T) {
	e := NewEngine(nil)
	if _, err := e.LogoutURL(context.Background(), nil, testEffectiveConfig()); err == nil {
		t.Fatal("nil profile must fail")
	}
}

func TestLogoutResponseURL(t *testing.T) {
	e := NewEngine(nil)
	cfg := testEffectiveConfig()

	profile := &domain.Profile{NameID: "subject", MessageID: "_inbound-id"}
	rawURL, err := e.LogoutResponseURL(context.Background(), profile, cfg)
	if err != nil {
		t.Fatalf("LogoutResponseURL: %v", err)
	}

	parsed, _ := url.Parse(rawURL)
	xml := inflateParam(t, parsed.Query().Get("SAMLRequest"))

	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		t.Fatalf("parse logout response: %v", err)
	}
	root := doc.Root()
	if root.Tag != "LogoutResponse" {
		t.Fatalf("root = %q", root.Tag)
	}
	if got := root.SelectAttrValue("InResponseTo", ""); got != "_inbound-id" {
		t.Errorf("InResponseTo = %q", got)
	}
	code := root.FindElement("./Status/StatusCode")
	if code == nil || code.SelectAttrValue("Value", "") != "urn:oasis:names:tc:SAML:2.0:status:Success" {
		t.Errorf("StatusCode = %v", code)
	}
}

func TestValidatePostResponse_BadInput(t *testing.T) {
	e := NewEngine(request.NewInMemoryRequestStore())
	cfg := testEffectiveConfig()

	if _, err := e.ValidatePostResponse(context.Background(), "%%%not-base64%%%", cfg); err == nil {
		t.Error("invalid base64 must fail")
	}

	notXML := base64.StdEncoding.EncodeToString([]byte("plain text"))
	if _, err := e.ValidatePostResponse(context.Background(), notXML, cfg); err == nil {
		t.Error("non-XML payload must fail")
	}
}

func TestValidatePostRequest_SignedLogoutRequest(t *testing.T) {
	key, cert, _, certPEM := generateKeyPair(t)

	doc := etree.NewDocument()
	req := doc.CreateElement("samlp:LogoutRequest")
	req.CreateAttr("xmlns:samlp", "urn:oasis:names:tc:SAML:2.0:protocol")
	req.CreateAttr("xmlns:saml", "urn:oasis:names:tc:SAML:2.0:assertion")
	req.CreateAttr("ID", "_idp-logout-1")
	req.CreateAttr("Version", "2.0")
	req.CreateAttr("IssueInstant", "2026-03-14T09:26:53.000Z")
	req.CreateElement("saml:Issuer").SetText("https://idp.example.it")
	nameID := req.CreateElement("saml:NameID")
	nameID.CreateAttr("Format", "urn:oasis:names:tc:SAML:2.0:nameid-format:transient")
	nameID.SetText("AAdzZWNyZXQx")
	req.CreateElement("samlp:SessionIndex").SetText("sess-42")

	raw, err := doc.WriteToBytes()
	if err != nil {
		t.Fatal(err)
	}
	signed, err := signature.NewXMLDsigSigner(key, cert).Sign(raw)
	if err != nil {
		t.Fatalf("sign logout request: %v", err)
	}

	cfg := testEffectiveConfig()
	cfg.Certificates = []string{certPEM}

	e := NewEngine(nil)
	result, err := e.ValidatePostRequest(context.Background(), base64.StdEncoding.EncodeToString(signed), cfg)
	if err != nil {
		t.Fatalf("ValidatePostRequest: %v", err)
	}

	if !result.LoggedOut {
		t.Error("a logout request must report LoggedOut")
	}
	profile := result.Profile
	if profile == nil {
		t.Fatal("missing profile")
	}
	if profile.MessageID != "_idp-logout-1" {
		t.Errorf("MessageID = %q", profile.MessageID)
	}
	if profile.NameID != "AAdzZWNyZXQx" {
		t.Errorf("NameID = %q", profile.NameID)
	}
	if profile.SessionIndex != "sess-42" {
		t.Errorf("SessionIndex = %q", profile.SessionIndex)
	}
	if profile.Issuer != "https://idp.example.it" {
		t.Errorf("Issuer = %q", profile.Issuer)
	}
}

func TestValidatePostRequest_UnsignedRejected(t *testing.T) {
	_, _, _, certPEM := generateKeyPair(t)

	const unsigned = `<samlp:LogoutRequest xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol" ID="_x" Version="2.0"/>`
	cfg := testEffectiveConfig()
	cfg.Certificates = []string{certPEM}

	e := NewEngine(nil)
	if _, err := e.ValidatePostRequest(context.Background(), base64.StdEncoding.EncodeToString([]byte(unsigned)), cfg); err == nil {
		t.Fatal("unsigned logout request must be rejected")
	}
}

//go:build unit

package spidpassport

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"

	"github.com/BeAdopt/spid-passport/internal/core/domain"
	"github.com/BeAdopt/spid-passport/internal/core/ports"
)

// stubEngine is a scriptable ProtocolEngine for orchestration tests. Zero
// value behaves like a healthy engine issuing deterministic IDs.
type stubEngine struct {
	validateResponseResult *ports.ValidationResult
	validateResponseErr    error
	validateRequestResult  *ports.ValidationResult
	validateRequestErr     error
	logoutURL              string
	logoutURLErr           error
	logoutResponseURL      string
	logoutResponseErr      error
	requestURL             string
	requestURLErr          error
	uniqueID               string

	requestToURLOp   ports.Operation
	requestToURLDoc  *etree.Document
	relayState       string
	logoutProfile    *domain.Profile
	validateResponse string
	validateRequest  string
}

func (e *stubEngine) ValidatePostResponse(_ context.Context, encoded string, _ *domain.EffectiveConfig) (*ports.ValidationResult, error) {
	e.validateResponse = encoded
	return e.validateResponseResult, e.validateResponseErr
}

func (e *stubEngine) ValidatePostRequest(_ context.Context, encoded string, _ *domain.EffectiveConfig) (*ports.ValidationResult, error) {
	e.validateRequest = encoded
	return e.validateRequestResult, e.validateRequestErr
}

func (e *stubEngine) LogoutURL(_ context.Context, profile *domain.Profile, _ *domain.EffectiveConfig) (string, error) {
	e.logoutProfile = profile
	if e.logoutURLErr != nil {
		return "", e.logoutURLErr
	}
	if e.logoutURL == "" {
		return "https://idp.example.it/slo?SAMLRequest=stub", nil
	}
	return e.logoutURL, nil
}

func (e *stubEngine) LogoutResponseURL(_ context.Context, profile *domain.Profile, _ *domain.EffectiveConfig) (string, error) {
	e.logoutProfile = profile
	if e.logoutResponseErr != nil {
		return "", e.logoutResponseErr
	}
	if e.logoutResponseURL == "" {
		return "https://idp.example.it/slo?SAMLResponse=stub", nil
	}
	return e.logoutResponseURL, nil
}

func (e *stubEngine) RequestToURL(_ context.Context, doc *etree.Document, op ports.Operation, relayState string, cfg *domain.EffectiveConfig) (string, error) {
	e.requestToURLDoc = doc
	e.requestToURLOp = op
	e.relayState = relayState
	if e.requestURLErr != nil {
		return "", e.requestURLErr
	}
	if e.requestURL == "" {
		return cfg.EntryPoint + "?SAMLRequest=stub", nil
	}
	return e.requestURL, nil
}

func (e *stubEngine) GenerateUniqueID() string {
	if e.uniqueID == "" {
		return "_test-request-id"
	}
	return e.uniqueID
}

func (e *stubEngine) GenerateInstant() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
}

func (e *stubEngine) CallbackURL(cfg *domain.EffectiveConfig) string {
	return cfg.Base.CallbackURL
}

func (e *stubEngine) AdditionalParams(_ ports.Operation, relayState string, _ *domain.EffectiveConfig) map[string]string {
	params := map[string]string{}
	if relayState != "" {
		params["RelayState"] = relayState
	}
	return params
}

var _ ports.ProtocolEngine = (*stubEngine)(nil)

// recordingResponder records which outcome was reported.
type recordingResponder struct {
	successProfile *domain.Profile
	successInfo    map[string]any
	failReason     string
	passed         bool
	err            error
	redirectURL    string
	calls          int
}

func (r *recordingResponder) Success(profile *domain.Profile, info map[string]any) {
	r.successProfile = profile
	r.successInfo = info
	r.calls++
}

func (r *recordingResponder) Fail(reason string) {
	r.failReason = reason
	r.calls++
}

func (r *recordingResponder) Pass() {
	r.passed = true
	r.calls++
}

func (r *recordingResponder) Error(err error) {
	r.err = err
	r.calls++
}

func (r *recordingResponder) Redirect(url string) {
	r.redirectURL = url
	r.calls++
}

var _ ports.Responder = (*recordingResponder)(nil)

// memStore is a minimal in-test request store.
type memStore struct {
	ids      map[string]time.Time
	storeErr error
}

func newMemStore() *memStore {
	return &memStore{ids: map[string]time.Time{}}
}

func (s *memStore) Store(id string, expiry time.Time) error {
	if s.storeErr != nil {
		return s.storeErr
	}
	s.ids[id] = expiry
	return nil
}

func (s *memStore) Valid(id string) bool {
	_, ok := s.ids[id]
	delete(s.ids, id)
	return ok
}

func (s *memStore) GetAll() []string {
	all := make([]string, 0, len(s.ids))
	for id := range s.ids {
		all = append(all, id)
	}
	return all
}

var _ ports.RequestStore = (*memStore)(nil)

func testProviderConfig() *domain.ProviderConfig {
	return &domain.ProviderConfig{
		Issuer:            "https://sp.example.it",
		CallbackURL:       "https://sp.example.it/acs",
		LogoutCallbackURL: "https://sp.example.it/slo",
		IdentityProviders: []domain.IdPConfig{
			{
				EntityID:     "https://idp-one.example.it",
				EntryPoint:   "https://idp-one.example.it/sso",
				Certificates: []string{"CERT-ONE"},
			},
			{
				EntityID:     "https://idp-two.example.it",
				EntryPoint:   "https://idp-two.example.it/sso",
				Certificates: []string{"CERT-TWO-A", "CERT-TWO-B"},
			},
		},
	}
}

func getRequest(t *testing.T, rawURL string) *http.Request {
	t.Helper()
	r, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func postFormRequest(t *testing.T, rawURL string, form url.Values) *http.Request {
	t.Helper()
	r, err := http.NewRequest(http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

// generateTestKeyPair returns a fresh RSA key and matching self-signed
// certificate, both PEM encoded.
func generateTestKeyPair(t *testing.T) (keyPEM, certPEM string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   "Test SP",
			Organization: []string{"Test"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	keyPEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
	certPEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: certDER,
	}))
	return keyPEM, certPEM
}

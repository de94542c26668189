package signature

import (
	"crypto"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"go.uber.org/zap"

	"github.com/BeAdopt/spid-passport/internal/core/domain"
	"github.com/BeAdopt/spid-passport/internal/core/ports"
)

// XMLDsigVerifier verifies XML signatures using goxmldsig.
// It validates enveloped signatures against trusted certificates.
type XMLDsigVerifier struct {
	certStore dsig.X509CertificateStore
	logger    *zap.Logger
}

// NewXMLDsigVerifier creates a verifier with a single trust anchor certificate.
func NewXMLDsigVerifier(cert *x509.Certificate) *XMLDsigVerifier {
	return NewXMLDsigVerifierWithCerts([]*x509.Certificate{cert})
}

// NewXMLDsigVerifierWithCerts creates a verifier with multiple trust anchor
// certificates. This is the shape SPID validation needs: when the IdP is not
// known up front, the trust set is every registered IdP's certificate.
func NewXMLDsigVerifierWithCerts(certs []*x509.Certificate) *XMLDsigVerifier {
	return &XMLDsigVerifier{
		certStore: &dsig.MemoryX509CertificateStore{
			Roots: certs,
		},
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger used for verification events.
func (v *XMLDsigVerifier) SetLogger(logger *zap.Logger) {
	if logger != nil {
		v.logger = logger
	}
}

// Verify validates the XML signature on the document and returns the
// validated XML bytes. Returns error if the signature is invalid, missing,
// or cannot be verified against the trust set.
func (v *XMLDsigVerifier) Verify(data []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeSignatureInvalid,
			Message: "failed to parse signed XML",
			Cause:   err,
		}
	}

	root := doc.Root()
	if root == nil {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeSignatureInvalid,
			Message: "empty XML document",
		}
	}

	ctx := dsig.NewDefaultValidationContext(v.certStore)

	validated, err := ctx.Validate(root)
	if err != nil {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeSignatureInvalid,
			Message: "signature verification failed",
			Cause:   err,
		}
	}

	v.logger.Debug("xml signature verified", zap.String("element", validated.Tag))

	// Re-serialize the validated element to prevent signature wrapping attacks
	validatedDoc := etree.NewDocument()
	validatedDoc.SetRoot(validated)
	result, err := validatedDoc.WriteToBytes()
	if err != nil {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeServiceError,
			Message: "failed to serialize validated document",
			Cause:   err,
		}
	}
	return result, nil
}

// XMLDsigSigner signs SP metadata using goxmldsig.
// It creates an enveloped signature (exclusive C14N, SHA-256 digest,
// RSA-SHA256) and places the Signature element as the first child of the
// EntityDescriptor, as the SPID metadata profile requires.
type XMLDsigSigner struct {
	privateKey  *rsa.PrivateKey
	certificate *x509.Certificate
}

// NewXMLDsigSigner creates a signer with the given key pair.
func NewXMLDsigSigner(privateKey *rsa.PrivateKey, certificate *x509.Certificate) *XMLDsigSigner {
	return &XMLDsigSigner{
		privateKey:  privateKey,
		certificate: certificate,
	}
}

// Sign adds an enveloped XML signature to the metadata and returns signed bytes.
func (s *XMLDsigSigner) Sign(metadata []byte) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, errors.New("empty metadata")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(metadata); err != nil {
		return nil, fmt.Errorf("parse XML: %w", err)
	}

	root := doc.Root()
	if root == nil {
		return nil, errors.New("empty XML document")
	}

	tlsCert := tls.Certificate{
		Certificate: [][]byte{s.certificate.Raw},
		PrivateKey:  s.privateKey,
	}
	keyStore := dsig.TLSCertKeyStore(tlsCert)

	signingContext := dsig.NewDefaultSigningContext(keyStore)
	signingContext.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	if err := signingContext.SetSignatureMethod(dsig.RSASHA256SignatureMethod); err != nil {
		return nil, fmt.Errorf("set signature method: %w", err)
	}
	signingContext.Hash = crypto.SHA256

	signedRoot, err := signingContext.SignEnveloped(root)
	if err != nil {
		return nil, fmt.Errorf("sign XML: %w", err)
	}

	// SignEnveloped appends the Signature as the last child; the metadata
	// profile wants it first.
	if sig := signedRoot.FindElement("./Signature"); sig != nil {
		signedRoot.RemoveChild(sig)
		signedRoot.InsertChildAt(0, sig)
	}

	doc.SetRoot(signedRoot)

	signedBytes, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize signed XML: %w", err)
	}

	return signedBytes, nil
}

// Ensure implementations satisfy interfaces
var _ ports.SignatureVerifier = (*XMLDsigVerifier)(nil)
var _ ports.MetadataSigner = (*XMLDsigSigner)(nil)

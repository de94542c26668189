package spidpassport

import (
	"github.com/BeAdopt/spid-passport/internal/adapters/driven/signature"
	"github.com/BeAdopt/spid-passport/internal/core/ports"
)

// Re-export signature ports and adapters
type SignatureVerifier = ports.SignatureVerifier
type MetadataSigner = ports.MetadataSigner
type XMLDsigSigner = signature.XMLDsigSigner
type XMLDsigVerifier = signature.XMLDsigVerifier

var (
	NewXMLDsigSigner            = signature.NewXMLDsigSigner
	NewXMLDsigVerifier          = signature.NewXMLDsigVerifier
	NewXMLDsigVerifierWithCerts = signature.NewXMLDsigVerifierWithCerts
	LoadSigningCertificates     = signature.LoadSigningCertificates
	LoadPrivateKey              = signature.LoadPrivateKey
	ParsePrivateKey             = signature.ParsePrivateKey
)

package ports

// SignatureVerifier verifies XML signatures on SAML documents.
// This is a port interface - implementations are adapters.
//
// The interface returns validated bytes (not just error) following goxmldsig
// best practices to prevent signature wrapping attacks. The returned bytes
// should be used for further processing.
type SignatureVerifier interface {
	// Verify validates the XML signature on the document and returns the
	// validated XML bytes. Returns error if signature is invalid or missing.
	Verify(data []byte) ([]byte, error)
}

// MetadataSigner signs the SP metadata document.
// This is a port interface - implementations are adapters.
type MetadataSigner interface {
	// Sign adds an enveloped XML signature to the metadata and returns
	// the signed XML bytes.
	Sign(data []byte) ([]byte, error)
}

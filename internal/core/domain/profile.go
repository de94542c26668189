package domain

// Profile is the identity extracted from a validated SAML assertion or
// logout message.
type Profile struct {
	// NameID is the subject identifier asserted by the IdP.
	NameID string

	// NameIDFormat is the format URI of NameID.
	NameIDFormat string

	// NameQualifier scopes the NameID to the asserting IdP.
	NameQualifier string

	// SessionIndex identifies the IdP session, needed for logout.
	SessionIndex string

	// Issuer is the entity ID of the asserting IdP.
	Issuer string

	// MessageID is the ID of the inbound protocol message this profile
	// was extracted from. A logout response references it as InResponseTo.
	MessageID string

	// AuthnContextURI is the AuthnContext class the IdP declared for
	// this authentication (one of the SpidL URIs).
	AuthnContextURI string

	// Attributes holds the asserted SPID attributes keyed by name
	// (e.g. "fiscalNumber", "email").
	Attributes map[string]string
}

// AssuranceLevel resolves the declared AuthnContext to its level.
// Reports ok=false when the IdP declared no (or an unknown) context.
func (p *Profile) AssuranceLevel() (AssuranceLevel, bool) {
	return URIToLevel(p.AuthnContextURI)
}

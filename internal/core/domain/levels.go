package domain

// AssuranceLevel is one of the three ordered SPID authentication levels.
// Higher values require stronger authentication at the IdP.
type AssuranceLevel int

const (
	// LevelUnknown is the zero value for an unresolved level.
	LevelUnknown AssuranceLevel = 0

	// SpidL1 is single-factor authentication (username and password).
	SpidL1 AssuranceLevel = 1

	// SpidL2 is two-factor authentication (OTP or app-based).
	SpidL2 AssuranceLevel = 2

	// SpidL3 is two-factor authentication with a hardware credential.
	SpidL3 AssuranceLevel = 3
)

// DefaultLevel is the assurance level used when a request does not ask
// for a specific one.
const DefaultLevel = SpidL2

// AuthnContext class reference URIs for the three SPID levels.
const (
	SpidL1URI = "https://www.spid.gov.it/SpidL1"
	SpidL2URI = "https://www.spid.gov.it/SpidL2"
	SpidL3URI = "https://www.spid.gov.it/SpidL3"
)

var levelToURI = map[AssuranceLevel]string{
	SpidL1: SpidL1URI,
	SpidL2: SpidL2URI,
	SpidL3: SpidL3URI,
}

var uriToLevel = map[string]AssuranceLevel{
	SpidL1URI: SpidL1,
	SpidL2URI: SpidL2,
	SpidL3URI: SpidL3,
}

var tokenToLevel = map[string]AssuranceLevel{
	"SpidL1": SpidL1,
	"SpidL2": SpidL2,
	"SpidL3": SpidL3,
}

// String returns the canonical token for the level ("SpidL1".."SpidL3"),
// or an empty string for an unknown level.
func (l AssuranceLevel) String() string {
	switch l {
	case SpidL1:
		return "SpidL1"
	case SpidL2:
		return "SpidL2"
	case SpidL3:
		return "SpidL3"
	}
	return ""
}

// LevelToURI maps an assurance level to its AuthnContext class reference URI.
// Unknown levels report ok=false; this is never an error condition.
func LevelToURI(level AssuranceLevel) (string, bool) {
	uri, ok := levelToURI[level]
	return uri, ok
}

// URIToLevel maps an AuthnContext class reference URI back to its level.
// Unknown URIs report ok=false.
func URIToLevel(uri string) (AssuranceLevel, bool) {
	level, ok := uriToLevel[uri]
	return level, ok
}

// ParseLevel resolves a request token ("SpidL1".."SpidL3") to a level.
// Unknown tokens report ok=false.
func ParseLevel(token string) (AssuranceLevel, bool) {
	level, ok := tokenToLevel[token]
	return level, ok
}

// ForceAuthnFor reports whether an AuthnRequest at the given level must
// carry ForceAuthn. SpidL1 allows SSO re-use of an existing IdP session;
// SpidL2 and SpidL3 always require fresh authentication.
func ForceAuthnFor(level AssuranceLevel) bool {
	return level > SpidL1
}

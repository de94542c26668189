package spidpassport

import (
	"github.com/BeAdopt/spid-passport/internal/core/domain"
)

// Re-export assurance-level types and constants from domain
type AssuranceLevel = domain.AssuranceLevel

const (
	SpidL1 = domain.SpidL1
	SpidL2 = domain.SpidL2
	SpidL3 = domain.SpidL3

	SpidL1URI = domain.SpidL1URI
	SpidL2URI = domain.SpidL2URI
	SpidL3URI = domain.SpidL3URI

	DefaultLevel = domain.DefaultLevel
)

var (
	LevelToURI    = domain.LevelToURI
	URIToLevel    = domain.URIToLevel
	ParseLevel    = domain.ParseLevel
	ForceAuthnFor = domain.ForceAuthnFor
)

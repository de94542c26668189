package spidpassport

import (
	"github.com/BeAdopt/spid-passport/internal/core/domain"
)

// Re-export configuration and identity types from domain
type ProviderConfig = domain.ProviderConfig
type IdPConfig = domain.IdPConfig
type EffectiveConfig = domain.EffectiveConfig
type Organization = domain.Organization
type FallbackFlow = domain.FallbackFlow
type Profile = domain.Profile

// Re-export fallback flow selectors
const (
	FlowLoginRequest  = domain.FlowLoginRequest
	FlowLogoutRequest = domain.FlowLogoutRequest
)

var (
	LoadConfig       = domain.LoadConfig
	CleanCertificate = domain.CleanCertificate
	ParseCertificate = domain.ParseCertificate
)

package spidpassport

import (
	"github.com/BeAdopt/spid-passport/internal/adapters/driven/registry"
)

// Re-export the metadata-based IdP registry loader
type RegistryLoader = registry.Loader
type RegistryOption = registry.Option

var (
	NewRegistryLoader             = registry.NewLoader
	WithRegistrySignatureVerifier = registry.WithSignatureVerifier
	WithRegistryLogger            = registry.WithLogger
)

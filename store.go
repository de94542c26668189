package spidpassport

import (
	"github.com/BeAdopt/spid-passport/internal/adapters/driven/request"
	"github.com/BeAdopt/spid-passport/internal/core/ports"
)

// Re-export RequestStore interface from ports
type RequestStore = ports.RequestStore

// Re-export the in-memory replay-prevention store adapter
type InMemoryRequestStore = request.InMemoryRequestStore

var (
	NewInMemoryRequestStore            = request.NewInMemoryRequestStore
	NewInMemoryRequestStoreWithCleanup = request.NewInMemoryRequestStoreWithCleanup
	WithOnCleanup                      = request.WithOnCleanup
)
